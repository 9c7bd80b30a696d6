package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// RedeemAccounts names the accounts bound by both redemption paths. User
// signs; Source is vault-held and debited under the vault signer.
type RedeemAccounts struct {
	Vault        solana.PublicKey
	Schedule     solana.PublicKey
	VaultSigner  solana.PublicKey
	Source       solana.PublicKey
	User         solana.PublicKey
	Destination  solana.PublicKey
	TokenProgram solana.PublicKey
}

// RedeemToken pays a Distribution entitlement from the schedule's pinned
// receiving token account.
func (e *Engine) RedeemToken(signers Signers, accts RedeemAccounts) (Entitlement, error) {
	return e.redeem(signers, accts, ObjTypeDistribution)
}

// RedeemTokenMulti pays a DistributionMulti entitlement from any vault token
// account holding the entitlement's mint.
func (e *Engine) RedeemTokenMulti(signers Signers, accts RedeemAccounts) (Entitlement, error) {
	return e.redeem(signers, accts, ObjTypeDistributionMulti)
}

func (e *Engine) redeem(signers Signers, accts RedeemAccounts, want ObjType) (Entitlement, error) {
	if err := e.ready(); err != nil {
		return Entitlement{}, err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return Entitlement{}, err
	}
	s, err := e.loadSchedule(accts.Schedule)
	if err != nil {
		return Entitlement{}, err
	}
	if s.VaultID != v.Address {
		return Entitlement{}, fmt.Errorf("%w: schedule %s belongs to vault %s", ErrInvalidAccount, s.Address, s.VaultID)
	}
	if s.ObjType != want {
		return Entitlement{}, fmt.Errorf("%w: schedule %s is %s, not %s", ErrInvalidAccount, s.Address, s.ObjType, want)
	}
	if want == ObjTypeDistribution {
		if s.ReceivingTokenAccount.IsZero() || accts.Source != s.ReceivingTokenAccount {
			return Entitlement{}, fmt.Errorf("%w: source %s is not the schedule's receiving account", ErrInvalidTokenAccount, accts.Source)
		}
	}
	if err := e.verifySigner(v, accts.VaultSigner); err != nil {
		return Entitlement{}, err
	}
	if err := requireSigner(signers, accts.User); err != nil {
		return Entitlement{}, err
	}
	if err := e.requireTokenProgram(accts.TokenProgram); err != nil {
		return Entitlement{}, err
	}

	idx, ok := s.Find(accts.User)
	if !ok {
		return Entitlement{}, fmt.Errorf("%w: %s", ErrIneligible, accts.User)
	}
	ent := s.Entitlements[idx]
	if ent.Redeemed {
		return Entitlement{}, fmt.Errorf("%w: %s in schedule %s", ErrAlreadyRedeemed, accts.User, s.Address)
	}
	if want == ObjTypeDistributionMulti {
		src, found, err := e.state.TokenAccountGet(accts.Source)
		if err != nil {
			return Entitlement{}, err
		}
		if !found || src.Mint != ent.Mint {
			return Entitlement{}, fmt.Errorf("%w: source %s does not hold mint %s", ErrInvalidTokenAccount, accts.Source, ent.Mint)
		}
	}

	if err := e.ledger.TransferToken(accts.Source, accts.Destination, accts.VaultSigner, ent.Amount); err != nil {
		return Entitlement{}, err
	}
	s.Entitlements[idx].Redeemed = true
	if err := e.state.SchedulePut(s); err != nil {
		return Entitlement{}, err
	}
	ent = s.Entitlements[idx]
	e.emit(NewScheduleRedeemedEvent(s, ent, accts.Source, accts.Destination))
	return ent, nil
}
