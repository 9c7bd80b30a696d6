package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// WithdrawSolAccounts names the accounts bound by WithdrawSol.
type WithdrawSolAccounts struct {
	Admin       solana.PublicKey
	Vault       solana.PublicKey
	VaultSigner solana.PublicKey
	Recipient   solana.PublicKey
}

// WithdrawTokenAccounts names the accounts bound by WithdrawToken.
type WithdrawTokenAccounts struct {
	Admin        solana.PublicKey
	Vault        solana.PublicKey
	VaultSigner  solana.PublicKey
	Source       solana.PublicKey
	Recipient    solana.PublicKey
	TokenProgram solana.PublicKey
}

// WithdrawSol moves lamports held by the vault signer to recipient.
func (e *Engine) WithdrawSol(signers Signers, accts WithdrawSolAccounts, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return err
	}
	if err := e.verifySigner(v, accts.VaultSigner); err != nil {
		return err
	}
	if err := Authorize(signers, accts.Admin, v, RoleAdmin); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}
	if err := e.ledger.TransferNative(accts.VaultSigner, accts.Recipient, amount); err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(v, "native", accts.VaultSigner, accts.Recipient, amount))
	return nil
}

// WithdrawToken moves tokens from a vault-held token account to recipient.
func (e *Engine) WithdrawToken(signers Signers, accts WithdrawTokenAccounts, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return err
	}
	if err := e.verifySigner(v, accts.VaultSigner); err != nil {
		return err
	}
	if err := e.requireTokenProgram(accts.TokenProgram); err != nil {
		return err
	}
	if err := Authorize(signers, accts.Admin, v, RoleAdmin); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}
	src, found, err := e.state.TokenAccountGet(accts.Source)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: token account %s not found", ErrInvalidTokenAccount, accts.Source)
	}
	if err := e.ledger.TransferToken(accts.Source, accts.Recipient, accts.VaultSigner, amount); err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(v, src.Mint.String(), accts.Source, accts.Recipient, amount))
	return nil
}
