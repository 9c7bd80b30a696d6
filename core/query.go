package core

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"custody/core/state"
	"custody/core/types"
	"custody/crypto"
	"custody/native/vault"
)

// Reads run against committed state only; in-flight transactions are not
// visible until they commit.

func (p *Processor) Account(addr solana.PublicKey) (*types.Account, error) {
	return state.NewManager(p.db).GetAccount(addr)
}

func (p *Processor) Vault(addr solana.PublicKey) (*vault.Vault, bool, error) {
	return state.NewManager(p.db).VaultGet(addr)
}

func (p *Processor) Schedule(addr solana.PublicKey) (*vault.Schedule, bool, error) {
	return state.NewManager(p.db).ScheduleGet(addr)
}

func (p *Processor) TokenAccount(addr solana.PublicKey) (*types.TokenAccount, bool, error) {
	return state.NewManager(p.db).TokenAccountGet(addr)
}

// Derived is a derived address with the nonce that produced it.
type Derived struct {
	Address solana.PublicKey `json:"address"`
	Nonce   uint8            `json:"nonce"`
}

// DerivedVault reports the vault address for path and its signer authority.
type DerivedVault struct {
	Vault  Derived `json:"vault"`
	Signer Derived `json:"signer"`
}

func (p *Processor) DeriveVault(path []byte) (*DerivedVault, error) {
	addr, nonce, err := crypto.VaultAddress(p.programID, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrInvalidParams, err)
	}
	signer, signerNonce, err := crypto.VaultSignerAddress(p.programID, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrInvalidParams, err)
	}
	return &DerivedVault{
		Vault:  Derived{Address: addr, Nonce: nonce},
		Signer: Derived{Address: signer, Nonce: signerNonce},
	}, nil
}

func (p *Processor) DeriveSchedule(eventID uint64) (*Derived, error) {
	addr, nonce, err := crypto.ScheduleAddress(p.programID, eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrInvalidParams, err)
	}
	return &Derived{Address: addr, Nonce: nonce}, nil
}
