package genesis

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"

	"custody/core/types"
	"custody/crypto"
	"custody/native/bank"
)

type genesisState interface {
	GetAccount(addr solana.PublicKey) (*types.Account, error)
	PutAccount(acc *types.Account) error
	TokenAccountPut(ta *types.TokenAccount) error
	GenesisApplied() (bool, error)
	MarkGenesisApplied(hash [32]byte) error
}

type genesisLedger interface {
	Credit(addr solana.PublicKey, amount uint64) error
	MintTo(account solana.PublicKey, amount uint64) error
	TokenProgram() solana.PublicKey
}

// Apply seeds state from spec once. It reports false when a genesis was
// already applied.
func Apply(st genesisState, ledger genesisLedger, spec *Spec, programID solana.PublicKey) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("genesis: nil spec")
	}
	applied, err := st.GenesisApplied()
	if err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	for _, entry := range spec.Accounts {
		addr, err := crypto.ParseAddress(entry.Address)
		if err != nil {
			return false, err
		}
		if err := ledger.Credit(addr, entry.Lamports); err != nil {
			return false, fmt.Errorf("genesis: credit %s: %w", addr, err)
		}
	}
	for i, entry := range spec.TokenAccounts {
		owner, err := entry.ResolveOwner(programID)
		if err != nil {
			return false, fmt.Errorf("genesis: tokenAccounts[%d]: %w", i, err)
		}
		mint, err := crypto.ParseAddress(entry.Mint)
		if err != nil {
			return false, err
		}
		addr, err := bank.TokenAccountAddress(owner, mint)
		if err != nil {
			return false, err
		}
		acc, err := st.GetAccount(addr)
		if err != nil {
			return false, err
		}
		if acc.Exists() {
			return false, fmt.Errorf("genesis: tokenAccounts[%d]: %s already allocated", i, addr)
		}
		acc.Kind = types.AccountKindToken
		acc.Space = bank.TokenAccountSize
		acc.Owner = ledger.TokenProgram()
		acc.Lamports += bank.RentExemptMinimum(bank.TokenAccountSize)
		if err := st.PutAccount(acc); err != nil {
			return false, err
		}
		if err := st.TokenAccountPut(&types.TokenAccount{Address: addr, Mint: mint, Owner: owner}); err != nil {
			return false, err
		}
		if entry.Amount > 0 {
			if err := ledger.MintTo(addr, entry.Amount); err != nil {
				return false, fmt.Errorf("genesis: mint to %s: %w", addr, err)
			}
		}
	}
	var hash [32]byte
	copy(hash[:], ethcrypto.Keccak256(spec.raw))
	if err := st.MarkGenesisApplied(hash); err != nil {
		return false, err
	}
	return true, nil
}
