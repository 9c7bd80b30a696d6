package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"custody/core/types"
)

type storedTokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// TokenAccountGet loads the token balance stored at addr.
func (m *Manager) TokenAccountGet(addr solana.PublicKey) (*types.TokenAccount, bool, error) {
	data, ok, err := m.loadTyped(addr, types.AccountKindToken)
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedTokenAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode token account %s: %w", addr, err)
	}
	return &types.TokenAccount{
		Address: addr,
		Mint:    stored.Mint,
		Owner:   stored.Owner,
		Amount:  stored.Amount,
	}, true, nil
}

// TokenAccountPut writes ta into its allocated token account.
func (m *Manager) TokenAccountPut(ta *types.TokenAccount) error {
	if ta == nil {
		return fmt.Errorf("state: nil token account")
	}
	return m.storeTyped(ta.Address, types.AccountKindToken, storedTokenAccount{
		Mint:   ta.Mint,
		Owner:  ta.Owner,
		Amount: ta.Amount,
	})
}
