package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"custody/core/types"
)

// ErrKindMismatch is returned when a typed record is written to an account
// allocated for a different kind.
var ErrKindMismatch = errors.New("state: account kind mismatch")

type storedAccount struct {
	Lamports uint64
	Owner    solana.PublicKey
	Kind     uint8
	Space    uint64
	Data     []byte
}

// GetAccount loads the account at addr. Absent accounts are returned as empty
// system accounts so callers can credit them directly.
func (m *Manager) GetAccount(addr solana.PublicKey) (*types.Account, error) {
	data, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	acc := &types.Account{Address: addr, Owner: solana.SystemProgramID}
	if len(data) == 0 {
		return acc, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	acc.Lamports = stored.Lamports
	acc.Owner = stored.Owner
	acc.Kind = types.AccountKind(stored.Kind)
	acc.Space = stored.Space
	acc.Data = stored.Data
	return acc, nil
}

// PutAccount stores acc. An unallocated account with no lamports is removed.
func (m *Manager) PutAccount(acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	if acc.Address.IsZero() {
		return fmt.Errorf("state: account address required")
	}
	if !acc.Exists() && acc.Lamports == 0 {
		m.del(accountKey(acc.Address))
		return nil
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{
		Lamports: acc.Lamports,
		Owner:    acc.Owner,
		Kind:     uint8(acc.Kind),
		Space:    acc.Space,
		Data:     acc.Data,
	})
	if err != nil {
		return err
	}
	m.put(accountKey(acc.Address), encoded)
	return nil
}

// loadTyped returns the data region of the account at addr when it carries
// kind.
func (m *Manager) loadTyped(addr solana.PublicKey, kind types.AccountKind) ([]byte, bool, error) {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return nil, false, err
	}
	if acc.Kind != kind || len(acc.Data) == 0 {
		return nil, false, nil
	}
	return acc.Data, true, nil
}

// storeTyped encodes record into the data region of an account allocated for
// kind.
func (m *Manager) storeTyped(addr solana.PublicKey, kind types.AccountKind, record interface{}) error {
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc.Kind != kind {
		return fmt.Errorf("%w: %s is %s, want %s", ErrKindMismatch, addr, acc.Kind, kind)
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	acc.Data = encoded
	return m.PutAccount(acc)
}
