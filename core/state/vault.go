package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"custody/core/types"
	"custody/native/vault"
)

type storedVault struct {
	Owner        solana.PublicKey
	PendingOwner solana.PublicKey
	Admin        solana.PublicKey
	SignerNonce  uint8
}

type storedEntitlement struct {
	User     solana.PublicKey
	Mint     solana.PublicKey
	Amount   uint64
	Assigned bool
	Redeemed bool
}

type storedSchedule struct {
	VaultID               solana.PublicKey
	EventID               uint64
	ObjType               uint8
	ReceivingTokenAccount solana.PublicKey
	UserCount             uint16
	Entitlements          []storedEntitlement
}

// VaultGet loads the vault record stored at addr.
func (m *Manager) VaultGet(addr solana.PublicKey) (*vault.Vault, bool, error) {
	data, ok, err := m.loadTyped(addr, types.AccountKindVault)
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedVault
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode vault %s: %w", addr, err)
	}
	return &vault.Vault{
		Address:      addr,
		Owner:        stored.Owner,
		PendingOwner: stored.PendingOwner,
		Admin:        stored.Admin,
		SignerNonce:  stored.SignerNonce,
	}, true, nil
}

// VaultPut writes v into its allocated vault account.
func (m *Manager) VaultPut(v *vault.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	return m.storeTyped(v.Address, types.AccountKindVault, storedVault{
		Owner:        v.Owner,
		PendingOwner: v.PendingOwner,
		Admin:        v.Admin,
		SignerNonce:  v.SignerNonce,
	})
}

// ScheduleGet loads the schedule record stored at addr.
func (m *Manager) ScheduleGet(addr solana.PublicKey) (*vault.Schedule, bool, error) {
	data, ok, err := m.loadTyped(addr, types.AccountKindSchedule)
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedSchedule
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode schedule %s: %w", addr, err)
	}
	s := &vault.Schedule{
		Address:               addr,
		VaultID:               stored.VaultID,
		EventID:               stored.EventID,
		ObjType:               vault.ObjType(stored.ObjType),
		ReceivingTokenAccount: stored.ReceivingTokenAccount,
		UserCount:             stored.UserCount,
		Entitlements:          make([]vault.Entitlement, len(stored.Entitlements)),
	}
	for i, ent := range stored.Entitlements {
		s.Entitlements[i] = vault.Entitlement(ent)
	}
	if err := s.Validate(); err != nil {
		return nil, false, fmt.Errorf("state: schedule %s: %w", addr, err)
	}
	return s, true, nil
}

// SchedulePut writes s into its allocated schedule account.
func (m *Manager) SchedulePut(s *vault.Schedule) error {
	if s == nil {
		return fmt.Errorf("state: nil schedule")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	stored := storedSchedule{
		VaultID:               s.VaultID,
		EventID:               s.EventID,
		ObjType:               uint8(s.ObjType),
		ReceivingTokenAccount: s.ReceivingTokenAccount,
		UserCount:             s.UserCount,
		Entitlements:          make([]storedEntitlement, len(s.Entitlements)),
	}
	for i, ent := range s.Entitlements {
		stored.Entitlements[i] = storedEntitlement(ent)
	}
	return m.storeTyped(s.Address, types.AccountKindSchedule, stored)
}
