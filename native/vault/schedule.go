package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"custody/core/types"
	"custody/crypto"
)

// CreateScheduleAccounts names the accounts bound by CreateSchedule. Admin
// signs and funds the allocation.
type CreateScheduleAccounts struct {
	Admin    solana.PublicKey
	Vault    solana.PublicKey
	Schedule solana.PublicKey
}

// CreateScheduleParams fixes the immutable shape of a schedule.
type CreateScheduleParams struct {
	UserCount             uint16
	EventID               uint64
	ObjType               ObjType
	ReceivingTokenAccount solana.PublicKey
}

// Assignment binds a user to an empty entitlement slot.
type Assignment struct {
	Slot   uint16
	User   solana.PublicKey
	Mint   solana.PublicKey
	Amount uint64
}

// SetScheduleParams carries the mutable schedule fields. A nil
// ReceivingTokenAccount leaves the pinned source unchanged.
type SetScheduleParams struct {
	ReceivingTokenAccount *solana.PublicKey
	Assignments           []Assignment
}

// ScheduleAccounts binds admin, vault and schedule for SetSchedule.
type ScheduleAccounts struct {
	Admin    solana.PublicKey
	Vault    solana.PublicKey
	Schedule solana.PublicKey
}

// CreateSchedule allocates the schedule for params.EventID with UserCount
// empty entitlement slots.
func (e *Engine) CreateSchedule(signers Signers, accts CreateScheduleAccounts, params CreateScheduleParams) (*Schedule, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return nil, err
	}
	if err := Authorize(signers, accts.Admin, v, RoleAdmin); err != nil {
		return nil, err
	}
	if params.UserCount == 0 {
		return nil, fmt.Errorf("%w: user count must be positive", ErrInvalidParams)
	}
	if !params.ObjType.Valid() {
		return nil, fmt.Errorf("%w: schedule type %d", ErrInvalidParams, params.ObjType)
	}
	addr, _, err := crypto.ScheduleAddress(e.programID, params.EventID)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule derivation: %v", ErrInvalidAccount, err)
	}
	if addr != accts.Schedule {
		return nil, fmt.Errorf("%w: schedule %s does not match event %d derivation %s", ErrInvalidAccount, accts.Schedule, params.EventID, addr)
	}
	if err := e.ensureVacant(addr); err != nil {
		return nil, err
	}
	if err := e.ledger.Allocate(accts.Admin, addr, types.AccountKindSchedule, ScheduleSize(params.UserCount)); err != nil {
		return nil, err
	}
	s := NewSchedule(addr, v.Address, params.EventID, params.ObjType, params.ReceivingTokenAccount, params.UserCount)
	if err := e.state.SchedulePut(s); err != nil {
		return nil, err
	}
	e.emit(NewScheduleCreatedEvent(s))
	return s.Clone(), nil
}

// SetSchedule updates the pinned source account and assigns empty slots.
// Assigned and redeemed slots are never rewritten.
func (e *Engine) SetSchedule(signers Signers, accts ScheduleAccounts, params SetScheduleParams) (*Schedule, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return nil, err
	}
	s, err := e.loadSchedule(accts.Schedule)
	if err != nil {
		return nil, err
	}
	if s.VaultID != v.Address {
		return nil, fmt.Errorf("%w: schedule %s belongs to vault %s", ErrInvalidAccount, s.Address, s.VaultID)
	}
	if err := Authorize(signers, accts.Admin, v, RoleAdmin); err != nil {
		return nil, err
	}
	if params.ReceivingTokenAccount != nil {
		s.ReceivingTokenAccount = *params.ReceivingTokenAccount
	}
	if err := assign(s, params.Assignments); err != nil {
		return nil, err
	}
	if err := e.state.SchedulePut(s); err != nil {
		return nil, err
	}
	e.emit(NewScheduleUpdatedEvent(s, len(params.Assignments)))
	return s.Clone(), nil
}

func assign(s *Schedule, assignments []Assignment) error {
	for _, a := range assignments {
		if int(a.Slot) >= len(s.Entitlements) {
			return fmt.Errorf("%w: slot %d out of range for %d users", ErrInvalidParams, a.Slot, s.UserCount)
		}
		if a.User.IsZero() {
			return fmt.Errorf("%w: slot %d: user required", ErrInvalidParams, a.Slot)
		}
		if a.Amount == 0 {
			return fmt.Errorf("%w: slot %d: amount must be positive", ErrInvalidParams, a.Slot)
		}
		if s.ObjType == ObjTypeDistributionMulti && a.Mint.IsZero() {
			return fmt.Errorf("%w: slot %d: mint required for multi-asset schedule", ErrInvalidParams, a.Slot)
		}
		if s.Entitlements[a.Slot].Assigned {
			return fmt.Errorf("%w: slot %d already assigned", ErrInvalidParams, a.Slot)
		}
		if _, taken := s.Find(a.User); taken {
			return fmt.Errorf("%w: user %s already assigned", ErrInvalidParams, a.User)
		}
		s.Entitlements[a.Slot] = Entitlement{
			User:     a.User,
			Mint:     a.Mint,
			Amount:   a.Amount,
			Assigned: true,
		}
	}
	return nil
}
