package vault

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ObjType selects the redemption path and validation rules of a schedule.
type ObjType uint8

const (
	ObjTypeDistribution ObjType = iota
	ObjTypeDistributionMulti
)

func (t ObjType) Valid() bool {
	switch t {
	case ObjTypeDistribution, ObjTypeDistributionMulti:
		return true
	default:
		return false
	}
}

func (t ObjType) String() string {
	switch t {
	case ObjTypeDistribution:
		return "distribution"
	case ObjTypeDistributionMulti:
		return "distribution_multi"
	default:
		return "unknown"
	}
}

// ParseObjType accepts the canonical lowercase names.
func ParseObjType(s string) (ObjType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distribution":
		return ObjTypeDistribution, nil
	case "distribution_multi", "distributionmulti":
		return ObjTypeDistributionMulti, nil
	default:
		return 0, fmt.Errorf("%w: unknown schedule type %q", ErrInvalidParams, s)
	}
}

// Storage footprint of the records. Schedules are allocated once for their
// user count and never resized.
const (
	discriminatorSize = 8

	VaultSize        = discriminatorSize + 32 + 32 + 32 + 1
	ScheduleBaseSize = discriminatorSize + 32 + 8 + 1 + 32 + 2 + 4
	EntitlementSize  = 32 + 32 + 8 + 1 + 1
)

// ScheduleSize is the allocation for a schedule holding userCount slots.
func ScheduleSize(userCount uint16) uint64 {
	return ScheduleBaseSize + uint64(userCount)*EntitlementSize
}

// Vault is the custodial record. SignerNonce pins the vault-signer-authority
// address and is fixed at creation.
type Vault struct {
	Address      solana.PublicKey
	Owner        solana.PublicKey
	PendingOwner solana.PublicKey
	Admin        solana.PublicKey
	SignerNonce  uint8
}

// Clone returns a copy callers can mutate without touching the stored instance.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// HasPendingOwner reports whether an ownership transfer awaits acceptance.
func (v *Vault) HasPendingOwner() bool {
	return v != nil && !v.PendingOwner.IsZero()
}

// Entitlement is one user slot of a schedule. Redeemed only ever moves from
// false to true.
type Entitlement struct {
	User     solana.PublicKey
	Mint     solana.PublicKey
	Amount   uint64
	Assigned bool
	Redeemed bool
}

// Schedule is a distribution event bound to one vault.
type Schedule struct {
	Address               solana.PublicKey
	VaultID               solana.PublicKey
	EventID               uint64
	ObjType               ObjType
	ReceivingTokenAccount solana.PublicKey
	UserCount             uint16
	Entitlements          []Entitlement
}

// NewSchedule allocates userCount empty, unredeemed slots.
func NewSchedule(addr, vaultID solana.PublicKey, eventID uint64, objType ObjType, receiving solana.PublicKey, userCount uint16) *Schedule {
	return &Schedule{
		Address:               addr,
		VaultID:               vaultID,
		EventID:               eventID,
		ObjType:               objType,
		ReceivingTokenAccount: receiving,
		UserCount:             userCount,
		Entitlements:          make([]Entitlement, userCount),
	}
}

func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Entitlements = append([]Entitlement(nil), s.Entitlements...)
	return &clone
}

// Find returns the slot assigned to user.
func (s *Schedule) Find(user solana.PublicKey) (int, bool) {
	if s == nil || user.IsZero() {
		return 0, false
	}
	for i := range s.Entitlements {
		if s.Entitlements[i].Assigned && s.Entitlements[i].User == user {
			return i, true
		}
	}
	return 0, false
}

// RedeemedCount counts consumed entitlements.
func (s *Schedule) RedeemedCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for i := range s.Entitlements {
		if s.Entitlements[i].Redeemed {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of a schedule record.
func (s *Schedule) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil schedule", ErrInvalidAccount)
	}
	if !s.ObjType.Valid() {
		return fmt.Errorf("%w: schedule type %d", ErrInvalidAccount, s.ObjType)
	}
	if len(s.Entitlements) != int(s.UserCount) {
		return fmt.Errorf("%w: schedule holds %d slots for user count %d", ErrInvalidAccount, len(s.Entitlements), s.UserCount)
	}
	seen := make(map[solana.PublicKey]struct{}, len(s.Entitlements))
	for i := range s.Entitlements {
		ent := s.Entitlements[i]
		if !ent.Assigned {
			if ent.Redeemed {
				return fmt.Errorf("%w: slot %d redeemed without assignment", ErrInvalidAccount, i)
			}
			continue
		}
		if _, dup := seen[ent.User]; dup {
			return fmt.Errorf("%w: user %s assigned twice", ErrInvalidAccount, ent.User)
		}
		seen[ent.User] = struct{}{}
	}
	return nil
}
