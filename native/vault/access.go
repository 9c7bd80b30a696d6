package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Role is the vault identity an operation requires.
type Role uint8

const (
	RoleOwner Role = iota
	RoleAdmin
	RolePendingOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RolePendingOwner:
		return "pending_owner"
	default:
		return "unknown"
	}
}

// Signers is the set of identities that validly signed the enclosing
// transaction.
type Signers map[solana.PublicKey]struct{}

func NewSigners(keys ...solana.PublicKey) Signers {
	out := make(Signers, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func (s Signers) Has(key solana.PublicKey) bool {
	if s == nil || key.IsZero() {
		return false
	}
	_, ok := s[key]
	return ok
}

func requireSigner(signers Signers, caller solana.PublicKey) error {
	if !signers.Has(caller) {
		return fmt.Errorf("%w: %s did not sign", ErrUnauthorized, caller)
	}
	return nil
}

// Authorize is the access-control predicate evaluated before every privileged
// vault operation: caller must have signed and must equal the identity stored
// for role. An unset role matches nobody.
func Authorize(signers Signers, caller solana.PublicKey, v *Vault, role Role) error {
	if v == nil {
		return fmt.Errorf("%w: vault not loaded", ErrInvalidAccount)
	}
	if err := requireSigner(signers, caller); err != nil {
		return err
	}
	var expected solana.PublicKey
	switch role {
	case RoleOwner:
		expected = v.Owner
	case RoleAdmin:
		expected = v.Admin
	case RolePendingOwner:
		expected = v.PendingOwner
	default:
		return fmt.Errorf("%w: unknown role %d", ErrUnauthorized, role)
	}
	if expected.IsZero() {
		return fmt.Errorf("%w: vault %s has no %s", ErrUnauthorized, v.Address, role)
	}
	if caller != expected {
		return fmt.Errorf("%w: %s is not the vault %s", ErrUnauthorized, caller, role)
	}
	return nil
}
