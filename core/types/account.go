package types

import "github.com/gagliardetto/solana-go"

// AccountKind discriminates the record stored in an account's data region.
type AccountKind uint8

const (
	AccountKindSystem   AccountKind = iota // Plain wallet holding native balance
	AccountKindVault                       // Vault record
	AccountKindSchedule                    // Distribution schedule record
	AccountKindToken                       // Fungible token balance
)

func (k AccountKind) String() string {
	switch k {
	case AccountKindSystem:
		return "system"
	case AccountKindVault:
		return "vault"
	case AccountKindSchedule:
		return "schedule"
	case AccountKindToken:
		return "token"
	default:
		return "unknown"
	}
}

// Account is the host-level record stored at every address. Lamports is the
// native balance; Owner is the program allowed to mutate Data.
type Account struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Kind     AccountKind      `json:"kind"`
	Space    uint64           `json:"space"`
	Data     []byte           `json:"-"`
}

// Exists reports whether the address has been allocated. Native-only balances
// do not count, so lamports sent to a derived address ahead of time do not
// block its creation.
func (a *Account) Exists() bool {
	if a == nil {
		return false
	}
	return a.Kind != AccountKindSystem || a.Space > 0
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = append([]byte(nil), a.Data...)
	return &clone
}

// TokenAccount tracks a fungible token balance held under an authority.
type TokenAccount struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}

func (t *TokenAccount) Clone() *TokenAccount {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
