package bank

import (
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"custody/core/events"
	"custody/core/types"
)

// Rent parameters. An allocation is charged two years of storage up front,
// after which the account is exempt.
const (
	AccountOverhead       = 128
	LamportsPerByteYear   = 3480
	ExemptionYears        = 2
	TokenAccountSize      = 165
	lamportsPerExemptByte = LamportsPerByteYear * ExemptionYears
)

var (
	ErrAccountExists        = errors.New("bank: account already exists")
	ErrInsufficientFunds    = errors.New("bank: insufficient funds")
	ErrInvalidAmount        = errors.New("bank: amount must be positive")
	ErrTokenAccountNotFound = errors.New("bank: token account not found")
	ErrTokenOwnerMismatch   = errors.New("bank: authority does not own token account")
	ErrMintMismatch         = errors.New("bank: token mint mismatch")
	ErrSameAccount          = errors.New("bank: source and destination are the same account")
	errNilState             = errors.New("bank: state not configured")
)

type ledgerState interface {
	GetAccount(addr solana.PublicKey) (*types.Account, error)
	PutAccount(acc *types.Account) error
	TokenAccountGet(addr solana.PublicKey) (*types.TokenAccount, bool, error)
	TokenAccountPut(ta *types.TokenAccount) error
}

// RentExemptMinimum returns the lamports an allocation of space bytes costs.
func RentExemptMinimum(space uint64) uint64 {
	if space > math.MaxUint64/lamportsPerExemptByte-AccountOverhead {
		return math.MaxUint64
	}
	return (AccountOverhead + space) * lamportsPerExemptByte
}

// Ledger implements the host primitives: storage allocation charged to a
// payer, native transfers and token transfers.
type Ledger struct {
	state        ledgerState
	programID    solana.PublicKey
	tokenProgram solana.PublicKey
	emitter      events.Emitter
}

// NewLedger binds a ledger to state. Accounts it allocates for vault records
// are owned by programID; token accounts by tokenProgram.
func NewLedger(state ledgerState, programID, tokenProgram solana.PublicKey) *Ledger {
	if tokenProgram.IsZero() {
		tokenProgram = solana.TokenProgramID
	}
	return &Ledger{
		state:        state,
		programID:    programID,
		tokenProgram: tokenProgram,
		emitter:      events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// TokenProgram returns the canonical token program identity.
func (l *Ledger) TokenProgram() solana.PublicKey { return l.tokenProgram }

// IsTokenProgram reports whether id is the canonical token program.
func (l *Ledger) IsTokenProgram(id solana.PublicKey) bool {
	return !id.IsZero() && id == l.tokenProgram
}

// Allocate creates an account of kind at addr with space bytes, charging the
// payer the rent-exempt minimum.
func (l *Ledger) Allocate(payer, addr solana.PublicKey, kind types.AccountKind, space uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if payer == addr {
		return fmt.Errorf("%w: payer cannot fund its own allocation", ErrSameAccount)
	}
	target, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if target.Exists() {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	from, err := l.state.GetAccount(payer)
	if err != nil {
		return err
	}
	rent := RentExemptMinimum(space)
	if from.Lamports < rent {
		return fmt.Errorf("%w: %s holds %d lamports, allocation needs %d", ErrInsufficientFunds, payer, from.Lamports, rent)
	}
	if target.Lamports > math.MaxUint64-rent {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	from.Lamports -= rent
	target.Lamports += rent
	target.Kind = kind
	target.Space = space
	target.Owner = l.programID
	if kind == types.AccountKindToken {
		target.Owner = l.tokenProgram
	}
	if err := l.state.PutAccount(from); err != nil {
		return err
	}
	if err := l.state.PutAccount(target); err != nil {
		return err
	}
	l.emitter.Emit(events.AccountAllocated{Payer: payer, Address: addr, Kind: kind, Space: space, Rent: rent})
	return nil
}

// TransferNative moves lamports. Allocated accounts cannot be drawn below
// their rent-exempt minimum.
func (l *Ledger) TransferNative(from, to solana.PublicKey, amount uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSameAccount
	}
	src, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	floor := uint64(0)
	if src.Exists() {
		floor = RentExemptMinimum(src.Space)
	}
	if src.Lamports < amount || src.Lamports-amount < floor {
		return fmt.Errorf("%w: %s holds %d lamports", ErrInsufficientFunds, from, src.Lamports)
	}
	dst, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	if dst.Lamports > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	src.Lamports -= amount
	dst.Lamports += amount
	if err := l.state.PutAccount(src); err != nil {
		return err
	}
	if err := l.state.PutAccount(dst); err != nil {
		return err
	}
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: amount})
	return nil
}

// TokenAccountAddress derives the canonical token account of owner for mint.
func TokenAccountAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("bank: token account address: %w", err)
	}
	return addr, nil
}

// CreateTokenAccount allocates the canonical token account of owner for mint.
func (l *Ledger) CreateTokenAccount(payer, owner, mint solana.PublicKey) (*types.TokenAccount, error) {
	if mint.IsZero() || owner.IsZero() {
		return nil, fmt.Errorf("bank: owner and mint required")
	}
	addr, err := TokenAccountAddress(owner, mint)
	if err != nil {
		return nil, err
	}
	if err := l.Allocate(payer, addr, types.AccountKindToken, TokenAccountSize); err != nil {
		return nil, err
	}
	ta := &types.TokenAccount{Address: addr, Mint: mint, Owner: owner}
	if err := l.state.TokenAccountPut(ta); err != nil {
		return nil, err
	}
	return ta.Clone(), nil
}

// TransferToken moves amount between two token accounts of the same mint.
// authority must own the source; for vault-held balances it is the derived
// vault signer.
func (l *Ledger) TransferToken(source, destination, authority solana.PublicKey, amount uint64) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if source == destination {
		return ErrSameAccount
	}
	src, err := l.loadToken(source)
	if err != nil {
		return err
	}
	dst, err := l.loadToken(destination)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s is owned by %s", ErrTokenOwnerMismatch, source, src.Owner)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d", ErrInsufficientFunds, source, src.Amount)
	}
	if dst.Amount > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := l.state.TokenAccountPut(src); err != nil {
		return err
	}
	if err := l.state.TokenAccountPut(dst); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Source: source, Destination: destination, Authority: authority, Mint: src.Mint, Amount: amount})
	return nil
}

// MintTo credits amount to an existing token account. Only genesis uses it.
func (l *Ledger) MintTo(account solana.PublicKey, amount uint64) error {
	ta, err := l.loadToken(account)
	if err != nil {
		return err
	}
	if ta.Amount > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	ta.Amount += amount
	return l.state.TokenAccountPut(ta)
}

// Credit adds lamports to addr. Only genesis uses it.
func (l *Ledger) Credit(addr solana.PublicKey, amount uint64) error {
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc.Lamports > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	acc.Lamports += amount
	return l.state.PutAccount(acc)
}

func (l *Ledger) loadToken(addr solana.PublicKey) (*types.TokenAccount, error) {
	ta, ok, err := l.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenAccountNotFound, addr)
	}
	return ta, nil
}
