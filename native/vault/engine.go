package vault

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"custody/core/events"
	"custody/core/types"
	"custody/crypto"
	"custody/native/common"
)

// ModuleName identifies the engine for pause checks and metrics.
const ModuleName = "vault"

var (
	errNilState  = errors.New("vault engine: state not configured")
	errNilLedger = errors.New("vault engine: ledger not configured")
)

type engineState interface {
	VaultGet(addr solana.PublicKey) (*Vault, bool, error)
	VaultPut(*Vault) error
	ScheduleGet(addr solana.PublicKey) (*Schedule, bool, error)
	SchedulePut(*Schedule) error
	TokenAccountGet(addr solana.PublicKey) (*types.TokenAccount, bool, error)
	GetAccount(addr solana.PublicKey) (*types.Account, error)
}

// ledger is the host side of the engine: account allocation and the two
// transfer primitives. Transfers out of vault holdings are authorised by the
// derived vault signer, never by a private key.
type ledger interface {
	Allocate(payer, addr solana.PublicKey, kind types.AccountKind, space uint64) error
	TransferNative(from, to solana.PublicKey, amount uint64) error
	TransferToken(source, destination, authority solana.PublicKey, amount uint64) error
	IsTokenProgram(id solana.PublicKey) bool
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine evaluates vault and schedule operations against the configured
// state, ledger and emitter. It holds no locks; callers run each operation
// inside one unit of work and discard the state on error.
type Engine struct {
	programID solana.PublicKey
	state     engineState
	ledger    ledger
	emitter   events.Emitter
	pauses    common.PauseView
}

// NewEngine creates an engine bound to programID with a no-op emitter.
func NewEngine(programID solana.PublicKey) *Engine {
	if programID.IsZero() {
		programID = crypto.DefaultProgramID
	}
	return &Engine{programID: programID, emitter: events.NoopEmitter{}}
}

// ProgramID returns the identity all derivations are computed under.
func (e *Engine) ProgramID() solana.PublicKey { return e.programID }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetPauses wires the module pause view consulted before every operation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) loadVault(addr solana.PublicKey) (*Vault, error) {
	v, ok, err := e.state.VaultGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: vault %s not found", ErrInvalidAccount, addr)
	}
	return v, nil
}

func (e *Engine) loadSchedule(addr solana.PublicKey) (*Schedule, error) {
	s, ok, err := e.state.ScheduleGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: schedule %s not found", ErrInvalidAccount, addr)
	}
	return s, nil
}

// ensureVacant rejects creation targets that already hold an account.
func (e *Engine) ensureVacant(addr solana.PublicKey) error {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc != nil && acc.Exists() {
		return fmt.Errorf("%w: account %s already exists", ErrInvalidAccount, addr)
	}
	return nil
}

// verifySigner re-derives the vault signer from the stored nonce and compares
// it with the account supplied by the caller.
func (e *Engine) verifySigner(v *Vault, supplied solana.PublicKey) error {
	if err := crypto.VerifyVaultSigner(e.programID, v.Address, v.SignerNonce, supplied); err != nil {
		return fmt.Errorf("%w: vault signer %s: %v", ErrInvalidAccount, supplied, err)
	}
	return nil
}

func (e *Engine) requireTokenProgram(id solana.PublicKey) error {
	if !e.ledger.IsTokenProgram(id) {
		return fmt.Errorf("%w: %s is not the token program", ErrInvalidAccount, id)
	}
	return nil
}

// VaultSigner derives the signer authority of vault under the engine's program.
func (e *Engine) VaultSigner(vault solana.PublicKey) (solana.PublicKey, uint8, error) {
	return crypto.VaultSignerAddress(e.programID, vault)
}

// CreateVaultAccounts names the accounts bound by CreateVault. Owner signs
// and funds the allocation.
type CreateVaultAccounts struct {
	Owner solana.PublicKey
	Vault solana.PublicKey
}

// CreateVault allocates a vault at the address derived from path. The admin
// may be left zero.
func (e *Engine) CreateVault(signers Signers, accts CreateVaultAccounts, path []byte, admin solana.PublicKey) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, accts.Owner); err != nil {
		return nil, err
	}
	addr, _, err := crypto.VaultAddress(e.programID, path)
	if err != nil {
		return nil, fmt.Errorf("%w: vault path: %v", ErrInvalidAccount, err)
	}
	if addr != accts.Vault {
		return nil, fmt.Errorf("%w: vault %s does not match path derivation %s", ErrInvalidAccount, accts.Vault, addr)
	}
	signer, nonce, err := e.VaultSigner(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: vault signer: %v", ErrInvalidAccount, err)
	}
	if err := e.ensureVacant(addr); err != nil {
		return nil, err
	}
	if err := e.ledger.Allocate(accts.Owner, addr, types.AccountKindVault, VaultSize); err != nil {
		return nil, err
	}
	v := &Vault{
		Address:     addr,
		Owner:       accts.Owner,
		Admin:       admin,
		SignerNonce: nonce,
	}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(NewVaultCreatedEvent(v, signer))
	return v.Clone(), nil
}

// OwnerAccounts binds the owner and the vault for owner-gated operations.
type OwnerAccounts struct {
	Owner solana.PublicKey
	Vault solana.PublicKey
}

// SetVault replaces the admin. The zero key unsets it.
func (e *Engine) SetVault(signers Signers, accts OwnerAccounts, admin solana.PublicKey) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return nil, err
	}
	if err := Authorize(signers, accts.Owner, v, RoleOwner); err != nil {
		return nil, err
	}
	v.Admin = admin
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(NewVaultUpdatedEvent(v))
	return v.Clone(), nil
}

// TransferOwnership nominates newOwner. The owner is unchanged until the
// nominee accepts. Nominating the zero key cancels a pending transfer.
func (e *Engine) TransferOwnership(signers Signers, accts OwnerAccounts, newOwner solana.PublicKey) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return nil, err
	}
	if err := Authorize(signers, accts.Owner, v, RoleOwner); err != nil {
		return nil, err
	}
	v.PendingOwner = newOwner
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(NewOwnershipTransferStartedEvent(v))
	return v.Clone(), nil
}

// AcceptOwnershipAccounts binds the nominee and the vault.
type AcceptOwnershipAccounts struct {
	NewOwner solana.PublicKey
	Vault    solana.PublicKey
}

// AcceptOwnership completes a two-phase transfer.
func (e *Engine) AcceptOwnership(signers Signers, accts AcceptOwnershipAccounts) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(accts.Vault)
	if err != nil {
		return nil, err
	}
	if err := Authorize(signers, accts.NewOwner, v, RolePendingOwner); err != nil {
		return nil, err
	}
	previous := v.Owner
	v.Owner = v.PendingOwner
	v.PendingOwner = solana.PublicKey{}
	if err := e.state.VaultPut(v); err != nil {
		return nil, err
	}
	e.emit(NewOwnershipAcceptedEvent(v, previous))
	return v.Clone(), nil
}
