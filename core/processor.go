package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"custody/core/events"
	"custody/core/genesis"
	"custody/core/state"
	"custody/core/types"
	"custody/crypto"
	"custody/native/bank"
	"custody/native/common"
	"custody/native/vault"
	"custody/observability/metrics"
	"custody/storage"
)

var (
	// ErrAccountInUse is returned when another in-flight transaction holds one
	// of the named accounts. The caller may resubmit.
	ErrAccountInUse = errors.New("core: account in use by a concurrent transaction")
	// ErrReplay is returned for a transaction whose hash was already applied.
	ErrReplay = errors.New("core: transaction already applied")
	// ErrUnknownTxType is returned for unsupported transaction types.
	ErrUnknownTxType = errors.New("core: unknown transaction type")
)

// BankModule names the native ledger for pause checks.
const BankModule = "bank"

// Options configures a Processor. Zero values select defaults.
type Options struct {
	ProgramID    solana.PublicKey
	TokenProgram solana.PublicKey
	Pauses       *common.Pauses
	Logger       *slog.Logger
	Metrics      *metrics.CustodyMetrics
}

// Processor validates and applies transactions against the node database.
// Each transaction runs in its own state overlay and is committed in one
// batch, or not at all.
type Processor struct {
	db           storage.Database
	programID    solana.PublicKey
	tokenProgram solana.PublicKey
	pauses       *common.Pauses
	logger       *slog.Logger
	metrics      *metrics.CustodyMetrics
	locks        *accountLocks

	// genesisMu serialises genesis against itself; it runs before serving.
	genesisMu sync.Mutex
}

func NewProcessor(db storage.Database, opts Options) *Processor {
	if opts.ProgramID.IsZero() {
		opts.ProgramID = crypto.DefaultProgramID
	}
	if opts.TokenProgram.IsZero() {
		opts.TokenProgram = solana.TokenProgramID
	}
	if opts.Pauses == nil {
		opts.Pauses = common.NewPauses()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Processor{
		db:           db,
		programID:    opts.ProgramID,
		tokenProgram: opts.TokenProgram,
		pauses:       opts.Pauses,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		locks:        newAccountLocks(),
	}
}

func (p *Processor) ProgramID() solana.PublicKey    { return p.programID }
func (p *Processor) TokenProgram() solana.PublicKey { return p.tokenProgram }
func (p *Processor) Pauses() *common.Pauses         { return p.pauses }

// txContext bundles the per-transaction collaborators.
type txContext struct {
	tx       *types.Transaction
	signers  vault.Signers
	state    *state.Manager
	ledger   *bank.Ledger
	engine   *vault.Engine
	recorder *events.Recorder
}

// ApplyTransaction verifies signatures, locks the named accounts, runs the
// operation and commits its effects together with the replay marker.
func (p *Processor) ApplyTransaction(ctx context.Context, tx *types.Transaction) (receipt *types.Receipt, err error) {
	start := time.Now()
	txType := "unknown"
	if tx != nil {
		txType = tx.Type.String()
	}
	defer func() {
		outcome := "applied"
		if err != nil {
			outcome = "rejected"
			code := "internal"
			if c, ok := vault.Code(err); ok {
				code = c.String()
			} else if errors.Is(err, ErrAccountInUse) {
				code = "AccountInUse"
			} else if errors.Is(err, ErrReplay) {
				code = "Replay"
			}
			p.metrics.IncRejection(code)
		}
		p.metrics.ObserveTx(txType, outcome, time.Since(start))
	}()

	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", vault.ErrInvalidParams)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want, ok := types.AccountCount(tx.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
	if len(tx.Accounts) != want {
		return nil, fmt.Errorf("%w: %s binds %d accounts, got %d", vault.ErrInvalidAccount, tx.Type, want, len(tx.Accounts))
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrInvalidParams, err)
	}
	signed, err := tx.VerifySignatures()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrUnauthorized, err)
	}

	release, ok := p.locks.tryAcquire(tx.Accounts)
	if !ok {
		p.metrics.IncLockConflict()
		return nil, ErrAccountInUse
	}
	defer release()

	m := state.NewManager(p.db)
	seen, err := m.TxSeen(hash)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, ErrReplay
	}

	tc := p.newTxContext(tx, signed, m)
	if err := p.dispatch(tc); err != nil {
		m.Discard()
		p.logger.Debug("transaction rejected",
			slog.String("tx_hash", hex.EncodeToString(hash[:])),
			slog.String("type", txType),
			slog.Any("error", err))
		return nil, err
	}
	m.MarkTxSeen(hash)
	if err := m.Commit(); err != nil {
		return nil, fmt.Errorf("core: commit: %w", err)
	}
	receipt = types.NewReceipt(hash, tx.Type, signed, tc.recorder.Events())
	p.logger.Info("transaction applied",
		slog.String("tx_hash", receipt.TxHash),
		slog.String("type", txType),
		slog.Int("events", len(receipt.Events)))
	return receipt, nil
}

func (p *Processor) newTxContext(tx *types.Transaction, signed []solana.PublicKey, m *state.Manager) *txContext {
	recorder := new(events.Recorder)
	ledger := bank.NewLedger(m, p.programID, p.tokenProgram)
	ledger.SetEmitter(recorder)
	engine := vault.NewEngine(p.programID)
	engine.SetState(m)
	engine.SetLedger(ledger)
	engine.SetPauses(p.pauses)
	engine.SetEmitter(recorder)
	return &txContext{
		tx:       tx,
		signers:  vault.NewSigners(signed...),
		state:    m,
		ledger:   ledger,
		engine:   engine,
		recorder: recorder,
	}
}

func decodePayload(tx *types.Transaction, out interface{}) error {
	if len(tx.Data) == 0 {
		return fmt.Errorf("%w: missing payload", vault.ErrInvalidParams)
	}
	if err := json.Unmarshal(tx.Data, out); err != nil {
		return fmt.Errorf("%w: decode payload: %v", vault.ErrInvalidParams, err)
	}
	return nil
}

func (p *Processor) dispatch(tc *txContext) error {
	a := tc.tx.Accounts
	switch tc.tx.Type {
	case types.TxTypeTransfer:
		return p.applyTransfer(tc)
	case types.TxTypeCreateTokenAccount:
		return p.applyCreateTokenAccount(tc)
	case types.TxTypeTokenTransfer:
		return p.applyTokenTransfer(tc)

	case types.TxTypeCreateVault:
		var payload types.CreateVaultPayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		_, err := tc.engine.CreateVault(tc.signers, vault.CreateVaultAccounts{Owner: a[0], Vault: a[1]}, payload.Path, payload.Admin)
		return err
	case types.TxTypeSetVault:
		var payload types.SetVaultPayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		_, err := tc.engine.SetVault(tc.signers, vault.OwnerAccounts{Owner: a[0], Vault: a[1]}, payload.Admin)
		return err
	case types.TxTypeTransferOwnership:
		var payload types.TransferOwnershipPayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		_, err := tc.engine.TransferOwnership(tc.signers, vault.OwnerAccounts{Owner: a[0], Vault: a[1]}, payload.NewOwner)
		return err
	case types.TxTypeAcceptOwnership:
		_, err := tc.engine.AcceptOwnership(tc.signers, vault.AcceptOwnershipAccounts{NewOwner: a[0], Vault: a[1]})
		return err

	case types.TxTypeCreateSchedule:
		var payload types.CreateSchedulePayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		objType, err := vault.ParseObjType(payload.ObjType)
		if err != nil {
			return err
		}
		_, err = tc.engine.CreateSchedule(tc.signers,
			vault.CreateScheduleAccounts{Admin: a[0], Vault: a[1], Schedule: a[2]},
			vault.CreateScheduleParams{
				UserCount:             payload.UserCount,
				EventID:               payload.EventID,
				ObjType:               objType,
				ReceivingTokenAccount: payload.ReceivingTokenAccount,
			})
		return err
	case types.TxTypeSetSchedule:
		var payload types.SetSchedulePayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		params := vault.SetScheduleParams{ReceivingTokenAccount: payload.ReceivingTokenAccount}
		for _, asg := range payload.Assignments {
			params.Assignments = append(params.Assignments, vault.Assignment{
				Slot:   asg.Slot,
				User:   asg.User,
				Mint:   asg.Mint,
				Amount: asg.Amount,
			})
		}
		_, err := tc.engine.SetSchedule(tc.signers, vault.ScheduleAccounts{Admin: a[0], Vault: a[1], Schedule: a[2]}, params)
		return err

	case types.TxTypeWithdrawSol:
		var payload types.AmountPayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		return tc.engine.WithdrawSol(tc.signers, vault.WithdrawSolAccounts{
			Admin:       a[0],
			Vault:       a[1],
			VaultSigner: a[2],
			Recipient:   a[3],
		}, payload.Amount)
	case types.TxTypeWithdrawToken:
		var payload types.AmountPayload
		if err := decodePayload(tc.tx, &payload); err != nil {
			return err
		}
		return tc.engine.WithdrawToken(tc.signers, vault.WithdrawTokenAccounts{
			Admin:        a[0],
			Vault:        a[1],
			VaultSigner:  a[2],
			Source:       a[3],
			Recipient:    a[4],
			TokenProgram: a[5],
		}, payload.Amount)

	case types.TxTypeRedeemToken, types.TxTypeRedeemTokenMulti:
		accts := vault.RedeemAccounts{
			Vault:        a[0],
			Schedule:     a[1],
			VaultSigner:  a[2],
			Source:       a[3],
			User:         a[4],
			Destination:  a[5],
			TokenProgram: a[6],
		}
		redeem, objType := tc.engine.RedeemToken, vault.ObjTypeDistribution
		if tc.tx.Type == types.TxTypeRedeemTokenMulti {
			redeem, objType = tc.engine.RedeemTokenMulti, vault.ObjTypeDistributionMulti
		}
		if _, err := redeem(tc.signers, accts); err != nil {
			return err
		}
		p.metrics.IncRedemption(objType.String())
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownTxType, tc.tx.Type)
}

func (p *Processor) applyTransfer(tc *txContext) error {
	if err := common.Guard(p.pauses, BankModule); err != nil {
		return err
	}
	from, to := tc.tx.Accounts[0], tc.tx.Accounts[1]
	if !tc.signers.Has(from) {
		return fmt.Errorf("%w: %s did not sign", vault.ErrUnauthorized, from)
	}
	var payload types.AmountPayload
	if err := decodePayload(tc.tx, &payload); err != nil {
		return err
	}
	return tc.ledger.TransferNative(from, to, payload.Amount)
}

func (p *Processor) applyCreateTokenAccount(tc *txContext) error {
	if err := common.Guard(p.pauses, BankModule); err != nil {
		return err
	}
	a := tc.tx.Accounts
	payer, owner, mint, tokenAccount := a[0], a[1], a[2], a[3]
	if !tc.signers.Has(payer) {
		return fmt.Errorf("%w: %s did not sign", vault.ErrUnauthorized, payer)
	}
	want, err := bank.TokenAccountAddress(owner, mint)
	if err != nil {
		return fmt.Errorf("%w: %v", vault.ErrInvalidTokenAccount, err)
	}
	if want != tokenAccount {
		return fmt.Errorf("%w: %s is not the token account of %s for %s", vault.ErrInvalidTokenAccount, tokenAccount, owner, mint)
	}
	_, err = tc.ledger.CreateTokenAccount(payer, owner, mint)
	return err
}

func (p *Processor) applyTokenTransfer(tc *txContext) error {
	if err := common.Guard(p.pauses, BankModule); err != nil {
		return err
	}
	a := tc.tx.Accounts
	source, destination, authority := a[0], a[1], a[2]
	if !tc.signers.Has(authority) {
		return fmt.Errorf("%w: %s did not sign", vault.ErrUnauthorized, authority)
	}
	var payload types.AmountPayload
	if err := decodePayload(tc.tx, &payload); err != nil {
		return err
	}
	return tc.ledger.TransferToken(source, destination, authority, payload.Amount)
}

// ApplyGenesis seeds state from spec unless a genesis was already committed.
func (p *Processor) ApplyGenesis(spec *genesis.Spec) (bool, error) {
	p.genesisMu.Lock()
	defer p.genesisMu.Unlock()
	m := state.NewManager(p.db)
	ledger := bank.NewLedger(m, p.programID, p.tokenProgram)
	applied, err := genesis.Apply(m, ledger, spec, p.programID)
	if err != nil || !applied {
		m.Discard()
		return applied, err
	}
	if err := m.Commit(); err != nil {
		return false, fmt.Errorf("core: commit genesis: %w", err)
	}
	p.logger.Info("genesis applied",
		slog.Int("accounts", len(spec.Accounts)),
		slog.Int("token_accounts", len(spec.TokenAccounts)))
	return true, nil
}
