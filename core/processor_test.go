package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"custody/core/genesis"
	"custody/core/types"
	"custody/crypto"
	"custody/native/bank"
	"custody/native/common"
	"custody/native/vault"
	"custody/storage"
)

const treasuryPath = "treasury"

type fixture struct {
	t         *testing.T
	proc      *Processor
	owner     *crypto.PrivateKey
	admin     *crypto.PrivateKey
	user      *crypto.PrivateKey
	mint      solana.PublicKey
	vault     solana.PublicKey
	signer    solana.PublicKey
	treasury  solana.PublicKey
	userToken solana.PublicKey
	nonce     uint64
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		proc:  NewProcessor(storage.NewMemDB(), Options{}),
		owner: mustKey(t),
		admin: mustKey(t),
		user:  mustKey(t),
		mint:  solana.NewWallet().PublicKey(),
	}
	doc := fmt.Sprintf(`accounts:
  - address: %s
    lamports: 10000000000
  - address: %s
    lamports: 10000000000
  - address: %s
    lamports: 1000000000
tokenAccounts:
  - vaultPath: %s
    mint: %s
    amount: 1000000
  - owner: %s
    mint: %s
`, f.owner.PubKey(), f.admin.PubKey(), f.user.PubKey(), treasuryPath, f.mint, f.user.PubKey(), f.mint)
	spec, err := genesis.Parse([]byte(doc))
	require.NoError(t, err)
	applied, err := f.proc.ApplyGenesis(spec)
	require.NoError(t, err)
	require.True(t, applied)

	derived, err := f.proc.DeriveVault([]byte(treasuryPath))
	require.NoError(t, err)
	f.vault = derived.Vault.Address
	f.signer = derived.Signer.Address
	f.treasury, err = bank.TokenAccountAddress(f.signer, f.mint)
	require.NoError(t, err)
	f.userToken, err = bank.TokenAccountAddress(f.user.PubKey(), f.mint)
	require.NoError(t, err)
	return f
}

func (f *fixture) tx(txType types.TxType, accounts []solana.PublicKey, payload interface{}, keys ...*crypto.PrivateKey) *types.Transaction {
	f.t.Helper()
	f.nonce++
	tx := &types.Transaction{Type: txType, Nonce: f.nonce, Accounts: accounts}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(f.t, err)
		tx.Data = data
	}
	for _, key := range keys {
		require.NoError(f.t, tx.Sign(key))
	}
	return tx
}

func (f *fixture) apply(tx *types.Transaction) (*types.Receipt, error) {
	return f.proc.ApplyTransaction(context.Background(), tx)
}

func (f *fixture) mustApply(tx *types.Transaction) *types.Receipt {
	f.t.Helper()
	receipt, err := f.apply(tx)
	require.NoError(f.t, err)
	return receipt
}

func (f *fixture) createVault() {
	f.t.Helper()
	f.mustApply(f.tx(types.TxTypeCreateVault,
		[]solana.PublicKey{f.owner.PubKey(), f.vault},
		types.CreateVaultPayload{Path: []byte(treasuryPath), Admin: f.admin.PubKey()},
		f.owner))
}

func (f *fixture) createSchedule(eventID uint64, objType vault.ObjType, users uint16) solana.PublicKey {
	f.t.Helper()
	derived, err := f.proc.DeriveSchedule(eventID)
	require.NoError(f.t, err)
	f.mustApply(f.tx(types.TxTypeCreateSchedule,
		[]solana.PublicKey{f.admin.PubKey(), f.vault, derived.Address},
		types.CreateSchedulePayload{
			UserCount:             users,
			EventID:               eventID,
			ObjType:               objType.String(),
			ReceivingTokenAccount: f.treasury,
		},
		f.admin))
	return derived.Address
}

func (f *fixture) assign(schedule solana.PublicKey, assignments ...types.AssignmentPayload) {
	f.t.Helper()
	f.mustApply(f.tx(types.TxTypeSetSchedule,
		[]solana.PublicKey{f.admin.PubKey(), f.vault, schedule},
		types.SetSchedulePayload{Assignments: assignments},
		f.admin))
}

func (f *fixture) redeemTx(txType types.TxType, schedule solana.PublicKey) *types.Transaction {
	return f.tx(txType, []solana.PublicKey{
		f.vault, schedule, f.signer, f.treasury, f.user.PubKey(), f.userToken, solana.TokenProgramID,
	}, nil, f.user)
}

func (f *fixture) tokenBalance(addr solana.PublicKey) uint64 {
	f.t.Helper()
	ta, ok, err := f.proc.TokenAccount(addr)
	require.NoError(f.t, err)
	require.True(f.t, ok)
	return ta.Amount
}

func TestProcessorRedeemEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.createVault()
	schedule := f.createSchedule(7, vault.ObjTypeDistribution, 2)
	f.assign(schedule, types.AssignmentPayload{Slot: 0, User: f.user.PubKey(), Mint: f.mint, Amount: 500})

	receipt := f.mustApply(f.redeemTx(types.TxTypeRedeemToken, schedule))
	require.Equal(t, "RedeemToken", receipt.Type)
	require.Equal(t, []solana.PublicKey{f.user.PubKey()}, receipt.Signers)
	var kinds []string
	for _, evt := range receipt.Events {
		kinds = append(kinds, evt.Type)
	}
	require.Equal(t, []string{"transfer.token", vault.EventTypeScheduleRedeemed}, kinds)

	require.Equal(t, uint64(500), f.tokenBalance(f.userToken))
	require.Equal(t, uint64(999_500), f.tokenBalance(f.treasury))

	s, ok, err := f.proc.Schedule(schedule)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.Entitlements[0].Redeemed)
	require.Equal(t, 1, s.RedeemedCount())

	_, err = f.apply(f.redeemTx(types.TxTypeRedeemToken, schedule))
	require.ErrorIs(t, err, vault.ErrAlreadyRedeemed)
	code, ok := vault.Code(err)
	require.True(t, ok)
	require.Equal(t, vault.CodeAlreadyRedeemed, code)
	require.Equal(t, uint64(500), f.tokenBalance(f.userToken))
}

func TestProcessorRejectsReplay(t *testing.T) {
	f := newFixture(t)
	tx := f.tx(types.TxTypeTransfer,
		[]solana.PublicKey{f.owner.PubKey(), f.user.PubKey()},
		types.AmountPayload{Amount: 1_000},
		f.owner)
	f.mustApply(tx)
	_, err := f.apply(tx)
	require.ErrorIs(t, err, ErrReplay)

	acc, err := f.proc.Account(f.user.PubKey())
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_001_000), acc.Lamports)
}

func TestProcessorFailedTransactionLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.createVault()
	schedule := f.createSchedule(9, vault.ObjTypeDistributionMulti, 1)
	otherMint := solana.NewWallet().PublicKey()
	f.assign(schedule, types.AssignmentPayload{Slot: 0, User: f.user.PubKey(), Mint: otherMint, Amount: 10})

	_, err := f.apply(f.redeemTx(types.TxTypeRedeemTokenMulti, schedule))
	require.ErrorIs(t, err, vault.ErrInvalidTokenAccount)

	s, ok, err := f.proc.Schedule(schedule)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, s.Entitlements[0].Redeemed)
	require.Equal(t, uint64(1_000_000), f.tokenBalance(f.treasury))
}

func TestProcessorConcurrentRedeemAtMostOnce(t *testing.T) {
	f := newFixture(t)
	f.createVault()
	schedule := f.createSchedule(11, vault.ObjTypeDistribution, 1)
	f.assign(schedule, types.AssignmentPayload{Slot: 0, User: f.user.PubKey(), Mint: f.mint, Amount: 250})

	const attempts = 16
	txs := make([]*types.Transaction, attempts)
	for i := range txs {
		txs[i] = f.redeemTx(types.TxTypeRedeemToken, schedule)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *types.Transaction) {
			defer wg.Done()
			_, err := f.apply(tx)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrAccountInUse) && !errors.Is(err, vault.ErrAlreadyRedeemed) {
				t.Errorf("unexpected error: %v", err)
			}
		}(tx)
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, uint64(250), f.tokenBalance(f.userToken))
	require.Zero(t, f.proc.locks.len())
}

func TestProcessorWithdraw(t *testing.T) {
	f := newFixture(t)
	f.createVault()
	recipient := solana.NewWallet().PublicKey()

	f.mustApply(f.tx(types.TxTypeTransfer,
		[]solana.PublicKey{f.owner.PubKey(), f.signer},
		types.AmountPayload{Amount: 5_000},
		f.owner))

	solAccounts := []solana.PublicKey{f.admin.PubKey(), f.vault, f.signer, recipient}
	_, err := f.apply(f.tx(types.TxTypeWithdrawSol, solAccounts, types.AmountPayload{Amount: 1_000}, f.owner))
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	_, err = f.apply(f.tx(types.TxTypeWithdrawSol, solAccounts, types.AmountPayload{Amount: 0}, f.admin))
	require.ErrorIs(t, err, vault.ErrInvalidParams)

	f.mustApply(f.tx(types.TxTypeWithdrawSol, solAccounts, types.AmountPayload{Amount: 2_000}, f.admin))
	acc, err := f.proc.Account(recipient)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), acc.Lamports)

	f.mustApply(f.tx(types.TxTypeWithdrawToken,
		[]solana.PublicKey{f.admin.PubKey(), f.vault, f.signer, f.treasury, f.userToken, solana.TokenProgramID},
		types.AmountPayload{Amount: 40},
		f.admin))
	require.Equal(t, uint64(40), f.tokenBalance(f.userToken))
	require.Equal(t, uint64(999_960), f.tokenBalance(f.treasury))
}

func TestProcessorOwnershipHandover(t *testing.T) {
	f := newFixture(t)
	f.createVault()
	successor := mustKey(t)
	f.mustApply(f.tx(types.TxTypeTransfer,
		[]solana.PublicKey{f.owner.PubKey(), successor.PubKey()},
		types.AmountPayload{Amount: 10_000_000},
		f.owner))

	f.mustApply(f.tx(types.TxTypeTransferOwnership,
		[]solana.PublicKey{f.owner.PubKey(), f.vault},
		types.TransferOwnershipPayload{NewOwner: successor.PubKey()},
		f.owner))

	_, err := f.apply(f.tx(types.TxTypeAcceptOwnership, []solana.PublicKey{f.user.PubKey(), f.vault}, nil, f.user))
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	f.mustApply(f.tx(types.TxTypeAcceptOwnership, []solana.PublicKey{successor.PubKey(), f.vault}, nil, successor))
	v, ok, err := f.proc.Vault(f.vault)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, successor.PubKey(), v.Owner)
	require.False(t, v.HasPendingOwner())

	_, err = f.apply(f.tx(types.TxTypeSetVault,
		[]solana.PublicKey{f.owner.PubKey(), f.vault},
		types.SetVaultPayload{Admin: f.owner.PubKey()},
		f.owner))
	require.ErrorIs(t, err, vault.ErrUnauthorized)
}

func TestProcessorValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.apply(f.tx(types.TxType(0x7f), []solana.PublicKey{f.owner.PubKey()}, nil, f.owner))
	require.ErrorIs(t, err, ErrUnknownTxType)

	_, err = f.apply(f.tx(types.TxTypeCreateVault, []solana.PublicKey{f.owner.PubKey()}, nil, f.owner))
	require.ErrorIs(t, err, vault.ErrInvalidAccount)

	unsigned := f.tx(types.TxTypeTransfer,
		[]solana.PublicKey{f.owner.PubKey(), f.user.PubKey()},
		types.AmountPayload{Amount: 1})
	_, err = f.apply(unsigned)
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	_, err = f.apply(f.tx(types.TxTypeTransfer,
		[]solana.PublicKey{f.owner.PubKey(), f.user.PubKey()},
		types.AmountPayload{Amount: 1},
		f.user))
	require.ErrorIs(t, err, vault.ErrUnauthorized)

	_, err = f.apply(f.tx(types.TxTypeCreateVault,
		[]solana.PublicKey{f.owner.PubKey(), solana.NewWallet().PublicKey()},
		types.CreateVaultPayload{Path: []byte(treasuryPath)},
		f.owner))
	require.ErrorIs(t, err, vault.ErrInvalidAccount)
}

func TestProcessorCreateTokenAccount(t *testing.T) {
	f := newFixture(t)
	f.createVault()
	holder := solana.NewWallet().PublicKey()
	addr, err := bank.TokenAccountAddress(holder, f.mint)
	require.NoError(t, err)

	_, err = f.apply(f.tx(types.TxTypeCreateTokenAccount,
		[]solana.PublicKey{f.owner.PubKey(), holder, f.mint, solana.NewWallet().PublicKey()},
		nil, f.owner))
	require.ErrorIs(t, err, vault.ErrInvalidTokenAccount)

	f.mustApply(f.tx(types.TxTypeCreateTokenAccount,
		[]solana.PublicKey{f.owner.PubKey(), holder, f.mint, addr},
		nil, f.owner))
	ta, ok, err := f.proc.TokenAccount(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, holder, ta.Owner)
	require.Zero(t, ta.Amount)

	_, err = f.apply(f.tx(types.TxTypeTokenTransfer,
		[]solana.PublicKey{f.userToken, addr, f.user.PubKey()},
		types.AmountPayload{Amount: 1},
		f.user))
	require.ErrorIs(t, err, bank.ErrInsufficientFunds)

	f.mustApply(f.tx(types.TxTypeWithdrawToken,
		[]solana.PublicKey{f.admin.PubKey(), f.vault, f.signer, f.treasury, addr, solana.TokenProgramID},
		types.AmountPayload{Amount: 5},
		f.admin))
	require.Equal(t, uint64(5), f.tokenBalance(addr))
}

func TestProcessorPausedModule(t *testing.T) {
	f := newFixture(t)
	f.proc.Pauses().Set(vault.ModuleName, true)
	_, err := f.apply(f.tx(types.TxTypeCreateVault,
		[]solana.PublicKey{f.owner.PubKey(), f.vault},
		types.CreateVaultPayload{Path: []byte(treasuryPath)},
		f.owner))
	require.ErrorIs(t, err, common.ErrModulePaused)

	f.proc.Pauses().Set(vault.ModuleName, false)
	f.createVault()
}

func TestGenesisAppliedOnce(t *testing.T) {
	f := newFixture(t)
	spec, err := genesis.Parse([]byte("accounts:\n  - address: " + f.owner.PubKey().String() + "\n    lamports: 1\n"))
	require.NoError(t, err)
	applied, err := f.proc.ApplyGenesis(spec)
	require.NoError(t, err)
	require.False(t, applied)
}
