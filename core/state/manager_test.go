package state

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"custody/core/types"
	"custody/native/vault"
	"custody/storage"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func allocate(t *testing.T, m *Manager, addr solana.PublicKey, kind types.AccountKind, space uint64) {
	t.Helper()
	require.NoError(t, m.PutAccount(&types.Account{Address: addr, Lamports: 1, Kind: kind, Space: space}))
}

func TestManagerBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	addr := newKey(t)

	m := NewManager(db)
	require.NoError(t, m.PutAccount(&types.Account{Address: addr, Lamports: 500}))
	require.Equal(t, 1, m.Dirty())
	require.Empty(t, db.Keys())

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acc.Lamports)

	require.NoError(t, m.Commit())
	require.Zero(t, m.Dirty())
	require.Len(t, db.Keys(), 1)

	fresh := NewManager(db)
	acc, err = fresh.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(500), acc.Lamports)
}

func TestManagerDiscard(t *testing.T) {
	db := storage.NewMemDB()
	addr := newKey(t)

	m := NewManager(db)
	require.NoError(t, m.PutAccount(&types.Account{Address: addr, Lamports: 7}))
	m.Discard()
	require.NoError(t, m.Commit())
	require.Empty(t, db.Keys())

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Lamports)
	require.Equal(t, solana.SystemProgramID, acc.Owner)
}

func TestPutAccountRemovesEmpty(t *testing.T) {
	db := storage.NewMemDB()
	addr := newKey(t)

	m := NewManager(db)
	require.NoError(t, m.PutAccount(&types.Account{Address: addr, Lamports: 3}))
	require.NoError(t, m.Commit())
	require.Len(t, db.Keys(), 1)

	require.NoError(t, m.PutAccount(&types.Account{Address: addr}))
	require.NoError(t, m.Commit())
	require.Empty(t, db.Keys())
}

func TestVaultRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := newKey(t)

	_, ok, err := m.VaultGet(addr)
	require.NoError(t, err)
	require.False(t, ok)

	v := &vault.Vault{Address: addr, Owner: newKey(t), Admin: newKey(t), SignerNonce: 254}
	require.ErrorIs(t, m.VaultPut(v), ErrKindMismatch)

	allocate(t, m, addr, types.AccountKindVault, vault.VaultSize)
	require.NoError(t, m.VaultPut(v))

	got, ok, err := m.VaultGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, v, got)

	// A vault record is never readable as a schedule.
	_, ok, err = m.ScheduleGet(addr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScheduleRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := newKey(t)
	allocate(t, m, addr, types.AccountKindSchedule, vault.ScheduleSize(3))

	s := vault.NewSchedule(addr, newKey(t), 42, vault.ObjTypeDistributionMulti, solana.PublicKey{}, 3)
	s.Entitlements[1] = vault.Entitlement{User: newKey(t), Mint: newKey(t), Amount: 99, Assigned: true, Redeemed: true}
	require.NoError(t, m.SchedulePut(s))

	got, ok, err := m.ScheduleGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s, got)
}

func TestSchedulePutRejectsInvalid(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := newKey(t)
	allocate(t, m, addr, types.AccountKindSchedule, vault.ScheduleSize(2))

	s := vault.NewSchedule(addr, newKey(t), 1, vault.ObjTypeDistribution, newKey(t), 2)
	s.Entitlements = s.Entitlements[:1]
	require.ErrorIs(t, m.SchedulePut(s), vault.ErrInvalidAccount)
}

func TestTokenAccountRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	addr := newKey(t)
	allocate(t, m, addr, types.AccountKindToken, 165)

	ta := &types.TokenAccount{Address: addr, Mint: newKey(t), Owner: newKey(t), Amount: 1_000}
	require.NoError(t, m.TokenAccountPut(ta))

	got, ok, err := m.TokenAccountGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ta, got)
}

func TestTxIndexAndGenesisMarker(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	hash := [32]byte{1, 2, 3}

	seen, err := m.TxSeen(hash)
	require.NoError(t, err)
	require.False(t, seen)

	m.MarkTxSeen(hash)
	require.NoError(t, m.MarkGenesisApplied([32]byte{9}))
	require.NoError(t, m.Commit())

	reopened := NewManager(db)
	seen, err = reopened.TxSeen(hash)
	require.NoError(t, err)
	require.True(t, seen)

	applied, err := reopened.GenesisApplied()
	require.NoError(t, err)
	require.True(t, applied)
}

func TestKVHelpers(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	_, err := m.KVGet(nil, nil)
	require.Error(t, err)

	require.NoError(t, m.KVPut([]byte("counter"), uint64(12)))
	var out uint64
	ok, err := m.KVGet([]byte("counter"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12), out)
}
