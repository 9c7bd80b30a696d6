package vault

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestScheduleSize(t *testing.T) {
	require.Equal(t, uint64(105), uint64(VaultSize))
	require.Equal(t, uint64(ScheduleBaseSize), ScheduleSize(0))
	require.Equal(t, uint64(ScheduleBaseSize+3*EntitlementSize), ScheduleSize(3))
}

func TestParseObjType(t *testing.T) {
	got, err := ParseObjType(" Distribution ")
	require.NoError(t, err)
	require.Equal(t, ObjTypeDistribution, got)

	got, err = ParseObjType("distribution_multi")
	require.NoError(t, err)
	require.Equal(t, ObjTypeDistributionMulti, got)

	_, err = ParseObjType("airdrop")
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestScheduleCloneIsolation(t *testing.T) {
	s := NewSchedule(newKey(), newKey(), 1, ObjTypeDistribution, newKey(), 2)
	clone := s.Clone()
	clone.Entitlements[0].Redeemed = true
	require.False(t, s.Entitlements[0].Redeemed)
}

func TestScheduleValidate(t *testing.T) {
	user := newKey()
	s := NewSchedule(newKey(), newKey(), 1, ObjTypeDistribution, solana.PublicKey{}, 2)
	require.NoError(t, s.Validate())

	s.Entitlements[0] = Entitlement{User: user, Amount: 1, Assigned: true}
	s.Entitlements[1] = Entitlement{User: user, Amount: 1, Assigned: true}
	require.ErrorIs(t, s.Validate(), ErrInvalidAccount)

	s.Entitlements[1] = Entitlement{Redeemed: true}
	require.ErrorIs(t, s.Validate(), ErrInvalidAccount)

	_, found := s.Find(solana.PublicKey{})
	require.False(t, found)
	idx, found := s.Find(user)
	require.True(t, found)
	require.Zero(t, idx)
}

func TestAuthorize(t *testing.T) {
	owner, admin, pending := newKey(), newKey(), newKey()
	v := &Vault{Address: newKey(), Owner: owner, Admin: admin}

	require.NoError(t, Authorize(NewSigners(owner), owner, v, RoleOwner))
	require.NoError(t, Authorize(NewSigners(admin), admin, v, RoleAdmin))
	require.ErrorIs(t, Authorize(NewSigners(admin), owner, v, RoleOwner), ErrUnauthorized)
	require.ErrorIs(t, Authorize(NewSigners(owner), owner, v, RoleAdmin), ErrUnauthorized)
	require.ErrorIs(t, Authorize(NewSigners(pending), pending, v, RolePendingOwner), ErrUnauthorized)

	v.PendingOwner = pending
	require.NoError(t, Authorize(NewSigners(pending), pending, v, RolePendingOwner))
	require.ErrorIs(t, Authorize(NewSigners(owner), owner, nil, RoleOwner), ErrInvalidAccount)
}

func TestCodeClassification(t *testing.T) {
	cases := map[error]ErrorCode{
		ErrUnauthorized:        6000,
		ErrInvalidAccount:      6001,
		ErrInvalidTokenAccount: 6002,
		ErrAlreadyRedeemed:     6003,
		ErrIneligible:          6004,
		ErrInvalidParams:       6005,
	}
	for err, want := range cases {
		got, ok := Code(err)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := Code(nil)
	require.False(t, ok)
	require.Equal(t, "AlreadyRedeemed", CodeAlreadyRedeemed.String())
}
