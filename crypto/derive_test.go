package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVaultSignerDerivationDeterministic(t *testing.T) {
	vault, _, err := VaultAddress(DefaultProgramID, []byte("v1"))
	require.NoError(t, err)

	first, nonce, err := VaultSignerAddress(DefaultProgramID, vault)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, againNonce, err := VaultSignerAddress(DefaultProgramID, vault)
		require.NoError(t, err)
		require.Equal(t, first, again)
		require.Equal(t, nonce, againNonce)
	}
	require.NoError(t, VerifyVaultSigner(DefaultProgramID, vault, nonce, first))
}

func TestVaultSignerRejectsMutatedNonce(t *testing.T) {
	vault, _, err := VaultAddress(DefaultProgramID, []byte("v1"))
	require.NoError(t, err)
	signer, nonce, err := VaultSignerAddress(DefaultProgramID, vault)
	require.NoError(t, err)

	for _, mutated := range []uint8{nonce - 1, nonce + 1, nonce ^ 0x80} {
		err := VerifyVaultSigner(DefaultProgramID, vault, mutated, signer)
		require.True(t, errors.Is(err, ErrAddressMismatch), "nonce %d", mutated)
	}
}

func TestVaultSignerRejectsForeignVault(t *testing.T) {
	vaultA, _, err := VaultAddress(DefaultProgramID, []byte("a"))
	require.NoError(t, err)
	vaultB, _, err := VaultAddress(DefaultProgramID, []byte("b"))
	require.NoError(t, err)
	signerA, nonceA, err := VaultSignerAddress(DefaultProgramID, vaultA)
	require.NoError(t, err)

	err = VerifyVaultSigner(DefaultProgramID, vaultB, nonceA, signerA)
	require.True(t, errors.Is(err, ErrAddressMismatch))
}

func TestDomainSeparatorsIsolateEntityKinds(t *testing.T) {
	input := bytes.Repeat([]byte{7}, 32)
	vault, _, err := DeriveAddress(DefaultProgramID, VaultSeed, input)
	require.NoError(t, err)
	signer, _, err := DeriveAddress(DefaultProgramID, VaultSignerSeed, input)
	require.NoError(t, err)
	schedule, _, err := DeriveAddress(DefaultProgramID, ScheduleSeed, input)
	require.NoError(t, err)

	require.NotEqual(t, vault, signer)
	require.NotEqual(t, vault, schedule)
	require.NotEqual(t, signer, schedule)
}

func TestProgramIDChangesAddresses(t *testing.T) {
	other, err := GeneratePrivateKey()
	require.NoError(t, err)

	a, _, err := VaultAddress(DefaultProgramID, []byte("v1"))
	require.NoError(t, err)
	b, _, err := VaultAddress(other.PubKey(), []byte("v1"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVaultPathTooLong(t *testing.T) {
	_, _, err := VaultAddress(DefaultProgramID, bytes.Repeat([]byte{1}, 33))
	require.True(t, errors.Is(err, ErrSeedTooLong))
}

func TestScheduleAddressPerEvent(t *testing.T) {
	s42, _, err := ScheduleAddress(DefaultProgramID, 42)
	require.NoError(t, err)
	again, _, err := ScheduleAddress(DefaultProgramID, 42)
	require.NoError(t, err)
	s43, _, err := ScheduleAddress(DefaultProgramID, 43)
	require.NoError(t, err)

	require.Equal(t, s42, again)
	require.NotEqual(t, s42, s43)
	require.NotEqual(t, EventSeed(42), EventSeed(43))
}

func TestSignAndVerify(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	msg := []byte("redeem")

	sig, err := key.Sign(msg)
	require.NoError(t, err)
	require.True(t, VerifySignature(key.PubKey(), msg, sig))
	require.False(t, VerifySignature(key.PubKey(), []byte("other"), sig))

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.False(t, VerifySignature(other.PubKey(), msg, sig))
}

func TestParseAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	parsed, err := ParseAddress(key.PubKey().String())
	require.NoError(t, err)
	require.Equal(t, key.PubKey(), parsed)

	_, err = ParseAddress("")
	require.True(t, errors.Is(err, ErrInvalidAddress))
	_, err = ParseAddress("not-base58-0OIl")
	require.True(t, errors.Is(err, ErrInvalidAddress))
}
