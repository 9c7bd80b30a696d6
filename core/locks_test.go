package core

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestAccountLocks(t *testing.T) {
	locks := newAccountLocks()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	release, ok := locks.tryAcquire([]solana.PublicKey{a, b, a})
	require.True(t, ok)
	require.Equal(t, 2, locks.len())

	_, ok = locks.tryAcquire([]solana.PublicKey{c, b})
	require.False(t, ok)
	require.Equal(t, 2, locks.len(), "failed claim must not hold any key")

	release()
	release()
	require.Zero(t, locks.len())

	release, ok = locks.tryAcquire([]solana.PublicKey{c, b})
	require.True(t, ok)
	release()
}
