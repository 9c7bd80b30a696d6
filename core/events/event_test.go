package events_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"custody/core/events"
	"custody/core/types"
)

type untyped struct{}

func (untyped) EventType() string { return "untyped" }

func TestRecorderKeepsOrderAndCopies(t *testing.T) {
	rec := &events.Recorder{}
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	rec.Emit(events.Transfer{From: from, To: to, Amount: 5})
	rec.Emit(untyped{})
	rec.Emit(events.AccountAllocated{Payer: from, Address: to, Kind: types.AccountKindVault, Space: 105, Rent: 1_621_680})

	got := rec.Events()
	require.Len(t, got, 2)
	require.Equal(t, events.TypeTransfer, got[0].Type)
	require.Equal(t, "5", got[0].Attributes["amount"])
	require.Equal(t, events.TypeAccountAllocated, got[1].Type)
	require.Equal(t, "vault", got[1].Attributes["kind"])

	got[0].Attributes["amount"] = "tampered"
	require.Equal(t, "5", rec.Events()[0].Attributes["amount"])

	rec.Reset()
	require.Empty(t, rec.Events())
}

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &events.Recorder{}, &events.Recorder{}
	fan := events.Fanout{a, nil, b}
	fan.Emit(events.TokenTransfer{Amount: 3})
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	require.Equal(t, "3", b.Events()[0].Attributes["amount"])
}
