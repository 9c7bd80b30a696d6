package events

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"custody/core/types"
)

const (
	// TypeTransfer is emitted for native lamport movements.
	TypeTransfer = "transfer.native"
	// TypeTokenTransfer is emitted for token balance movements.
	TypeTokenTransfer = "transfer.token"
	// TypeAccountAllocated is emitted when storage is allocated and rent is
	// charged to the payer.
	TypeAccountAllocated = "account.allocated"
)

type Transfer struct {
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"from":   e.From.String(),
			"to":     e.To.String(),
			"amount": strconv.FormatUint(e.Amount, 10),
		},
	}
}

type TokenTransfer struct {
	Source      solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
	Mint        solana.PublicKey
	Amount      uint64
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"source":      e.Source.String(),
			"destination": e.Destination.String(),
			"authority":   e.Authority.String(),
			"mint":        e.Mint.String(),
			"amount":      strconv.FormatUint(e.Amount, 10),
		},
	}
}

type AccountAllocated struct {
	Payer   solana.PublicKey
	Address solana.PublicKey
	Kind    types.AccountKind
	Space   uint64
	Rent    uint64
}

func (AccountAllocated) EventType() string { return TypeAccountAllocated }

func (e AccountAllocated) Event() *types.Event {
	return &types.Event{
		Type: TypeAccountAllocated,
		Attributes: map[string]string{
			"payer":   e.Payer.String(),
			"address": e.Address.String(),
			"kind":    e.Kind.String(),
			"space":   strconv.FormatUint(e.Space, 10),
			"rent":    strconv.FormatUint(e.Rent, 10),
		},
	}
}
