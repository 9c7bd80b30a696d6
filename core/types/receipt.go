package types

import (
	"encoding/hex"

	"github.com/gagliardetto/solana-go"
)

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash  string             `json:"txHash"`
	Type    string             `json:"type"`
	Signers []solana.PublicKey `json:"signers"`
	Events  []Event            `json:"events"`
}

// NewReceipt renders hash as 0x-prefixed hex.
func NewReceipt(hash [32]byte, txType TxType, signers []solana.PublicKey, events []Event) *Receipt {
	if events == nil {
		events = []Event{}
	}
	return &Receipt{
		TxHash:  "0x" + hex.EncodeToString(hash[:]),
		Type:    txType.String(),
		Signers: append([]solana.PublicKey(nil), signers...),
		Events:  events,
	}
}
