package types

import (
	"github.com/gagliardetto/solana-go"
)

// Account layouts per transaction type. The processor binds tx.Accounts by
// position; every account an operation touches must be listed so it can be
// locked for the duration of the transaction.
//
//	Transfer            [from, to]
//	CreateTokenAccount  [payer, owner, mint, tokenAccount]
//	TokenTransfer       [source, destination, authority]
//	CreateVault         [owner, vault]
//	SetVault            [owner, vault]
//	TransferOwnership   [owner, vault]
//	AcceptOwnership     [newOwner, vault]
//	CreateSchedule      [admin, vault, schedule]
//	SetSchedule         [admin, vault, schedule]
//	WithdrawSol         [admin, vault, vaultSigner, recipient]
//	WithdrawToken       [admin, vault, vaultSigner, source, recipient, tokenProgram]
//	RedeemToken(Multi)  [vault, schedule, vaultSigner, source, user, destination, tokenProgram]
var accountCounts = map[TxType]int{
	TxTypeTransfer:           2,
	TxTypeCreateTokenAccount: 4,
	TxTypeTokenTransfer:      3,
	TxTypeCreateVault:        2,
	TxTypeSetVault:           2,
	TxTypeTransferOwnership:  2,
	TxTypeAcceptOwnership:    2,
	TxTypeCreateSchedule:     3,
	TxTypeSetSchedule:        3,
	TxTypeWithdrawSol:        4,
	TxTypeWithdrawToken:      6,
	TxTypeRedeemToken:        7,
	TxTypeRedeemTokenMulti:   7,
}

// AccountCount returns the number of accounts txType binds.
func AccountCount(txType TxType) (int, bool) {
	n, ok := accountCounts[txType]
	return n, ok
}

type AmountPayload struct {
	Amount uint64 `json:"amount,string"`
}

type CreateVaultPayload struct {
	Path  []byte           `json:"path"`
	Admin solana.PublicKey `json:"admin"`
}

type SetVaultPayload struct {
	Admin solana.PublicKey `json:"admin"`
}

type TransferOwnershipPayload struct {
	NewOwner solana.PublicKey `json:"newOwner"`
}

type CreateSchedulePayload struct {
	UserCount             uint16           `json:"userCount"`
	EventID               uint64           `json:"eventId,string"`
	ObjType               string           `json:"objType"`
	ReceivingTokenAccount solana.PublicKey `json:"receivingTokenAccount"`
}

type AssignmentPayload struct {
	Slot   uint16           `json:"slot"`
	User   solana.PublicKey `json:"user"`
	Mint   solana.PublicKey `json:"mint"`
	Amount uint64           `json:"amount,string"`
}

type SetSchedulePayload struct {
	ReceivingTokenAccount *solana.PublicKey   `json:"receivingTokenAccount,omitempty"`
	Assignments           []AssignmentPayload `json:"assignments,omitempty"`
}
