package rpc

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"custody/core/types"
	"custody/native/vault"
)

type AccountResult struct {
	Address  string `json:"address"`
	Lamports string `json:"lamports"`
	Owner    string `json:"owner"`
	Kind     string `json:"kind"`
	Space    uint64 `json:"space"`
}

type TokenAccountResult struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  string `json:"amount"`
}

type VaultResult struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	PendingOwner string `json:"pendingOwner,omitempty"`
	Admin        string `json:"admin,omitempty"`
	Signer       string `json:"signer"`
	SignerNonce  uint8  `json:"signerNonce"`
}

type EntitlementResult struct {
	Slot     int    `json:"slot"`
	User     string `json:"user,omitempty"`
	Mint     string `json:"mint,omitempty"`
	Amount   string `json:"amount"`
	Assigned bool   `json:"assigned"`
	Redeemed bool   `json:"redeemed"`
}

type ScheduleResult struct {
	Address               string              `json:"address"`
	Vault                 string              `json:"vault"`
	EventID               string              `json:"eventId"`
	ObjType               string              `json:"objType"`
	ReceivingTokenAccount string              `json:"receivingTokenAccount"`
	UserCount             uint16              `json:"userCount"`
	Redeemed              int                 `json:"redeemed"`
	Entitlements          []EntitlementResult `json:"entitlements"`
}

type ProgramResult struct {
	ProgramID    string   `json:"programId"`
	TokenProgram string   `json:"tokenProgram"`
	Paused       []string `json:"paused"`
}

func optional(key solana.PublicKey) string {
	if key.IsZero() {
		return ""
	}
	return key.String()
}

func newAccountResult(acc *types.Account) AccountResult {
	return AccountResult{
		Address:  acc.Address.String(),
		Lamports: strconv.FormatUint(acc.Lamports, 10),
		Owner:    acc.Owner.String(),
		Kind:     acc.Kind.String(),
		Space:    acc.Space,
	}
}

func newTokenAccountResult(ta *types.TokenAccount) TokenAccountResult {
	return TokenAccountResult{
		Address: ta.Address.String(),
		Mint:    ta.Mint.String(),
		Owner:   ta.Owner.String(),
		Amount:  strconv.FormatUint(ta.Amount, 10),
	}
}

func newVaultResult(v *vault.Vault, signer solana.PublicKey) VaultResult {
	return VaultResult{
		Address:      v.Address.String(),
		Owner:        v.Owner.String(),
		PendingOwner: optional(v.PendingOwner),
		Admin:        optional(v.Admin),
		Signer:       signer.String(),
		SignerNonce:  v.SignerNonce,
	}
}

func newScheduleResult(s *vault.Schedule) ScheduleResult {
	out := ScheduleResult{
		Address:               s.Address.String(),
		Vault:                 s.VaultID.String(),
		EventID:               strconv.FormatUint(s.EventID, 10),
		ObjType:               s.ObjType.String(),
		ReceivingTokenAccount: s.ReceivingTokenAccount.String(),
		UserCount:             s.UserCount,
		Redeemed:              s.RedeemedCount(),
		Entitlements:          make([]EntitlementResult, 0, len(s.Entitlements)),
	}
	for i, ent := range s.Entitlements {
		out.Entitlements = append(out.Entitlements, EntitlementResult{
			Slot:     i,
			User:     optional(ent.User),
			Mint:     optional(ent.Mint),
			Amount:   strconv.FormatUint(ent.Amount, 10),
			Assigned: ent.Assigned,
			Redeemed: ent.Redeemed,
		})
	}
	return out
}
