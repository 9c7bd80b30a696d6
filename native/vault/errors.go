package vault

import "errors"

var (
	// ErrUnauthorized: the required role did not sign or does not match the
	// identity stored on the vault.
	ErrUnauthorized = errors.New("vault: unauthorized")
	// ErrInvalidAccount: structural mismatch between supplied accounts and
	// stored state (linkage, derived address, program reference, duplicate
	// creation target).
	ErrInvalidAccount = errors.New("vault: invalid account")
	// ErrInvalidTokenAccount: the funding account is not the schedule's
	// pinned source.
	ErrInvalidTokenAccount = errors.New("vault: invalid token account")
	ErrAlreadyRedeemed     = errors.New("vault: entitlement already redeemed")
	ErrIneligible          = errors.New("vault: user not eligible for schedule")
	ErrInvalidParams       = errors.New("vault: invalid parameters")
)

// ErrorCode is the stable numeric classification returned to clients.
type ErrorCode uint32

const (
	CodeUnauthorized ErrorCode = 6000 + iota
	CodeInvalidAccount
	CodeInvalidTokenAccount
	CodeAlreadyRedeemed
	CodeIneligible
	CodeInvalidParams
)

func (c ErrorCode) String() string {
	switch c {
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeInvalidAccount:
		return "InvalidAccount"
	case CodeInvalidTokenAccount:
		return "InvalidTokenAccount"
	case CodeAlreadyRedeemed:
		return "AlreadyRedeemed"
	case CodeIneligible:
		return "Ineligible"
	case CodeInvalidParams:
		return "InvalidParams"
	default:
		return "Unknown"
	}
}

var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidAccount, CodeInvalidAccount},
	{ErrInvalidTokenAccount, CodeInvalidTokenAccount},
	{ErrAlreadyRedeemed, CodeAlreadyRedeemed},
	{ErrIneligible, CodeIneligible},
	{ErrInvalidParams, CodeInvalidParams},
}

// Code classifies err. The boolean is false for errors outside the vault
// taxonomy (storage failures, insufficient balances and the like).
func Code(err error) (ErrorCode, bool) {
	if err == nil {
		return 0, false
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code, true
		}
	}
	return 0, false
}
