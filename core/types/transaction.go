package types

import (
	"encoding/json"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"custody/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer           TxType = 0x01 // Native balance transfer signed by the sender
	TxTypeCreateTokenAccount TxType = 0x02
	TxTypeTokenTransfer      TxType = 0x03

	TxTypeCreateVault       TxType = 0x10
	TxTypeSetVault          TxType = 0x11
	TxTypeTransferOwnership TxType = 0x12
	TxTypeAcceptOwnership   TxType = 0x13
	TxTypeCreateSchedule    TxType = 0x14
	TxTypeSetSchedule       TxType = 0x15
	TxTypeWithdrawSol       TxType = 0x16
	TxTypeWithdrawToken     TxType = 0x17
	TxTypeRedeemToken       TxType = 0x18
	TxTypeRedeemTokenMulti  TxType = 0x19
)

func (t TxType) String() string {
	switch t {
	case TxTypeTransfer:
		return "Transfer"
	case TxTypeCreateTokenAccount:
		return "CreateTokenAccount"
	case TxTypeTokenTransfer:
		return "TokenTransfer"
	case TxTypeCreateVault:
		return "CreateVault"
	case TxTypeSetVault:
		return "SetVault"
	case TxTypeTransferOwnership:
		return "TransferOwnership"
	case TxTypeAcceptOwnership:
		return "AcceptOwnership"
	case TxTypeCreateSchedule:
		return "CreateSchedule"
	case TxTypeSetSchedule:
		return "SetSchedule"
	case TxTypeWithdrawSol:
		return "WithdrawSol"
	case TxTypeWithdrawToken:
		return "WithdrawToken"
	case TxTypeRedeemToken:
		return "RedeemToken"
	case TxTypeRedeemTokenMulti:
		return "RedeemTokenMulti"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

var (
	ErrMissingSignature = errors.New("tx: missing signature")
	ErrInvalidSignature = errors.New("tx: invalid signature")
)

// SignatureEntry binds a signature to the identity that produced it.
type SignatureEntry struct {
	Signer    solana.PublicKey `json:"signer"`
	Signature solana.Signature `json:"signature"`
}

// Transaction carries one operation, the accounts it names (ordered per type),
// JSON-encoded arguments and the signatures of every identity that authorises
// it. Nonce is caller-chosen and only serves to make otherwise identical
// transactions distinct.
type Transaction struct {
	Type       TxType             `json:"type"`
	Nonce      uint64             `json:"nonce"`
	Accounts   []solana.PublicKey `json:"accounts"`
	Data       json.RawMessage    `json:"data,omitempty"`
	Signatures []SignatureEntry   `json:"signatures,omitempty"`
}

type txBody struct {
	Type     uint8
	Nonce    uint64
	Accounts []solana.PublicKey
	Data     []byte
}

// Hash is keccak256 over the RLP encoding of everything except signatures.
func (tx *Transaction) Hash() ([32]byte, error) {
	var out [32]byte
	if tx == nil {
		return out, errors.New("tx: nil transaction")
	}
	encoded, err := rlp.EncodeToBytes(&txBody{
		Type:     uint8(tx.Type),
		Nonce:    tx.Nonce,
		Accounts: tx.Accounts,
		Data:     []byte(tx.Data),
	})
	if err != nil {
		return out, fmt.Errorf("tx: encode: %w", err)
	}
	copy(out[:], ethcrypto.Keccak256(encoded))
	return out, nil
}

// Sign appends a signature by key over the transaction hash. Signing twice
// with the same key replaces the earlier entry.
func (tx *Transaction) Sign(key *crypto.PrivateKey) error {
	if key == nil {
		return errors.New("tx: nil signing key")
	}
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(hash[:])
	if err != nil {
		return err
	}
	signer := key.PubKey()
	for i := range tx.Signatures {
		if tx.Signatures[i].Signer == signer {
			tx.Signatures[i].Signature = sig
			return nil
		}
	}
	tx.Signatures = append(tx.Signatures, SignatureEntry{Signer: signer, Signature: sig})
	return nil
}

// VerifySignatures checks every attached signature and returns the distinct
// signers. A single bad signature rejects the whole transaction.
func (tx *Transaction) VerifySignatures() ([]solana.PublicKey, error) {
	if len(tx.Signatures) == 0 {
		return nil, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	seen := make(map[solana.PublicKey]struct{}, len(tx.Signatures))
	signers := make([]solana.PublicKey, 0, len(tx.Signatures))
	for _, entry := range tx.Signatures {
		if !crypto.VerifySignature(entry.Signer, hash[:], entry.Signature) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, entry.Signer)
		}
		if _, dup := seen[entry.Signer]; dup {
			continue
		}
		seen[entry.Signer] = struct{}{}
		signers = append(signers, entry.Signer)
	}
	return signers, nil
}

// Account returns the i-th named account.
func (tx *Transaction) Account(i int) (solana.PublicKey, error) {
	if i < 0 || i >= len(tx.Accounts) {
		return solana.PublicKey{}, fmt.Errorf("tx: account index %d out of range (%d supplied)", i, len(tx.Accounts))
	}
	return tx.Accounts[i], nil
}
