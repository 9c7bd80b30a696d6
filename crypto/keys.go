package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Address is the 32-byte ed25519 identity used for every account, signer and
// derived address handled by the node.
type Address = solana.PublicKey

// ErrInvalidAddress is returned when an address string cannot be decoded.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// ParseAddress decodes a base58 encoded address.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	addr, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// --- Key Management ---

type PrivateKey struct {
	key solana.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBase58 loads a key in the solana-keygen base58 format.
func PrivateKeyFromBase58(s string) (*PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("crypto: decode private key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.key...)
}

// String encodes the key in base58.
func (k *PrivateKey) String() string {
	return k.key.String()
}

func (k *PrivateKey) PubKey() Address {
	return k.key.PublicKey()
}

// Sign produces an ed25519 signature over payload.
func (k *PrivateKey) Sign(payload []byte) (solana.Signature, error) {
	if k == nil || len(k.key) == 0 {
		return solana.Signature{}, errors.New("crypto: nil private key")
	}
	return k.key.Sign(payload)
}

// VerifySignature reports whether sig is a valid signature by signer over payload.
func VerifySignature(signer Address, payload []byte, sig solana.Signature) bool {
	if signer.IsZero() || sig.IsZero() {
		return false
	}
	return sig.Verify(signer, payload)
}
