package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
)

// Domain separators prefixed to every derivation. They must match the deployed
// program bit-for-bit.
var (
	VaultSeed       = []byte{93, 85, 196, 21, 227, 86, 221, 123}
	VaultSignerSeed = []byte{2, 151, 229, 53, 244, 77, 229, 7}
	ScheduleSeed    = []byte{244, 131, 10, 29, 174, 41, 128, 68}
)

// DefaultProgramID is the program identity used when none is configured.
var DefaultProgramID = solana.PublicKeyFromBytes(ethcrypto.Keccak256([]byte("custody/vault-program")))

var (
	// ErrSeedTooLong is returned when a variable seed exceeds solana.MaxSeedLength.
	ErrSeedTooLong = errors.New("crypto: derivation seed exceeds 32 bytes")
	// ErrAddressMismatch is returned when a recomputed address differs from
	// the one supplied by the caller.
	ErrAddressMismatch = errors.New("crypto: derived address mismatch")
)

// DeriveAddress finds the canonical off-curve address for (separator, input)
// under programID and returns it with its nonce. The same inputs always yield
// the same pair.
func DeriveAddress(programID Address, separator []byte, input []byte) (Address, uint8, error) {
	if len(input) > solana.MaxSeedLength {
		return Address{}, 0, ErrSeedTooLong
	}
	addr, nonce, err := solana.FindProgramAddress([][]byte{separator, input}, programID)
	if err != nil {
		return Address{}, 0, fmt.Errorf("crypto: derive address: %w", err)
	}
	return addr, nonce, nil
}

// CreateAddress recomputes the address for (separator, input, nonce). It fails
// when the combination lands on the ed25519 curve.
func CreateAddress(programID Address, separator []byte, input []byte, nonce uint8) (Address, error) {
	if len(input) > solana.MaxSeedLength {
		return Address{}, ErrSeedTooLong
	}
	addr, err := solana.CreateProgramAddress([][]byte{separator, input, {nonce}}, programID)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: create address: %w", err)
	}
	return addr, nil
}

// VerifyAddress recomputes the derived address and compares it with supplied.
func VerifyAddress(programID Address, separator []byte, input []byte, nonce uint8, supplied Address) error {
	addr, err := CreateAddress(programID, separator, input, nonce)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddressMismatch, err)
	}
	if addr != supplied {
		return ErrAddressMismatch
	}
	return nil
}

// VaultAddress derives a vault account from its creator-chosen path.
func VaultAddress(programID Address, path []byte) (Address, uint8, error) {
	return DeriveAddress(programID, VaultSeed, path)
}

// VaultSignerAddress derives the key-less authority holding a vault's funds.
func VaultSignerAddress(programID Address, vault Address) (Address, uint8, error) {
	return DeriveAddress(programID, VaultSignerSeed, vault[:])
}

// VerifyVaultSigner checks that supplied is the signer authority of vault for
// the stored nonce.
func VerifyVaultSigner(programID Address, vault Address, nonce uint8, supplied Address) error {
	return VerifyAddress(programID, VaultSignerSeed, vault[:], nonce, supplied)
}

// EventSeed hashes a numeric event identifier into a fixed-width seed.
func EventSeed(eventID uint64) [32]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], eventID)
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(buf[:]))
	return out
}

// ScheduleAddress derives the schedule account for an event.
func ScheduleAddress(programID Address, eventID uint64) (Address, uint8, error) {
	seed := EventSeed(eventID)
	return DeriveAddress(programID, ScheduleSeed, seed[:])
}
