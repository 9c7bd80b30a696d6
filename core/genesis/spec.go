package genesis

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"custody/crypto"
)

// Spec is the YAML genesis document: initial native balances and token
// accounts. A token account is owned either by an explicit identity or by the
// signer authority of the vault derived from VaultPath.
type Spec struct {
	Accounts      []AccountSpec      `yaml:"accounts"`
	TokenAccounts []TokenAccountSpec `yaml:"tokenAccounts"`

	raw []byte
}

type AccountSpec struct {
	Address  string `yaml:"address"`
	Lamports uint64 `yaml:"lamports"`
}

type TokenAccountSpec struct {
	Owner     string `yaml:"owner,omitempty"`
	VaultPath string `yaml:"vaultPath,omitempty"`
	Mint      string `yaml:"mint"`
	Amount    uint64 `yaml:"amount"`
}

// Load reads and validates the genesis file at path.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a genesis document.
func Parse(data []byte) (*Spec, error) {
	spec := new(Spec)
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(spec); err != nil {
		return nil, fmt.Errorf("genesis: decode: %w", err)
	}
	spec.raw = append([]byte(nil), data...)
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks addresses and rejects ambiguous token owners.
func (s *Spec) Validate() error {
	var errs []error
	seen := make(map[string]struct{})
	for i, acc := range s.Accounts {
		if _, err := crypto.ParseAddress(acc.Address); err != nil {
			errs = append(errs, fmt.Errorf("accounts[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[acc.Address]; dup {
			errs = append(errs, fmt.Errorf("accounts[%d]: duplicate address %s", i, acc.Address))
		}
		seen[acc.Address] = struct{}{}
	}
	for i, ta := range s.TokenAccounts {
		if (ta.Owner == "") == (ta.VaultPath == "") {
			errs = append(errs, fmt.Errorf("tokenAccounts[%d]: exactly one of owner or vaultPath required", i))
		}
		if ta.Owner != "" {
			if _, err := crypto.ParseAddress(ta.Owner); err != nil {
				errs = append(errs, fmt.Errorf("tokenAccounts[%d].owner: %w", i, err))
			}
		}
		if len(ta.VaultPath) > solana.MaxSeedLength {
			errs = append(errs, fmt.Errorf("tokenAccounts[%d].vaultPath: %w", i, crypto.ErrSeedTooLong))
		}
		if _, err := crypto.ParseAddress(ta.Mint); err != nil {
			errs = append(errs, fmt.Errorf("tokenAccounts[%d].mint: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("genesis: %w", errors.Join(errs...))
	}
	return nil
}

// ResolveOwner returns the token account owner, deriving the vault signer
// authority under programID when VaultPath is set.
func (t TokenAccountSpec) ResolveOwner(programID solana.PublicKey) (solana.PublicKey, error) {
	if t.Owner != "" {
		return crypto.ParseAddress(t.Owner)
	}
	vault, _, err := crypto.VaultAddress(programID, []byte(t.VaultPath))
	if err != nil {
		return solana.PublicKey{}, err
	}
	signer, _, err := crypto.VaultSignerAddress(programID, vault)
	return signer, err
}
