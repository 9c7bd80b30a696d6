package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"

	"custody/crypto"
)

type Config struct {
	RPCAddress  string    `toml:"RPCAddress"`
	DataDir     string    `toml:"DataDir"`
	GenesisFile string    `toml:"GenesisFile"`
	Environment string    `toml:"Environment"`
	Storage     Storage   `toml:"Storage"`
	RPC         RPC       `toml:"RPC"`
	Logging     Logging   `toml:"Logging"`
	Telemetry   Telemetry `toml:"Telemetry"`
	Vault       Vault     `toml:"Vault"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		RPCAddress: "127.0.0.1:8899",
		DataDir:    "./custody-data",
		Storage:    Storage{Backend: "leveldb"},
		RPC: RPC{
			ReadTimeoutSecs:   10,
			WriteTimeoutSecs:  10,
			RequestsPerMinute: 600,
			Burst:             50,
			MaxBodyBytes:      1 << 20,
		},
		Logging:   Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Telemetry: Telemetry{Endpoint: "localhost:4318"},
		Vault:     Vault{Paused: []string{}},
	}
}

// Load loads the configuration from the given path, creating it with
// defaults when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Vault.Paused == nil {
		cfg.Vault.Paused = []string{}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProgramID resolves the configured vault program identity.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	if strings.TrimSpace(c.Vault.ProgramID) == "" {
		return crypto.DefaultProgramID, nil
	}
	return crypto.ParseAddress(c.Vault.ProgramID)
}

// TokenProgram resolves the canonical token program identity.
func (c *Config) TokenProgram() (solana.PublicKey, error) {
	if strings.TrimSpace(c.Vault.TokenProgram) == "" {
		return solana.TokenProgramID, nil
	}
	return crypto.ParseAddress(c.Vault.TokenProgram)
}

// ResolvePath interprets p relative to DataDir unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
