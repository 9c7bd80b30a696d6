package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var knownModules = map[string]struct{}{
	"vault": {},
	"bank":  {},
}

// Validate rejects configurations the node cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.RPCAddress); err != nil {
		errs = append(errs, fmt.Errorf("RPCAddress %q: %w", cfg.RPCAddress, err))
	}
	switch strings.ToLower(cfg.Storage.Backend) {
	case "leveldb", "bolt":
		if strings.TrimSpace(cfg.DataDir) == "" {
			errs = append(errs, fmt.Errorf("DataDir required for %s storage", cfg.Storage.Backend))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("Storage.Backend %q: want leveldb, bolt or memory", cfg.Storage.Backend))
	}
	if cfg.RPC.RequestsPerMinute < 0 || cfg.RPC.Burst < 0 {
		errs = append(errs, errors.New("RPC rate limits must not be negative"))
	}
	if cfg.RPC.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("RPC.MaxBodyBytes must be positive"))
	}
	for _, proxy := range cfg.RPC.TrustedProxies {
		if net.ParseIP(strings.TrimSpace(proxy)) == nil {
			errs = append(errs, fmt.Errorf("RPC.TrustedProxies: invalid IP %q", proxy))
		}
	}
	if _, err := cfg.ProgramID(); err != nil {
		errs = append(errs, fmt.Errorf("Vault.ProgramID: %w", err))
	}
	if _, err := cfg.TokenProgram(); err != nil {
		errs = append(errs, fmt.Errorf("Vault.TokenProgram: %w", err))
	}
	for _, module := range cfg.Vault.Paused {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			errs = append(errs, fmt.Errorf("Vault.Paused: unknown module %q", module))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
