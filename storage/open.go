package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open creates the database selected by backend under dir.
func Open(backend, dir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendLevelDB:
		return NewLevelDB(filepath.Join(dir, "state"))
	case BackendBolt:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: prepare %s: %w", dir, err)
		}
		return NewBoltDB(filepath.Join(dir, "state.db"), nil)
	case BackendMemory:
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
