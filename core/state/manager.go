package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"custody/storage"
)

// Manager is a write-buffering view over the node database. Reads fall
// through to the database unless the key was written in this view; Commit
// flushes every buffered write in one atomic batch. A Manager is scoped to one
// unit of work and is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewManager creates a state manager over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := m.deletes[k]; gone {
		return nil, nil
	}
	if v, ok := m.writes[k]; ok {
		return v, nil
	}
	v, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (m *Manager) put(key []byte, value []byte) {
	k := string(key)
	delete(m.deletes, k)
	m.writes[k] = append([]byte(nil), value...)
}

func (m *Manager) del(key []byte) {
	k := string(key)
	delete(m.writes, k)
	m.deletes[k] = struct{}{}
}

// Dirty reports the number of buffered mutations.
func (m *Manager) Dirty() int {
	return len(m.writes) + len(m.deletes)
}

// Commit writes the buffered mutations atomically and resets the view.
func (m *Manager) Commit() error {
	if m.Dirty() == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	keys := make([]string, 0, len(m.writes))
	for k := range m.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), m.writes[k])
	}
	for k := range m.deletes {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.Discard()
	return nil
}

// Discard drops every buffered mutation.
func (m *Manager) Discard() {
	m.writes = make(map[string][]byte)
	m.deletes = make(map[string]struct{})
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so application keys never collide with the
// account namespace.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.put(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
