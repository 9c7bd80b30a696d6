package core

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// accountLocks hands out exclusive, non-blocking claims on account addresses.
// A transaction holds every account it names for its whole duration, so two
// transactions touching the same account never interleave.
type accountLocks struct {
	mu   sync.Mutex
	held map[solana.PublicKey]struct{}
}

func newAccountLocks() *accountLocks {
	return &accountLocks{held: make(map[solana.PublicKey]struct{})}
}

// tryAcquire claims every key or none of them. Duplicate keys are claimed once.
func (l *accountLocks) tryAcquire(keys []solana.PublicKey) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	unique := make([]solana.PublicKey, 0, len(keys))
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		if _, busy := l.held[key]; busy {
			return nil, false
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	for _, key := range unique {
		l.held[key] = struct{}{}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			for _, key := range unique {
				delete(l.held, key)
			}
			l.mu.Unlock()
		})
	}, true
}

func (l *accountLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
