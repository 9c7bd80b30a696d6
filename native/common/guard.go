package common

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects work for a paused module.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}

// Pauses is a concurrency-safe PauseView seeded from configuration and
// toggled at runtime.
type Pauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewPauses(modules ...string) *Pauses {
	p := &Pauses{paused: make(map[string]bool)}
	for _, m := range modules {
		p.Set(m, true)
	}
	return p
}

func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[normalize(module)]
}

func (p *Pauses) Set(module string, paused bool) {
	key := normalize(module)
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused {
		p.paused[key] = true
		return
	}
	delete(p.paused, key)
}

func normalize(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
