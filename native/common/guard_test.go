package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil view should not block: %v", err)
	}
	p := NewPauses(" Vault ")
	if err := Guard(p, "vault"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(p, "bank"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	p.Set("vault", false)
	if err := Guard(p, "vault"); err != nil {
		t.Fatalf("module should be resumed: %v", err)
	}
	var nilPauses *Pauses
	if nilPauses.IsPaused("vault") {
		t.Fatalf("nil pauses must report unpaused")
	}
}
