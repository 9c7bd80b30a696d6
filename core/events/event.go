package events

import (
	"sync"

	"custody/core/types"
)

// Event represents a structured state change emitted by the node.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Typed is implemented by events that can render themselves as a
// types.Event for receipts and RPC responses.
type Typed interface {
	Event
	Event() *types.Event
}

// Recorder buffers emitted events in order. The processor gives each
// transaction its own Recorder and copies the buffered events into the
// receipt only when the transaction commits.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *Recorder) Emit(evt Event) {
	typed, ok := evt.(Typed)
	if !ok {
		return
	}
	rendered := typed.Event()
	if rendered == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, rendered.Clone())
	r.mu.Unlock()
}

// Events returns a copy of the buffered events.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, *evt.Clone())
	}
	return out
}

// Reset drops every buffered event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Fanout forwards every event to each configured emitter.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
