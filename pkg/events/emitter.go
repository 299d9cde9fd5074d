package events

import "sync"

// Emitter delivers stream events to a consumer. Implementations must be
// non-blocking from the caller's perspective and must never return the
// failure to the turn: a dead consumer silently drops events.
type Emitter interface {
	Emit(eventType string, payload any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(eventType string, payload any)

// Emit calls f.
func (f EmitterFunc) Emit(eventType string, payload any) { f(eventType, payload) }

// Nop discards all events. Used by non-streaming entry points (CLI ingest,
// synchronous ask).
var Nop Emitter = EmitterFunc(func(string, any) {})

// Recorder is a test double that captures emitted events in order. Safe for
// concurrent use so fan-out paths can share one instance.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded is one captured emission.
type Recorded struct {
	Type    string
	Payload any
}

// Emit appends the event to the record.
func (r *Recorder) Emit(eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Type: eventType, Payload: payload})
}

// All returns a snapshot of every captured event in emission order.
func (r *Recorder) All() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the captured events with the given type, in order.
func (r *Recorder) OfType(eventType string) []Recorded {
	var out []Recorded
	for _, e := range r.All() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
