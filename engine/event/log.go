package event

import (
	"sync"
	"time"
)

// Emitter is the capability consumers of the event log depend on: emit a
// kind, get back the id it was assigned.
type Emitter interface {
	Emit(kind EventKind) uint64
}

// Log is an append-only, ordered collection of Events. Emission is safe
// under concurrent callers and preserves total order: event id equals
// insertion order.
type Log struct {
	mu     sync.Mutex
	events []Event
	nextID uint64
}

// NewLog constructs an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Emit assigns the next monotone id, stamps the current time, appends the
// envelope, and returns the assigned id.
func (l *Log) Emit(kind EventKind) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.events = append(l.events, Event{
		ID:          id,
		TimestampMs: time.Now().UnixMilli(),
		Kind:        kind,
	})
	return id
}

// Events returns a snapshot copy of the envelopes recorded so far.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of events recorded, O(1).
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// NoopEmitter discards every event and always reports id 0. Used by tests
// and components that do not need a real audit trail.
type NoopEmitter struct{}

func (NoopEmitter) Emit(EventKind) uint64 { return 0 }

var _ Emitter = (*Log)(nil)
var _ Emitter = NoopEmitter{}
