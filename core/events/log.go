package events

import (
	"sync"

	"crosschainloans/core/types"
)

// Carrier is implemented by events that expose their canonical attribute
// payload alongside the type tag.
type Carrier interface {
	EventType() string
	Event() *types.Event
}

// Log is an append-only in-memory audit log. Every successful mutating call
// on the loans engine produces exactly one entry, so the log doubles as the
// protocol's observable event history for RPC consumers.
type Log struct {
	mu      sync.RWMutex
	entries []*types.Event
}

// NewLog returns an empty audit log.
func NewLog() *Log {
	return &Log{}
}

// Emit implements the Emitter interface. Events that do not carry a payload
// are recorded with their type tag only.
func (l *Log) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	record := &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	if carrier, ok := evt.(Carrier); ok {
		if payload := carrier.Event(); payload != nil {
			record = payload
		}
	}
	l.mu.Lock()
	l.entries = append(l.entries, record)
	l.mu.Unlock()
}

// List returns a snapshot of all recorded events in emission order.
func (l *Log) List() []*types.Event {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*types.Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of recorded events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
