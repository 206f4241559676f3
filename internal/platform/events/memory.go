package events

import (
	"context"
	"sync"
)

// Memory is an in-process publisher used in tests and single-node runs.
type Memory struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemory creates an in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit records the event.
func (m *Memory) Emit(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// List returns all recorded events, optionally filtered by type.
func (m *Memory) List(types ...Type) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(types) == 0 {
		out := make([]Event, len(m.events))
		copy(out, m.events)
		return out
	}

	want := make(map[Type]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []Event
	for _, e := range m.events {
		if _, ok := want[e.Type]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
