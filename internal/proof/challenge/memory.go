package challenge

import (
	"context"
	"sync"
	"time"

	dErrors "privid/pkg/domain-errors"
)

// Memory is an in-process challenge store.
type Memory struct {
	mu       sync.Mutex
	issued   map[string]*Challenge
	consumed map[string]struct{}
	clock    func() time.Time
}

// MemoryOption configures the memory store.
type MemoryOption func(*Memory)

// WithClock injects a clock for tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMemory constructs an empty memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		issued:   make(map[string]*Challenge),
		consumed: make(map[string]struct{}),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Issue mints a fresh challenge.
func (m *Memory) Issue(_ context.Context, audience string, ttl time.Duration) (*Challenge, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	ch := &Challenge{
		Nonce:     nonce,
		Audience:  audience,
		ExpiresAt: m.clock().UTC().Add(ttl),
	}
	m.mu.Lock()
	m.issued[nonce] = ch
	m.mu.Unlock()
	return ch, nil
}

// Consume spends a nonce exactly once.
func (m *Memory) Consume(_ context.Context, nonce string) (*Challenge, error) {
	if err := ValidateNonce(nonce); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, replayed := m.consumed[nonce]; replayed {
		return nil, dErrors.New(dErrors.CodeReplayed, "challenge nonce already consumed")
	}
	ch, ok := m.issued[nonce]
	if !ok {
		return nil, dErrors.New(dErrors.CodeExpired, "challenge nonce unknown or expired")
	}
	if m.clock().After(ch.ExpiresAt) {
		delete(m.issued, nonce)
		return nil, dErrors.New(dErrors.CodeExpired, "challenge nonce unknown or expired")
	}
	delete(m.issued, nonce)
	m.consumed[nonce] = struct{}{}
	return ch, nil
}
