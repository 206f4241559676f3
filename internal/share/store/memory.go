package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"privid/internal/share/models"
	dErrors "privid/pkg/domain-errors"
)

// Memory is an in-process share store.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]*models.Package
	clock func() time.Time
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
		byID:  make(map[string]*models.Package),
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Put stores a package.
func (m *Memory) Put(_ context.Context, pkg *models.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[pkg.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("share package %s already stored", pkg.ID))
	}
	clone := *pkg
	m.byID[pkg.ID] = &clone
	return nil
}

// Get returns a live package by id. Lazily drops expired entries.
func (m *Memory) Get(_ context.Context, id string) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg, ok := m.byID[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("share package %s not found", id))
	}
	if pkg.Expired(m.clock().UTC()) {
		delete(m.byID, id)
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("share package %s not found", id))
	}
	clone := *pkg
	return &clone, nil
}

// Delete removes a package. Deleting an absent package is not an error.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// MemoryNullifiers is an in-process nullifier registry.
type MemoryNullifiers struct {
	mu      sync.Mutex
	entries map[string]nullifierEntry
	clock   func() time.Time
}

type nullifierEntry struct {
	owner     string
	expiresAt time.Time
}

// NewMemoryNullifiers constructs an empty registry.
func NewMemoryNullifiers(clock func() time.Time) *MemoryNullifiers {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryNullifiers{
		entries: make(map[string]nullifierEntry),
		clock:   clock,
	}
}

// Register claims a nullifier, returning the owning package id.
func (m *MemoryNullifiers) Register(_ context.Context, nullifier, packageID string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock().UTC()
	if entry, ok := m.entries[nullifier]; ok && now.Before(entry.expiresAt) {
		return entry.owner, nil
	}
	m.entries[nullifier] = nullifierEntry{owner: packageID, expiresAt: now.Add(ttl)}
	return packageID, nil
}
