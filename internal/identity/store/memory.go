package store

import (
	"context"
	"sync"

	"privid/internal/identity/models"
	dErrors "privid/pkg/domain-errors"
)

// Memory is an in-memory Store for single-process runs and tests.
type Memory struct {
	mu       sync.RWMutex
	byDID    map[models.DID]*Record
	byWallet map[string]models.DID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byDID:    make(map[models.DID]*Record),
		byWallet: make(map[string]models.DID),
	}
}

// Create inserts a new record at version 1.
func (m *Memory) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	did := rec.Document.ID
	if _, exists := m.byDID[did]; exists {
		return dErrors.New(dErrors.CodeConflict, "did already registered")
	}
	stored := cloneRecord(rec)
	stored.Version = 1
	m.byDID[did] = stored
	if rec.Wallet != "" {
		m.byWallet[rec.Wallet] = did
	}
	return nil
}

// Get returns the current record for a DID.
func (m *Memory) Get(_ context.Context, did models.DID) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byDID[did]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "did not registered")
	}
	return cloneRecord(rec), nil
}

// GetByWallet returns the record for the DID bound to a wallet address.
func (m *Memory) GetByWallet(ctx context.Context, wallet string) (*Record, error) {
	m.mu.RLock()
	did, ok := m.byWallet[wallet]
	m.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "no did for wallet")
	}
	return m.Get(ctx, did)
}

// CompareAndPut replaces the record only if the version still matches.
func (m *Memory) CompareAndPut(_ context.Context, did models.DID, expectedVersion int64, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byDID[did]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "did not registered")
	}
	if current.Version != expectedVersion {
		return dErrors.New(dErrors.CodeConflict, "concurrent modification of did document")
	}
	stored := cloneRecord(rec)
	stored.Version = expectedVersion + 1
	m.byDID[did] = stored
	return nil
}

func cloneRecord(rec *Record) *Record {
	out := *rec
	out.Document = *rec.Document.Clone()
	return &out
}
