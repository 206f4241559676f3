package store

import (
	"context"
	"fmt"
	"sync"

	"privid/internal/credential/models"
	dErrors "privid/pkg/domain-errors"
)

// Memory is an in-memory Store for tests and single-process deployments.
type Memory struct {
	mu        sync.RWMutex
	byID      map[string]*models.Credential
	bySubject map[string][]string
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:      make(map[string]*models.Credential),
		bySubject: make(map[string][]string),
	}
}

// Put stores a credential.
func (m *Memory) Put(_ context.Context, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[cred.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("credential %s already stored", cred.ID))
	}
	clone := cloneCredential(cred)
	m.byID[cred.ID] = clone
	subject := cred.SubjectDID()
	m.bySubject[subject] = append(m.bySubject[subject], cred.ID)
	return nil
}

// Get returns a credential by id.
func (m *Memory) Get(_ context.Context, id string) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.byID[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("credential %s not found", id))
	}
	return cloneCredential(cred), nil
}

// ListBySubject returns all credentials for a subject in insertion order.
func (m *Memory) ListBySubject(_ context.Context, subject string) ([]*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.bySubject[subject]
	out := make([]*models.Credential, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneCredential(m.byID[id]))
	}
	return out, nil
}

func cloneCredential(c *models.Credential) *models.Credential {
	clone := *c
	clone.Context = append([]string(nil), c.Context...)
	clone.Type = append([]string(nil), c.Type...)
	clone.Subject = make(map[string]any, len(c.Subject))
	for k, v := range c.Subject {
		clone.Subject[k] = v
	}
	if c.Proof != nil {
		p := *c.Proof
		clone.Proof = &p
	}
	return &clone
}
