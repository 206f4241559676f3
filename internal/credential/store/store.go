// Package store persists issued credentials. Credentials are immutable:
// there is no update path, only Put of new documents.
package store

import (
	"context"

	"privid/internal/credential/models"
)

// Store is the credential persistence interface.
type Store interface {
	// Put stores a credential. Re-storing an existing id is a conflict.
	Put(ctx context.Context, cred *models.Credential) error
	// Get returns a credential by id, or CodeNotFound.
	Get(ctx context.Context, id string) (*models.Credential, error)
	// ListBySubject returns all credentials whose subject id matches.
	ListBySubject(ctx context.Context, subject string) ([]*models.Credential, error)
}
