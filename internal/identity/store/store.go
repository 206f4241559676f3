// Package store persists DID document records. Mutations go through
// compare-and-swap on a version counter so concurrent update/rotation on the
// same DID cannot interleave: single-writer-per-DID via optimistic
// concurrency.
package store

import (
	"context"

	"privid/internal/identity/models"
)

// Record is a stored DID document plus its concurrency and lifecycle state.
type Record struct {
	Document    models.Document
	Wallet      string
	Version     int64
	Deactivated bool
}

// Store is the persistence contract for the registry. Implementations return
// domain errors: CodeNotFound for missing DIDs, CodeConflict for create
// collisions and CAS version mismatches.
type Store interface {
	// Create inserts a new record at version 1.
	Create(ctx context.Context, rec *Record) error

	// Get returns the current record for a DID.
	Get(ctx context.Context, did models.DID) (*Record, error)

	// GetByWallet returns the record for the DID bound to a wallet address.
	GetByWallet(ctx context.Context, wallet string) (*Record, error)

	// CompareAndPut replaces the record only if the stored version still
	// equals expectedVersion, then stores rec with Version=expectedVersion+1.
	CompareAndPut(ctx context.Context, did models.DID, expectedVersion int64, rec *Record) error
}
