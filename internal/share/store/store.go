// Package store persists shared proof packages and the nullifier registry
// that backs replay detection.
package store

import (
	"context"
	"time"

	"privid/internal/share/models"
)

// Store persists share packages.
type Store interface {
	// Put stores a package until its expiry.
	Put(ctx context.Context, pkg *models.Package) error
	// Get returns a package by id, or CodeNotFound. Expired packages are
	// indistinguishable from never-stored ones.
	Get(ctx context.Context, id string) (*models.Package, error)
	// Delete removes a package (holder-initiated revocation).
	Delete(ctx context.Context, id string) error
}

// NullifierTracker records which package first presented each nullifier.
type NullifierTracker interface {
	// Register claims a nullifier for a package and returns the owning
	// package id. First caller wins; later callers see the first owner.
	Register(ctx context.Context, nullifier, packageID string, ttl time.Duration) (string, error)
}
