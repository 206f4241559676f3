package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"privid/internal/identity/models"
	dErrors "privid/pkg/domain-errors"
)

// Postgres persists DID records in PostgreSQL. CompareAndPut relies on a
// conditional UPDATE over the version column, so two writers racing on the
// same DID cannot both succeed.
//
// Schema:
//
//	CREATE TABLE did_documents (
//	    did         TEXT PRIMARY KEY,
//	    wallet      TEXT NOT NULL,
//	    document    JSONB NOT NULL,
//	    version     BIGINT NOT NULL,
//	    deactivated BOOLEAN NOT NULL DEFAULT FALSE,
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE UNIQUE INDEX did_documents_wallet_idx ON did_documents (wallet);
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create inserts a new record at version 1.
func (p *Postgres) Create(ctx context.Context, rec *Record) error {
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		INSERT INTO did_documents (did, wallet, document, version, deactivated)
		VALUES ($1, $2, $3, 1, FALSE)
		ON CONFLICT (did) DO NOTHING
	`, string(rec.Document.ID), rec.Wallet, doc)
	if err != nil {
		return fmt.Errorf("insert did document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert did document: %w", err)
	}
	if rows == 0 {
		return dErrors.New(dErrors.CodeConflict, "did already registered")
	}
	return nil
}

// Get returns the current record for a DID.
func (p *Postgres) Get(ctx context.Context, did models.DID) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT wallet, document, version, deactivated
		FROM did_documents
		WHERE did = $1
	`, string(did))
	return scanRecord(row)
}

// GetByWallet returns the record for the DID bound to a wallet address.
func (p *Postgres) GetByWallet(ctx context.Context, wallet string) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT wallet, document, version, deactivated
		FROM did_documents
		WHERE wallet = $1
	`, wallet)
	return scanRecord(row)
}

// CompareAndPut replaces the record only if the version still matches.
func (p *Postgres) CompareAndPut(ctx context.Context, did models.DID, expectedVersion int64, rec *Record) error {
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE did_documents
		SET document = $1, deactivated = $2, version = version + 1, updated_at = now()
		WHERE did = $3 AND version = $4
	`, doc, rec.Deactivated, string(did), expectedVersion)
	if err != nil {
		return fmt.Errorf("update did document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update did document: %w", err)
	}
	if rows == 0 {
		// Either the DID vanished or the version moved under us.
		if _, getErr := p.Get(ctx, did); getErr != nil {
			return getErr
		}
		return dErrors.New(dErrors.CodeConflict, "concurrent modification of did document")
	}
	return nil
}

func scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec Record
		raw []byte
	)
	err := row.Scan(&rec.Wallet, &raw, &rec.Version, &rec.Deactivated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "did not registered")
	}
	if err != nil {
		return nil, fmt.Errorf("scan did document: %w", err)
	}
	if err := json.Unmarshal(raw, &rec.Document); err != nil {
		return nil, fmt.Errorf("unmarshal did document: %w", err)
	}
	return &rec, nil
}
