package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"privid/internal/credential/models"
	dErrors "privid/pkg/domain-errors"
)

// Postgres stores credentials in a relational table.
//
// Expected schema:
//
//	CREATE TABLE credentials (
//	    id          TEXT PRIMARY KEY,
//	    subject     TEXT NOT NULL,
//	    types       TEXT[] NOT NULL,
//	    issuer      TEXT NOT NULL,
//	    issued_at   TIMESTAMPTZ NOT NULL,
//	    expires_at  TIMESTAMPTZ NOT NULL,
//	    document    JSONB NOT NULL
//	);
//	CREATE INDEX credentials_subject_idx ON credentials (subject);
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Put inserts a credential. An existing id is a conflict, never an overwrite.
func (p *Postgres) Put(ctx context.Context, cred *models.Credential) error {
	doc, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential %s: %w", cred.ID, err)
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO credentials (id, subject, types, issuer, issued_at, expires_at, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		cred.ID,
		cred.SubjectDID(),
		pq.Array(cred.Type),
		cred.Issuer,
		cred.IssuanceDate.UTC(),
		cred.ExpirationDate.UTC(),
		doc,
	)
	if err != nil {
		return fmt.Errorf("insert credential %s: %w", cred.ID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential %s: %w", cred.ID, err)
	}
	if rows == 0 {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("credential %s already stored", cred.ID))
	}
	return nil
}

// Get returns a credential by id.
func (p *Postgres) Get(ctx context.Context, id string) (*models.Credential, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT document FROM credentials WHERE id = $1`, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("credential %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("select credential %s: %w", id, err)
	}
	return decodeCredential(doc)
}

// ListBySubject returns all credentials for a subject, oldest first.
func (p *Postgres) ListBySubject(ctx context.Context, subject string) ([]*models.Credential, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT document FROM credentials WHERE subject = $1 ORDER BY issued_at, id`, subject,
	)
	if err != nil {
		return nil, fmt.Errorf("select credentials for %s: %w", subject, err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		cred, err := decodeCredential(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential rows: %w", err)
	}
	return out, nil
}

func decodeCredential(doc []byte) (*models.Credential, error) {
	var cred models.Credential
	if err := json.Unmarshal(doc, &cred); err != nil {
		return nil, fmt.Errorf("decode stored credential: %w", err)
	}
	cred.IssuanceDate = cred.IssuanceDate.In(time.UTC)
	cred.ExpirationDate = cred.ExpirationDate.In(time.UTC)
	return &cred, nil
}
