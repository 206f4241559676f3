//go:build integration

// Package containers starts throwaway backing services for integration
// tests. Everything here requires a local container runtime and the
// integration build tag.
package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
CREATE TABLE did_documents (
    did         TEXT PRIMARY KEY,
    wallet      TEXT NOT NULL,
    document    JSONB NOT NULL,
    version     BIGINT NOT NULL,
    deactivated BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX did_documents_wallet_idx ON did_documents (wallet);

CREATE TABLE credentials (
    id          TEXT PRIMARY KEY,
    subject     TEXT NOT NULL,
    types       TEXT[] NOT NULL,
    issuer      TEXT NOT NULL,
    issued_at   TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ NOT NULL,
    document    JSONB NOT NULL
);
CREATE INDEX credentials_subject_idx ON credentials (subject);
`

// StartPostgres runs a disposable PostgreSQL with the service schema
// applied and returns an open handle.
func StartPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("privid"),
		tcpostgres.WithUsername("privid"),
		tcpostgres.WithPassword("privid"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))

	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)
	return db
}
