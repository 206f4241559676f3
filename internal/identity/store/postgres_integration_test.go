//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privid/internal/identity/models"
	dErrors "privid/pkg/domain-errors"
	"privid/pkg/testutil/containers"
)

func pgRecord(did models.DID, wallet string) *Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &Record{
		Document: models.Document{
			Context: []string{"https://www.w3.org/ns/did/v1"},
			ID:      did,
			Created: now,
			Updated: now,
		},
		Wallet:  wallet,
		Version: 1,
	}
}

func TestPostgresLifecycle(t *testing.T) {
	db := containers.StartPostgres(t)
	st := NewPostgres(db)
	ctx := context.Background()

	did := models.DID("did:pid:testnet:0123456789abcdef0123456789abcdef")
	wallet := "0xabc0000000000000000000000000000000000001"
	require.NoError(t, st.Create(ctx, pgRecord(did, wallet)))

	t.Run("duplicate create conflicts", func(t *testing.T) {
		err := st.Create(ctx, pgRecord(did, wallet))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("get roundtrips", func(t *testing.T) {
		rec, err := st.Get(ctx, did)
		require.NoError(t, err)
		assert.Equal(t, did, rec.Document.ID)
		assert.Equal(t, int64(1), rec.Version)
	})

	t.Run("get by wallet", func(t *testing.T) {
		rec, err := st.GetByWallet(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, did, rec.Document.ID)
	})

	t.Run("unknown did is not found", func(t *testing.T) {
		_, err := st.Get(ctx, "did:pid:testnet:ffffffffffffffffffffffffffffffff")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("compare and put advances version", func(t *testing.T) {
		rec, err := st.Get(ctx, did)
		require.NoError(t, err)
		rec.Document.Controller = "did:pid:testnet:ffffffffffffffffffffffffffffffff"

		require.NoError(t, st.CompareAndPut(ctx, did, rec.Version, rec))

		updated, err := st.Get(ctx, did)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, rec.Document.Controller, updated.Document.Controller)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		rec, err := st.Get(ctx, did)
		require.NoError(t, err)

		err = st.CompareAndPut(ctx, did, rec.Version-1, rec)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("deactivation persists", func(t *testing.T) {
		rec, err := st.Get(ctx, did)
		require.NoError(t, err)
		rec.Deactivated = true

		require.NoError(t, st.CompareAndPut(ctx, did, rec.Version, rec))
		got, err := st.Get(ctx, did)
		require.NoError(t, err)
		assert.True(t, got.Deactivated)
	})
}

func TestPostgresCASSingleWinner(t *testing.T) {
	db := containers.StartPostgres(t)
	st := NewPostgres(db)
	ctx := context.Background()

	did := models.DID("did:pid:testnet:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, st.Create(ctx, pgRecord(did, "0xabc0000000000000000000000000000000000002")))

	base, err := st.Get(ctx, did)
	require.NoError(t, err)

	const writers = 8
	wins := make(chan bool, writers)
	for i := 0; i < writers; i++ {
		go func() {
			rec := *base
			wins <- st.CompareAndPut(ctx, did, base.Version, &rec) == nil
		}()
	}

	won := 0
	for i := 0; i < writers; i++ {
		if <-wins {
			won++
		}
	}
	assert.Equal(t, 1, won)
}
