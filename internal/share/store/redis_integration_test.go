//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proofmodels "privid/internal/proof/models"
	"privid/internal/share/models"
	dErrors "privid/pkg/domain-errors"
	"privid/pkg/testutil/containers"
)

func redisPackage(id string, ttl time.Duration) *models.Package {
	now := time.Now().UTC()
	return &models.Package{
		ID: id,
		Proof: proofmodels.Proof{
			ID: "proof-" + id,
			Payload: proofmodels.Payload{
				Protocol: proofmodels.Protocol,
				Curve:    proofmodels.Curve,
			},
			Metadata: proofmodels.Metadata{
				ProofType:   "age",
				Nullifier:   "aa" + id,
				GeneratedAt: now,
				ExpiresAt:   now.Add(ttl),
			},
		},
		Audience:  "did:pid:testnet:ffffffffffffffffffffffffffffffff",
		Window:    models.Window24h,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRedisPackages(t *testing.T) {
	client := containers.StartRedis(t)
	st := NewRedis(client)
	ctx := context.Background()

	t.Run("put and get roundtrip", func(t *testing.T) {
		pkg := redisPackage("pkg-1", time.Hour)
		require.NoError(t, st.Put(ctx, pkg))

		got, err := st.Get(ctx, "pkg-1")
		require.NoError(t, err)
		assert.Equal(t, pkg.ID, got.ID)
		assert.Equal(t, pkg.Audience, got.Audience)
		assert.Equal(t, pkg.Window, got.Window)
		assert.Equal(t, pkg.Proof.ID, got.Proof.ID)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := st.Put(ctx, redisPackage("pkg-1", time.Hour))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("already expired package is rejected", func(t *testing.T) {
		err := st.Put(ctx, redisPackage("pkg-expired", -time.Minute))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("package expires with its ttl", func(t *testing.T) {
		require.NoError(t, st.Put(ctx, redisPackage("pkg-short", 1500*time.Millisecond)))

		_, err := st.Get(ctx, "pkg-short")
		require.NoError(t, err)

		time.Sleep(2 * time.Second)
		_, err = st.Get(ctx, "pkg-short")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, st.Put(ctx, redisPackage("pkg-del", time.Hour)))
		require.NoError(t, st.Delete(ctx, "pkg-del"))
		require.NoError(t, st.Delete(ctx, "pkg-del"))

		_, err := st.Get(ctx, "pkg-del")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRedisNullifiers(t *testing.T) {
	client := containers.StartRedis(t)
	tracker := NewRedisNullifiers(client)
	ctx := context.Background()

	t.Run("first claimant owns the nullifier", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-1", "pkg-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)
	})

	t.Run("later claimants see the first owner", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-1", "pkg-b", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)
	})

	t.Run("re-registration by the owner is stable", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-1", "pkg-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)
	})

	t.Run("expired claim can be re-registered", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-2", "pkg-a", time.Second)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)

		time.Sleep(1500 * time.Millisecond)
		owner, err = tracker.Register(ctx, "null-2", "pkg-b", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-b", owner)
	})
}
