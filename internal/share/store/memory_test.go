package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proofmodels "privid/internal/proof/models"
	"privid/internal/share/models"
	dErrors "privid/pkg/domain-errors"
)

var memNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func memPackage(id string, ttl time.Duration) *models.Package {
	return &models.Package{
		ID: id,
		Proof: proofmodels.Proof{
			ID: "proof-" + id,
			Metadata: proofmodels.Metadata{
				ProofType: "age",
				Nullifier: "aa" + id,
			},
		},
		Audience:  "did:pid:testnet:ffffffffffffffffffffffffffffffff",
		Window:    models.Window24h,
		CreatedAt: memNow,
		ExpiresAt: memNow.Add(ttl),
	}
}

func TestMemoryPackages(t *testing.T) {
	clock := &stepClock{now: memNow}
	st := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, memPackage("pkg-1", time.Hour)))

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := st.Put(ctx, memPackage("pkg-1", time.Hour))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("get roundtrips", func(t *testing.T) {
		got, err := st.Get(ctx, "pkg-1")
		require.NoError(t, err)
		assert.Equal(t, "pkg-1", got.ID)
		assert.Equal(t, models.Window24h, got.Window)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := st.Get(ctx, "missing")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("expired package reads as not found", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		_, err := st.Get(ctx, "pkg-1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, st.Put(ctx, memPackage("pkg-2", 24*time.Hour)))
		require.NoError(t, st.Delete(ctx, "pkg-2"))
		require.NoError(t, st.Delete(ctx, "pkg-2"))

		_, err := st.Get(ctx, "pkg-2")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestMemoryNullifiers(t *testing.T) {
	clock := &stepClock{now: memNow}
	tracker := NewMemoryNullifiers(clock.Now)
	ctx := context.Background()

	t.Run("first claimant wins", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-1", "pkg-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)

		owner, err = tracker.Register(ctx, "null-1", "pkg-b", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)
	})

	t.Run("owner re-registration is stable", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-1", "pkg-a", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-a", owner)
	})

	t.Run("expired claim is reclaimable", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		owner, err := tracker.Register(ctx, "null-1", "pkg-b", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-b", owner)
	})

	t.Run("distinct nullifiers are independent", func(t *testing.T) {
		owner, err := tracker.Register(ctx, "null-2", "pkg-c", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "pkg-c", owner)
	})
}
