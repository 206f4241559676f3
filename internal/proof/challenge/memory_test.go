package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "privid/pkg/domain-errors"
)

func TestMemoryIssueConsume(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	ch, err := store.Issue(ctx, "verifier.example", 0)
	require.NoError(t, err)
	assert.Len(t, ch.Nonce, NonceSize*2)
	assert.Equal(t, now.Add(DefaultTTL), ch.ExpiresAt)

	got, err := store.Consume(ctx, ch.Nonce)
	require.NoError(t, err)
	assert.Equal(t, "verifier.example", got.Audience)
}

func TestMemoryConsumeTwiceIsReplay(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ch, err := store.Issue(ctx, "verifier.example", time.Minute)
	require.NoError(t, err)

	_, err = store.Consume(ctx, ch.Nonce)
	require.NoError(t, err)

	_, err = store.Consume(ctx, ch.Nonce)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeReplayed))
}

func TestMemoryConsumeUnknownNonce(t *testing.T) {
	store := NewMemory()
	nonce, err := NewNonce()
	require.NoError(t, err)

	_, err = store.Consume(context.Background(), nonce)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
}

func TestMemoryConsumeExpiredNonce(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := NewMemory(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	ch, err := store.Issue(ctx, "verifier.example", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Consume(ctx, ch.Nonce)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
}

func TestValidateNonce(t *testing.T) {
	good, err := NewNonce()
	require.NoError(t, err)
	assert.NoError(t, ValidateNonce(good))

	for _, bad := range []string{"", "zz", "abcd", good + "00"} {
		err := ValidateNonce(bad)
		require.Error(t, err, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}
