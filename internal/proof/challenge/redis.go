package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	dErrors "privid/pkg/domain-errors"
)

const (
	issuedKeyPrefix   = "privid:challenge:issued:"
	consumedKeyPrefix = "privid:challenge:consumed:"

	// consumedRetention keeps spent nonces around long enough to tell a
	// replay apart from an expired nonce.
	consumedRetention = time.Hour
)

// Redis is a challenge store backed by a shared Redis, for multi-node
// deployments where any node may consume a nonce issued by another.
type Redis struct {
	client goredis.Cmdable
}

// NewRedis wraps a Redis client.
func NewRedis(client goredis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Issue mints a fresh challenge with a server-side TTL.
func (r *Redis) Issue(ctx context.Context, audience string, ttl time.Duration) (*Challenge, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	ch := &Challenge{
		Nonce:     nonce,
		Audience:  audience,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("challenge: marshal: %w", err)
	}
	if err := r.client.Set(ctx, issuedKeyPrefix+nonce, raw, ttl).Err(); err != nil {
		return nil, fmt.Errorf("challenge: store nonce: %w", err)
	}
	return ch, nil
}

// Consume atomically spends a nonce via GETDEL, then records it as consumed
// so a replay within the retention window is distinguishable.
func (r *Redis) Consume(ctx context.Context, nonce string) (*Challenge, error) {
	if err := ValidateNonce(nonce); err != nil {
		return nil, err
	}

	raw, err := r.client.GetDel(ctx, issuedKeyPrefix+nonce).Bytes()
	if errors.Is(err, goredis.Nil) {
		spent, serr := r.client.Exists(ctx, consumedKeyPrefix+nonce).Result()
		if serr == nil && spent > 0 {
			return nil, dErrors.New(dErrors.CodeReplayed, "challenge nonce already consumed")
		}
		return nil, dErrors.New(dErrors.CodeExpired, "challenge nonce unknown or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("challenge: consume nonce: %w", err)
	}

	var ch Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("challenge: decode stored nonce: %w", err)
	}
	if err := r.client.Set(ctx, consumedKeyPrefix+nonce, "1", consumedRetention).Err(); err != nil {
		return nil, fmt.Errorf("challenge: mark nonce consumed: %w", err)
	}
	return &ch, nil
}
