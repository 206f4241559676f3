package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"privid/internal/share/models"
	dErrors "privid/pkg/domain-errors"
)

const (
	packageKeyPrefix   = "privid:share:package:"
	nullifierKeyPrefix = "privid:share:nullifier:"
)

// Redis is a share store backed by a shared Redis. Package expiry rides on
// Redis TTLs, so expired packages disappear without a sweeper.
type Redis struct {
	client goredis.Cmdable
	clock  func() time.Time
}

// NewRedis wraps a Redis client.
func NewRedis(client goredis.Cmdable) *Redis {
	return &Redis{client: client, clock: time.Now}
}

// Put stores a package with a TTL derived from its expiry.
func (r *Redis) Put(ctx context.Context, pkg *models.Package) error {
	ttl := time.Until(pkg.ExpiresAt)
	if ttl <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "share package already expired")
	}
	raw, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("share: marshal package %s: %w", pkg.ID, err)
	}
	ok, err := r.client.SetNX(ctx, packageKeyPrefix+pkg.ID, raw, ttl).Result()
	if err != nil {
		return fmt.Errorf("share: store package %s: %w", pkg.ID, err)
	}
	if !ok {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("share package %s already stored", pkg.ID))
	}
	return nil
}

// Get returns a live package by id.
func (r *Redis) Get(ctx context.Context, id string) (*models.Package, error) {
	raw, err := r.client.Get(ctx, packageKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("share package %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("share: get package %s: %w", id, err)
	}
	var pkg models.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("share: decode package %s: %w", id, err)
	}
	return &pkg, nil
}

// Delete removes a package.
func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, packageKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("share: delete package %s: %w", id, err)
	}
	return nil
}

// RedisNullifiers is a nullifier registry on shared Redis.
type RedisNullifiers struct {
	client goredis.Cmdable
}

// NewRedisNullifiers wraps a Redis client.
func NewRedisNullifiers(client goredis.Cmdable) *RedisNullifiers {
	return &RedisNullifiers{client: client}
}

// Register claims a nullifier via SETNX; the stored value is the first
// claimant's package id.
func (n *RedisNullifiers) Register(ctx context.Context, nullifier, packageID string, ttl time.Duration) (string, error) {
	key := nullifierKeyPrefix + nullifier
	ok, err := n.client.SetNX(ctx, key, packageID, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("share: register nullifier: %w", err)
	}
	if ok {
		return packageID, nil
	}
	owner, err := n.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		// Owner expired between SETNX and GET; retry claims it.
		return n.Register(ctx, nullifier, packageID, ttl)
	}
	if err != nil {
		return "", fmt.Errorf("share: read nullifier owner: %w", err)
	}
	return owner, nil
}
