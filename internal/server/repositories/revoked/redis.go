package revoked

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "confide:revoked:"

// RedisRepository keeps the denylist in Redis, leaning on native key TTLs
// for eviction. Useful when the revocation lookup on every authenticated
// request should not touch the primary database.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(token string) string {
	return r.prefix + token
}

func (r *RedisRepository) Insert(ctx context.Context, token, principalID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// already past natural expiry, nothing to deny
		return nil
	}
	if err := r.client.Set(ctx, r.key(token), principalID, ttl).Err(); err != nil {
		return fmt.Errorf("redis denylist: insert failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis denylist: lookup failed: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op: Redis evicts keys by TTL on its own.
func (r *RedisRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
