package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore records which gateway transaction ids have already been
// processed so that provider retries become no-ops.
type IdempotencyStore interface {
	// Claim atomically records the key if it has not been seen before.
	// It returns true when the caller won the claim and should process the
	// event, false when the event was already handled.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisStore implements IdempotencyStore on Redis so multiple stateless
// service instances share the same view of processed callbacks.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore with the given key prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Claim implements IdempotencyStore via SET NX.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

