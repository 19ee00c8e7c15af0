package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the durable shared counter store. It speaks the minimal
// INCR/EXPIRE/TTL surface, so any store exposing those three commands is a
// valid backend.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client; its lifecycle is managed by the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr increments the window counter. The first increment in a window sets
// the expiry to the window length; the reset time is always read back from
// the store's TTL rather than recomputed locally.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", key, err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl < 0 {
		// Counter exists without expiry: the EXPIRE after a prior first
		// increment was lost. Re-arm rather than let the key live forever.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("re-arm expire %s: %w", key, err)
		}
		ttl = window
	}

	return count, time.Now().Add(ttl), nil
}
