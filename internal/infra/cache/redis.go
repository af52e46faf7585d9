package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "acc-permissions:cache:"
	errRedisGetFmt    = "redis cache get %s: %w"
	errRedisSetFmt    = "redis cache set %s: %w"
	errRedisDeleteFmt = "redis cache delete %s: %w"
)

// RedisCache stores string values in Redis so several backend processes
// share one cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client. The caller owns the client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a value. A missing key returns found=false and no error.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf(errRedisGetFmt, key, err)
	}
	return val, true, nil
}

// Set stores value for ttl. A non-positive ttl is a no-op.
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf(errRedisSetFmt, key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf(errRedisDeleteFmt, key, err)
	}
	return nil
}
