package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store on top of an existing Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Get retrieves the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: redis get %s: %v", ErrStoreUnavailable, key, err)
	}
	return value, nil
}

// Put stores value under key without expiry.
func (s *RedisStore) Put(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AcquireLease uses SET NX with a TTL.
func (s *RedisStore) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := s.redis.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis setnx %s: %v", ErrStoreUnavailable, key, err)
	}
	return ok, nil
}

// ReleaseLease deletes key if it still holds owner.
func (s *RedisStore) ReleaseLease(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, s.redis, []string{key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: redis release %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}
