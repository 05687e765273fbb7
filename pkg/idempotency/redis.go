package idempotency

import (
	"context"
	"errors"
	"time"
)

// redisStore is the subset of pkg/redis.Client used here.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// RedisCache shares seen-keys across processes.
type RedisCache struct {
	store redisStore
}

func NewRedisCache(store redisStore) (*RedisCache, error) {
	if store == nil {
		return nil, errors.New("redis store is required")
	}
	return &RedisCache{store: store}, nil
}

func (c *RedisCache) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.store.SetNX(ctx, c.key(key), "1", ttl)
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.key(key))
}

func (c *RedisCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	return c.store.Set(ctx, c.key(key), "1", ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.store.Del(ctx, c.key(key))
}

func (c *RedisCache) key(key string) string {
	return c.store.IdempotencyKey("", key)
}
