package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cassa/internal/log"
)

// RedisCache stores JSON-encoded values in Redis under a namespace, so several API
// instances share cached reports and their invalidations.
type RedisCache[T any] struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *log.Logger
}

var _ Cache[int] = (*RedisCache[int])(nil)

// ConnectRedis dials addr and pings it. A failed ping closes the client and returns
// the error; callers fall back to the in-process cache.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisCache[T any](client *redis.Client, namespace string, ttl time.Duration, logger *log.Logger) *RedisCache[T] {
	if logger == nil {
		logger = log.Default(log.ComponentCache)
	}
	return &RedisCache[T]{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.WithComponent(log.ComponentCache),
	}
}

func (c *RedisCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.ErrorContext(ctx, "Redis GET command failed", "key", key, log.FieldError, err)
		}
		return zero, false
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.WarnContext(ctx, "Failed to unmarshal cached value", "key", key, log.FieldError, err)
		return zero, false
	}
	return out, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to marshal value for caching", "key", key, log.FieldError, err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.ErrorContext(ctx, "Redis SET command failed", "key", key, log.FieldError, err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.ErrorContext(ctx, "Redis DEL command failed", "key", key, log.FieldError, err)
	}
}

// DeletePrefix walks matching keys with SCAN and deletes them in batches.
func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	removed := 0
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			c.logger.ErrorContext(ctx, "Redis DEL command failed", "prefix", prefix, log.FieldError, err)
		}
		removed += int(n)
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			flush()
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.ErrorContext(ctx, "Redis SCAN failed", "prefix", prefix, log.FieldError, err)
	}
	flush()
	return removed
}
