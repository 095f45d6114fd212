package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gamata/fitness-core/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// RedisCache provides caching functionality using Redis
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	slog.Info("redis connection established", "addr", opt.Addr)
	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "fitness:cache:"}
}

// Set stores a value in cache with expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, expiration).Err()
}

// Get retrieves a value from cache. A miss returns redis.Nil.
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client, shared with the lock package.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// GetOrSet retrieves a value from cache, or calls fn to fetch and cache it.
// Cache failures never fail the call; fn's error does.
func GetOrSet[T any](c *RedisCache, ctx context.Context, key string, expiration time.Duration, fn func() (T, error)) (T, error) {
	var result T

	err := c.Get(ctx, key, &result)
	switch {
	case err == nil:
		metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheHit).Inc()
		return result, nil
	case errors.Is(err, redis.Nil):
		metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheError).Inc()
		slog.Warn("cache read failed", "key", key, "error", err)
	}

	result, err = fn()
	if err != nil {
		return result, err
	}

	if err := c.Set(ctx, key, result, expiration); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
	return result, nil
}
