// ABOUTME: Role caches: a no-op default and a Redis-backed cache
// ABOUTME: Redis entries are JSON-encoded roles with a TTL under a key prefix
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/companion/internal/models"
	"github.com/redis/go-redis/v9"
)

// Cache stores resolved roles by lookup key
type Cache interface {
	Get(ctx context.Context, key string) (*models.Role, bool)
	Set(ctx context.Context, key string, role *models.Role)
	Invalidate(ctx context.Context, keys ...string)
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*models.Role, bool) { return nil, false }
func (NopCache) Set(context.Context, string, *models.Role)        {}
func (NopCache) Invalidate(context.Context, ...string)            {}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// RedisCache caches roles in Redis. Errors degrade to cache misses.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return newRedisCache(rdb, cfg), nil
}

func newRedisCache(rdb *redis.Client, cfg RedisConfig) *RedisCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "companion:role:"
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get returns a cached role
func (c *RedisCache) Get(ctx context.Context, key string) (*models.Role, bool) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var role models.Role
	if err := json.Unmarshal(raw, &role); err != nil {
		return nil, false
	}
	return &role, true
}

// Set stores role under key with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, role *models.Role) {
	raw, err := json.Marshal(role)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(key), raw, c.ttl).Err()
}

// Invalidate drops cached entries
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	_ = c.rdb.Del(ctx, full...).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
