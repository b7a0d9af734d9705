package permission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache remembers users already granted search permission.
// Implementations must be safe for concurrent use.
type Cache interface {
	Granted(ctx context.Context, userID string) (bool, error)
	Grant(ctx context.Context, userID string) error
}

// DefaultTTL applies when a cache is built with a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// TTLCache is an in-process Cache with per-entry expiry.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]time.Time // userID -> expiry
	ttl   time.Duration
	now   func() time.Time
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache{
		items: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *TTLCache) Granted(_ context.Context, userID string) (bool, error) {
	c.mu.RLock()
	expiresAt, ok := c.items[userID]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if c.now().After(expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[userID]; ok2 && c.now().After(cur) {
			delete(c.items, userID)
		}
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *TTLCache) Grant(_ context.Context, userID string) error {
	c.mu.Lock()
	c.items[userID] = c.now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

const redisKeyPrefix = "discussion:search-permission:"

// RedisCache shares granted permissions across replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := NewRedisCacheWithClient(redis.NewClient(opts), ttl)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return c, nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(userID string) string {
	return redisKeyPrefix + userID
}

func (c *RedisCache) Granted(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("lookup permission: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) Grant(ctx context.Context, userID string) error {
	if err := c.client.Set(ctx, c.key(userID), "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("save permission: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
