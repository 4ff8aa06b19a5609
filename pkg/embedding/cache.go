package embedding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisCache is the production Cache backend: cache read failures degrade
// silently to a miss; cache write failures are logged and ignored.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
	prefix string
}

// NewRedisCache wraps an existing redis client as an embedding Cache.
func NewRedisCache(client *redis.Client, logger *logrus.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger, prefix: "embed:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float64, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float64, ttl time.Duration) {
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("embedding cache write failed, ignoring")
	}
}

// MemoryCache is a process-local, dependency-free Cache used in tests and
// as the single-process deployment fallback.
type MemoryCache struct {
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	vector    []float64
	expiresAt time.Time
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float64, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.vector, true
}

func (c *MemoryCache) Set(_ context.Context, key string, vector []float64, ttl time.Duration) {
	c.entries[key] = memoryCacheEntry{vector: vector, expiresAt: time.Now().Add(ttl)}
}
