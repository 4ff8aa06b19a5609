package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// EmbeddingCacheEntry is the durable counterpart to embedding.RedisCache's
// entries: the embedding_cache collection gives the embedding client a
// persistent fallback cache that survives a Redis flush, at the cost of
// higher read latency than Redis.
type EmbeddingCacheEntry struct {
	Key       string    `json:"key"`
	Vector    []float64 `json:"vector"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EmbeddingCacheStore implements embedding.Cache against the
// embedding_cache collection.
type EmbeddingCacheStore struct {
	store  *Store
	logger *logrus.Logger
}

func NewEmbeddingCacheStore(s *Store, logger *logrus.Logger) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{store: s, logger: logger}
}

func (c *EmbeddingCacheStore) Get(ctx context.Context, key string) ([]float64, bool) {
	raw, err := c.store.get(ctx, CollectionEmbeddingCache, key)
	if err != nil {
		return nil, false
	}
	var entry EmbeddingCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Vector, true
}

func (c *EmbeddingCacheStore) Set(ctx context.Context, key string, vector []float64, ttl time.Duration) {
	entry := EmbeddingCacheEntry{Key: key, Vector: vector, ExpiresAt: time.Now().Add(ttl)}
	if err := c.store.put(ctx, CollectionEmbeddingCache, key, entry); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("embedding cache durable write failed, ignoring")
	}
}
