// Package embedding implements C1: turning text into a fixed-dimension
// unit vector via a remote provider, with a TTL cache, a rate limiter, and
// a circuit breaker guarding the remote call.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/shared/logging"
)

// TaskHint tells the provider whether text is being embedded as corpus
// content or as a query against that corpus.
type TaskHint string

const (
	TaskDocument TaskHint = "document"
	TaskQuery TaskHint = "query"
)

// Provider is the remote embedding service contract the client wraps.
type Provider interface {
	EmbedContent(ctx context.Context, modelID, content string, hint TaskHint) ([]float64, error)
}

// Cache is the embedding client's read-through cache (backed by Redis
// in production — see RedisCache).
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool)
	Set(ctx context.Context, key string, vector []float64, ttl time.Duration)
}

// Client is C1: Provider + cache + rate limiter + circuit breaker.
type Client struct {
	provider Provider
	cache Cache
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cfg config.EmbeddingConfig
	retry config.RetryConfig
	logger *logrus.Logger
}

// New builds a Client around provider, wiring the cache/limiter/breaker per cfg.
func New(provider Provider, cache Cache, cfg config.EmbeddingConfig, retryCfg config.RetryConfig, breakerCfg config.BreakerSettings, logger *logrus.Logger) *Client {
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)

	settings := gobreaker.Settings{
		Name: "embedding",
		MaxRequests: uint32(breakerCfg.HalfOpenMaxCalls),
		Timeout: breakerCfg.RecoveryTimeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(breakerCfg.FailureThreshold)
		},
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 3
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}

	if retryCfg.MaxAttempts == 0 {
		retryCfg.MaxAttempts = 5
	}
	if retryCfg.BaseDelay == 0 {
		retryCfg.BaseDelay = config.Duration(2 * time.Second)
	}
	if retryCfg.MaxDelay == 0 {
		retryCfg.MaxDelay = config.Duration(120 * time.Second)
	}

	return &Client{
		provider: provider,
		cache: cache,
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(settings),
		cfg: cfg,
		retry: retryCfg,
		logger: logger,
	}
}

// CacheKey returns sha256(model_id || "\0" || text) hex-encoded.
func CacheKey(modelID, text string) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns text's embedding vector, consulting the cache first and
// falling back to the rate-limited, breaker-guarded, retried remote call.
func (c *Client) Embed(ctx context.Context, text string, hint TaskHint) ([]float64, error) {
	if text == "" {
		return nil, apperrors.NewInvalidInputError("text cannot be empty")
	}

	key := CacheKey(c.cfg.ModelID, text)
	if c.cache != nil {
		if v, ok := c.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeUnavailable, "rate limiter wait canceled")
	}

	vector, err := c.callWithRetry(ctx, text, hint)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, vector, c.cfg.CacheTTL())
	}
	return vector, nil
}

func (c *Client) callWithRetry(ctx context.Context, text string, hint TaskHint) ([]float64, error) {
	backoff, err := retry.NewExponential(c.retry.BaseDelay.Duration())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to build retry backoff")
	}
	maxRetries := uint64(c.retry.MaxAttempts)
	if maxRetries > 0 {
		maxRetries--
	}
	backoff = retry.WithMaxRetries(maxRetries, backoff)
	if jitter := int(c.retry.Jitter * 100); jitter > 0 {
		backoff = retry.WithJitterPercent(uint64(jitter), backoff)
	}
	backoff = retry.WithCappedDuration(c.retry.MaxDelay.Duration(), backoff)

	var result []float64
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, callErr := c.callOnce(ctx, text, hint)
		if callErr != nil {
			if apperrors.IsRetryable(callErr) {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) callOnce(ctx context.Context, text string, hint TaskHint) ([]float64, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
		defer cancel()
		return c.provider.EmbedContent(timeoutCtx, c.cfg.ModelID, text, hint)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperrors.NewServiceUnavailableError("embedding")
		}
		if c.logger != nil {
			c.logger.WithFields(logging.AIFields("embed", c.cfg.ModelID).Error(err).ToLogrus()).Warn("embedding call failed")
		}
		return nil, classifyProviderError(err)
	}
	vec, ok := out.([]float64)
	if !ok {
		return nil, apperrors.New(apperrors.ErrorTypeInternal, "embedding provider returned unexpected type")
	}
	return vec, nil
}

func classifyProviderError(err error) error {
	if ae, ok := err.(*apperrors.AppError); ok {
		return ae
	}
	return apperrors.NewUpstreamError("embed_content", err)
}
