package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
)

type fakeProvider struct {
	calls     int32
	failTimes int32
	failErr   error
	vector    []float64
}

func (p *fakeProvider) EmbedContent(_ context.Context, _, _ string, _ TaskHint) ([]float64, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= p.failTimes {
		return nil, p.failErr
	}
	return p.vector, nil
}

func testConfig() config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Provider:      "gemini",
		ModelID:       "text-embedding-004",
		RatePerMinute: 6000,
		CacheTTLDays:  30,
		TimeoutS:      5,
	}
}

func testBreaker() config.BreakerSettings {
	return config.BreakerSettings{
		FailureThreshold: 5,
		RecoveryTimeout:  config.Duration(50 * time.Millisecond),
		HalfOpenMaxCalls: 3,
	}
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   config.Duration(1 * time.Millisecond),
		MaxDelay:    config.Duration(10 * time.Millisecond),
		Jitter:      0,
	}
}

var _ = Describe("Client", func() {
	var (
		logger   *logrus.Logger
		provider *fakeProvider
		cache    *MemoryCache
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		provider = &fakeProvider{vector: []float64{0.1, 0.2, 0.3}}
		cache = NewMemoryCache()
	})

	Describe("CacheKey", func() {
		It("is stable for the same model and text", func() {
			Expect(CacheKey("m", "hello")).To(Equal(CacheKey("m", "hello")))
		})

		It("differs when model or text differ", func() {
			Expect(CacheKey("m1", "hello")).NotTo(Equal(CacheKey("m2", "hello")))
			Expect(CacheKey("m", "hello")).NotTo(Equal(CacheKey("m", "world")))
		})
	})

	Describe("Embed", func() {
		It("rejects empty text", func() {
			c := New(provider, cache, testConfig(), testRetry(), testBreaker(), logger)
			_, err := c.Embed(context.Background(), "", TaskDocument)
			Expect(err).To(HaveOccurred())
			Expect(apperrors.IsType(err, apperrors.ErrorTypeInvalidInput)).To(BeTrue())
		})

		It("returns the provider's vector and populates the cache", func() {
			c := New(provider, cache, testConfig(), testRetry(), testBreaker(), logger)
			vec, err := c.Embed(context.Background(), "hello world", TaskDocument)
			Expect(err).ToNot(HaveOccurred())
			Expect(vec).To(Equal(provider.vector))
			Expect(provider.calls).To(Equal(int32(1)))

			vec2, err := c.Embed(context.Background(), "hello world", TaskDocument)
			Expect(err).ToNot(HaveOccurred())
			Expect(vec2).To(Equal(provider.vector))
			Expect(provider.calls).To(Equal(int32(1)), "second call should be served from cache")
		})

		It("retries retryable provider failures and eventually succeeds", func() {
			provider.failTimes = 2
			provider.failErr = apperrors.NewUpstreamError("embed", errors.New("transient"))
			c := New(provider, cache, testConfig(), testRetry(), testBreaker(), logger)

			vec, err := c.Embed(context.Background(), "retry me", TaskDocument)
			Expect(err).ToNot(HaveOccurred())
			Expect(vec).To(Equal(provider.vector))
			Expect(provider.calls).To(Equal(int32(3)))
		})

		It("does not retry non-retryable provider failures", func() {
			provider.failTimes = 100
			provider.failErr = apperrors.NewInvalidInputError("bad request")
			c := New(provider, cache, testConfig(), testRetry(), testBreaker(), logger)

			_, err := c.Embed(context.Background(), "bad text", TaskDocument)
			Expect(err).To(HaveOccurred())
			Expect(provider.calls).To(Equal(int32(1)))
		})

		It("opens the breaker after consecutive failures and fails fast", func() {
			provider.failTimes = 1000
			provider.failErr = apperrors.NewUpstreamError("embed", errors.New("down"))
			bcfg := testBreaker()
			bcfg.FailureThreshold = 1
			c := New(provider, cache, testConfig(), testRetry(), bcfg, logger)

			_, err := c.Embed(context.Background(), "first", TaskDocument)
			Expect(err).To(HaveOccurred())

			_, err = c.Embed(context.Background(), "second (different cache key)", TaskDocument)
			Expect(err).To(HaveOccurred())
			Expect(apperrors.IsType(err, apperrors.ErrorTypeServiceUnavailable)).To(BeTrue())
		})
	})
})
