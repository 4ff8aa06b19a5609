// Package classifier implements C5: rendering a document and its retrieved
// context into a prompt, calling a remote LLM provider under a retry and
// circuit-breaker policy identical in shape to the embedding client's, and
// parsing the response into a severity label, confidence, and rationale.
// When the provider is exhausted or the breaker is open, Classify falls
// back to the keyword classifier in pkg/classifier/fallback.
package classifier

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	"github.com/jordigilh/legal-severity-classifier/pkg/shared/logging"
)

// Provider is the remote LLM contract the classifier wraps. Implementations
// live in provider_anthropic.go, provider_bedrock.go, provider_gemini.go.
type Provider interface {
	GenerateContent(ctx context.Context, modelID, prompt string, temperature float32, maxOutputTokens int) (string, error)
}

// Result is one completed classification call: the parsed response plus
// whether it was produced by the remote provider or the local fallback.
type Result struct {
	Label      domain.Severity
	Confidence float64
	Rationale  string
	Fallback   bool
}

// Classifier is C5.
type Classifier struct {
	provider Provider
	fallback Fallback
	cfg      config.LLMConfig
	retry    config.RetryConfig
	breaker  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// Fallback is the subset of pkg/classifier/fallback.Classifier this
// package depends on, kept as an interface so tests can substitute a
// stub.
type Fallback interface {
	Classify(text string) (domain.Severity, float64, string)
}

// New builds a Classifier around provider and fallback, wiring the retry
// and circuit-breaker policy the same way the embedding client does.
func New(provider Provider, fallback Fallback, cfg config.LLMConfig, retryCfg config.RetryConfig, breakerCfg config.BreakerSettings, logger *logrus.Logger) *Classifier {
	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: uint32(breakerCfg.HalfOpenMaxCalls),
		Timeout:     breakerCfg.RecoveryTimeout.Duration(),
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

	return &Classifier{
		provider: provider,
		fallback: fallback,
		cfg:      cfg,
		retry:    retryCfg,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

// Classify renders req into a prompt, calls the provider under retry, and
// parses the response. When every retry is exhausted (or the breaker is
// open), it degrades to the local fallback classifier rather than
// propagating the error — §4.5's fallback-transparency guarantee.
func (c *Classifier) Classify(ctx context.Context, req Request, renderedContext string) Result {
	prompt := BuildPrompt(req, renderedContext)

	raw, err := c.callWithRetry(ctx, prompt)
	if err == nil {
		return Result{Label: raw.Label, Confidence: raw.Confidence, Rationale: raw.Rationale}
	}

	if c.logger != nil {
		c.logger.WithFields(logging.AIFields("classify", c.cfg.ModelID).Error(err).ToLogrus()).Warn("LLM classification exhausted retries, falling back")
	}
	label, confidence, rationale := c.fallback.Classify(req.Text)
	return Result{Label: label, Confidence: confidence, Rationale: rationale, Fallback: true}
}

func (c *Classifier) callWithRetry(ctx context.Context, prompt string) (RawResponse, error) {
	backoff, err := retry.NewExponential(c.retry.BaseDelay.Duration())
	if err != nil {
		return RawResponse{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to build retry backoff")
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

	var result RawResponse
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, callErr := c.callOnce(ctx, prompt)
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
		return RawResponse{}, err
	}
	return result, nil
}

func (c *Classifier) callOnce(ctx context.Context, prompt string) (RawResponse, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
		defer cancel()
		text, err := c.provider.GenerateContent(timeoutCtx, c.cfg.ModelID, prompt, c.cfg.Temperature, c.cfg.MaxOutputTokens)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseResponse(text)
		if err != nil {
			return nil, err
		}
		return parsed, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return RawResponse{}, apperrors.NewServiceUnavailableError("llm")
		}
		if c.logger != nil {
			c.logger.WithFields(logging.AIFields("generate_content", c.cfg.ModelID).Error(err).ToLogrus()).Warn("LLM call failed")
		}
		return RawResponse{}, classifyProviderError(err)
	}
	resp, ok := out.(RawResponse)
	if !ok {
		return RawResponse{}, apperrors.New(apperrors.ErrorTypeInternal, "LLM provider returned unexpected type")
	}
	return resp, nil
}

func classifyProviderError(err error) error {
	if ae, ok := err.(*apperrors.AppError); ok {
		return ae
	}
	return apperrors.NewUpstreamError("generate_content", err)
}
