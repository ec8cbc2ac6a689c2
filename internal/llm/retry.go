package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/corpusforge/docrefine/internal/observability"
)

// Retrying decorates a Generator with bounded exponential backoff. Transport
// failures and 5xx responses are retried; client errors and context
// cancellation are not. Both the pruner and the refiner share this wrapper so
// retry policy lives in exactly one place.
type Retrying struct {
	inner       Generator
	maxAttempts int
	baseDelay   time.Duration
	logger      *observability.Logger
}

// RetryConfig holds retry policy settings.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first, default 3
	BaseDelay   time.Duration // first backoff interval, default 1s
}

// NewRetrying wraps gen with the given retry policy.
func NewRetrying(gen Generator, cfg RetryConfig, logger *observability.Logger) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Retrying{
		inner:       gen,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		logger:      logger,
	}
}

// Complete issues the request, retrying retryable failures with jittered
// exponential backoff up to the configured attempt budget.
func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	backoff := retry.NewExponential(r.baseDelay)
	backoff = retry.WithJitter(r.baseDelay/2, backoff)
	backoff = retry.WithMaxRetries(uint64(r.maxAttempts-1), backoff)

	var out string
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		result, err := r.inner.Complete(ctx, req)
		if err == nil {
			out = result
			return nil
		}
		if !isRetryable(ctx, err) {
			return err
		}
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("model request failed, backing off")
		return retry.RetryableError(err)
	})
	return out, err
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// Transport-level failures are assumed transient.
	return true
}
