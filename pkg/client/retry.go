package client

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy holds the configuration for retry logic. It is a value: copy
// it freely, do not mutate the slices after handing it to a Client.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial request, so a
	// fetch issues at most MaxRetries+1 requests.
	MaxRetries int

	// BackoffBase is the wait before the first retry. Retry n (from 0)
	// waits BackoffBase * 2^n.
	BackoffBase time.Duration

	// MaxBackoff caps a single wait. Zero disables the cap.
	MaxBackoff time.Duration

	// Jitter spreads each wait by ±Jitter (0.2 = ±20%). Zero disables it.
	Jitter float64

	// RetryableStatusCodes are the responses treated as transient.
	RetryableStatusCodes []int

	// RetryableMethods are the idempotent methods that may be retried.
	RetryableMethods []string
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           3,
		BackoffBase:          1 * time.Second,
		MaxBackoff:           30 * time.Second,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
		RetryableMethods:     []string{http.MethodHead, http.MethodGet, http.MethodOptions},
	}
}

// Validate checks the policy for values the retry loop cannot honour.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1 (got %d)", p.MaxRetries)
	}
	if p.BackoffBase < 0 {
		return fmt.Errorf("backoff_base must not be negative (got %v)", p.BackoffBase)
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return fmt.Errorf("jitter must be in [0, 1) (got %v)", p.Jitter)
	}
	return nil
}

// IsRetryableStatus reports whether statusCode is in the retryable set.
func (p RetryPolicy) IsRetryableStatus(statusCode int) bool {
	return slices.Contains(p.RetryableStatusCodes, statusCode)
}

// IsRetryableMethod reports whether requests made with method may be retried.
func (p RetryPolicy) IsRetryableMethod(method string) bool {
	return slices.ContainsFunc(p.RetryableMethods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// Backoff returns the wait before retry n (counted from 0), without jitter.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	backoff := p.BackoffBase
	for i := 0; i < retry; i++ {
		backoff *= 2
		if p.MaxBackoff > 0 && backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

func (p RetryPolicy) jittered(backoff time.Duration) time.Duration {
	if p.Jitter == 0 {
		return backoff
	}
	spread := 1 - p.Jitter + rand.Float64()*2*p.Jitter
	return time.Duration(float64(backoff) * spread)
}

// retryWithBackoff executes fn until it succeeds, fails permanently, or the
// policy runs out of retries. Only failures that report Transient are
// retried, and only when method is retryable.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, policy RetryPolicy, method string, fn func(attempt int) error) error {
	retryable := policy.IsRetryableMethod(method)

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		class := string(errorClassOf(err))

		if !retryable || !isTransient(err) {
			return lastErr
		}

		retry := attempt - 1
		if retry >= policy.MaxRetries {
			break
		}

		retriesTotal.WithLabelValues(class).Inc()

		backoff := policy.jittered(policy.Backoff(retry))
		retryBackoffSeconds.WithLabelValues(class).Observe(backoff.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", class).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	class := string(errorClassOf(lastErr))
	retryExhaustedTotal.WithLabelValues(class).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", class).
		Int("max_retries", policy.MaxRetries).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, policy.MaxRetries+1, lastErr)
}
