package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cascadehq/cascaderouter/core"
)

// RetryConfig shapes the backoff schedule: attempt n waits
// InitialDelay × BackoffFactor^(n-1), capped at MaxDelay, with up to 10%
// random jitter when JitterEnabled so concurrent retriers do not
// synchronize.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig is the schedule used for provider calls.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// delay computes the wait before attempt (1-based, so attempt 1 retries
// after InitialDelay).
func (c *RetryConfig) delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.BackoffFactor)
		if d >= c.MaxDelay {
			d = c.MaxDelay
			break
		}
	}
	if c.JitterEnabled && d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/10 + 1))
	}
	return d
}

// Retry runs fn until it succeeds, config.MaxAttempts is exhausted, or ctx
// is done. The exhausted-attempts error is reported as provider_transient:
// each individual failure was retryable, the aggregate still is.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == config.MaxAttempts {
			break
		}

		timer := time.NewTimer(config.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return core.NewError(core.KindProviderTransient, "resilience.Retry", lastErr).
		WithStep(fmt.Sprintf("exhausted %d attempts", config.MaxAttempts))
}

// RetryWithCircuitBreaker routes each attempt through cb, so a breaker
// that opens mid-schedule short-circuits the remaining attempts.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}
