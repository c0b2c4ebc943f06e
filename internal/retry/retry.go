package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Config bounds a retried operation. Timeout applies to each attempt.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

// Default matches the backoff used for source fetches: 3 retries from 1s, doubling.
func Default() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    60 * time.Second,
	}
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so WithRetry returns it immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// WithRetry runs operation until it succeeds, the retries are exhausted, or ctx ends.
func WithRetry[T any](ctx context.Context, config Config, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	logger := zerolog.Ctx(ctx)

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		opCtx, cancel := attemptContext(ctx, config.Timeout)
		result, err := operation(opCtx)
		cancel()

		if err == nil {
			return result, nil
		}

		if perm, ok := err.(*Permanent); ok {
			return zero, perm.Err
		}
		if config.Retryable != nil && !config.Retryable(err) {
			return zero, err
		}

		logger.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Msg("Operation failed")

		if attempt < config.MaxRetries {
			delay := backoffDelay(attempt, config.BaseDelay, config.MaxDelay)
			logger.Debug().
				Dur("delay", delay).
				Int("next_attempt", attempt+2).
				Msg("Retrying after delay")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
				continue
			}
		}
		return zero, fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, err)
	}
	return zero, fmt.Errorf("unexpected: exceeded retry loop")
}

func attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func backoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	safeAttempt := min(attempt, 30)
	delay := time.Duration(1<<safeAttempt) * baseDelay
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	// jitter between 0.5x and 1.5x
	delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
