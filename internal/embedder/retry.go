package embedder

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig controls exponential backoff around a network-backed
// embedding call.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig matches the backoff schedule the engine expects
// from its LLM provider calls: fast first retry, capped growth.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// WithRetry runs fn, retrying on error with exponential backoff until
// MaxRetries is exhausted or ctx is cancelled.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		if err := fn(attempt); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("embedder: failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
