package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxFailures uint32        = 5
	defaultOpenTimeout time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker placed in front of a
// Provider.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// BreakerProvider wraps a Provider so repeated failures open the circuit
// and subsequent calls fail fast instead of piling onto a struggling
// backend. Extraction workers see this as just another Provider.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[Completion]
}

func NewBreakerProvider(inner Provider, cfg BreakerConfig) *BreakerProvider {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	cb := gobreaker.NewCircuitBreaker[Completion](gobreaker.Settings{
		Name:        "llm:" + inner.ProviderName(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BreakerProvider{inner: inner, breaker: cb}
}

func (b *BreakerProvider) ProviderName() string { return b.inner.ProviderName() }
func (b *BreakerProvider) Model() string        { return b.inner.Model() }
func (b *BreakerProvider) SupportsAUDN() bool   { return b.inner.SupportsAUDN() }

func (b *BreakerProvider) Complete(ctx context.Context, system, user string) (Completion, error) {
	out, err := b.breaker.Execute(func() (Completion, error) {
		return b.inner.Complete(ctx, system, user)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return Completion{}, fmt.Errorf("llm: provider %q circuit open: %w", b.inner.ProviderName(), err)
		}
		return Completion{}, err
	}
	return out, nil
}

func (b *BreakerProvider) HealthCheck(ctx context.Context) bool {
	return b.inner.HealthCheck(ctx)
}

// State reports the breaker's current state for diagnostics.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}
