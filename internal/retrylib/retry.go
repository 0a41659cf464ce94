// Package retrylib provides exponential-backoff retry execution for
// anything that needs to retry an operation beyond the scheduler's own
// flat retry_delay. No package in this module imports it; the executor
// runs its own retry loop.
package retrylib

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ferrocp/ferrocp/pkg/ferrors"
)

// Config defines backoff behavior.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// OnRetry, if set, runs before each wait between attempts.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a handful of attempts with bounded exponential
// backoff, starting from the same 500ms as the executor's flat retry delay.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes an operation with exponential backoff, retrying only
// errors pkg/ferrors.IsRetryable classifies as retryable.
type Retryer struct {
	cfg Config
}

// New builds a Retryer, filling in zero-valued fields from DefaultConfig.
func New(cfg Config) *Retryer {
	d := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = d.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = d.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = d.Multiplier
	}
	return &Retryer{cfg: cfg}
}

// Do runs fn, retrying on a retryable ferrors.Error until MaxAttempts is
// reached or ctx is cancelled.
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !ferrors.IsRetryable(err) || attempt == r.cfg.MaxAttempts {
			return err
		}

		delay := r.delayFor(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("retry attempts (%d) exhausted: %w", r.cfg.MaxAttempts, lastErr)
}

// delayFor computes exponential backoff with ±20% jitter, capped at MaxDelay.
func (r *Retryer) delayFor(attempt int) time.Duration {
	delay := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}
	if r.cfg.Jitter {
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
