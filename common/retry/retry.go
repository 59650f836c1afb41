// Package retry runs a call repeatedly with exponential backoff until it
// succeeds, the attempt budget is spent, or the context ends.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config bounds one retry loop.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt; each further
	// wait doubles, capped at MaxDelay.
	InitialDelay time.Duration

	// MaxDelay caps the per-attempt wait.
	MaxDelay time.Duration
}

const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
)

// Do calls fn until it returns nil, up to cfg.MaxAttempts times. The last
// attempt's error is returned; a context cancellation is joined onto it
// so callers can distinguish "gave up" from "was stopped".
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		slog.Debug("retry: attempt failed",
			"attempt", attempt, "max", cfg.MaxAttempts, "delay", delay, "err", lastErr)

		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}

		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
