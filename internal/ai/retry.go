package ai

import (
	"context"
	"log/slog"
	"time"
)

// Retry runs fn until it succeeds, fails with a non-retryable error, or
// cfg.MaxRetries attempts are used. The delay doubles after every attempt
// (base * 2^(attempt-1)) and waiting stops as soon as ctx is done.
func Retry(ctx context.Context, cfg ProviderConfig, logger *slog.Logger, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		logger.Info("retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}
