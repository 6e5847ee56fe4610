package capture

import (
	"context"
	"errors"
	"log/slog"
	"syscall"
	"time"
)

const (
	defaultBackoffBase         = 50 * time.Millisecond
	defaultRetryCount          = 3
	defaultMaxCollisionRetries = 3
)

// BackoffConfig defines the retry backoff for transient I/O errors
type BackoffConfig struct {
	Base       time.Duration // Base interval for exponential backoff
	RetryCount int           // Number of retry attempts
}

// DefaultBackoffConfig is the production backoff configuration
var DefaultBackoffConfig = BackoffConfig{
	Base:       defaultBackoffBase,
	RetryCount: defaultRetryCount,
}

// generateBackoffIntervals creates exponential backoff intervals
// For base=50ms, count=3: returns [50ms, 100ms, 200ms]
func generateBackoffIntervals(base time.Duration, count int) []time.Duration {
	intervals := make([]time.Duration, count)
	for i := 0; i < count; i++ {
		intervals[i] = base * time.Duration(1<<i)
	}
	return intervals
}

// isTransient reports whether err is worth retrying unchanged.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINTR)
}

// retryTransient runs op until it succeeds, fails permanently, or the retry
// budget is spent. Collisions are never transient: the caller has to pick a
// new name before trying again.
func retryTransient(ctx context.Context, cfg BackoffConfig, logger *slog.Logger, what string, op func() error) error {
	intervals := generateBackoffIntervals(cfg.Base, cfg.RetryCount)

	var err error
	for attempt := 0; attempt <= cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := intervals[attempt-1]
			logger.Debug("Retrying after transient error", "operation", what, "attempt", attempt+1, "backoff_ms", backoff.Milliseconds(), "error", err)
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(backoff):
			}
		}

		err = op()
		if err == nil || !isTransient(err) {
			return err
		}
	}

	logger.Warn("Giving up after transient errors", "operation", what, "attempts", cfg.RetryCount+1, "error", err)
	return err
}
