package scorer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryWrapper wraps a Session with retry logic. Every failure, whatever its
// cause, consumes one attempt; only cancellation of ctx stops early.
type RetryWrapper struct {
	session Session
	config  *RetryConfig
	metrics *MetricsRecorder
}

// NewRetryWrapper creates a new retry wrapper around a session
func NewRetryWrapper(session Session, config *RetryConfig) *RetryWrapper {
	if config == nil {
		config = DefaultRetryConfig()
	}

	return &RetryWrapper{
		session: session,
		config:  config,
	}
}

// Score executes the call with retry logic. It returns the last error once
// the attempts are exhausted.
func (w *RetryWrapper) Score(ctx context.Context, line string) (int64, error) {
	var lastErr error
	var attempts int

	backoff := newBackoff(w.config)

	for {
		attempts++

		score, err := w.session.Score(ctx, line)
		if err == nil {
			w.metrics.RecordAttempts(attempts)
			if attempts > 1 {
				slog.Debug("Line scored after retry",
					"attempts", attempts)
			}
			return score, nil
		}

		lastErr = err

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return 0, err
		}

		delay, stop := backoff.Next()
		if stop {
			w.metrics.RecordAttempts(attempts)
			slog.Warn("Max retry attempts reached",
				"attempts", attempts,
				"error", lastErr)
			return 0, lastErr
		}

		slog.Debug("Retrying line after delay",
			"attempt", attempts,
			"delay", delay,
			"error", err)
		w.metrics.RecordRetry()

		// Wait with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}

// Close closes the wrapped session
func (w *RetryWrapper) Close() {
	w.session.Close()
}

// newBackoff returns the waits between attempts: InitialDelay, then double
// the previous wait, MaxAttempts-1 waits in total. No jitter is applied.
func newBackoff(config *RetryConfig) retry.Backoff {
	base := config.InitialDelay
	if base <= 0 {
		base = time.Nanosecond
	}
	retries := 0
	if config.MaxAttempts > 1 {
		retries = config.MaxAttempts - 1
	}
	return retry.WithMaxRetries(uint64(retries), retry.NewExponential(base))
}

// BackoffSchedule lists every wait a line goes through when all of its
// attempts fail. The default config yields [2s 4s].
func BackoffSchedule(config *RetryConfig) []time.Duration {
	if config == nil {
		config = DefaultRetryConfig()
	}
	var schedule []time.Duration
	backoff := newBackoff(config)
	for {
		delay, stop := backoff.Next()
		if stop {
			return schedule
		}
		schedule = append(schedule, delay)
	}
}
