package utils

import (
	"context"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	// Backoff is the fixed pause between attempts.
	Backoff time.Duration
	Logger  *Logger
	// Retryable classifies errors; nil means IsTransient.
	Retryable func(error) bool
}

// DefaultRetryConfig returns three attempts one second apart.
func DefaultRetryConfig(logger *Logger) *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		Backoff:     time.Second,
		Logger:      logger,
	}
}

// Do executes fn with fixed back-off retry logic. Non-retryable errors are
// returned as-is; exhausting the attempts yields a *TransientUIError.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	_, err := Retry(ctx, r, operationName, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Retry is Do for operations that produce a value.
func Retry[T any](ctx context.Context, r *RetryConfig, operationName string, fn func() (T, error)) (T, error) {
	var zero T
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := r.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn()
		if err == nil {
			if attempt > 1 && r.Logger != nil {
				r.Logger.Debug("[retry] %s succeeded on attempt %d/%d", operationName, attempt, attempts)
			}
			return v, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt < attempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, err, r.Backoff)
			}
			if err := Sleep(ctx, r.Backoff); err != nil {
				return zero, err
			}
		}
	}

	return zero, &TransientUIError{Op: operationName, Attempts: attempts, Err: lastErr}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
