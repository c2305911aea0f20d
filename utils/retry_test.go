package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond, Logger: Discard()}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), quickRetry(), "rows", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("table: %w", ErrElementNotFound)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustionIsTyped(t *testing.T) {
	calls := 0
	err := quickRetry().Do(context.Background(), "next-button", func() error {
		calls++
		return ErrStaleElement
	})

	var tErr *TransientUIError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "next-button", tErr.Op)
	assert.Equal(t, 3, tErr.Attempts)
	assert.ErrorIs(t, err, ErrStaleElement)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonTransientError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := quickRetry().Do(context.Background(), "open", func() error {
		calls++
		return boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryCustomClassifier(t *testing.T) {
	boom := errors.New("boom")
	r := quickRetry()
	r.Retryable = func(err error) bool { return errors.Is(err, boom) }

	calls := 0
	err := r.Do(context.Background(), "custom", func() error {
		calls++
		return boom
	})

	var tErr *TransientUIError
	assert.ErrorAs(t, err, &tErr)
	assert.Equal(t, 3, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 5, Backoff: time.Hour, Logger: Discard()}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "slow", func() error {
			calls++
			return ErrElementNotFound
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not return after cancellation")
	}
}
