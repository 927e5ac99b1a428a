package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-learn/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	fast := service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return ErrConcurrentUpdate
			}
			return nil
		}, fast)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted retries keep the cause", func(t *testing.T) {
		err := WithRetry(context.Background(), func() error {
			return ErrConcurrentUpdate
		}, fast)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})

	t.Run("non retryable error stops immediately", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: boom, Retryable: false}
		}, fast)
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("retry predicate filters errors", func(t *testing.T) {
		calls := 0
		opts := fast
		opts.RetryIf = IsRetryable
		err := WithRetry(context.Background(), func() error {
			calls++
			return ErrInvalidInput
		}, opts)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		opts := service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Second}
		err := WithRetry(ctx, func() error { return ErrRateLimit }, opts)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrConcurrentUpdate))
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", lvl.String())

	_, err = ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
