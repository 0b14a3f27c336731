package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/spice-tally/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := Retry(context.Background(), fastRetry(3), nil, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errBoom
			}
			return "debited", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "debited", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), fastRetry(2), nil, func(context.Context) (int, error) {
			calls++
			return 0, errBoom
		})
		require.ErrorIs(t, err, ErrMaxRetries)
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 2, calls)
	})

	t.Run("single attempt returns error unchanged", func(t *testing.T) {
		_, err := Retry(context.Background(), fastRetry(1), nil, func(context.Context) (int, error) {
			return 0, errBoom
		})
		assert.Equal(t, errBoom, err)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		_, err := Retry(context.Background(), fastRetry(5), nil, func(context.Context) (int, error) {
			calls++
			return 0, Permanent(errBoom)
		})
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := Retry(ctx, fastRetry(5), nil, func(context.Context) (int, error) {
			calls++
			return 0, errBoom
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(Permanent(errors.New("bad request"))))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("503"), Retryable: true}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not read messages", ErrNoMessages)
	assert.Equal(t, "could not read messages: no messages to classify", err.Error())
	assert.ErrorIs(t, err, ErrNoMessages)
}
