package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst up to capacity then waits", func(t *testing.T) {
		now := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
		rl := newRateLimiter(60)
		rl.now = func() time.Time { return now }
		rl.last = now

		for i := 0; i < 60; i++ {
			assert.Zero(t, rl.reserve(), "request %d should not wait", i)
		}

		delay := rl.reserve()
		assert.InDelta(t, time.Second, delay, float64(10*time.Millisecond))

		now = now.Add(time.Second)
		assert.Zero(t, rl.reserve())
	})

	t.Run("disabled limiter never blocks", func(t *testing.T) {
		rl := newRateLimiter(0)
		assert.Nil(t, rl)
		require.NoError(t, rl.wait(context.Background()))
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := rl.wait(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
