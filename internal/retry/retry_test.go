package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("flaky")
		}
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, calls)
	assert.NoError(t, result.Err())
}

func TestWithExponentialBackoff_GivesUp(t *testing.T) {
	boom := errors.New("down")
	result := WithExponentialBackoff(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		return boom
	})

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.ErrorIs(t, result.Err(), boom)
}

func TestWithExponentialBackoff_StopsOnNonRetryable(t *testing.T) {
	cfg := fastConfig()
	permanent := errors.New("bad key")
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	result := WithExponentialBackoff(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.Err(), permanent)
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	done := make(chan *RetryResult)
	go func() {
		done <- WithExponentialBackoff(ctx, cfg, func(ctx context.Context, attempt int) error {
			return errors.New("down")
		})
	}()
	cancel()

	select {
	case result := <-done:
		require.False(t, result.Success)
		assert.ErrorIs(t, result.Err(), context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("backoff did not observe cancellation")
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 2))
	assert.Equal(t, 3*time.Second, calculateDelay(cfg, 3))
}
