package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	cfg := Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewServiceUnavailableError("test", "try again")
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	cfg := DefaultConfig()
	cfg.InitialBackoff = time.Millisecond

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return NewAuthenticationError("test", "bad token")
	}, cfg)

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error {
		return NewServiceUnavailableError("test", "down")
	}, DefaultConfig())

	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffHonorsRetryAfter(t *testing.T) {
	err := NewRateLimitError("test", "slow down", 7)
	d := Backoff(0, err, DefaultConfig())
	require.Equal(t, 7*time.Second, d)
}

func TestShouldRetryGenericErrorFalse(t *testing.T) {
	require.False(t, ShouldRetry(errors.New("plain")))
	require.False(t, ShouldRetry(nil))
}
