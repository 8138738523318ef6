package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	lastErr := errors.New("still failing")
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return lastErr
	})

	require.ErrorIs(t, err, lastErr)
	require.Equal(t, 4, calls)
}

func TestDo_IsRetryableStopsEarly(t *testing.T) {
	permanent := errors.New("bad request")
	cfg := fastConfig()
	cfg.IsRetryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDo_RetryableErrorsAllowlist(t *testing.T) {
	transient := errors.New("timeout")
	other := errors.New("unrelated")
	cfg := fastConfig()
	cfg.RetryableErrors = []error{transient}

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return other
	})

	require.ErrorIs(t, err, other)
	require.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastConfig(), func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	out, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "answer", nil
	})

	require.NoError(t, err)
	require.Equal(t, "answer", out)
	require.Equal(t, 2, calls)
}
