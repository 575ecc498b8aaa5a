package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fast = Policy{Attempts: 3, Delay: time.Millisecond}

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	failure := errors.New("still failing")
	err := Do(context.Background(), fast, func(ctx context.Context) error {
		calls++
		return failure
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, 3, calls)
}

func TestDoPermanent(t *testing.T) {
	calls := 0
	failure := errors.New("shape changed")
	err := Do(context.Background(), fast, func(ctx context.Context) error {
		calls++
		return Permanent(failure)
	})
	require.ErrorIs(t, err, failure)
	require.Equal(t, 1, calls)
}

func TestDoValue(t *testing.T) {
	calls := 0
	value, err := DoValue(context.Background(), fast, func(ctx context.Context) (string, error) {
		calls++
		if calls == 3 {
			return "token", nil
		}
		return "", errors.New("flaky")
	})
	require.NoError(t, err)
	require.Equal(t, "token", value)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Delay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("failing")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
