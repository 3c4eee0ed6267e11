package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoWithResult(t *testing.T) {
	attempts := 0
	v, err := DoWithResult(context.Background(), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	}, WithDelay(time.Millisecond))

	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 3, attempts)
}

func TestDo_RunsOutOfAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errors.New("broken")
	}, WithAttempts(2), WithDelay(time.Millisecond))

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed after 2 attempts")
	require.Equal(t, 2, attempts)
}

func TestDo_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, func() error {
		attempts++
		return errors.New("broken")
	}, WithAttempts(10), WithDelay(time.Hour))

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestBuildOptions(t *testing.T) {
	require.Equal(t, Options{Attempts: 3, Delay: 200 * time.Millisecond}, buildOptions(nil))
	require.Equal(t, Options{Attempts: 1, Delay: time.Second}, buildOptions([]Option{WithAttempts(1), WithDelay(time.Second)}))
}
