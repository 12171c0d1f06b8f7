package rate

import (
	"context"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

// TestLimiter_Wait hands out tokens while running.
func TestLimiter_Wait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lim := NewLimiter(ctx, 100)
	require.Equal(t, 100, lim.Limit())
	for i := 0; i < 3; i++ {
		require.NoError(t, lim.Wait(context.Background()))
	}
}

// TestLimiter_WaitCtx gives up when the caller context is done.
func TestLimiter_WaitCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lim := NewLimiter(ctx, 1)
	require.NoError(t, lim.Wait(context.Background()))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	require.ErrorIs(t, lim.Wait(waitCtx), context.DeadlineExceeded)
}

// TestLimiter_Stopped reports a stopped provider.
func TestLimiter_Stopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lim := NewLimiter(ctx, 1000)
	cancel()

	require.Eventually(t, func() bool {
		return lim.Wait(context.Background()) == ErrLimiterStopped
	}, time.Second, time.Millisecond)
}
