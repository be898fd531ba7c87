package scrape

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newFakeClockLimiter(min time.Duration) (*Limiter, *time.Time, *[]time.Duration) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration

	l := NewLimiter(min)
	l.now = func() time.Time { return now }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}
	return l, &now, &slept
}

func TestLimiterFirstCallNeverBlocks(t *testing.T) {
	l, _, slept := newFakeClockLimiter(2 * time.Second)

	require.NoError(t, l.Wait(context.Background()))
	require.Empty(t, *slept)
}

func TestLimiterEnforcesFloor(t *testing.T) {
	l, now, slept := newFakeClockLimiter(2 * time.Second)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))

	// immediate second call must sleep the full spacing
	require.NoError(t, l.Wait(ctx))
	require.Equal(t, []time.Duration{2 * time.Second}, *slept)

	// partial elapsed time only sleeps the remainder
	*now = now.Add(1500 * time.Millisecond)
	require.NoError(t, l.Wait(ctx))
	require.Equal(t, []time.Duration{2 * time.Second, 500 * time.Millisecond}, *slept)
}

func TestLimiterNoSleepAfterLongGap(t *testing.T) {
	l, now, slept := newFakeClockLimiter(2 * time.Second)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	*now = now.Add(5 * time.Second)
	require.NoError(t, l.Wait(ctx))
	require.Empty(t, *slept)
}

func TestLimiterCanceledContext(t *testing.T) {
	l := NewLimiter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx))
	cancel()
	require.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
