package scrape

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a hard minimum spacing between outbound requests to
// one host. It is a floor, not a token bucket: there is no burst
// allowance.
type Limiter struct {
	mu   sync.Mutex
	min  time.Duration
	last time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLimiter(min time.Duration) *Limiter {
	return &Limiter{
		min:   min,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Wait blocks until the minimum spacing since the previous request is
// satisfied. The first call never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		elapsed := l.now().Sub(l.last)
		if elapsed < l.min {
			err := l.sleep(ctx, l.min-elapsed)
			if err != nil {
				return err
			}
		}
	}
	l.last = l.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
