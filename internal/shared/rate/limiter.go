package rate

import (
	"context"
	"errors"
	"go.uber.org/ratelimit"
)

var ErrLimiterStopped = errors.New("rate limiter stopped")

// Limiter hands out at most limit tokens per second with a small burst buffer.
// It is used to pace new backend connections so a restarted backend is not hit by a dial storm.
type Limiter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

// NewLimiter starts the token provider, which stops together with ctx.
func NewLimiter(ctx context.Context, limit int) *Limiter {
	brst := int(float64(limit) * 0.1)
	if brst < 1 {
		brst = 1
	}
	lim := &Limiter{
		limit: limit,
		ch:    make(chan struct{}, brst),
		l:     ratelimit.New(limit),
	}
	go lim.provider(ctx)
	return lim
}

func (l *Limiter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-l.ch:
		if !ok {
			return ErrLimiterStopped
		}
		return nil
	}
}

func (l *Limiter) Limit() int { return l.limit }
