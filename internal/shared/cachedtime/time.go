// Package cachedtime serves a coarse wall clock refreshed by a single ticker.
// Until RunIfEnabled starts it, and after its context ends, callers get time.Now.
package cachedtime

import (
	"context"
	"sync/atomic"
	"time"
)

const cacheTimeEach = 10 * time.Millisecond

var (
	nowUnix atomic.Int64
	running atomic.Bool
)

// RunIfEnabled starts the ticker when enabled is set. A second call while running is a no-op.
func RunIfEnabled(ctx context.Context, enabled bool) {
	if !enabled || !running.CompareAndSwap(false, true) {
		return
	}
	nowUnix.Store(time.Now().UnixNano())

	go func() {
		ticker := time.NewTicker(cacheTimeEach)
		defer func() {
			ticker.Stop()
			running.Store(false)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case tt := <-ticker.C:
				nowUnix.Store(tt.UnixNano())
			}
		}
	}()
}

func Now() time.Time {
	if !running.Load() {
		return time.Now()
	}
	return time.Unix(0, nowUnix.Load())
}

func UnixNano() int64 {
	if !running.Load() {
		return time.Now().UnixNano()
	}
	return nowUnix.Load()
}

func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
