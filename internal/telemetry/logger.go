// Package telemetry writes periodic log lines with per-interval deltas of the pool and cache counters.
package telemetry

import (
	"context"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/internal/pool"
	"github.com/Borislavv/go-ash-bes/internal/shared/bytes"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 5 * time.Second

// PoolSource is a pool whose counters are sampled.
type PoolSource interface {
	Stats() pool.Stats
}

// CacheSource is the response cache whose counters are sampled.
type CacheSource interface {
	Metrics() (hits, misses, purged int64)
	Len() int
	Capacity() int
	Mem() int64
}

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	pools    []PoolSource
	cache    CacheSource
	interval time.Duration
	wg       sync.WaitGroup
}

// New starts the reporting loop when cfg is enabled. cache may be nil.
func New(ctx context.Context, cfg *config.TelemetryCfg, logger *slog.Logger, pools []PoolSource, cache CacheSource) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	l := &Logs{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With("component", "telemetry"),
		pools:    pools,
		cache:    cache,
		interval: DefaultInterval,
	}
	if cfg.Enabled() && cfg.Interval > 0 {
		l.interval = cfg.Interval
	}
	if cfg.Enabled() {
		l.wg.Go(l.loop)
	}
	return l
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	l.wg.Wait()
	return nil
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("telemetry is running", "interval", l.interval.String())
	defer l.logger.Info("telemetry is stopped")

	s := newSampler(l.pools, l.cache)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			common := []any{"interval", l.interval.String()}

			for _, p := range d.pools {
				l.logger.Info("pool",
					append(common,
						"target", p.target,
						"capacity", p.capacity,
						"in_use", p.inUse,
						"idle", p.idle,
						"checkouts", int64(p.checkouts),
						"created", int64(p.created),
						"dial_errors", int64(p.dialErrs),
						"discarded", int64(p.discarded),
					)...,
				)
			}

			if l.cache != nil {
				l.logger.Info("response_cache",
					append(common,
						"entries", l.cache.Len(),
						"capacity", l.cache.Capacity(),
						"memory", bytes.FmtMem(l.cache.Mem()),
						"hits", int64(d.cacheHits),
						"misses", int64(d.cacheMisses),
						"purged", int64(d.cachePurged),
					)...,
				)
			}
		}
	}
}
