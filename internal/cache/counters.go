package cache

import "sync/atomic"

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	purged atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() (hits, misses, purged int64) {
	return c.hits.Load(), c.misses.Load(), c.purged.Load()
}
