package pool

import "sync/atomic"

type counters struct {
	checkouts  atomic.Int64
	created    atomic.Int64
	dialErrors atomic.Int64
	discarded  atomic.Int64
}

func newCounters() *counters {
	return &counters{
		checkouts:  atomic.Int64{},
		created:    atomic.Int64{},
		dialErrors: atomic.Int64{},
		discarded:  atomic.Int64{},
	}
}

func (c *counters) snapshot() (checkouts, created, dialErrors, discarded int64) {
	return c.checkouts.Load(), c.created.Load(), c.dialErrors.Load(), c.discarded.Load()
}
