package telemetry

type sampler struct {
	pools []PoolSource
	cache CacheSource
}

func newSampler(pools []PoolSource, cache CacheSource) sampler {
	return sampler{pools: pools, cache: cache}
}

// snapshot holds cumulative counters (monotonic) and the current pool gauges.
type snapshot struct {
	pools []poolSnapshot

	cacheHits   uint64
	cacheMisses uint64
	cachePurged uint64
}

type poolSnapshot struct {
	target   string
	capacity int
	inUse    int64
	idle     int64

	checkouts uint64
	created   uint64
	dialErrs  uint64
	discarded uint64
}

func (s sampler) snapshot() snapshot {
	var snap snapshot
	for _, p := range s.pools {
		st := p.Stats()
		snap.pools = append(snap.pools, poolSnapshot{
			target:    st.Target,
			capacity:  st.Capacity,
			inUse:     st.InUse,
			idle:      st.Idle,
			checkouts: uint64(max(st.Checkouts, 0)),
			created:   uint64(max(st.Created, 0)),
			dialErrs:  uint64(max(st.DialErrs, 0)),
			discarded: uint64(max(st.Discarded, 0)),
		})
	}
	if s.cache != nil {
		hits, misses, purged := s.cache.Metrics()
		snap.cacheHits = uint64(max(hits, 0))
		snap.cacheMisses = uint64(max(misses, 0))
		snap.cachePurged = uint64(max(purged, 0))
	}
	return snap
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas. Gauges are taken from cur.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	d := snapshot{
		cacheHits:   delta(prev.cacheHits, cur.cacheHits),
		cacheMisses: delta(prev.cacheMisses, cur.cacheMisses),
		cachePurged: delta(prev.cachePurged, cur.cachePurged),
	}
	for i, c := range cur.pools {
		var p poolSnapshot
		if i < len(prev.pools) && prev.pools[i].target == c.target {
			p = prev.pools[i]
		}
		c.checkouts = delta(p.checkouts, c.checkouts)
		c.created = delta(p.created, c.created)
		c.dialErrs = delta(p.dialErrs, c.dialErrs)
		c.discarded = delta(p.discarded, c.discarded)
		d.pools = append(d.pools, c)
	}
	return d
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
