// Package cache keeps small backend responses (catalog nodes, show documents) in a bounded LRU.
//
// When a new key arrives at capacity, a fixed fraction of the least recently accessed entries is purged
// at once, so the cache does not evict on every insert while full.
package cache

import (
	"container/list"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/internal/metrics"
	"github.com/Borislavv/go-ash-bes/internal/shared/cachedtime"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

type entry[V any] struct {
	key      string
	hash     uint64
	value    V
	weight   int64
	accessed int64
	seq      uint64
	el       *list.Element
	next     *entry[V] // next entry in the same hash bucket
}

// Cache is safe for concurrent use. Its lock is never held while talking to a backend.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	purgeN   int
	items    map[uint64]*entry[V] // hash buckets, colliding keys are chained
	size     int
	lru      *list.List // front is the most recently accessed
	seq      uint64
	mem      atomic.Int64
	weigher  func(V) int64
	hash     func(string) uint64
	now      func() int64
	logger   *slog.Logger
	metrics  metrics.Recorder
	counters *counters
}

// New builds a cache from cfg, which is not modified. A nil cfg means defaults.
func New[V any](cfg *config.ResponseCacheCfg, recorder metrics.Recorder, logger *slog.Logger) *Cache[V] {
	var adjusted config.ResponseCacheCfg
	if cfg != nil {
		adjusted = *cfg
	}
	adjusted.AdjustConfig()
	if recorder == nil {
		recorder = metrics.NoOp{}
	}

	purgeN := int(math.Ceil(float64(adjusted.Capacity) * adjusted.ReductionFactor))
	if purgeN < 1 {
		purgeN = 1
	}
	return &Cache[V]{
		capacity: adjusted.Capacity,
		purgeN:   purgeN,
		items:    make(map[uint64]*entry[V], adjusted.Capacity),
		lru:      list.New(),
		hash:     hashKey,
		now:      cachedtime.UnixNano,
		logger:   logger.With("component", "response-cache"),
		metrics:  recorder,
		counters: newCounters(),
	}
}

// Get returns the value stored for key and marks it as the most recently accessed.
// A miss has no side effects apart from counters.
func (c *Cache[V]) Get(key string) (value V, ok bool) {
	hash := c.hash(key)

	c.mu.Lock()
	if e := c.findUnlocked(hash, key); e != nil {
		c.lruOnAccessUnlocked(e)
		value, ok = e.value, true
	}
	c.mu.Unlock()

	if ok {
		c.counters.hits.Add(1)
	} else {
		c.counters.misses.Add(1)
	}
	c.metrics.ObserveCacheLookup(ok)
	return value, ok
}

// Set inserts or overwrites key. Inserting a new key into a full cache first purges
// the configured fraction of the least recently accessed entries.
func (c *Cache[V]) Set(key string, value V) {
	hash := c.hash(key)
	purged := 0

	c.mu.Lock()
	if old := c.findUnlocked(hash, key); old != nil {
		weight := c.weigh(value)
		c.mem.Add(weight - old.weight)
		old.value, old.weight = value, weight
		c.lruOnInsertUnlocked(old)
		c.mu.Unlock()
		return
	}

	if c.size >= c.capacity {
		purged = c.purgeUnlocked(c.purgeN)
	}
	e := &entry[V]{key: key, hash: hash, value: value, weight: c.weigh(value)}
	if head := c.items[hash]; head != nil {
		c.logger.Debug("cache key hash collision, chaining", "key", key, "other", head.key)
		e.next = head
	}
	c.items[hash] = e
	c.size++
	c.mem.Add(e.weight)
	c.lruOnInsertUnlocked(e)
	c.mu.Unlock()

	if purged > 0 {
		c.counters.purged.Add(int64(purged))
		c.metrics.ObserveCachePurge(purged)
		c.logger.Debug("response cache purged", "entries", purged)
	}
}

func (c *Cache[V]) Del(key string) bool {
	hash := c.hash(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.findUnlocked(hash, key)
	if e == nil {
		return false
	}
	c.removeUnlocked(e)
	c.lruOnDeleteUnlocked(e)
	return true
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Cache[V]) Capacity() int { return c.capacity }

// Mem is the total weight of the cached values, 0 without a weigher.
func (c *Cache[V]) Mem() int64 { return c.mem.Load() }

// Keys lists the cached keys from the most to the least recently accessed.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	clear(c.items)
	c.size = 0
	c.lru.Init()
	c.mem.Store(0)
	c.mu.Unlock()
}

func (c *Cache[V]) Metrics() (hits, misses, purged int64) {
	return c.counters.snapshot()
}

/**
 * Private API.
 */

func (c *Cache[V]) purgeUnlocked(n int) (purged int) {
	for ; purged < n; purged++ {
		victim, ok := c.lruPopTailUnlocked()
		if !ok {
			break
		}
		c.removeUnlocked(victim)
	}
	return purged
}

func (c *Cache[V]) findUnlocked(hash uint64, key string) *entry[V] {
	for e := c.items[hash]; e != nil; e = e.next {
		if e.key == key {
			return e
		}
	}
	return nil
}

// removeUnlocked unlinks e from its hash bucket. The recency list is left to the caller.
func (c *Cache[V]) removeUnlocked(e *entry[V]) {
	link := c.items[e.hash]
	if link == e {
		if e.next == nil {
			delete(c.items, e.hash)
		} else {
			c.items[e.hash] = e.next
		}
	} else {
		for link != nil && link.next != e {
			link = link.next
		}
		if link == nil {
			c.logger.Warn("cached entry is missing from its hash bucket", "key", e.key)
			return
		}
		link.next = e.next
	}
	e.next = nil
	c.size--
	c.mem.Add(-e.weight)
}

func (c *Cache[V]) weigh(v V) int64 {
	if c.weigher == nil {
		return 0
	}
	return c.weigher(v)
}
