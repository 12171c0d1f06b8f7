package cache

import (
	"fmt"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/internal/metrics"
	"github.com/Borislavv/go-ash-bes/tests/help"
	"github.com/stretchr/testify/require"
	"math/rand"
	"strconv"
	"sync"
	"testing"
)

func newCache(capacity int, factor float64) *Cache[string] {
	return New[string](&config.ResponseCacheCfg{Capacity: capacity, ReductionFactor: factor}, nil, help.QuietLogger())
}

// TestCache_GetMiss has no side effects on a miss.
func TestCache_GetMiss(t *testing.T) {
	c := newCache(5, 0.2)
	_, ok := c.Get("/data/nc")
	require.False(t, ok)
	require.Zero(t, c.Len())

	hits, misses, _ := c.Metrics()
	require.Zero(t, hits)
	require.EqualValues(t, 1, misses)
}

// TestCache_SetGet stores and overwrites values without growing.
func TestCache_SetGet(t *testing.T) {
	c := newCache(5, 0.2)
	c.Set("showNode:/data", "v1")
	c.Set("showNode:/data", "v2")

	v, ok := c.Get("showNode:/data")
	require.True(t, ok)
	require.Equal(t, "v2", v)
	require.Equal(t, 1, c.Len())
}

// TestCache_Defaults falls back to capacity 50 and a 0.2 reduction factor.
func TestCache_Defaults(t *testing.T) {
	c := New[int](nil, nil, help.QuietLogger())
	require.Equal(t, 50, c.Capacity())
	require.Equal(t, 10, c.purgeN)

	cfg := &config.ResponseCacheCfg{}
	c = New[int](cfg, nil, help.QuietLogger())
	require.Equal(t, 50, c.Capacity())
	require.Zero(t, cfg.Capacity, "the caller's config is left as is")
	require.Zero(t, cfg.ReductionFactor)
}

// TestCache_EvictionOrdering purges the least recently accessed entry, not the oldest inserted one.
func TestCache_EvictionOrdering(t *testing.T) {
	c := newCache(5, 0.2)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		c.Set(k, k)
	}
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("f", "f")
	require.Equal(t, 5, c.Len())

	_, ok = c.Get("b")
	require.False(t, ok, "b was the least recently accessed")
	for _, k := range []string{"a", "c", "d", "e", "f"} {
		_, ok = c.Get(k)
		require.True(t, ok, k)
	}
}

// TestCache_FractionPurge drops ceil(capacity*factor) entries when a new key arrives at capacity.
func TestCache_FractionPurge(t *testing.T) {
	c := newCache(10, 0.2)
	for i := 0; i < 10; i++ {
		c.Set("k"+strconv.Itoa(i), "v")
	}
	c.Set("k10", "v")

	require.Equal(t, 9, c.Len())
	for _, gone := range []string{"k0", "k1"} {
		_, ok := c.Get(gone)
		require.False(t, ok, gone)
	}
	_, _, purged := c.Metrics()
	require.EqualValues(t, 2, purged)

	c = newCache(3, 0.1)
	for i := 0; i < 4; i++ {
		c.Set("k"+strconv.Itoa(i), "v")
	}
	require.Equal(t, 3, c.Len(), "at least one entry is purged")
}

// TestCache_OverwriteAtCapacity does not purge when the key is already cached.
func TestCache_OverwriteAtCapacity(t *testing.T) {
	c := newCache(3, 0.5)
	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, k)
	}
	c.Set("a", "A")
	require.Equal(t, 3, c.Len())
	require.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

// TestCache_RecencyOrder keeps list order equal to the (accessed, seq) ordering under random access.
func TestCache_RecencyOrder(t *testing.T) {
	c := newCache(20, 0.2)
	var tick int64
	c.now = func() int64 { tick++; return tick / 3 }

	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		k := "k" + strconv.Itoa(rnd.Intn(40))
		if rnd.Intn(2) == 0 {
			c.Set(k, k)
		} else {
			c.Get(k)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, c.size, c.lru.Len())
	var prev *entry[string]
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[string])
		if prev != nil {
			require.True(t, prev.accessed > e.accessed || (prev.accessed == e.accessed && prev.seq > e.seq),
				"%s must be more recent than %s", prev.key, e.key)
		}
		prev = e
	}
}

// TestCache_HashCollision keeps keys with the same hash side by side.
func TestCache_HashCollision(t *testing.T) {
	c := newCache(3, 0.3)
	c.hash = func(string) uint64 { return 42 }

	c.Set("showCatalog:/a", "catalog")
	c.Set("showNode:/a", "node")
	require.Equal(t, 2, c.Len())

	v, ok := c.Get("showCatalog:/a")
	require.True(t, ok)
	require.Equal(t, "catalog", v)
	v, ok = c.Get("showNode:/a")
	require.True(t, ok)
	require.Equal(t, "node", v)

	c.Set("showNode:/b", "b")
	c.Set("showNode:/c", "c") // purges showCatalog:/a, the least recently accessed
	require.Equal(t, 3, c.Len())
	_, ok = c.Get("showCatalog:/a")
	require.False(t, ok)

	require.True(t, c.Del("showNode:/b"))
	require.False(t, c.Del("showNode:/b"))
	for _, k := range []string{"showNode:/a", "showNode:/c"} {
		_, ok = c.Get(k)
		require.True(t, ok, k)
	}
	require.Equal(t, 2, c.Len())
	require.Equal(t, []string{"showNode:/c", "showNode:/a"}, c.Keys())
}

// TestCache_Mem tracks the weight of cached values through overwrites and purges.
func TestCache_Mem(t *testing.T) {
	c := newCache(2, 0.5).WithWeigher(func(v string) int64 { return int64(len(v)) })
	c.Set("a", "1234")
	c.Set("b", "12")
	require.EqualValues(t, 6, c.Mem())

	c.Set("a", "1")
	require.EqualValues(t, 3, c.Mem())

	c.Set("c", "123") // purges b, the least recently accessed
	require.EqualValues(t, 4, c.Mem())

	require.True(t, c.Del("a"))
	require.EqualValues(t, 3, c.Mem())
	c.Clear()
	require.Zero(t, c.Mem())
}

// TestCache_Clear empties both the entries and the recency list.
func TestCache_Clear(t *testing.T) {
	c := newCache(5, 0.2)
	c.Set("a", "a")
	c.Set("b", "b")
	c.Clear()
	require.Zero(t, c.Len())
	require.Empty(t, c.Keys())
}

// TestCache_Concurrent stays within capacity under concurrent readers and writers.
func TestCache_Concurrent(t *testing.T) {
	c := newCache(16, 0.25)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Go(func() {
			for i := 0; i < 1000; i++ {
				k := fmt.Sprintf("g%d-%d", g, i%40)
				c.Set(k, k)
				if v, ok := c.Get(k); ok && v != k {
					t.Errorf("got %q for %q", v, k)
					return
				}
			}
		})
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}

type recorder struct {
	metrics.NoOp
	hits, misses, purged int
}

func (r *recorder) ObserveCacheLookup(hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *recorder) ObserveCachePurge(n int) { r.purged += n }

// TestCache_Metrics reports lookups and purges to the recorder.
func TestCache_Metrics(t *testing.T) {
	rec := &recorder{}
	c := New[string](&config.ResponseCacheCfg{Capacity: 2, ReductionFactor: 0.5}, rec, help.QuietLogger())

	c.Set("a", "a")
	c.Get("a")
	c.Get("b")
	c.Set("b", "b")
	c.Set("c", "c")

	require.Equal(t, 1, rec.hits)
	require.Equal(t, 1, rec.misses)
	require.Equal(t, 1, rec.purged)
	require.Equal(t, 2, c.Len())
}
