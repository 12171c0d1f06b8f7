package cache

import (
	"github.com/zeebo/xxh3"
	"sync"
	"unsafe"
)

var hasherPool = sync.Pool{New: func() any { return xxh3.New() }}

func hashKey(key string) uint64 {
	hasher := hasherPool.Get().(*xxh3.Hasher)
	hasher.Reset()
	_, _ = hasher.Write(unsafe.Slice(unsafe.StringData(key), len(key)))
	sum := hasher.Sum64()
	hasherPool.Put(hasher)
	return sum
}
