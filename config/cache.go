package config

const (
	DefaultResponseCacheCapacity = 50
	DefaultReductionFactor       = 0.2
)

// ResponseCacheCfg configures the recency-ordered cache of backend lookups (node and catalog responses).
// When nil, lookups always hit the backend.
type ResponseCacheCfg struct {
	// Capacity is the max number of cached responses.
	Capacity int `yaml:"capacity"`

	// ReductionFactor is the fraction of Capacity purged at once when the cache is full.
	// Example: Capacity=50, ReductionFactor=0.2 -> the 10 least recently accessed entries are dropped.
	ReductionFactor float64 `yaml:"reduction_factor"`
}

func (cfg *ResponseCacheCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *ResponseCacheCfg) AdjustConfig() {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultResponseCacheCapacity
	}
	if cfg.ReductionFactor <= 0 || cfg.ReductionFactor > 1 {
		cfg.ReductionFactor = DefaultReductionFactor
	}
}
