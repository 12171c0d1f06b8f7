package config

import "time"

// TelemetryCfg enables periodic log lines with pool and cache counter deltas.
type TelemetryCfg struct {
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

// MetricsCfg enables prometheus collectors. Namespace prefixes every metric name.
type MetricsCfg struct {
	Namespace string `yaml:"namespace"`
}

func (cfg *MetricsCfg) Enabled() bool {
	return cfg != nil
}

// AdminCfg configures the backend admin channel.
type AdminCfg struct {
	// Timeout bounds a single admin exchange.
	Timeout time.Duration `yaml:"timeout"`
}

func (cfg *AdminCfg) Enabled() bool {
	return cfg != nil
}
