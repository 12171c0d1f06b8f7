package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

const (
	DefaultDrainTimeout      = 10 * time.Second
	DefaultTelemetryInterval = 5 * time.Second
	DefaultAdminTimeout      = 30 * time.Second
	DefaultXDAPAccept        = "2.0"
)

// Config groups configuration of every backend subsystem.
// Optional components are disabled by leaving their section nil.
type Config struct {
	// Targets lists every backend instance. At least one must serve the root prefix "/".
	// Targets sharing a prefix form a round-robin group.
	Targets []*Target `yaml:"targets"`

	// XDAPAccept is the DAP protocol version announced to the backend on every transaction.
	XDAPAccept string `yaml:"xdap_accept"`

	// DrainTimeout bounds the wait for outstanding connections on shutdown.
	// Connections still checked out after it are killed.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// CachedTime switches the response cache clock to the coarse 10ms ticker.
	CachedTime bool `yaml:"cached_time"`

	ResponseCache *ResponseCacheCfg `yaml:"response_cache"`
	Telemetry     *TelemetryCfg     `yaml:"telemetry"`
	Metrics       *MetricsCfg       `yaml:"metrics"`
	Admin         *AdminCfg         `yaml:"admin"`
}

func (cfg *Config) AdjustConfig() {
	for _, t := range cfg.Targets {
		if t != nil {
			t.AdjustConfig()
		}
	}
	if cfg.XDAPAccept == "" {
		cfg.XDAPAccept = DefaultXDAPAccept
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.ResponseCache.Enabled() {
		cfg.ResponseCache.AdjustConfig()
	}
	if cfg.Telemetry.Enabled() && cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = DefaultTelemetryInterval
	}
	if cfg.Admin.Enabled() && cfg.Admin.Timeout <= 0 {
		cfg.Admin.Timeout = DefaultAdminTimeout
	}
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("empty config file %s", path)
	}
	cfg.AdjustConfig()

	return cfg, nil
}
