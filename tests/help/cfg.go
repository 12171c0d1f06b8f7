package help

import (
	"github.com/Borislavv/go-ash-bes/config"
	"time"
)

// Target builds a valid descriptor pointing at host:port under prefix.
func Target(host string, port int, prefix string, maxClients int) *config.Target {
	t := config.NewTarget()
	t.Host = host
	t.Port = port
	t.Prefix = prefix
	t.MaxClients = maxClients
	t.MaxCommands = 0
	t.Timeout = 2 * time.Second
	return t
}

// Cfg builds a facade config with one root target and a small response cache.
func Cfg(host string, port int) *config.Config {
	c := &config.Config{
		Targets: []*config.Target{Target(host, port, "/", 4)},
		ResponseCache: &config.ResponseCacheCfg{
			Capacity:        10,
			ReductionFactor: 0.2,
		},
		DrainTimeout: 2 * time.Second,
	}
	c.AdjustConfig()
	return c
}

// TelemetryCfg is Cfg with telemetry and metrics switched on.
func TelemetryCfg(host string, port int) *config.Config {
	c := Cfg(host, port)
	c.Telemetry = &config.TelemetryCfg{Interval: 50 * time.Millisecond}
	c.Metrics = &config.MetricsCfg{Namespace: "ashbes_test"}
	c.Admin = &config.AdminCfg{}
	c.AdjustConfig()
	return c
}
