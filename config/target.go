package config

import (
	"fmt"
	"github.com/Borislavv/go-ash-bes/errs"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxClients  = 200
	DefaultMaxCommands = 2000
	DefaultTimeout     = 300 * time.Second
	RootPrefix         = "/"
)

// Target describes one backend process instance.
// Many pools may be built from one configuration, but a live pool always owns a private Copy.
type Target struct {
	// Host is the backend host name or address.
	Host string `yaml:"host"`

	// Port is the PPT listener port of the backend. Must be positive.
	Port int `yaml:"port"`

	// AdminPort is the port of the backend daemon admin interface, -1 when not exposed.
	AdminPort int `yaml:"admin_port"`

	// Prefix is the URL path prefix this backend serves. Used for longest-prefix routing.
	Prefix string `yaml:"prefix"`

	// Nickname names the backend in logs and connection ids. Defaults to "<prefix>-<index>" inside a group.
	Nickname string `yaml:"nickname"`

	// MaxClients bounds the number of simultaneously open connections (pool capacity). Must be >= 1.
	MaxClients int `yaml:"max_clients"`

	// MaxCommands is how many commands a connection may run before it is retired. 0 means unlimited.
	MaxCommands int `yaml:"max_commands"`

	// Timeout bounds connection establishment. Socket reads are bounded by Timeout * 1.5.
	Timeout time.Duration `yaml:"timeout"`

	// MaxResponseSize is passed to the backend as the max_response_size context. 0 means unlimited.
	MaxResponseSize int64 `yaml:"max_response_size"`

	// DialsPerSec limits how fast the pool opens new connections. 0 disables the limiter.
	DialsPerSec int `yaml:"dials_per_sec"`
}

// NewTarget returns a descriptor with the defaults of an unconfigured backend.
func NewTarget() *Target {
	return &Target{
		Port:        -1,
		AdminPort:   -1,
		Prefix:      RootPrefix,
		MaxClients:  DefaultMaxClients,
		MaxCommands: DefaultMaxCommands,
		Timeout:     DefaultTimeout,
	}
}

// AdjustConfig fills zero values left by a partial yaml document.
func (t *Target) AdjustConfig() {
	if t.Prefix == "" {
		t.Prefix = RootPrefix
	}
	if t.MaxClients == 0 {
		t.MaxClients = DefaultMaxClients
	}
	if t.Timeout <= 0 {
		t.Timeout = DefaultTimeout
	}
	if t.AdminPort == 0 {
		t.AdminPort = -1
	}
}

func (t *Target) Validate() error {
	switch {
	case strings.TrimSpace(t.Host) == "":
		return errs.Configurationf("validate target", "host is not set (prefix %q)", t.Prefix)
	case t.Port <= 0 || t.Port > 65535:
		return errs.Configurationf("validate target", "invalid port %d for %s", t.Port, t.Host)
	case t.MaxClients < 1:
		return errs.Configurationf("validate target", "max_clients must be >= 1, got %d for %s", t.MaxClients, t.Addr())
	case t.MaxCommands < 0:
		return errs.Configurationf("validate target", "max_commands must be >= 0, got %d for %s", t.MaxCommands, t.Addr())
	case !strings.HasPrefix(t.Prefix, RootPrefix):
		return errs.Configurationf("validate target", "prefix %q must start with %q", t.Prefix, RootPrefix)
	}
	return nil
}

func (t *Target) Copy() *Target {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func (t *Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t *Target) AdminEnabled() bool {
	return t.AdminPort > 0
}

func (t *Target) AdminAddr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.AdminPort))
}

func (t *Target) String() string {
	if t.Nickname != "" {
		return fmt.Sprintf("%s(%s%s)", t.Nickname, t.Addr(), t.Prefix)
	}
	return t.Addr() + t.Prefix
}
