package registry

import (
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/internal/pool"
	"time"
)

// Target is one backend instance: an immutable descriptor copy plus the pool that owns its connections.
type Target struct {
	cfg  *config.Target
	pool *pool.Pool
}

func (t *Target) Pool() *pool.Pool { return t.pool }

// Config returns a copy of the descriptor.
func (t *Target) Config() *config.Target { return t.cfg.Copy() }

func (t *Target) Nickname() string       { return t.cfg.Nickname }
func (t *Target) Prefix() string         { return t.cfg.Prefix }
func (t *Target) Addr() string           { return t.cfg.Addr() }
func (t *Target) MaxResponseSize() int64 { return t.cfg.MaxResponseSize }
func (t *Target) Timeout() time.Duration { return t.cfg.Timeout }
func (t *Target) String() string         { return t.cfg.String() }
