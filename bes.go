// Package ashbes is a pooled client for a fleet of OPeNDAP back-end servers: it routes a data source
// to the backend group serving it, runs the request over a pooled PPT session and keeps the session
// clean for the next caller.
package ashbes

import (
	"context"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/admin"
	"github.com/Borislavv/go-ash-bes/internal/cache"
	"github.com/Borislavv/go-ash-bes/internal/metrics"
	"github.com/Borislavv/go-ash-bes/internal/orchestrator"
	"github.com/Borislavv/go-ash-bes/internal/registry"
	"github.com/Borislavv/go-ash-bes/internal/shared/cachedtime"
	"github.com/Borislavv/go-ash-bes/internal/telemetry"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
)

type (
	Operation = orchestrator.Operation
	Params    = orchestrator.Params
	Admin     = admin.Client
)

type BES interface {
	Execute(ctx context.Context, op Operation, dataSource string, params Params, sink io.Writer) error
	Version(ctx context.Context, path string) ([]byte, error)
	ShowNode(ctx context.Context, path string) ([]byte, error)
	ShowCatalog(ctx context.Context, path string) ([]byte, error)
	Admin(nickname string) (*Admin, bool)
	MetricsHandler() http.Handler
	io.Closer
}

var _ BES = (*Client)(nil)

type Client struct {
	*orchestrator.Orchestrator
	cfg       *config.Config
	logger    *slog.Logger
	registry  *registry.Registry
	lookups   *cache.Cache[orchestrator.Lookup]
	metrics   metrics.Recorder
	telemetry telemetry.Logger
	admins    map[string]*admin.Client
	cancel    context.CancelFunc
	closed    atomic.Bool
}

// New validates cfg and wires the registry, pools, response cache, admin clients and telemetry.
// Pools open backend sessions lazily, New does not touch the network.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errs.Configurationf("new client", "nil config")
	}
	cfg.AdjustConfig()

	ctx, cancel := context.WithCancel(ctx)
	cachedtime.RunIfEnabled(ctx, cfg.CachedTime)

	recorder := metrics.New(cfg.Metrics)
	reg := registry.New(ctx, nil, recorder, logger)
	if err := reg.Configure(cfg.Targets); err != nil {
		cancel()
		return nil, err
	}

	var lookups *cache.Cache[orchestrator.Lookup]
	if cfg.ResponseCache.Enabled() {
		lookups = cache.New[orchestrator.Lookup](cfg.ResponseCache, recorder, logger).
			WithWeigher(func(l orchestrator.Lookup) int64 { return int64(len(l.Body)) })
	}

	c := &Client{
		Orchestrator: orchestrator.New(reg, lookups, cfg.XDAPAccept, recorder, logger),
		cfg:          cfg,
		logger:       logger,
		registry:     reg,
		lookups:      lookups,
		metrics:      recorder,
		admins:       make(map[string]*admin.Client),
		cancel:       cancel,
	}

	var sources []telemetry.PoolSource
	for _, g := range reg.Groups() {
		for _, t := range g.Members() {
			sources = append(sources, t.Pool())
			if !t.Config().AdminEnabled() {
				continue
			}
			adm, err := admin.New(t.Config(), cfg.Admin, t.Pool(), logger)
			if err != nil {
				_ = c.Close()
				return nil, err
			}
			c.admins[t.Nickname()] = adm
		}
	}

	var cacheSource telemetry.CacheSource
	if lookups != nil {
		cacheSource = lookups
	}
	c.telemetry = telemetry.New(ctx, cfg.Telemetry, logger, sources, cacheSource)

	logger.Info("ashBES is running", "targets", len(cfg.Targets), "groups", len(reg.Groups()), "admins", len(c.admins))
	return c, nil
}

// Admin returns the admin client of the target with the given nickname, when it has an admin port.
func (c *Client) Admin(nickname string) (*Admin, bool) {
	adm, ok := c.admins[nickname]
	return adm, ok
}

func (c *Client) Registry() *registry.Registry { return c.registry }

func (c *Client) MetricsHandler() http.Handler { return c.metrics.Handler() }

// Close stops telemetry and drains every pool, killing connections still out after cfg.DrainTimeout.
// Calling it more than once is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.telemetry != nil {
		_ = c.telemetry.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DrainTimeout)
	defer cancel()
	err := c.registry.Shutdown(ctx)
	c.cancel()

	c.logger.Info("ashBES is stopped")
	return err
}

// WithRequestScope pins the backend chosen for a prefix for every call made with the returned ctx.
func WithRequestScope(ctx context.Context) context.Context {
	return registry.WithRequestScope(ctx)
}
