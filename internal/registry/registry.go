// Package registry maps data source paths onto backend target groups by longest matching prefix.
package registry

import (
	"context"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/metrics"
	"github.com/Borislavv/go-ash-bes/internal/pool"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// DialerFactory builds the dialer a target's pool opens sessions with.
type DialerFactory func(target *config.Target, logger *slog.Logger) pool.Dialer

type Registry struct {
	ctx     context.Context
	logger  *slog.Logger
	metrics metrics.Recorder
	dialers DialerFactory

	mu          sync.RWMutex
	groups      map[string]*Group
	prefixes    []string // longest first
	initialized atomic.Bool
	closed      atomic.Bool
}

// New returns an empty registry. A nil dialers falls back to plain PPT sessions.
func New(ctx context.Context, dialers DialerFactory, recorder metrics.Recorder, logger *slog.Logger) *Registry {
	if dialers == nil {
		dialers = pool.NewPPTDialer
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Registry{
		ctx:     ctx,
		logger:  logger.With("component", "registry"),
		metrics: recorder,
		dialers: dialers,
		groups:  make(map[string]*Group),
	}
}

// Configure builds one pool per descriptor and groups them by prefix in configuration order.
// It runs once; later calls return nil without touching the registry.
// A root "/" target is required.
func (r *Registry) Configure(targets []*config.Target) error {
	if r.initialized.Load() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized.Load() {
		return nil
	}

	if len(targets) == 0 {
		return errs.Configurationf("configure registry", "no backend targets configured")
	}
	hasRoot := false
	for i, t := range targets {
		if t == nil {
			return errs.Configurationf("configure registry", "target #%d is empty", i)
		}
		if err := t.Validate(); err != nil {
			return err
		}
		if t.Prefix == config.RootPrefix {
			hasRoot = true
		}
	}
	if !hasRoot {
		return errs.Configurationf("configure registry", "a target with the root prefix %q is required", config.RootPrefix)
	}

	for _, t := range targets {
		if err := r.registerUnlocked(t); err != nil {
			return err
		}
	}
	for _, g := range r.groups {
		g.seal()
	}
	r.initialized.Store(true)

	r.logger.Info("registry is running", "groups", len(r.groups), "targets", len(targets))
	return nil
}

// Register adds one target, creating its group on first use of the prefix.
func (r *Registry) Register(cfg *config.Target) error {
	if cfg == nil {
		return errs.Configurationf("register target", "nil target")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerUnlocked(cfg)
}

func (r *Registry) registerUnlocked(cfg *config.Target) error {
	cp := cfg.Copy()
	g, ok := r.groups[cp.Prefix]
	if !ok {
		g = newGroup(cp.Prefix, r.logger)
	}
	if cp.Nickname == "" {
		cp.Nickname = cp.Prefix + "-" + strconv.Itoa(g.Len())
	}

	p, err := pool.New(r.ctx, cp, r.dialers(cp, r.logger), r.metrics, r.logger)
	if err != nil {
		return err
	}
	if !g.Add(&Target{cfg: cp, pool: p}) {
		_ = p.Drain(r.ctx)
		return errs.Configurationf("register target", "group %s rejected %s", g.prefix, cp)
	}
	if !ok {
		r.groups[cp.Prefix] = g
		r.prefixes = append(r.prefixes, cp.Prefix)
		sort.SliceStable(r.prefixes, func(i, j int) bool { return len(r.prefixes[i]) > len(r.prefixes[j]) })
	}
	return nil
}

// Resolve returns the group with the longest prefix of path.
func (r *Registry) Resolve(path string) (*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(path, prefix) {
			return r.groups[prefix], nil
		}
	}
	return nil, errs.Configuration("resolve "+path, errs.ErrNoTarget)
}

// Next resolves path and picks a member, stable within ctx's request scope.
func (r *Registry) Next(ctx context.Context, path string) (*Target, error) {
	g, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	t := g.NextInScope(ctx)
	if t == nil {
		return nil, errs.Configuration("resolve "+path, errs.ErrNoTarget)
	}
	return t, nil
}

// Groups lists groups from the longest prefix to the root.
func (r *Registry) Groups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Group, 0, len(r.prefixes))
	for _, prefix := range r.prefixes {
		out = append(out, r.groups[prefix])
	}
	return out
}

// Shutdown drains every group concurrently. Only the first call does work.
func (r *Registry) Shutdown(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	var eg errgroup.Group
	for _, g := range r.Groups() {
		eg.Go(func() error { return g.Drain(ctx) })
	}
	err := eg.Wait()
	if err != nil {
		r.logger.Error("registry stopped with errors", "err", err)
		return err
	}
	r.logger.Info("registry is stopped")
	return nil
}
