package registry

import (
	"context"
	"fmt"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"strconv"
	"sync/atomic"
)

// Group is the set of targets sharing one prefix. Members are handed out round-robin.
type Group struct {
	prefix  string
	members []*Target
	cursor  atomic.Uint64
	sealed  atomic.Bool
	logger  *slog.Logger
}

func newGroup(prefix string, logger *slog.Logger) *Group {
	return &Group{prefix: prefix, logger: logger.With("prefix", prefix)}
}

func (g *Group) Prefix() string { return g.prefix }
func (g *Group) Len() int       { return len(g.members) }

// Members returns the targets in configuration order.
func (g *Group) Members() []*Target {
	return append([]*Target(nil), g.members...)
}

// Add appends t unless its prefix differs from the group's or the group is already serving.
// An empty nickname becomes "<prefix>-<index>".
func (g *Group) Add(t *Target) bool {
	if g.sealed.Load() {
		g.logger.Error("group is already serving, member rejected", "target", t.String())
		return false
	}
	if t.cfg.Prefix != g.prefix {
		g.logger.Error("target prefix does not match group, member rejected", "target", t.String(), "target_prefix", t.cfg.Prefix)
		return false
	}
	if t.cfg.Nickname == "" {
		t.cfg.Nickname = g.prefix + "-" + strconv.Itoa(len(g.members))
	}
	g.members = append(g.members, t)
	return true
}

func (g *Group) seal() { g.sealed.Store(true) }

// Next rotates over the members: [T0, T1, T2] yields T0, T1, T2, T0...
func (g *Group) Next() *Target {
	n := uint64(len(g.members))
	if n == 0 {
		return nil
	}
	return g.members[(g.cursor.Add(1)-1)%n]
}

// NextInScope returns the member already chosen for this prefix in ctx's request scope,
// picking one with Next on first use. Without a scope it is Next.
func (g *Group) NextInScope(ctx context.Context) *Target {
	s := scopeFrom(ctx)
	if s == nil {
		return g.Next()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.chosen[g.prefix]; ok {
		return t
	}
	t := g.Next()
	s.chosen[g.prefix] = t
	return t
}

// Drain drains every member pool concurrently and returns the first failure.
// Each pool gets the whole of ctx, one slow member does not cut the others short.
func (g *Group) Drain(ctx context.Context) error {
	var eg errgroup.Group
	for _, t := range g.members {
		eg.Go(func() error {
			if err := t.pool.Drain(ctx); err != nil {
				return fmt.Errorf("group %s: %w", g.prefix, err)
			}
			return nil
		})
	}
	return eg.Wait()
}
