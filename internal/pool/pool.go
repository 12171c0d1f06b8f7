// Package pool bounds the number of live sessions to one backend target and enforces the
// checkout, use, reset-or-discard, return discipline.
//
// Capacity is a buffered channel pre-filled with one token per permitted connection. A token is either
// nil (a permit without a live session) or an idle *Conn, so taking a token is acquiring a permit and
// the idle set can never outgrow the permits.
package pool

import (
	"context"
	"errors"
	"fmt"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/metrics"
	"github.com/Borislavv/go-ash-bes/internal/shared/rate"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var resetCommands = [...]string{"delete definitions;", "delete containers;"}

// Conn is a session checked out from a Pool. It must be handed back with Pool.Return exactly once.
type Conn struct {
	Session
	pool *Pool
	gen  int64
	out  atomic.Bool
}

type Stats struct {
	Target    string
	Capacity  int
	InUse     int64
	Idle      int64
	Checkouts int64
	Created   int64
	DialErrs  int64
	Discarded int64
}

type Pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	target  *config.Target
	name    string
	logger  *slog.Logger
	dialer  Dialer
	metrics metrics.Recorder
	limiter *rate.Limiter

	slots       chan *Conn
	outstanding sync.Map // *Conn -> struct{}
	seq         atomic.Int64
	gen         atomic.Int64
	recycleMu   sync.Mutex
	inUse       atomic.Int64
	idle        atomic.Int64
	closed      atomic.Bool
	killReturns atomic.Bool
	counters    *counters
}

// New builds a pool over a private copy of target. Sessions are opened lazily on checkout.
func New(ctx context.Context, target *config.Target, dialer Dialer, recorder metrics.Recorder, logger *slog.Logger) (*Pool, error) {
	if target == nil {
		return nil, errs.Configurationf("new pool", "nil target")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}

	cfg := target.Copy()
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:      ctx,
		cancel:   cancel,
		target:   cfg,
		name:     cfg.String(),
		dialer:   dialer,
		metrics:  recorder,
		slots:    make(chan *Conn, cfg.MaxClients),
		counters: newCounters(),
	}
	p.logger = logger.With("target", p.name)
	for i := 0; i < cfg.MaxClients; i++ {
		p.slots <- nil
	}
	if cfg.DialsPerSec > 0 {
		p.limiter = rate.NewLimiter(ctx, cfg.DialsPerSec)
	}

	p.logger.Info("pool is running", "max_clients", cfg.MaxClients, "max_commands", cfg.MaxCommands)
	return p, nil
}

func (p *Pool) Name() string { return p.name }

// Target returns a copy of the descriptor the pool was built from.
func (p *Pool) Target() *config.Target { return p.target.Copy() }

func (p *Pool) Capacity() int { return cap(p.slots) }

// Available is the number of permits not currently held by a caller.
func (p *Pool) Available() int { return len(p.slots) }

// Checkout blocks until a permit is free or ctx is done. It reuses an idle live session or dials a new one.
// The permit is given back whenever an error is returned.
func (p *Pool) Checkout(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, errs.Connection("checkout", p.name, errs.ErrPoolClosed)
	}

	start := time.Now()
	var c *Conn
	select {
	case <-ctx.Done():
		return nil, errs.Connection("checkout", p.name, fmt.Errorf("wait for a free connection: %w", ctx.Err()))
	case c = <-p.slots:
	}

	if p.closed.Load() {
		p.slots <- c
		return nil, errs.Connection("checkout", p.name, errs.ErrPoolClosed)
	}

	if c != nil {
		p.idle.Add(-1)
		if !c.Alive() {
			p.logger.Warn("idle connection is dead, replacing", "conn", c.ID())
			p.discard(c, metrics.ReasonDead)
			c = nil
		}
	}
	if c == nil {
		var err error
		if c, err = p.dial(ctx); err != nil {
			p.slots <- nil
			return nil, err
		}
	}

	c.out.Store(true)
	p.outstanding.Store(c, struct{}{})
	p.inUse.Add(1)
	p.counters.checkouts.Add(1)
	p.metrics.ObserveCheckout(p.name, time.Since(start))
	p.publishState()
	return c, nil
}

// Return hands a checked out connection back. On the success path the session state is reset
// before the connection becomes idle; with hadTrouble, or when the reset fails, the session is shut down
// and never reused. The permit is released on every path.
func (p *Pool) Return(c *Conn, hadTrouble bool) error {
	if c == nil || c.pool != p || !c.out.CompareAndSwap(true, false) {
		return fmt.Errorf("return to %s: %w", p.name, errs.ErrNotOwned)
	}
	p.outstanding.Delete(c)
	p.inUse.Add(-1)
	defer p.publishState()

	switch {
	case p.killReturns.Load():
		c.Kill()
		p.counters.discarded.Add(1)
		p.metrics.ObserveDiscard(p.name, metrics.ReasonDrain)
		p.slots <- nil
		return nil
	case c.gen < p.gen.Load():
		p.discard(c, metrics.ReasonRecycle)
		p.slots <- nil
		return nil
	case hadTrouble:
		p.discard(c, metrics.ReasonTrouble)
		p.slots <- nil
		return nil
	}

	if err := p.reset(c); err != nil {
		p.logger.Warn("connection reset failed, discarding", "conn", c.ID(), "err", err)
		p.discard(c, metrics.ReasonReset)
		p.slots <- nil
		return nil
	}
	if maxCmds := p.target.MaxCommands; maxCmds > 0 && c.Commands() > int64(maxCmds) {
		p.logger.Debug("connection reached max commands, retiring", "conn", c.ID(), "commands", c.Commands())
		p.discard(c, metrics.ReasonMaxCommands)
		p.slots <- nil
		return nil
	}

	p.idle.Add(1)
	p.slots <- c
	return nil
}

// Drain takes every permit, waiting for outstanding connections to come back, then shuts down all idle
// sessions. If ctx ends first the outstanding sessions are killed and the ctx error is returned.
// Checkouts fail with errs.ErrPoolClosed once draining started. Calling Drain again is a no-op.
func (p *Pool) Drain(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer p.cancel()
	p.logger.Info("pool is draining", "in_use", p.inUse.Load())

	var drainErr error
	idle, collected, err := p.collect(ctx)
	if err != nil {
		p.killReturns.Store(true)
		killed := p.killOutstanding(func(*Conn) bool { return true })
		p.logger.Error("pool drain timed out, killed outstanding connections", "killed", killed)
		drainErr = fmt.Errorf("drain %s: %d connections still checked out: %w", p.name, cap(p.slots)-collected, err)
	}

	shutdownErrs := p.shutdownIdle(idle)
	p.publishState()
	p.logger.Info("pool is stopped", "shut_down", len(idle), "shutdown_errors", shutdownErrs)
	return drainErr
}

// Recycle retires every session opened so far and leaves the pool serving: idle sessions are shut down
// at once, checked out ones are discarded when they come back, and later checkouts dial fresh sessions.
// It waits for outstanding connections until ctx ends and then kills those still checked out.
func (p *Pool) Recycle(ctx context.Context) error {
	p.recycleMu.Lock()
	defer p.recycleMu.Unlock()
	if p.closed.Load() {
		return errs.Connection("recycle", p.name, errs.ErrPoolClosed)
	}
	gen := p.gen.Add(1)
	p.logger.Info("pool is recycling", "in_use", p.inUse.Load())

	var recycleErr error
	idle, collected, err := p.collect(ctx)
	if err != nil {
		killed := p.killOutstanding(func(c *Conn) bool { return c.gen < gen })
		p.logger.Warn("pool recycle timed out, killed outstanding connections", "killed", killed)
		recycleErr = fmt.Errorf("recycle %s: %d connections still checked out: %w", p.name, cap(p.slots)-collected, err)
	}

	var stale, fresh []*Conn
	for _, c := range idle {
		if c.gen < gen {
			stale = append(stale, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	shutdownErrs := p.shutdownIdle(stale)
	p.counters.discarded.Add(int64(len(stale)))
	for range stale {
		p.metrics.ObserveDiscard(p.name, metrics.ReasonRecycle)
	}
	for _, c := range fresh {
		p.slots <- c
	}
	for i := len(fresh); i < collected; i++ {
		p.slots <- nil
	}
	p.publishState()
	p.logger.Info("pool is recycled", "shut_down", len(stale), "shutdown_errors", shutdownErrs)
	return recycleErr
}

func (p *Pool) Closed() bool { return p.closed.Load() }

func (p *Pool) Stats() Stats {
	checkouts, created, dialErrs, discarded := p.counters.snapshot()
	return Stats{
		Target:    p.name,
		Capacity:  cap(p.slots),
		InUse:     p.inUse.Load(),
		Idle:      p.idle.Load(),
		Checkouts: checkouts,
		Created:   created,
		DialErrs:  dialErrs,
		Discarded: discarded,
	}
}

// collect takes permits until it holds all of them or ctx ends. Tokens still buffered when ctx ends
// are swept without waiting, so no idle session is left behind.
func (p *Pool) collect(ctx context.Context) (idle []*Conn, collected int, err error) {
	take := func(c *Conn) {
		collected++
		if c != nil {
			idle = append(idle, c)
		}
	}
	for collected < cap(p.slots) {
		select {
		case c := <-p.slots:
			take(c)
		case <-ctx.Done():
			for sweep := true; sweep && collected < cap(p.slots); {
				select {
				case c := <-p.slots:
					take(c)
				default:
					sweep = false
				}
			}
			if collected < cap(p.slots) {
				return idle, collected, ctx.Err()
			}
		}
	}
	return idle, collected, nil
}

func (p *Pool) killOutstanding(match func(*Conn) bool) (killed int) {
	p.outstanding.Range(func(k, _ any) bool {
		if c := k.(*Conn); match(c) {
			c.Kill()
			killed++
		}
		return true
	})
	return killed
}

func (p *Pool) shutdownIdle(idle []*Conn) (failed int) {
	for _, c := range idle {
		p.idle.Add(-1)
		if err := c.Shutdown(true); err != nil {
			p.logger.Warn("idle connection shutdown failed", "conn", c.ID(), "err", err)
			failed++
		}
	}
	return failed
}

func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	gen := p.gen.Load()
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errs.Connection("dial", p.name, fmt.Errorf("wait for dial rate limiter: %w", err))
		}
	}

	id := p.nextID()
	sess, err := p.dialer.Dial(ctx, id)
	p.metrics.ObserveDial(p.name, err)
	if err != nil {
		p.counters.dialErrors.Add(1)
		p.logger.Error("failed to open backend connection", "conn", id, "err", err)
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.Connection("dial", p.name, err)
		}
		return nil, err
	}
	p.counters.created.Add(1)
	p.logger.Debug("backend connection opened", "conn", id)
	return &Conn{Session: sess, pool: p, gen: gen}, nil
}

func (p *Pool) nextID() string {
	n := strconv.FormatInt(p.seq.Add(1), 10)
	if p.target.Nickname != "" {
		return p.target.Nickname + ":" + n
	}
	return "besC-" + n
}

func (p *Pool) reset(c *Conn) error {
	c.Redirect(nil, nil, false)
	for _, cmd := range resetCommands {
		ok, err := c.Execute(cmd)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("backend rejected " + cmd)
		}
	}
	return nil
}

// discard shuts the session down best effort. Failures are logged, the caller gives the permit back.
func (p *Pool) discard(c *Conn, reason string) {
	p.counters.discarded.Add(1)
	p.metrics.ObserveDiscard(p.name, reason)
	if err := c.Shutdown(true); err != nil {
		p.logger.Warn("connection shutdown failed while discarding", "conn", c.ID(), "reason", reason, "err", err)
		return
	}
	p.logger.Debug("connection discarded", "conn", c.ID(), "reason", reason)
}

func (p *Pool) publishState() {
	p.metrics.SetPoolState(p.name, int(p.inUse.Load()), int(p.idle.Load()))
}
