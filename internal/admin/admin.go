// Package admin talks to the backend daemon admin port: start and stop the backend, read and change
// its configuration and log switches. One exchange runs at a time per target.
package admin

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/ppt"
	"golang.org/x/sync/semaphore"
	"log/slog"
	"time"
)

const (
	minStopNiceTimeout = time.Second
	maxStopNiceTimeout = 30 * time.Second
)

// Recycler is the pool a nice stop waits for. It must keep serving afterwards with fresh sessions.
type Recycler interface {
	Recycle(ctx context.Context) error
}

type Client struct {
	target  *config.Target
	timeout time.Duration
	pool    Recycler
	lock    *semaphore.Weighted
	logger  *slog.Logger
}

// New returns an admin client for target. pool may be nil, StopNice then stops right away.
func New(target *config.Target, cfg *config.AdminCfg, pool Recycler, logger *slog.Logger) (*Client, error) {
	if target == nil || !target.AdminEnabled() {
		return nil, errs.Configurationf("new admin client", "admin port is not configured for %v", target)
	}
	timeout := target.Timeout
	if cfg.Enabled() && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	cp := target.Copy()
	return &Client{
		target:  cp,
		timeout: timeout,
		pool:    pool,
		lock:    semaphore.NewWeighted(1),
		logger:  logger.With("component", "admin", "target", cp.String(), "admin_addr", cp.AdminAddr()),
	}, nil
}

func (c *Client) Start(ctx context.Context) ([]byte, error) {
	return c.execute(ctx, startCmd())
}

func (c *Client) StopNow(ctx context.Context) ([]byte, error) {
	return c.execute(ctx, stopNowCmd())
}

// StopNice retires the target's pooled sessions, waiting at most timeout (clamped to 1s..30s) for the
// checked out ones, and then stops the backend. Connections still checked out when the timeout expires
// are killed. The pool stays open and dials fresh sessions once the backend is started again.
func (c *Client) StopNice(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timeout = min(max(timeout, minStopNiceTimeout), maxStopNiceTimeout)

	if c.pool != nil {
		c.logger.Info("retiring connections before stop", "timeout", timeout)
		recycleCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.pool.Recycle(recycleCtx)
		cancel()
		if err != nil {
			c.logger.Warn("connections not retired in time, stopping the backend now", "err", err)
		}
	}
	return c.StopNow(ctx)
}

// GetConfig returns the configuration of module, or of the whole backend when module is empty.
func (c *Client) GetConfig(ctx context.Context, module string) ([]byte, error) {
	return c.execute(ctx, getConfigCmd(module))
}

func (c *Client) SetConfig(ctx context.Context, module, cfg string) ([]byte, error) {
	return c.execute(ctx, setConfigCmd(module, cfg))
}

// TailLog returns the last lines of the backend log. lines <= 0 lets the backend choose.
func (c *Client) TailLog(ctx context.Context, lines int) ([]byte, error) {
	return c.execute(ctx, tailLogCmd(lines))
}

func (c *Client) LogContexts(ctx context.Context) ([]LogContext, error) {
	data, err := c.execute(ctx, getLogContextsCmd())
	if err != nil {
		return nil, err
	}
	var doc logContexts
	if err = xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse log contexts of %s: %w", c.target, err)
	}
	return doc.Contexts, nil
}

func (c *Client) SetLogContext(ctx context.Context, name string, on bool) ([]byte, error) {
	return c.execute(ctx, setLogContextCmd(name, on))
}

// execute runs one command over a fresh admin session. The session is closed before returning.
func (c *Client) execute(ctx context.Context, o op) ([]byte, error) {
	doc, err := encode(o)
	if err != nil {
		return nil, fmt.Errorf("encode admin command %s: %w", o.XMLName.Local, err)
	}

	if err = c.lock.Acquire(ctx, 1); err != nil {
		return nil, errs.Connection("admin "+o.XMLName.Local, c.target.AdminAddr(), fmt.Errorf("wait for admin channel: %w", err))
	}
	defer c.lock.Release(1)

	tr, err := ppt.Dial(ctx, "admin:"+c.target.String(), c.target.AdminAddr(), c.timeout, c.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if serr := tr.Shutdown(false); serr != nil {
			c.logger.Warn("admin session shutdown failed", "err", serr)
			tr.Kill()
		}
	}()

	var out, errOut bytes.Buffer
	tr.Redirect(&out, &errOut, false)
	c.logger.Debug("admin command", "cmd", o.XMLName.Local)

	ok, err := tr.Execute(string(doc))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ParseBackendError(errOut.Bytes())
	}
	return out.Bytes(), nil
}
