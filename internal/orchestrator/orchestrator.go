// Package orchestrator runs one backend transaction per request: resolve a target, check a connection out,
// configure the session, run the command and hand the connection back clean or discard it.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/cache"
	"github.com/Borislavv/go-ash-bes/internal/metrics"
	"github.com/Borislavv/go-ash-bes/internal/pool"
	"github.com/Borislavv/go-ash-bes/internal/registry"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"io"
	"log/slog"
	"sync"
	"time"
)

const DefaultXDAPAccept = "2.0"

// Lookup is a cached show response: the document, or the error the backend answered with.
type Lookup struct {
	Body []byte
	Err  *errs.BackendError
}

type Orchestrator struct {
	registry   *registry.Registry
	lookups    *cache.Cache[Lookup]
	xdapAccept string
	metrics    metrics.Recorder
	logger     *slog.Logger

	versions sync.Map // group prefix -> []byte
	fetches  singleflight.Group
}

// New wires the orchestrator. lookups may be nil, show lookups then always reach the backend.
func New(reg *registry.Registry, lookups *cache.Cache[Lookup], xdapAccept string, recorder metrics.Recorder, logger *slog.Logger) *Orchestrator {
	if xdapAccept == "" {
		xdapAccept = DefaultXDAPAccept
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Orchestrator{
		registry:   reg,
		lookups:    lookups,
		xdapAccept: xdapAccept,
		metrics:    recorder,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Execute runs op against the backend serving dataSource and streams the response into sink.
//
// A backend error document is returned as *errs.BackendError and the connection is reused.
// Protocol failures discard the connection. Nothing is retried.
func (o *Orchestrator) Execute(ctx context.Context, op Operation, dataSource string, params Params, sink io.Writer) (err error) {
	start := time.Now()
	defer func() {
		o.metrics.ObserveTransaction(op.String(), outcome(err), time.Since(start))
	}()

	if !op.Valid() {
		return errs.Configurationf("execute", "unknown operation %q", op)
	}

	route := dataSource
	if op == ShowBesKey {
		route = params.Prefix
		if route == "" {
			route = "/"
		}
	}
	target, err := o.registry.Next(ctx, route)
	if err != nil {
		return err
	}

	log := o.logger.With("tx", uuid.NewString(), "op", op.String(), "source", dataSource, "target", target.String())
	conn, err := target.Pool().Checkout(ctx)
	if err != nil {
		log.Warn("backend connection unavailable", "err", err)
		return err
	}
	log.Debug("transaction started", "conn", conn.ID())

	hadTrouble := false
	defer func() {
		if rerr := target.Pool().Return(conn, hadTrouble); rerr != nil {
			log.Error("failed to return connection", "conn", conn.ID(), "err", rerr)
		}
	}()

	// a cancelled request must not leave a command running on a session someone else will reuse
	stop := context.AfterFunc(ctx, conn.Kill)
	defer func() {
		if !stop() && err == nil {
			hadTrouble = true
		}
	}()

	var (
		errOut bytes.Buffer
		cmds   = o.commands(target, op, dataSource, params, timeoutFor(ctx, target.Timeout()))
	)
	for i, cmd := range cmds {
		out := io.Discard
		if i == len(cmds)-1 {
			out = sink
		}
		conn.Redirect(out, &errOut, false)

		ok, execErr := conn.Execute(cmd)
		if execErr != nil {
			hadTrouble = true
			err = asProtocol(execErr, conn)
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", err, ctx.Err())
			}
			log.Error("transaction failed, connection discarded", "cmd", cmd, "err", err)
			return err
		}
		if !ok {
			be := errs.ParseBackendError(errOut.Bytes())
			log.Info("backend answered with an error", "cmd", cmd, "category", be.Category.String(), "message", be.Message)
			return be
		}
	}

	log.Debug("transaction finished", "took", time.Since(start))
	return nil
}

// Version returns the backend version document for the group serving path. It is fetched once per group;
// concurrent callers for the same group share one fetch, other groups are not held up by it.
func (o *Orchestrator) Version(ctx context.Context, path string) ([]byte, error) {
	group, err := o.registry.Resolve(path)
	if err != nil {
		return nil, err
	}

	prefix := group.Prefix()
	if doc, ok := o.versions.Load(prefix); ok {
		return bytes.Clone(doc.([]byte)), nil
	}
	doc, err, _ := o.fetches.Do(prefix, func() (any, error) {
		if doc, ok := o.versions.Load(prefix); ok {
			return doc, nil
		}
		var buf bytes.Buffer
		if err := o.Execute(ctx, ShowVersion, prefix, Params{}, &buf); err != nil {
			return nil, err
		}
		o.versions.Store(prefix, buf.Bytes())
		return buf.Bytes(), nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(doc.([]byte)), nil
}

// ShowNode returns the catalog node document for path. Documents and backend errors are both cached.
func (o *Orchestrator) ShowNode(ctx context.Context, path string) ([]byte, error) {
	return o.lookup(ctx, ShowNode, path)
}

// ShowCatalog returns the catalog listing for path. Documents and backend errors are both cached.
func (o *Orchestrator) ShowCatalog(ctx context.Context, path string) ([]byte, error) {
	return o.lookup(ctx, ShowCatalog, path)
}

func (o *Orchestrator) lookup(ctx context.Context, op Operation, path string) ([]byte, error) {
	key := op.String() + ":" + path
	if o.lookups != nil {
		if hit, ok := o.lookups.Get(key); ok {
			if hit.Err != nil {
				return nil, hit.Err
			}
			return bytes.Clone(hit.Body), nil
		}
	}

	var buf bytes.Buffer
	err := o.Execute(ctx, op, path, Params{}, &buf)
	if o.lookups != nil {
		var be *errs.BackendError
		switch {
		case err == nil:
			o.lookups.Set(key, Lookup{Body: bytes.Clone(buf.Bytes())})
		case errors.As(err, &be):
			o.lookups.Set(key, Lookup{Err: be})
		}
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func asProtocol(err error, conn *pool.Conn) error {
	if errs.KindOf(err) == errs.KindProtocol {
		return err
	}
	return errs.Protocol("execute", conn.ID(), int(conn.Commands()), err)
}

// timeoutFor is what the backend may spend on the request: the ctx deadline when set, the target timeout otherwise.
func timeoutFor(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return fallback
}

func outcome(err error) string {
	var be *errs.BackendError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &be):
		return metrics.OutcomeBackend
	default:
		return metrics.OutcomeError
	}
}
