package pool

import (
	"context"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/internal/ppt"
	"io"
	"log/slog"
)

// Session is the live transport a pooled connection wraps. *ppt.Transport implements it.
type Session interface {
	ID() string
	Redirect(out, errOut io.Writer, autoFlush bool)
	Execute(cmd string) (ok bool, err error)
	Commands() int64
	Alive() bool
	Shutdown(beNice bool) error
	Kill()
}

type Dialer interface {
	Dial(ctx context.Context, id string) (Session, error)
}

type DialerFunc func(ctx context.Context, id string) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, id string) (Session, error) { return f(ctx, id) }

// NewPPTDialer opens PPT sessions to target, which must not be mutated afterwards.
func NewPPTDialer(target *config.Target, logger *slog.Logger) Dialer {
	return DialerFunc(func(ctx context.Context, id string) (Session, error) {
		tr, err := ppt.Dial(ctx, id, target.Addr(), target.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return tr, nil
	})
}
