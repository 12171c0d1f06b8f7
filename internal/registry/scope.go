package registry

import (
	"context"
	"sync"
)

type scopeKey struct{}

// scope remembers the group member chosen for each prefix during one request.
type scope struct {
	mu     sync.Mutex
	chosen map[string]*Target
}

// WithRequestScope returns a ctx under which Group.NextInScope keeps answering the same member.
// Wrapping an already scoped ctx is a no-op.
func WithRequestScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(scopeKey{}).(*scope); ok {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &scope{chosen: make(map[string]*Target, 1)})
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}
