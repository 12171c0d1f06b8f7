// Package errs holds the failure taxonomy shared by the pool, registry and orchestrator.
//
// Every pool/session-layer fault is an *Error carrying a Kind. Errors reported by the backend
// itself travel as *BackendError and are data for the caller, not a connection fault.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for handling purposes.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration means no target resolves for a path or a descriptor is structurally invalid.
	KindConfiguration
	// KindProtocol means malformed framing, an unexpected socket closure or a command sent over a broken session.
	KindProtocol
	// KindConnection means a new backend connection could not be established.
	KindConnection
	// KindBackend means the backend answered with a well-formed error document.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindConnection:
		return "connection"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

var (
	ErrNoTarget     = errors.New("no backend configured for this data source")
	ErrPoolClosed   = errors.New("pool is closed")
	ErrStreamClosed = errors.New("stream already closed")
	ErrNotOwned     = errors.New("connection is not checked out from this pool")
)

// Error is a classified pool/session-layer failure.
type Error struct {
	Kind   Kind
	Op     string
	Target string
	// Commands is the number of commands the session executed before the failure.
	// Meaningful for KindProtocol only.
	Commands int
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Target != "" {
		b.WriteString(" on ")
		b.WriteString(e.Target)
	}
	if e.Kind == KindProtocol {
		fmt.Fprintf(&b, " (client executed %d commands)", e.Commands)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

func Configurationf(op, format string, args ...any) *Error {
	return Configuration(op, fmt.Errorf(format, args...))
}

func Connection(op, target string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Target: target, Err: err}
}

func Protocol(op, target string, commands int, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Target: target, Commands: commands, Err: err}
}

// KindOf returns the outermost classification found in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var be *BackendError
	if errors.As(err, &be) {
		return KindBackend
	}
	return KindUnknown
}

func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }
func IsProtocol(err error) bool      { return KindOf(err) == KindProtocol }
func IsConnection(err error) bool    { return KindOf(err) == KindConnection }

// HTTPStatus maps a transaction outcome onto the status code the HTTP layer should answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Category.HTTPStatus()
	}
	switch KindOf(err) {
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
