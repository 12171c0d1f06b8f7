// Package ppttest provides an in-process PPT backend for tests, in the spirit of net/http/httptest.
package ppttest

import (
	"fmt"
	"github.com/Borislavv/go-ash-bes/internal/ppt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Response is what the fake backend answers to one command.
type Response struct {
	Body string
	// Error sends Body as error output, after a status=error extension.
	Error bool
	// Drop closes the connection instead of answering.
	Drop bool
	// Exit answers and then ends the session with an exit extension.
	Exit bool
	// Garbage answers with a malformed chunk header.
	Garbage bool
}

// HandlerFunc answers a command received on the connection with the given sequence number.
type HandlerFunc func(conn int64, cmd string) Response

// Echo answers every command with its own text.
func Echo(_ int64, cmd string) Response { return Response{Body: cmd} }

type Server struct {
	ln      net.Listener
	handler HandlerFunc
	logger  *slog.Logger

	handshakeReply string

	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	commands []string
	accepted atomic.Int64
	exits    atomic.Int64
	closed   atomic.Bool
}

type Option func(*Server)

// WithHandshakeReply overrides the status sent after the client greeting.
func WithHandshakeReply(status string) Option {
	return func(s *Server) { s.handshakeReply = status }
}

// NewServer starts a backend on a loopback port. It panics when no port can be bound.
func NewServer(handler HandlerFunc, opts ...Option) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("ppttest: failed to listen on a port: %v", err))
	}
	s := &Server{
		ln:             ln,
		handler:        handler,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		handshakeReply: ppt.ServerConnectionOK,
		conns:          make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Go(s.serve)
	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// Accepted is the number of sessions opened so far.
func (s *Server) Accepted() int64 { return s.accepted.Load() }

// Exits is the number of sessions the client ended politely.
func (s *Server) Exits() int64 { return s.exits.Load() }

// Commands returns every command received, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	_ = s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		seq := s.accepted.Add(1)
		s.wg.Go(func() {
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.session(seq, conn)
		})
	}
}

func (s *Server) session(seq int64, conn net.Conn) {
	greeting := make([]byte, len(ppt.ClientTestingConnection))
	if _, err := io.ReadFull(conn, greeting); err != nil || string(greeting) != ppt.ClientTestingConnection {
		return
	}
	if _, err := io.WriteString(conn, s.handshakeReply); err != nil || s.handshakeReply != ppt.ServerConnectionOK {
		return
	}

	in := ppt.NewReader(conn, s.logger)
	out := ppt.NewWriter(conn)
	for {
		var cmd strings.Builder
		if _, _, err := in.ReadMessage(&cmd, &cmd, false); err != nil {
			return
		}
		if in.Closed() {
			s.exits.Add(1)
			return
		}

		s.mu.Lock()
		s.commands = append(s.commands, cmd.String())
		s.mu.Unlock()

		resp := s.handler(seq, cmd.String())
		switch {
		case resp.Drop:
			return
		case resp.Garbage:
			_, _ = io.WriteString(conn, "zzzzzzzq")
			return
		}
		if err := s.answer(out, resp); err != nil || resp.Exit {
			return
		}
	}
}

func (s *Server) answer(out *ppt.Writer, resp Response) error {
	if resp.Error {
		if err := out.SetChunkType(ppt.Extension); err != nil {
			return err
		}
		if _, err := io.WriteString(out, ppt.ErrorExtension); err != nil {
			return err
		}
		if err := out.SetChunkType(ppt.Data); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(out, resp.Body); err != nil {
		return err
	}
	if resp.Exit {
		if err := out.SetChunkType(ppt.Extension); err != nil {
			return err
		}
		if _, err := io.WriteString(out, ppt.ExitExtension); err != nil {
			return err
		}
	}
	return out.Finish()
}
