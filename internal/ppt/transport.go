package ppt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/Borislavv/go-ash-bes/errs"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var ErrBrokenSession = errors.New("session is broken")

const handshakeBufSize = 4096

// Transport is one live PPT session with a backend process.
// Commands run strictly one at a time; Kill may be called concurrently to abort a blocked exchange.
type Transport struct {
	id     string
	addr   string
	conn   net.Conn
	logger *slog.Logger

	mu        sync.Mutex
	in        *Reader
	out       *Writer
	bw        *bufio.Writer
	sink      io.Writer
	errSink   io.Writer
	autoFlush bool

	commands atomic.Int64
	alive    atomic.Bool
	closed   atomic.Bool
}

// Dial connects to addr within timeout and performs the handshake.
// Socket reads and writes are bounded by timeout * 1.5.
func Dial(ctx context.Context, id, addr string, timeout time.Duration, logger *slog.Logger) (*Transport, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.Connection("dial", addr, err)
	}
	return NewTransport(id, addr, conn, PadTimeout(timeout), logger)
}

// NewTransport performs the handshake over an already established connection.
// The connection is closed when the handshake fails.
func NewTransport(id, addr string, conn net.Conn, ioTimeout time.Duration, logger *slog.Logger) (*Transport, error) {
	if ioTimeout > 0 {
		conn = &timeoutConn{Conn: conn, timeout: ioTimeout}
	}
	t := &Transport{id: id, addr: addr, conn: conn, logger: logger.With("conn", id)}
	if err := t.handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	t.bw = bufio.NewWriterSize(conn, DefaultChunkSize+HeaderSize)
	t.out = NewWriter(t.bw)
	t.in = NewReader(conn, t.logger)
	t.alive.Store(true)
	return t, nil
}

func PadTimeout(timeout time.Duration) time.Duration {
	return timeout + timeout/2
}

func (t *Transport) handshake() error {
	if _, err := io.WriteString(t.conn, ClientTestingConnection); err != nil {
		return errs.Connection("handshake", t.addr, fmt.Errorf("send greeting: %w", err))
	}

	var (
		status []byte
		buf    = make([]byte, handshakeBufSize)
	)
	for {
		n, err := t.conn.Read(buf)
		status = append(status, buf[:n]...)
		s := string(status)

		switch {
		case strings.HasPrefix(s, ServerConnectionOK):
			if skipped := len(s) - len(ServerConnectionOK); skipped > 0 {
				t.logger.Warn("skipped bytes after ppt handshake", "bytes", skipped)
			}
			return nil
		case strings.HasPrefix(s, ProtocolUndefined):
			return errs.Connection("handshake", t.addr, errors.New("server reported an undefined protocol, it may be down or busy"))
		case !strings.HasPrefix(ServerConnectionOK, s) && !strings.HasPrefix(ProtocolUndefined, s):
			return errs.Protocol("handshake", t.addr, 0, fmt.Errorf("server reported an invalid connection status %q", s))
		}

		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return errs.Connection("handshake", t.addr, fmt.Errorf("read server status: %w", err))
		}
	}
}

func (t *Transport) ID() string      { return t.id }
func (t *Transport) Addr() string    { return t.addr }
func (t *Transport) Commands() int64 { return t.commands.Load() }

// Alive is false once the session was shut down, killed, broken by a protocol fault or ended by the peer.
func (t *Transport) Alive() bool { return t.alive.Load() }

// BufferSize is the size of the chunk read buffer, which grows with the largest chunk received.
func (t *Transport) BufferSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.in.BufferSize()
}

// Redirect sets where response and error output of subsequent commands go. nil discards.
// With autoFlush the sink is flushed after every chunk when it supports flushing.
func (t *Transport) Redirect(out, errOut io.Writer, autoFlush bool) {
	t.mu.Lock()
	t.sink, t.errSink, t.autoFlush = out, errOut, autoFlush
	t.mu.Unlock()
}

// Execute sends one command and blocks until the full response was copied into the redirected sinks.
// ok is false when the backend delivered error output instead of a result.
func (t *Transport) Execute(cmd string) (ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.alive.Load() {
		return false, errs.Protocol("execute", t.addr, int(t.commands.Load()), ErrBrokenSession)
	}

	t.logger.Debug("ppt command", "cmd", cmd)
	if _, err = io.WriteString(t.out, cmd); err == nil {
		err = t.out.Finish()
	}
	if err != nil {
		return false, t.fail("send command", err)
	}

	ok, _, err = t.in.ReadMessage(t.sink, t.errSink, t.autoFlush)
	if err != nil {
		return false, t.fail("read response", err)
	}
	t.commands.Add(1)

	if t.in.Closed() {
		t.logger.Warn("ppt session ended by backend", "commands", t.commands.Load())
		t.alive.Store(false)
		t.closed.Store(true)
		_ = t.conn.Close()
	}
	return ok, nil
}

// ExecuteCommands runs a ';' separated command list, stopping at the first command that produced error output.
func (t *Transport) ExecuteCommands(list string) (bool, error) {
	for _, cmd := range strings.Split(list, ";") {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		ok, err := t.Execute(cmd + ";")
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// ExecuteScript runs a command file where statements end with ';' and may span several lines.
func (t *Transport) ExecuteScript(r io.Reader) (bool, error) {
	var (
		pending strings.Builder
		sc      = bufio.NewScanner(r)
	)
	appendPart := func(part string) {
		if part == "" {
			return
		}
		if pending.Len() > 0 {
			pending.WriteByte(' ')
		}
		pending.WriteString(part)
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		i := strings.LastIndexByte(line, ';')
		if i == -1 {
			appendPart(line)
			continue
		}
		appendPart(line[:i])
		ok, err := t.ExecuteCommands(pending.String())
		if err != nil || !ok {
			return ok, err
		}
		pending.Reset()
		appendPart(line[i+1:])
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("read command script: %w", err)
	}
	if strings.TrimSpace(pending.String()) != "" {
		return t.ExecuteCommands(pending.String())
	}
	return true, nil
}

// Shutdown ends the session. When beNice the backend is told to exit first.
// Calling it more than once is a no-op.
func (t *Transport) Shutdown(beNice bool) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.alive.Store(false)

	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if beNice {
		if cerr := t.out.Close(); cerr != nil {
			err = fmt.Errorf("inform backend about exit: %w", cerr)
		}
	}
	t.sink, t.errSink = nil, nil
	if cerr := t.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = errors.Join(err, fmt.Errorf("close socket: %w", cerr))
	}
	return err
}

// Kill closes the socket without telling the backend. Safe to call while a command is in flight.
func (t *Transport) Kill() {
	t.closed.Store(true)
	t.alive.Store(false)
	_ = t.conn.Close()
}

func (t *Transport) fail(op string, err error) error {
	t.alive.Store(false)
	t.closed.Store(true)
	_ = t.conn.Close()
	t.logger.Error("ppt session broken", "op", op, "commands", t.commands.Load(), "err", err)
	return errs.Protocol(op, t.addr, int(t.commands.Load()), err)
}

// timeoutConn bounds every socket read and write like a socket timeout does.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
