package ppt_test

import (
	"bytes"
	"context"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/ppt"
	"github.com/Borislavv/go-ash-bes/internal/ppt/ppttest"
	"github.com/Borislavv/go-ash-bes/tests/help"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func dial(t *testing.T, srv *ppttest.Server) *ppt.Transport {
	t.Helper()
	tr, err := ppt.Dial(context.Background(), "besC-1", srv.Addr(), time.Second, help.QuietLogger())
	require.NoError(t, err)
	return tr
}

// TestTransport_Execute runs a command and streams the response into the redirected sink.
func TestTransport_Execute(t *testing.T) {
	srv := ppttest.NewServer(func(_ int64, cmd string) ppttest.Response {
		return ppttest.Response{Body: "<response>" + cmd + "</response>"}
	})
	defer srv.Close()

	tr := dial(t, srv)
	defer tr.Shutdown(true)

	var out bytes.Buffer
	tr.Redirect(&out, nil, true)
	ok, err := tr.Execute("show version;")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<response>show version;</response>", out.String())
	require.EqualValues(t, 1, tr.Commands())
	require.True(t, tr.Alive())
	require.Equal(t, []string{"show version;"}, srv.Commands())
}

// TestTransport_ErrorOutput returns ok=false and routes the error document to the error sink.
func TestTransport_ErrorOutput(t *testing.T) {
	srv := ppttest.NewServer(func(_ int64, _ string) ppttest.Response {
		return ppttest.Response{Body: "<BESError><Type>3</Type></BESError>", Error: true}
	})
	defer srv.Close()

	tr := dial(t, srv)
	defer tr.Shutdown(true)

	var out, errOut bytes.Buffer
	tr.Redirect(&out, &errOut, false)
	ok, err := tr.Execute("get dds for d1;")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, out.String())
	require.Contains(t, errOut.String(), "<Type>3</Type>")
	require.True(t, tr.Alive(), "backend errors do not break the session")
}

// TestTransport_DroppedConnection turns an unexpected close into a protocol error and a dead session.
func TestTransport_DroppedConnection(t *testing.T) {
	srv := ppttest.NewServer(func(_ int64, cmd string) ppttest.Response {
		if strings.HasPrefix(cmd, "get") {
			return ppttest.Response{Drop: true}
		}
		return ppttest.Response{Body: "ok"}
	})
	defer srv.Close()

	tr := dial(t, srv)
	ok, err := tr.Execute("set context errors to xml;")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = tr.Execute("get das for d1;")
	require.Error(t, err)
	require.True(t, errs.IsProtocol(err))
	require.Contains(t, err.Error(), "client executed 1 commands")
	require.False(t, tr.Alive())

	_, err = tr.Execute("show version;")
	require.ErrorIs(t, err, ppt.ErrBrokenSession)
	require.NoError(t, tr.Shutdown(true), "shutdown of a broken session is a no-op")
}

// TestTransport_MalformedFrame reports a garbage header as a protocol error.
func TestTransport_MalformedFrame(t *testing.T) {
	srv := ppttest.NewServer(func(_ int64, _ string) ppttest.Response {
		return ppttest.Response{Garbage: true}
	})
	defer srv.Close()

	tr := dial(t, srv)
	_, err := tr.Execute("show version;")
	require.True(t, errs.IsProtocol(err))
	require.ErrorIs(t, err, ppt.ErrMalformedHeader)
	require.False(t, tr.Alive())
}

// TestTransport_PeerExit marks the session dead once the backend ended it.
func TestTransport_PeerExit(t *testing.T) {
	srv := ppttest.NewServer(func(_ int64, _ string) ppttest.Response {
		return ppttest.Response{Body: "last words", Exit: true}
	})
	defer srv.Close()

	tr := dial(t, srv)
	var out bytes.Buffer
	tr.Redirect(&out, nil, false)
	ok, err := tr.Execute("show version;")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "last words", out.String())
	require.False(t, tr.Alive())
}

// TestTransport_Shutdown tells the backend to exit and tolerates a second call.
func TestTransport_Shutdown(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo)
	defer srv.Close()

	tr := dial(t, srv)
	require.NoError(t, tr.Shutdown(true))
	require.NoError(t, tr.Shutdown(true))
	require.False(t, tr.Alive())

	require.Eventually(t, func() bool { return srv.Exits() == 1 }, time.Second, 5*time.Millisecond)
}

// TestTransport_HandshakeUndefined reports a busy backend as a connection error.
func TestTransport_HandshakeUndefined(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo, ppttest.WithHandshakeReply(ppt.ProtocolUndefined))
	defer srv.Close()

	_, err := ppt.Dial(context.Background(), "besC-1", srv.Addr(), time.Second, help.QuietLogger())
	require.True(t, errs.IsConnection(err))

	trailing := ppttest.NewServer(ppttest.Echo, ppttest.WithHandshakeReply(ppt.ProtocolUndefined+"\n"))
	defer trailing.Close()

	_, err = ppt.Dial(context.Background(), "besC-1", trailing.Addr(), time.Second, help.QuietLogger())
	require.True(t, errs.IsConnection(err), "trailing bytes after the status do not change its meaning")
}

// TestTransport_HandshakeInvalid reports an unknown status as a protocol error.
func TestTransport_HandshakeInvalid(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo, ppttest.WithHandshakeReply("HELLO_THERE"))
	defer srv.Close()

	_, err := ppt.Dial(context.Background(), "besC-1", srv.Addr(), time.Second, help.QuietLogger())
	require.True(t, errs.IsProtocol(err))
	require.Contains(t, err.Error(), "invalid connection status")
}

// TestTransport_DialRefused fails with a connection error when nothing listens.
func TestTransport_DialRefused(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo)
	addr := srv.Addr()
	srv.Close()

	_, err := ppt.Dial(context.Background(), "besC-1", addr, 200*time.Millisecond, help.QuietLogger())
	require.True(t, errs.IsConnection(err))
}

// TestTransport_ExecuteCommands splits on ';' and stops at the first error output.
func TestTransport_ExecuteCommands(t *testing.T) {
	srv := ppttest.NewServer(func(_ int64, cmd string) ppttest.Response {
		return ppttest.Response{Body: cmd, Error: strings.Contains(cmd, "bad")}
	})
	defer srv.Close()

	tr := dial(t, srv)
	defer tr.Shutdown(true)

	ok, err := tr.ExecuteCommands("show version; show status;")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tr.ExecuteCommands("show bad;show never;")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{"show version;", " show status;", "show bad;"}, srv.Commands())
}

// TestTransport_ExecuteScript joins multi-line statements.
func TestTransport_ExecuteScript(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo)
	defer srv.Close()

	tr := dial(t, srv)
	defer tr.Shutdown(true)

	script := "set context errors\n\n to xml; show\nversion;\nshow status"
	ok, err := tr.ExecuteScript(strings.NewReader(script))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"set context errors  to xml;", " show version;", "show status;"}, srv.Commands())
}
