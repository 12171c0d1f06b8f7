package main

import (
	"github.com/Borislavv/go-ash-bes/internal/ppt/ppttest"
	"github.com/maruel/subcommands"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newConnRun(srv *ppttest.Server) connRun {
	return connRun{host: srv.Host(), port: srv.Port(), timeout: time.Second}
}

// TestExec_Reconnect reruns the command list and reconnects after max-cmds commands.
func TestExec_Reconnect(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo)
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.txt")
	r := &execRun{connRun: newConnRun(srv), reps: 3, maxCmds: 2, out: out}
	require.Zero(t, r.Run(application, []string{"show version;", "show status;"}, nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("show version; show status;", 3), string(data))
	require.EqualValues(t, 3, srv.Accepted())
	require.Eventually(t, func() bool { return srv.Exits() == 3 }, time.Second, 5*time.Millisecond)
}

// TestExec_Usage rejects an empty command list.
func TestExec_Usage(t *testing.T) {
	app := &subcommands.DefaultApplication{Name: "besctl"}
	r := &execRun{reps: 1}
	require.Equal(t, 2, r.Run(app, nil, nil))
}

// TestRun_Script executes a multi-line command file.
func TestRun_Script(t *testing.T) {
	srv := ppttest.NewServer(ppttest.Echo)
	defer srv.Close()

	dir := t.TempDir()
	script := filepath.Join(dir, "cmds.bes")
	require.NoError(t, os.WriteFile(script, []byte("set context errors\n to xml;\nshow version;\n"), 0o644))

	out := filepath.Join(dir, "out.txt")
	r := &runRun{connRun: newConnRun(srv), file: script, out: out}
	require.Zero(t, r.Run(application, nil, nil))
	require.Equal(t, []string{"set context errors  to xml;", "show version;"}, srv.Commands())
}
