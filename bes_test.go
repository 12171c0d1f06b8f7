package ashbes

import (
	"bytes"
	"context"
	"github.com/Borislavv/go-ash-bes/config"
	"github.com/Borislavv/go-ash-bes/errs"
	"github.com/Borislavv/go-ash-bes/internal/orchestrator"
	"github.com/Borislavv/go-ash-bes/internal/ppt/ppttest"
	"github.com/Borislavv/go-ash-bes/tests/help"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

func backend(_ int64, cmd string) ppttest.Response {
	switch {
	case strings.HasPrefix(cmd, "get dds"):
		return ppttest.Response{Body: "Dataset { Int32 x; } test;"}
	case strings.HasPrefix(cmd, "show node"):
		return ppttest.Response{Body: "<showNode/>"}
	case strings.Contains(cmd, "<StopNow"):
		return ppttest.Response{Body: "<OK/>"}
	}
	return ppttest.Response{}
}

// TestNew_InvalidConfig fails on configurations without a root target.
func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), nil, help.QuietLogger())
	require.True(t, errs.IsConfiguration(err))

	cfg := help.Cfg("bes", 10022)
	cfg.Targets[0].Prefix = "/data"
	_, err = New(context.Background(), cfg, help.QuietLogger())
	require.True(t, errs.IsConfiguration(err))
}

// TestClient_Execute routes a request to the backend and streams the product back.
func TestClient_Execute(t *testing.T) {
	srv := ppttest.NewServer(backend)
	defer srv.Close()

	c, err := New(context.Background(), help.Cfg(srv.Host(), srv.Port()), help.QuietLogger())
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close()) }()

	var out bytes.Buffer
	require.NoError(t, c.Execute(WithRequestScope(context.Background()), orchestrator.DDS, "/data/test.nc", Params{}, &out))
	require.Equal(t, "Dataset { Int32 x; } test;", out.String())

	for i := 0; i < 2; i++ {
		doc, err := c.ShowNode(context.Background(), "/data")
		require.NoError(t, err)
		require.Equal(t, "<showNode/>", string(doc))
	}
	nodes := 0
	for _, cmd := range srv.Commands() {
		if strings.HasPrefix(cmd, "show node") {
			nodes++
		}
	}
	require.Equal(t, 1, nodes)
	require.EqualValues(t, 1, srv.Accepted())
}

// TestClient_Close drains the pools and refuses new transactions.
func TestClient_Close(t *testing.T) {
	srv := ppttest.NewServer(backend)
	defer srv.Close()

	c, err := New(context.Background(), help.Cfg(srv.Host(), srv.Port()), help.QuietLogger())
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), orchestrator.DDS, "/data/test.nc", Params{}, io.Discard))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return srv.Exits() == 1 }, time.Second, 5*time.Millisecond, "idle sessions are ended politely")

	err = c.Execute(context.Background(), orchestrator.DDS, "/data/test.nc", Params{}, io.Discard)
	require.True(t, errs.IsConnection(err))
	require.ErrorIs(t, err, errs.ErrPoolClosed)
}

// TestClient_AdminAndMetrics wires admin clients for targets with an admin port and serves metrics.
func TestClient_AdminAndMetrics(t *testing.T) {
	srv := ppttest.NewServer(backend)
	defer srv.Close()

	cfg := help.TelemetryCfg(srv.Host(), srv.Port())
	cfg.Targets[0].AdminPort = srv.Port()
	cfg.Targets = append(cfg.Targets, help.Target(srv.Host(), srv.Port(), "/ocean", 1))

	c, err := New(context.Background(), cfg, help.QuietLogger())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	adm, ok := c.Admin("/-0")
	require.True(t, ok)
	_, ok = c.Admin("/ocean-0")
	require.False(t, ok, "no admin port, no admin client")

	require.NoError(t, c.Execute(context.Background(), orchestrator.DDS, "/ocean/sst.nc", Params{}, io.Discard))

	w := httptest.NewRecorder()
	c.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `ashbes_test_transaction_duration_seconds_count{outcome="ok",product="dds"} 1`)
	require.Contains(t, w.Body.String(), `ashbes_test_pool_checkouts_total{target="/ocean-0(`)

	require.NoError(t, c.Execute(context.Background(), orchestrator.DDS, "/data/test.nc", Params{}, io.Discard))
	out, err := adm.StopNice(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, "<OK/>", string(out))

	_, err = adm.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Execute(context.Background(), orchestrator.DDS, "/data/test.nc", Params{}, io.Discard), "the target serves again after a restart")
}

// TestLoadConfig_New builds a client straight from a yaml document.
func TestLoadConfig_New(t *testing.T) {
	srv := ppttest.NewServer(backend)
	defer srv.Close()

	path := t.TempDir() + "/bes.yaml"
	doc := "targets:\n  - host: " + srv.Host() + "\n    port: " + strconv.Itoa(srv.Port()) + "\n    max_clients: 2\nresponse_cache:\n  capacity: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	c, err := New(context.Background(), cfg, help.QuietLogger())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.Equal(t, 5, c.lookups.Capacity())
	require.NoError(t, c.Execute(context.Background(), orchestrator.DDS, "/x.nc", Params{}, io.Discard))
}
