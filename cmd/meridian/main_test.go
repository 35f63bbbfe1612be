package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/meridian"
	"github.com/arloliu/meridian/contrib/metrics/prom"
	"github.com/arloliu/meridian/test/testutil"
	"github.com/arloliu/meridian/types"
)

func writeConfig(t *testing.T, format string, args ...any) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, fmt.Appendf(nil, format, args...), 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	return runContext(t.Context(), args...)
}

func runContext(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	return out.String(), err
}

const twoDatacenters = `
policy: ROUND_ROBIN
datacenters:
  - name: east
    nodes:
      - address: %s
      - address: %s
        weight: 3
  - name: west
    nodes:
      - address: %s
`

func TestTopologyCommand(t *testing.T) {
	cfg := writeConfig(t, twoDatacenters, "10.0.0.1:8080", "10.0.0.2:8080", "10.1.0.1:8080")

	t.Run("prints datacenters in order", func(t *testing.T) {
		out, err := run(t, "topology", "--config", cfg)
		require.NoError(t, err)
		require.Contains(t, out, "policy: ROUND_ROBIN")
		require.Contains(t, out, "active: east")
		require.Regexp(t, `east\s+10\.0\.0\.1:8080\s+1`, out)
		require.Regexp(t, `east\s+10\.0\.0\.2:8080\s+3`, out)
		require.Regexp(t, `west\s+10\.1\.0\.1:8080\s+1`, out)
	})

	t.Run("flag overrides active datacenter", func(t *testing.T) {
		out, err := run(t, "topology", "--config", cfg, "--active-datacenter", "west")
		require.NoError(t, err)
		require.Contains(t, out, "active: west")
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("MERIDIAN_ACTIVEDATACENTER", "west")
		t.Setenv("MERIDIAN_POLICY", "RANDOM")

		out, err := run(t, "topology", "--config", cfg)
		require.NoError(t, err)
		require.Contains(t, out, "active: west")
		require.Contains(t, out, "policy: RANDOM")
	})

	t.Run("config file from environment", func(t *testing.T) {
		t.Setenv("MERIDIAN_CONFIG", cfg)

		out, err := run(t, "topology")
		require.NoError(t, err)
		require.Contains(t, out, "active: east")
	})
}

func TestTopologyCommand_Errors(t *testing.T) {
	cfg := writeConfig(t, twoDatacenters, "a:1", "b:1", "x:1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "no config", args: []string{"topology"}},
		{name: "missing file", args: []string{"topology", "--config", filepath.Join(t.TempDir(), "nope.yaml")}},
		{name: "unknown policy", args: []string{"topology", "--config", cfg, "--policy", "FASTEST"}},
		{name: "unknown active datacenter", args: []string{"topology", "--config", cfg, "--active-datacenter", "north"}},
		{name: "negative threshold", args: []string{"topology", "--config", cfg, "--failure-threshold", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
		})
	}

	t.Run("duplicate node", func(t *testing.T) {
		dup := writeConfig(t, twoDatacenters, "a:1", "a:1", "x:1")
		_, err := run(t, "topology", "--config", dup)
		require.ErrorIs(t, err, types.ErrTopologyConfiguration)
	})
}

func TestProbeCommand(t *testing.T) {
	t.Run("retries past an unhealthy node", func(t *testing.T) {
		bad := testutil.NewHTTPNode(t).SetStatus(http.StatusServiceUnavailable)
		good := testutil.NewHTTPNode(t)
		remote := testutil.NewHTTPNode(t)
		cfg := writeConfig(t, twoDatacenters, bad.URL, good.URL, remote.URL)

		out, err := run(t, "probe", "--config", cfg, "-n", "4", "-c", "1")
		require.NoError(t, err)
		require.Contains(t, out, "requests: 4  succeeded: 4  failed: 0")
		require.Contains(t, out, "active: east")
		require.Equal(t, int64(4), good.Calls())
		require.Zero(t, remote.Calls())
		require.Positive(t, bad.Calls())
	})

	t.Run("fails over when the active datacenter is down", func(t *testing.T) {
		a := testutil.NewHTTPNode(t).SetStatus(http.StatusBadGateway)
		b := testutil.NewHTTPNode(t).SetStatus(http.StatusBadGateway)
		remote := testutil.NewHTTPNode(t)
		cfg := writeConfig(t, twoDatacenters, a.URL, b.URL, remote.URL)

		out, err := run(t, "probe", "--config", cfg, "-n", "2", "-c", "1", "--auto-failover")
		require.NoError(t, err)
		require.Contains(t, out, "succeeded: 2")
		require.Contains(t, out, "active: west")
		require.Equal(t, int64(2), remote.Calls())
	})

	t.Run("reports exhausted requests", func(t *testing.T) {
		a := testutil.NewHTTPNode(t).SetStatus(http.StatusServiceUnavailable)
		b := testutil.NewHTTPNode(t).SetStatus(http.StatusServiceUnavailable)
		remote := testutil.NewHTTPNode(t)
		cfg := writeConfig(t, twoDatacenters, a.URL, b.URL, remote.URL)

		out, err := run(t, "probe", "--config", cfg, "-n", "2", "-c", "2")
		require.NoError(t, err)
		require.Contains(t, out, "failed: 2")
		require.Contains(t, out, "no resource available: 2")
		require.Contains(t, out, "active: east")
		require.Zero(t, remote.Calls())
	})

	t.Run("rejects conflicting topology sources", func(t *testing.T) {
		cfg := writeConfig(t, twoDatacenters, "a:1", "b:1", "x:1")
		_, err := run(t, "probe", "--config", cfg, "--watch-config", "--nats-url", "nats://127.0.0.1:4222")
		require.Error(t, err)
	})
}

func TestProbeCommand_NATSTopology(t *testing.T) {
	down := testutil.NewHTTPNode(t).SetStatus(http.StatusServiceUnavailable)
	good := testutil.NewHTTPNode(t)
	cfg := writeConfig(t, "datacenters:\n  - name: east\n    nodes:\n      - address: %s\n", down.URL)

	server := testutil.StartNATS(t)
	kv := server.CreateKV(t, "routing")
	testutil.PutTopology(t, kv, "api.topology", types.Endpoint{Datacenter: "east", Address: good.URL})

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	out, err := runContext(ctx, "probe", "--config", cfg,
		"--nats-url", server.URL, "--nats-bucket", "routing", "--nats-key", "api.topology",
		"-n", "1", "--interval", "50ms")
	require.NoError(t, err)
	require.Contains(t, out, good.URL)
	require.Positive(t, good.Calls())
}

func TestWebHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := prom.New(prom.WithRegisterer(registry))
	require.NoError(t, err)

	router, err := meridian.NewRouter(
		[]types.Datacenter{
			testutil.Datacenter("east", "a", "b"),
			testutil.Datacenter("west", "x"),
		},
		meridian.WithMetrics(collector),
		meridian.WithFailureThreshold(1),
	)
	require.NoError(t, err)
	defer router.Close()

	cluster := testutil.NewCluster().Fail("a", types.Retryable(fmt.Errorf("down")))
	for range 2 {
		require.NoError(t, router.Execute(t.Context(), cluster.Attempt))
	}
	require.Equal(t, 1, cluster.Calls("a"))

	handler := newWebHandler(registry, router)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "east", body.Active)
		require.False(t, body.Nodes["a"].Available)
		require.Equal(t, 1, body.Nodes["a"].ConsecutiveFailures)
	})

	t.Run("topology", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topology", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body topologyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "east", body.Active)
		require.Len(t, body.Datacenters, 2)
		require.Equal(t, "west", body.Datacenters[1].Name)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "meridian_requests_total 2")
		require.Contains(t, rec.Body.String(), `meridian_node_unavailable_total{node="a"} 1`)
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
