package meridian_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/meridian"
	"github.com/arloliu/meridian/policy"
	"github.com/arloliu/meridian/test/testutil"
	"github.com/arloliu/meridian/topology"
	"github.com/arloliu/meridian/types"
)

var errDown = errors.New("connection refused")

func twoDatacenters() []types.Datacenter {
	return []types.Datacenter{
		testutil.Datacenter("east", "a", "b"),
		testutil.Datacenter("west", "x", "y"),
	}
}

func newRouter(t *testing.T, dcs []types.Datacenter, opts ...meridian.Option) *meridian.Router {
	t.Helper()

	r, err := meridian.NewRouter(dcs, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)

	return r
}

func TestNewRouter(t *testing.T) {
	t.Run("defaults to first datacenter", func(t *testing.T) {
		r := newRouter(t, twoDatacenters())
		require.Equal(t, "east", r.ActiveDatacenter())
		require.Equal(t, types.PolicyRoundRobin, r.Config().Policy)
		require.Equal(t, meridian.DefaultFailureThreshold, r.Config().FailureThreshold)
	})

	t.Run("pinned active datacenter", func(t *testing.T) {
		r := newRouter(t, twoDatacenters(), meridian.WithActiveDatacenter("west"))
		require.Equal(t, "west", r.ActiveDatacenter())
	})

	t.Run("unknown active datacenter", func(t *testing.T) {
		_, err := meridian.NewRouter(twoDatacenters(), meridian.WithActiveDatacenter("north"))
		require.ErrorIs(t, err, types.ErrTopologyConfiguration)
	})

	t.Run("empty topology", func(t *testing.T) {
		_, err := meridian.NewRouter(nil)
		require.ErrorIs(t, err, types.ErrTopologyConfiguration)
	})

	t.Run("unknown policy", func(t *testing.T) {
		_, err := meridian.NewRouter(twoDatacenters(), meridian.WithPolicy("LEAST_LOADED"))
		require.ErrorIs(t, err, types.ErrTopologyConfiguration)
	})

	t.Run("from endpoints", func(t *testing.T) {
		r, err := meridian.NewRouterFromEndpoints([]types.Endpoint{
			{Datacenter: "east", Address: "a"},
			{Datacenter: "west", Address: "x"},
			{Datacenter: "east", Address: "b"},
		})
		require.NoError(t, err)
		defer r.Close()

		require.Equal(t, []string{"east", "west"}, r.Topology().Names())
		east, ok := r.Topology().Datacenter("east")
		require.True(t, ok)
		require.Len(t, east.Nodes, 2)
	})
}

func TestExecute_RoundRobinVisitsEachNodeOnce(t *testing.T) {
	cluster := testutil.NewCluster()
	r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b", "c")})

	for range 3 {
		require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	}

	require.Equal(t, []string{"a", "b", "c"}, cluster.Order())
	for _, addr := range []string{"a", "b", "c"} {
		require.Equal(t, 1, cluster.Calls(addr))
	}
}

// reversePolicy tries nodes from last to first.
type reversePolicy struct {
	mu     sync.Mutex
	logger types.Logger
}

func (p *reversePolicy) Order(req policy.Request) []types.Node {
	out := make([]types.Node, 0, len(req.Nodes))
	for i := len(req.Nodes) - 1; i >= 0; i-- {
		out = append(out, req.Nodes[i])
	}

	return out
}

func (p *reversePolicy) SetLogger(l types.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = l
}

func TestExecute_CustomSelectionPolicy(t *testing.T) {
	custom := &reversePolicy{}
	cluster := testutil.NewCluster().Fail("c", errDown)
	r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b", "c")},
		meridian.WithSelectionPolicy(custom),
	)

	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, []string{"c", "b"}, cluster.Order())

	custom.mu.Lock()
	defer custom.mu.Unlock()
	require.NotNil(t, custom.logger)
}

func TestExecute_RetriesNextNode(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b", "c")})

	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, []string{"a", "b"}, cluster.Order())

	health := r.HealthSnapshot()
	require.Equal(t, 1, health["a"].ConsecutiveFailures)
	require.True(t, health["a"].Available)
	require.Equal(t, 0, health["b"].ConsecutiveFailures)
}

func TestExecute_UnclassifiedErrorIsRetryable(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errors.New("boom"))
	r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b")})

	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, 2, cluster.TotalCalls())
}

func TestExecute_NoResourceAvailable(t *testing.T) {
	t.Run("default attempt budget", func(t *testing.T) {
		cluster := testutil.NewCluster().
			Fail("a", errDown).
			Fail("b", errDown).
			Fail("c", errDown)
		collector := testutil.NewTestMetricsCollector()
		r := newRouter(t,
			[]types.Datacenter{testutil.Datacenter("east", "a", "b", "c")},
			meridian.WithMetrics(collector),
		)

		err := r.Execute(t.Context(), cluster.Attempt)
		require.ErrorIs(t, err, types.ErrNoResourceAvailable)
		require.ErrorIs(t, err, errDown)

		var routeErr *types.RouteError
		require.ErrorAs(t, err, &routeErr)
		require.Equal(t, types.KindNoResourceAvailable, routeErr.Kind)
		require.Equal(t, []string{"east"}, routeErr.Datacenters)
		require.Len(t, routeErr.Attempts, 3)
		require.NotEmpty(t, routeErr.OperationID)
		require.Contains(t, err.Error(), "east/a")

		require.Equal(t, 3, cluster.TotalCalls())
		require.Equal(t, int64(1), collector.GetRequestFailed(types.KindNoResourceAvailable))
	})

	t.Run("explicit attempt budget", func(t *testing.T) {
		cluster := testutil.NewCluster().
			Fail("a", errDown).
			Fail("b", errDown).
			Fail("c", errDown)
		r := newRouter(t,
			[]types.Datacenter{testutil.Datacenter("east", "a", "b", "c")},
			meridian.WithMaxAttemptsPerDatacenter(2),
		)

		err := r.Execute(t.Context(), cluster.Attempt)
		require.ErrorIs(t, err, types.ErrNoResourceAvailable)
		require.Equal(t, 2, cluster.TotalCalls())
	})

	t.Run("ceiling caps large datacenters", func(t *testing.T) {
		addrs := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8"}
		cluster := testutil.NewCluster()
		for _, a := range addrs {
			cluster.Fail(a, errDown)
		}
		r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", addrs...)})

		err := r.Execute(t.Context(), cluster.Attempt)
		require.ErrorIs(t, err, types.ErrNoResourceAvailable)
		require.Equal(t, meridian.MaxAttemptsCeiling, cluster.TotalCalls())
	})
}

func TestExecute_NonRetryableAbortsWithoutHealthChange(t *testing.T) {
	errBad := errors.New("400 bad request")
	cluster := testutil.NewCluster().Fail("a", types.NonRetryable(errBad))
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t,
		[]types.Datacenter{testutil.Datacenter("east", "a", "b")},
		meridian.WithMetrics(collector),
	)

	err := r.Execute(t.Context(), cluster.Attempt)
	require.ErrorIs(t, err, types.ErrNonRetryable)
	require.ErrorIs(t, err, errBad)
	require.Equal(t, types.KindNonRetryable, types.KindOf(err))
	require.Equal(t, []string{"a"}, cluster.Order())

	rec := r.HealthSnapshot()["a"]
	require.True(t, rec.Available)
	require.Equal(t, 0, rec.ConsecutiveFailures)
	require.True(t, rec.LastFailureAt.IsZero())
	require.Equal(t, int64(1), collector.GetRequestFailed(types.KindNonRetryable))
}

func TestExecute_MarksNodeUnavailableAtThreshold(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	r := newRouter(t,
		[]types.Datacenter{testutil.Datacenter("east", "a", "b")},
		meridian.WithFailureThreshold(2),
		meridian.WithMaxAttemptsPerDatacenter(1),
	)

	// Round-robin alternates a and b; a fails on every visit.
	for range 4 {
		_ = r.Execute(t.Context(), cluster.Attempt)
	}
	require.False(t, r.HealthSnapshot()["a"].Available)
	require.Equal(t, 2, cluster.Calls("a"))

	// a is skipped while b stays healthy.
	cluster.ResetCalls()
	for range 4 {
		require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	}
	require.Equal(t, 0, cluster.Calls("a"))
	require.Equal(t, 4, cluster.Calls("b"))
}

func TestExecute_DesperationRetry(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown).Fail("b", errDown)
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t,
		[]types.Datacenter{testutil.Datacenter("east", "a", "b")},
		meridian.WithFailureThreshold(1),
		meridian.WithMaxAttemptsPerDatacenter(1),
		meridian.WithMetrics(collector),
	)

	require.Error(t, r.Execute(t.Context(), cluster.Attempt))
	time.Sleep(2 * time.Millisecond)
	require.Error(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, []string{"a", "b"}, cluster.Order())

	health := r.HealthSnapshot()
	require.False(t, health["a"].Available)
	require.False(t, health["b"].Available)

	// b failed most recently and is tried once.
	cluster.Recover("b")
	cluster.ResetCalls()
	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, []string{"b"}, cluster.Order())
	require.Equal(t, int64(1), collector.GetDesperationRetries("east"))

	health = r.HealthSnapshot()
	require.True(t, health["b"].Available)
	require.Equal(t, 0, health["b"].ConsecutiveFailures)
	require.False(t, health["a"].Available)
}

func TestExecute_DesperationFailureIsReported(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	r := newRouter(t,
		[]types.Datacenter{testutil.Datacenter("east", "a")},
		meridian.WithFailureThreshold(1),
	)

	require.Error(t, r.Execute(t.Context(), cluster.Attempt))

	err := r.Execute(t.Context(), cluster.Attempt)
	var routeErr *types.RouteError
	require.ErrorAs(t, err, &routeErr)
	require.Len(t, routeErr.Attempts, 1)
	require.True(t, routeErr.Attempts[0].Desperation)
	require.Equal(t, 2, r.HealthSnapshot()["a"].ConsecutiveFailures)
}

func TestExecute_AutoFailover(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown).Fail("b", errDown)
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t, twoDatacenters(),
		meridian.WithAutoDatacenterFailover(true),
		meridian.WithMetrics(collector),
	)

	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, "west", r.ActiveDatacenter())
	require.Equal(t, []string{"a", "b", "x"}, cluster.Order())
	require.Equal(t, int64(1), collector.GetFailoverCount("east", "west"))
	require.Equal(t, "west", collector.GetActive())

	// Subsequent requests stay on west.
	cluster.ResetCalls()
	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, 0, cluster.Calls("a")+cluster.Calls("b"))
}

func TestExecute_FailoverDisabled(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown).Fail("b", errDown)
	r := newRouter(t, twoDatacenters())

	err := r.Execute(t.Context(), cluster.Attempt)
	require.ErrorIs(t, err, types.ErrNoResourceAvailable)
	require.Equal(t, "east", r.ActiveDatacenter())
	require.Equal(t, 0, cluster.Calls("x")+cluster.Calls("y"))
}

func TestExecute_FailoverHappensOncePerRequest(t *testing.T) {
	cluster := testutil.NewCluster()
	for _, a := range []string{"a", "b", "x", "y"} {
		cluster.Fail(a, errDown)
	}
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t, twoDatacenters(),
		meridian.WithAutoDatacenterFailover(true),
		meridian.WithMetrics(collector),
	)

	err := r.Execute(t.Context(), cluster.Attempt)

	var routeErr *types.RouteError
	require.ErrorAs(t, err, &routeErr)
	require.Equal(t, types.KindNoResourceAvailable, routeErr.Kind)
	require.Equal(t, []string{"east", "west"}, routeErr.Datacenters)
	require.Len(t, routeErr.Attempts, 4)
	require.Equal(t, "west", r.ActiveDatacenter())
	require.Equal(t, int64(1), collector.GetTotalFailovers())
}

func TestExecute_SingleDatacenterDoesNotFailOver(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	r := newRouter(t,
		[]types.Datacenter{testutil.Datacenter("east", "a")},
		meridian.WithAutoDatacenterFailover(true),
	)

	err := r.Execute(t.Context(), cluster.Attempt)
	require.ErrorIs(t, err, types.ErrNoResourceAvailable)
	require.Equal(t, "east", r.ActiveDatacenter())
}

func TestExecute_ConcurrentFailoverConverges(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown).Fail("b", errDown)
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t, twoDatacenters(),
		meridian.WithAutoDatacenterFailover(true),
		meridian.WithMetrics(collector),
	)

	const workers = 100
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.Execute(context.Background(), cluster.Attempt)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	require.Equal(t, "west", r.ActiveDatacenter())
	require.Equal(t, int64(1), collector.GetTotalFailovers())
	require.Equal(t, int64(workers), collector.GetTotalRequests())
}

func TestExecute_ConcurrentOperationsConverge(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b")})

	const workers = 100
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.Execute(t.Context(), cluster.Attempt)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	rec := r.HealthSnapshot()["a"]
	require.False(t, rec.Available)
	require.GreaterOrEqual(t, rec.ConsecutiveFailures, 3)
	require.True(t, r.HealthSnapshot()["b"].Available)

	cluster.ResetCalls()
	for range 50 {
		require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	}
	assert.Zero(t, cluster.Calls("a"), "unavailable node is skipped")
	assert.Equal(t, 50, cluster.Calls("b"))
}

func TestExecute_FailoverResetsHealthBeforePublish(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown).Fail("b", errDown).Fail("x", errDown)
	r := newRouter(t, twoDatacenters(),
		meridian.WithAutoDatacenterFailover(true),
		meridian.WithFailureThreshold(1),
	)

	require.NoError(t, r.SwitchDatacenter("west"))
	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
	require.False(t, r.HealthSnapshot()["x"].Available)

	cluster.Recover("x")
	require.NoError(t, r.SwitchDatacenter("east"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var stale atomic.Int64
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if r.ActiveDatacenter() == "west" && !r.HealthSnapshot()["x"].Available {
				stale.Add(1)
			}
		}
	}()

	err := r.Execute(t.Context(), cluster.Attempt)
	close(stop)
	wg.Wait()

	require.NoError(t, err)
	require.Equal(t, "west", r.ActiveDatacenter())
	assert.Equal(t, 1, cluster.Calls("a"))
	assert.True(t, r.HealthSnapshot()["x"].Available)
	assert.Zero(t, stale.Load(), "west published with stale health")
}

func TestReconfigure_AfterSwitchRecordsNoExtraSwitch(t *testing.T) {
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t, twoDatacenters(), meridian.WithMetrics(collector))

	require.NoError(t, r.SwitchDatacenter("west"))
	require.NoError(t, r.Reconfigure([]types.Datacenter{
		testutil.Datacenter("east", "a", "b"),
		testutil.Datacenter("west", "x", "y", "z"),
	}))

	assert.Equal(t, "west", r.ActiveDatacenter())
	assert.Equal(t, int64(1), collector.GetSwitchCount("east", "west"))
	assert.Zero(t, collector.GetSwitchCount("west", "east"))
	assert.Equal(t, "west", collector.GetActive())
}

func TestExecute_SharedSelectionPolicy(t *testing.T) {
	shared := policy.NewRoundRobin()
	clusterA := testutil.NewCluster()
	clusterB := testutil.NewCluster()
	ra := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b")}, meridian.WithSelectionPolicy(shared))
	rb := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "c", "d")}, meridian.WithSelectionPolicy(shared))

	for range 4 {
		require.NoError(t, ra.Execute(t.Context(), clusterA.Attempt))
		require.NoError(t, rb.Execute(t.Context(), clusterB.Attempt))
	}

	assert.Equal(t, 2, clusterA.Calls("a"))
	assert.Equal(t, 2, clusterA.Calls("b"))
	assert.Equal(t, 2, clusterB.Calls("c"))
	assert.Equal(t, 2, clusterB.Calls("d"))
}

func TestExecute_Cancellation(t *testing.T) {
	t.Run("deadline during attempt", func(t *testing.T) {
		cluster := testutil.NewCluster().Delay("a", time.Second)
		collector := testutil.NewTestMetricsCollector()
		r := newRouter(t,
			[]types.Datacenter{testutil.Datacenter("east", "a", "b")},
			meridian.WithMetrics(collector),
		)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		err := r.Execute(ctx, cluster.Attempt)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Equal(t, []string{"a"}, cluster.Order())

		rec := r.HealthSnapshot()["a"]
		require.Equal(t, 0, rec.ConsecutiveFailures)
		require.True(t, rec.Available)
		require.Equal(t, int64(0), collector.GetRequestFailed(types.KindNoResourceAvailable))
	})

	t.Run("already cancelled", func(t *testing.T) {
		cluster := testutil.NewCluster()
		r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a")})

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := r.Execute(ctx, cluster.Attempt)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 0, cluster.TotalCalls())
	})

	t.Run("cancelled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		cluster := testutil.NewCluster().Fail("a", errDown)
		cluster.OnAttempt = func(context.Context, types.Node) { cancel() }
		r := newRouter(t, []types.Datacenter{testutil.Datacenter("east", "a", "b")})

		err := r.Execute(ctx, cluster.Attempt)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, cluster.TotalCalls())
		require.Equal(t, 0, r.HealthSnapshot()["a"].ConsecutiveFailures)
	})
}

func TestExecute_NilFunction(t *testing.T) {
	r := newRouter(t, twoDatacenters())
	require.ErrorIs(t, r.Execute(t.Context(), nil), types.ErrNilDispatcher)
}

func TestSwitchDatacenter(t *testing.T) {
	t.Run("switches and records metric", func(t *testing.T) {
		collector := testutil.NewTestMetricsCollector()
		r := newRouter(t, twoDatacenters(), meridian.WithMetrics(collector))

		require.NoError(t, r.SwitchDatacenter("west"))
		require.Equal(t, "west", r.ActiveDatacenter())
		require.Equal(t, int64(1), collector.GetSwitchCount("east", "west"))
		require.Equal(t, int64(0), collector.GetTotalFailovers())

		cluster := testutil.NewCluster()
		require.NoError(t, r.Execute(t.Context(), cluster.Attempt))
		require.Equal(t, 0, cluster.Calls("a")+cluster.Calls("b"))
	})

	t.Run("unknown datacenter leaves active unchanged", func(t *testing.T) {
		r := newRouter(t, twoDatacenters())

		err := r.SwitchDatacenter("north")
		require.ErrorIs(t, err, types.ErrTopologyConfiguration)
		require.Equal(t, "east", r.ActiveDatacenter())
	})

	t.Run("resets health of the new datacenter", func(t *testing.T) {
		cluster := testutil.NewCluster().Fail("x", errDown).Fail("y", errDown)
		r := newRouter(t, twoDatacenters(),
			meridian.WithActiveDatacenter("west"),
			meridian.WithFailureThreshold(1),
		)

		require.Error(t, r.Execute(t.Context(), cluster.Attempt))
		require.False(t, r.HealthSnapshot()["x"].Available)

		require.NoError(t, r.SwitchDatacenter("east"))
		require.NoError(t, r.SwitchDatacenter("west"))

		health := r.HealthSnapshot()
		require.True(t, health["x"].Available)
		require.Equal(t, 0, health["x"].ConsecutiveFailures)
		require.True(t, health["y"].Available)
	})

	t.Run("same datacenter resets health without metric", func(t *testing.T) {
		collector := testutil.NewTestMetricsCollector()
		cluster := testutil.NewCluster().Fail("a", errDown)
		r := newRouter(t, twoDatacenters(),
			meridian.WithMetrics(collector),
			meridian.WithMaxAttemptsPerDatacenter(1),
		)

		require.Error(t, r.Execute(t.Context(), cluster.Attempt))
		require.Equal(t, 1, r.HealthSnapshot()["a"].ConsecutiveFailures)

		require.NoError(t, r.SwitchDatacenter("east"))
		require.Equal(t, 0, r.HealthSnapshot()["a"].ConsecutiveFailures)
		require.Equal(t, int64(0), collector.GetSwitchCount("east", "east"))
	})
}

func TestReconfigure(t *testing.T) {
	t.Run("keeps active datacenter", func(t *testing.T) {
		r := newRouter(t, twoDatacenters(), meridian.WithActiveDatacenter("west"))

		err := r.Reconfigure([]types.Datacenter{
			testutil.Datacenter("east", "a"),
			testutil.Datacenter("west", "x", "z"),
		})
		require.NoError(t, err)
		require.Equal(t, "west", r.ActiveDatacenter())

		west, ok := r.Topology().Datacenter("west")
		require.True(t, ok)
		require.Len(t, west.Nodes, 2)
	})

	t.Run("removed active datacenter falls back to first", func(t *testing.T) {
		collector := testutil.NewTestMetricsCollector()
		r := newRouter(t, twoDatacenters(),
			meridian.WithActiveDatacenter("west"),
			meridian.WithMetrics(collector),
		)

		require.NoError(t, r.Reconfigure([]types.Datacenter{testutil.Datacenter("east", "a", "b")}))
		require.Equal(t, "east", r.ActiveDatacenter())
		require.Equal(t, "east", collector.GetActive())
	})

	t.Run("invalid topology keeps previous", func(t *testing.T) {
		r := newRouter(t, twoDatacenters())
		before := r.Topology()

		err := r.Reconfigure([]types.Datacenter{
			testutil.Datacenter("east", "a"),
			testutil.Datacenter("east", "b"),
		})
		require.ErrorIs(t, err, types.ErrTopologyConfiguration)
		require.Same(t, before, r.Topology())
	})

	t.Run("drops health of removed nodes", func(t *testing.T) {
		cluster := testutil.NewCluster().Fail("a", errDown)
		r := newRouter(t, twoDatacenters(), meridian.WithMaxAttemptsPerDatacenter(1))

		require.Error(t, r.Execute(t.Context(), cluster.Attempt))
		require.Equal(t, 1, r.HealthSnapshot()["a"].ConsecutiveFailures)

		require.NoError(t, r.Reconfigure([]types.Datacenter{testutil.Datacenter("east", "b")}))
		_, present := r.HealthSnapshot()["a"]
		require.False(t, present)

		require.NoError(t, r.Reconfigure(twoDatacenters()))
		require.Equal(t, 0, r.HealthSnapshot()["a"].ConsecutiveFailures)
	})
}

func TestTopologySource(t *testing.T) {
	source := topology.NewLocal()
	defer source.Close()

	r := newRouter(t, twoDatacenters(), meridian.WithTopologySource(source))

	source.PublishDatacenters([]types.Datacenter{
		testutil.Datacenter("east", "a", "b", "c"),
		testutil.Datacenter("west", "x"),
	})

	require.Eventually(t, func() bool {
		east, ok := r.Topology().Datacenter("east")
		return ok && len(east.Nodes) == 3
	}, time.Second, 5*time.Millisecond)

	// Invalid updates are ignored.
	before := r.Topology()
	source.Publish([]types.Endpoint{{Datacenter: "bad name!", Address: "q"}})
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, before.Version(), r.Topology().Version())

	// Active datacenter removed by the feed.
	source.PublishDatacenters([]types.Datacenter{testutil.Datacenter("west", "x")})
	require.Eventually(t, func() bool {
		return r.ActiveDatacenter() == "west"
	}, time.Second, 5*time.Millisecond)
}

func TestHealthSnapshot(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown).Fail("b", errDown)
	r := newRouter(t, twoDatacenters(), meridian.WithMaxAttemptsPerDatacenter(1))

	require.Error(t, r.Execute(t.Context(), cluster.Attempt))

	health := r.HealthSnapshot()
	require.Len(t, health, 4)
	assert.Equal(t, 1, health["a"].ConsecutiveFailures)
	assert.True(t, health["a"].Available)
	assert.False(t, health["a"].LastFailureAt.IsZero())
	for _, addr := range []string{"b", "x", "y"} {
		assert.Equal(t, types.HealthRecord{Available: true}, health[addr], addr)
	}

	r.ResetHealth(types.Node{Address: "a", Datacenter: "east"})
	require.Equal(t, 0, r.HealthSnapshot()["a"].ConsecutiveFailures)

	require.Error(t, r.Execute(t.Context(), cluster.Attempt))
	require.Equal(t, 1, r.HealthSnapshot()["b"].ConsecutiveFailures)
	r.ResetAllHealth()
	require.Equal(t, 0, r.HealthSnapshot()["b"].ConsecutiveFailures)
}

func TestClose(t *testing.T) {
	r, err := meridian.NewRouter(twoDatacenters())
	require.NoError(t, err)

	r.Close()
	r.Close()

	cluster := testutil.NewCluster()
	require.ErrorIs(t, r.Execute(t.Context(), cluster.Attempt), types.ErrRouterClosed)
	require.ErrorIs(t, r.SwitchDatacenter("west"), types.ErrRouterClosed)
	require.ErrorIs(t, r.Reconfigure(twoDatacenters()), types.ErrRouterClosed)
	require.Equal(t, 0, cluster.TotalCalls())
}

func TestCall(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	r := newRouter(t, twoDatacenters())

	addr, err := meridian.Call(t.Context(), r, func(ctx context.Context, node types.Node) (string, error) {
		if err := cluster.Attempt(ctx, node); err != nil {
			return "", err
		}

		return node.Address, nil
	})
	require.NoError(t, err)
	require.Equal(t, "b", addr)

	_, err = meridian.Call[int](t.Context(), r, nil)
	require.ErrorIs(t, err, types.ErrNilDispatcher)
}

func TestSend(t *testing.T) {
	cluster := testutil.NewCluster()
	r := newRouter(t, twoDatacenters())

	res, err := meridian.Send[string, string](t.Context(), r, cluster, "ping")
	require.NoError(t, err)
	require.Equal(t, "a:ping", res)

	fn := meridian.DispatcherFunc[int, int](func(_ context.Context, _ types.Node, op int) (int, error) {
		return op * 2, nil
	})
	doubled, err := meridian.Send[int, int](t.Context(), r, fn, 21)
	require.NoError(t, err)
	require.Equal(t, 42, doubled)

	_, err = meridian.Send[string, string](t.Context(), r, nil, "ping")
	require.ErrorIs(t, err, types.ErrNilDispatcher)
}

func TestMetrics(t *testing.T) {
	cluster := testutil.NewCluster().Fail("a", errDown)
	collector := testutil.NewTestMetricsCollector()
	r := newRouter(t, twoDatacenters(),
		meridian.WithMetrics(collector),
		meridian.WithFailureThreshold(1),
	)

	require.Equal(t, "east", collector.GetActive())
	require.NoError(t, r.Execute(t.Context(), cluster.Attempt))

	require.Equal(t, int64(1), collector.GetTotalRequests())
	require.Equal(t, int64(1), collector.GetAttempts("a"))
	require.Equal(t, int64(1), collector.GetAttempts("b"))

	available, reported := collector.IsNodeAvailable("a")
	require.True(t, reported)
	require.False(t, available)
}
