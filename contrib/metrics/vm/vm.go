package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/meridian/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "meridian"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Request counters are created up front. Per-datacenter and per-node series
// are created on first use, since the topology can change at runtime.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	requestTotal  *metrics.Counter
	requestFailed map[types.ErrorKind]*metrics.Counter

	activeMu sync.Mutex
	active   string
}

var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally
// unless WithMetricsSet is given.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{prefix: "meridian"}

	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.requestTotal = c.set.NewCounter(c.prefix + "_requests_total")
	c.requestFailed = make(map[types.ErrorKind]*metrics.Counter)
	for _, kind := range []types.ErrorKind{
		types.KindRetryable,
		types.KindNonRetryable,
		types.KindNoResourceAvailable,
		types.KindTopologyConfiguration,
	} {
		c.requestFailed[kind] = c.set.NewCounter(fmt.Sprintf(`%s_requests_failed_total{kind=%q}`, c.prefix, kind.String()))
	}

	return c
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Requests
// ----------------------

// IncRequestTotal increments the Execute counter.
func (c *Collector) IncRequestTotal() {
	c.requestTotal.Inc()
}

// IncRequestFailed increments the failed request counter for kind.
func (c *Collector) IncRequestFailed(kind types.ErrorKind) {
	if counter, ok := c.requestFailed[kind]; ok {
		counter.Inc()
		return
	}
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_requests_failed_total{kind=%q}`, c.prefix, kind.String())).Inc()
}

// ----------------------
// Attempts
// ----------------------

// IncAttemptTotal increments the attempt counter of a node.
func (c *Collector) IncAttemptTotal(datacenter, node string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_attempts_total{datacenter=%q,node=%q}`, c.prefix, datacenter, node)).Inc()
}

// IncAttemptError increments the attempt error counter of a node.
func (c *Collector) IncAttemptError(datacenter, node string, kind types.ErrorKind) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_attempt_errors_total{datacenter=%q,node=%q,kind=%q}`,
		c.prefix, datacenter, node, kind.String())).Inc()
}

// ObserveAttemptDuration records an attempt duration in seconds.
func (c *Collector) ObserveAttemptDuration(datacenter string, seconds float64) {
	c.set.GetOrCreateHistogram(fmt.Sprintf(`%s_attempt_duration_seconds{datacenter=%q}`, c.prefix, datacenter)).Update(seconds)
}

// IncDesperationRetry increments the desperation retry counter.
func (c *Collector) IncDesperationRetry(datacenter string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_desperation_retries_total{datacenter=%q}`, c.prefix, datacenter)).Inc()
}

// ----------------------
// Datacenters
// ----------------------

// IncFailoverTotal increments the automatic failover counter.
func (c *Collector) IncFailoverTotal(from, to string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_failover_total{from=%q,to=%q}`, c.prefix, from, to)).Inc()
}

// IncSwitchTotal increments the manual switch counter.
func (c *Collector) IncSwitchTotal(from, to string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_switch_total{from=%q,to=%q}`, c.prefix, from, to)).Inc()
}

// SetActiveDatacenter sets the active datacenter gauge to 1 and the
// previously active one to 0.
func (c *Collector) SetActiveDatacenter(datacenter string) {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()

	if c.active != "" && c.active != datacenter {
		c.activeGauge(c.active).Set(0)
	}
	c.activeGauge(datacenter).Set(1)
	c.active = datacenter
}

func (c *Collector) activeGauge(datacenter string) *metrics.Gauge {
	return c.set.GetOrCreateGauge(fmt.Sprintf(`%s_active_datacenter{datacenter=%q}`, c.prefix, datacenter), nil)
}

// ----------------------
// Node Health
// ----------------------

// SetNodeAvailable sets the node availability gauge (1=available, 0=unavailable).
func (c *Collector) SetNodeAvailable(node string, available bool) {
	val := 0.0
	if available {
		val = 1
	}
	c.set.GetOrCreateGauge(fmt.Sprintf(`%s_node_available{node=%q}`, c.prefix, node), nil).Set(val)
}

// IncNodeUnavailable increments the counter of available to unavailable transitions.
func (c *Collector) IncNodeUnavailable(node string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_node_unavailable_total{node=%q}`, c.prefix, node)).Inc()
}
