package prom

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/meridian/types"
)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace  string
	registerer prometheus.Registerer
}

// WithNamespace sets the metric namespace.
//
// Default: "meridian"
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithRegisterer sets the registerer the collector registers with.
//
// Default: prometheus.DefaultRegisterer
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// Collector implements types.MetricsCollector using the Prometheus client.
type Collector struct {
	requests        prometheus.Counter
	requestsFailed  *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptErrors   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	desperation     *prometheus.CounterVec
	failovers       *prometheus.CounterVec
	switches        *prometheus.CounterVec
	active          *prometheus.GaugeVec
	nodeAvailable   *prometheus.GaugeVec
	nodeUnavailable *prometheus.CounterVec
}

var _ types.MetricsCollector = (*Collector)(nil)

// New creates and registers a Prometheus collector.
//
// Parameters:
//   - opts: Configuration options
//
// Returns:
//   - *Collector: A new collector
//   - error: Registration error (e.g., duplicate registration)
//
// Example:
//
//	collector, err := prom.New(prom.WithNamespace("api_client"))
//	router, _ := meridian.NewRouter(datacenters, meridian.WithMetrics(collector))
//	http.Handle("/metrics", promhttp.Handler())
func New(opts ...Option) (*Collector, error) {
	o := options{namespace: "meridian", registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	ns := o.namespace
	c := &Collector{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "requests_total",
			Help: "Number of routed operations.",
		}),
		requestsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "requests_failed_total",
			Help: "Number of routed operations that failed, by error kind.",
		}, []string{"kind"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "attempts_total",
			Help: "Number of node attempts.",
		}, []string{"datacenter", "node"}),
		attemptErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "attempt_errors_total",
			Help: "Number of failed node attempts, by error kind.",
		}, []string{"datacenter", "node", "kind"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "attempt_duration_seconds",
			Help:    "Node attempt latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"datacenter"}),
		desperation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "desperation_retries_total",
			Help: "Attempts made against an unavailable node because no node was available.",
		}, []string{"datacenter"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "failover_total",
			Help: "Automatic datacenter failovers.",
		}, []string{"from", "to"}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "switch_total",
			Help: "Manual datacenter switches.",
		}, []string{"from", "to"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "active_datacenter",
			Help: "1 for the active datacenter.",
		}, []string{"datacenter"}),
		nodeAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "node_available",
			Help: "1 if the node is available, 0 otherwise.",
		}, []string{"node"}),
		nodeUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "node_unavailable_total",
			Help: "Transitions of a node to unavailable.",
		}, []string{"node"}),
	}

	for _, col := range []prometheus.Collector{
		c.requests, c.requestsFailed, c.attempts, c.attemptErrors, c.attemptDuration,
		c.desperation, c.failovers, c.switches, c.active, c.nodeAvailable, c.nodeUnavailable,
	} {
		if err := o.registerer.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func kindLabel(kind types.ErrorKind) string {
	return strings.ReplaceAll(kind.String(), " ", "_")
}

func (c *Collector) IncRequestTotal() {
	c.requests.Inc()
}

func (c *Collector) IncRequestFailed(kind types.ErrorKind) {
	c.requestsFailed.WithLabelValues(kindLabel(kind)).Inc()
}

func (c *Collector) IncAttemptTotal(datacenter, node string) {
	c.attempts.WithLabelValues(datacenter, node).Inc()
}

func (c *Collector) IncAttemptError(datacenter, node string, kind types.ErrorKind) {
	c.attemptErrors.WithLabelValues(datacenter, node, kindLabel(kind)).Inc()
}

func (c *Collector) ObserveAttemptDuration(datacenter string, seconds float64) {
	c.attemptDuration.WithLabelValues(datacenter).Observe(seconds)
}

func (c *Collector) IncDesperationRetry(datacenter string) {
	c.desperation.WithLabelValues(datacenter).Inc()
}

func (c *Collector) IncFailoverTotal(from, to string) {
	c.failovers.WithLabelValues(from, to).Inc()
}

func (c *Collector) IncSwitchTotal(from, to string) {
	c.switches.WithLabelValues(from, to).Inc()
}

// SetActiveDatacenter marks datacenter active and every other known
// datacenter inactive.
func (c *Collector) SetActiveDatacenter(datacenter string) {
	c.active.Reset()
	c.active.WithLabelValues(datacenter).Set(1)
}

func (c *Collector) SetNodeAvailable(node string, available bool) {
	val := 0.0
	if available {
		val = 1
	}
	c.nodeAvailable.WithLabelValues(node).Set(val)
}

func (c *Collector) IncNodeUnavailable(node string) {
	c.nodeUnavailable.WithLabelValues(node).Inc()
}
