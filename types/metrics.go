package types

// MetricsCollector defines methods for collecting operational metrics.
//
// Datacenter and node arguments are plain names/addresses used as label
// values. Implementations should be thread-safe as methods may be called
// concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/meridian/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Requests
	// ----------------------

	// IncRequestTotal increments the counter of Execute calls.
	IncRequestTotal()

	// IncRequestFailed increments the counter of Execute calls that returned
	// a terminal error of the given kind.
	IncRequestFailed(kind ErrorKind)

	// ----------------------
	// Attempts
	// ----------------------

	// IncAttemptTotal increments the attempt counter for a node.
	IncAttemptTotal(datacenter, node string)

	// IncAttemptError increments the failed attempt counter for a node.
	IncAttemptError(datacenter, node string, kind ErrorKind)

	// ObserveAttemptDuration records an attempt duration in seconds.
	ObserveAttemptDuration(datacenter string, seconds float64)

	// IncDesperationRetry increments the counter of last-resort attempts
	// against unavailable nodes.
	IncDesperationRetry(datacenter string)

	// ----------------------
	// Failover
	// ----------------------

	// IncFailoverTotal increments the automatic datacenter failover counter.
	IncFailoverTotal(fromDatacenter, toDatacenter string)

	// IncSwitchTotal increments the manual datacenter switch counter.
	IncSwitchTotal(fromDatacenter, toDatacenter string)

	// SetActiveDatacenter records the currently active datacenter.
	SetActiveDatacenter(datacenter string)

	// ----------------------
	// Node Health
	// ----------------------

	// SetNodeAvailable sets the availability gauge for a node.
	// Value: 1 if available, 0 if marked unavailable.
	SetNodeAvailable(node string, available bool)

	// IncNodeUnavailable increments the counter when a node is marked unavailable.
	IncNodeUnavailable(node string)
}
