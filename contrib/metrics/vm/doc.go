// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "meridian":
//
//	collector := vm.New()
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithMetrics(collector),
//	)
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// # Metrics Provided
//
// Requests:
//   - {prefix}_requests_total - Counter of Execute calls
//   - {prefix}_requests_failed_total{kind} - Counter of terminal failures
//
// Attempts:
//   - {prefix}_attempts_total{datacenter,node} - Counter of node attempts
//   - {prefix}_attempt_errors_total{datacenter,node,kind} - Counter of failed attempts
//   - {prefix}_attempt_duration_seconds{datacenter} - Histogram of attempt latencies
//   - {prefix}_desperation_retries_total{datacenter} - Counter of desperation retries
//
// Datacenters:
//   - {prefix}_failover_total{from,to} - Counter of automatic failovers
//   - {prefix}_switch_total{from,to} - Counter of manual switches
//   - {prefix}_active_datacenter{datacenter} - Gauge (1=active)
//
// Node health:
//   - {prefix}_node_available{node} - Gauge (1=available, 0=unavailable)
//   - {prefix}_node_unavailable_total{node} - Counter of transitions to unavailable
package vm
