// Package prom provides a Prometheus client_golang implementation of the
// MetricsCollector interface.
//
// It exposes the same series as contrib/metrics/vm, for services that
// already serve a Prometheus registry:
//
//	collector, err := prom.New(prom.WithRegisterer(registry))
//	if err != nil {
//	    return err
//	}
//	router, _ := meridian.NewRouter(datacenters, meridian.WithMetrics(collector))
//
// Error kinds are exported as snake_case label values, for example
// kind="no_resource_available".
package prom
