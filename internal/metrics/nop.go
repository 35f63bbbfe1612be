// Package metrics provides internal metrics utilities for meridian.
package metrics

import "github.com/arloliu/meridian/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns m, or a NopMetrics when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNopMetrics()
	}

	return m
}

// ----------------------
// Requests
// ----------------------

// IncRequestTotal discards the metric.
func (m *NopMetrics) IncRequestTotal() {}

// IncRequestFailed discards the metric.
func (m *NopMetrics) IncRequestFailed(_ types.ErrorKind) {}

// ----------------------
// Attempts
// ----------------------

// IncAttemptTotal discards the metric.
func (m *NopMetrics) IncAttemptTotal(_, _ string) {}

// IncAttemptError discards the metric.
func (m *NopMetrics) IncAttemptError(_, _ string, _ types.ErrorKind) {}

// ObserveAttemptDuration discards the metric.
func (m *NopMetrics) ObserveAttemptDuration(_ string, _ float64) {}

// IncDesperationRetry discards the metric.
func (m *NopMetrics) IncDesperationRetry(_ string) {}

// ----------------------
// Failover
// ----------------------

// IncFailoverTotal discards the metric.
func (m *NopMetrics) IncFailoverTotal(_, _ string) {}

// IncSwitchTotal discards the metric.
func (m *NopMetrics) IncSwitchTotal(_, _ string) {}

// SetActiveDatacenter discards the metric.
func (m *NopMetrics) SetActiveDatacenter(_ string) {}

// ----------------------
// Node Health
// ----------------------

// SetNodeAvailable discards the metric.
func (m *NopMetrics) SetNodeAvailable(_ string, _ bool) {}

// IncNodeUnavailable discards the metric.
func (m *NopMetrics) IncNodeUnavailable(_ string) {}
