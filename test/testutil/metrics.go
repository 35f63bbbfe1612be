package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/meridian/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertions.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Requests
	RequestFailed map[types.ErrorKind]int64

	// Attempts, keyed by node address
	AttemptTotal     map[string]int64
	AttemptErrors    map[string]int64
	AttemptDuration  map[string][]float64 // key: datacenter
	DesperationTotal map[string]int64     // key: datacenter

	// Datacenters
	FailoverTotal map[string]int64 // key: "from->to"
	SwitchTotal   map[string]int64 // key: "from->to"
	Active        string

	// Node health
	NodeAvailable   map[string]bool
	NodeUnavailable map[string]int64

	// Atomic counters for quick access
	totalRequests  atomic.Int64
	totalFailovers atomic.Int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	m := &TestMetricsCollector{}
	m.reset()

	return m
}

// ----------------------
// Requests
// ----------------------

func (m *TestMetricsCollector) IncRequestTotal() {
	m.totalRequests.Add(1)
}

func (m *TestMetricsCollector) IncRequestFailed(kind types.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestFailed[kind]++
}

// ----------------------
// Attempts
// ----------------------

func (m *TestMetricsCollector) IncAttemptTotal(_, node string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AttemptTotal[node]++
}

func (m *TestMetricsCollector) IncAttemptError(_, node string, _ types.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AttemptErrors[node]++
}

func (m *TestMetricsCollector) ObserveAttemptDuration(datacenter string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AttemptDuration[datacenter] = append(m.AttemptDuration[datacenter], seconds)
}

func (m *TestMetricsCollector) IncDesperationRetry(datacenter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DesperationTotal[datacenter]++
}

// ----------------------
// Datacenters
// ----------------------

func (m *TestMetricsCollector) IncFailoverTotal(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailoverTotal[from+"->"+to]++
	m.totalFailovers.Add(1)
}

func (m *TestMetricsCollector) IncSwitchTotal(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SwitchTotal[from+"->"+to]++
}

func (m *TestMetricsCollector) SetActiveDatacenter(datacenter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Active = datacenter
}

// ----------------------
// Node Health
// ----------------------

func (m *TestMetricsCollector) SetNodeAvailable(node string, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NodeAvailable[node] = available
}

func (m *TestMetricsCollector) IncNodeUnavailable(node string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NodeUnavailable[node]++
}

// ----------------------
// Accessors
// ----------------------

// GetTotalRequests returns the number of Execute calls observed.
func (m *TestMetricsCollector) GetTotalRequests() int64 {
	return m.totalRequests.Load()
}

// GetTotalFailovers returns the total failover count across all datacenter pairs.
func (m *TestMetricsCollector) GetTotalFailovers() int64 {
	return m.totalFailovers.Load()
}

// GetFailoverCount returns the failover count from one datacenter to another.
func (m *TestMetricsCollector) GetFailoverCount(from, to string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FailoverTotal[from+"->"+to]
}

// GetSwitchCount returns the manual switch count from one datacenter to another.
func (m *TestMetricsCollector) GetSwitchCount(from, to string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SwitchTotal[from+"->"+to]
}

// GetRequestFailed returns the number of requests that failed with kind.
func (m *TestMetricsCollector) GetRequestFailed(kind types.ErrorKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestFailed[kind]
}

// GetAttempts returns the attempt count for a node.
func (m *TestMetricsCollector) GetAttempts(node string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.AttemptTotal[node]
}

// GetDesperationRetries returns the desperation retry count for a datacenter.
func (m *TestMetricsCollector) GetDesperationRetries(datacenter string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DesperationTotal[datacenter]
}

// GetActive returns the last active datacenter reported.
func (m *TestMetricsCollector) GetActive() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Active
}

// IsNodeAvailable returns the last reported availability of a node and
// whether any was reported.
func (m *TestMetricsCollector) IsNodeAvailable(node string) (bool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.NodeAvailable[node]
	return v, ok
}

// Reset clears all collected metrics.
func (m *TestMetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *TestMetricsCollector) reset() {
	m.RequestFailed = make(map[types.ErrorKind]int64)
	m.AttemptTotal = make(map[string]int64)
	m.AttemptErrors = make(map[string]int64)
	m.AttemptDuration = make(map[string][]float64)
	m.DesperationTotal = make(map[string]int64)
	m.FailoverTotal = make(map[string]int64)
	m.SwitchTotal = make(map[string]int64)
	m.Active = ""
	m.NodeAvailable = make(map[string]bool)
	m.NodeUnavailable = make(map[string]int64)
	m.totalRequests.Store(0)
	m.totalFailovers.Store(0)
}
