package health

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/arloliu/meridian/internal/logging"
	"github.com/arloliu/meridian/internal/metrics"
	"github.com/arloliu/meridian/types"
)

// DefaultFailureThreshold is the number of consecutive failures that marks
// a node unavailable.
const DefaultFailureThreshold = 3

const shardCount = 16

// record is the mutable health state of one node. Guarded by its own mutex
// so that updates to different nodes never contend.
type record struct {
	mu          sync.Mutex
	available   bool
	failures    int
	lastFailure time.Time
}

func (r *record) snapshot() types.HealthRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return types.HealthRecord{
		Available:           r.available,
		ConsecutiveFailures: r.failures,
		LastFailureAt:       r.lastFailure,
	}
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*record
}

// Tracker tracks per-node health from request outcomes.
//
// Health is purely reactive: there is no background probing. A node is
// marked unavailable after threshold consecutive failures and becomes
// available again after a single success or an explicit reset.
//
// Records are spread over shards chosen by hashing the node address; each
// record carries its own lock, so concurrent updates to the same node never
// lose increments and different nodes are fully independent.
type Tracker struct {
	threshold int
	metrics   types.MetricsCollector
	logger    types.Logger
	now       func() time.Time
	shards    [shardCount]shard
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets the number of consecutive failures before a node is
// marked unavailable. Values below 1 are treated as 1.
//
// Parameters:
//   - n: Number of failures required
//
// Returns:
//   - Option: Configuration option
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		t.threshold = n
	}
}

// WithMetrics sets the metrics collector.
//
// Parameters:
//   - m: The metrics collector
//
// Returns:
//   - Option: Configuration option
func WithMetrics(m types.MetricsCollector) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithLogger sets the logger.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - Option: Configuration option
func WithLogger(l types.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithClock overrides the time source used to stamp failures.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a new health tracker.
//
// Defaults: threshold=3
//
// Parameters:
//   - opts: Optional configuration options
//
// Returns:
//   - *Tracker: A new tracker with every node considered available
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		threshold: DefaultFailureThreshold,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.threshold < 1 {
		t.threshold = 1
	}
	t.metrics = metrics.OrNop(t.metrics)
	t.logger = logging.OrNop(t.logger)
	if t.now == nil {
		t.now = time.Now
	}

	for i := range t.shards {
		t.shards[i].records = make(map[string]*record)
	}

	return t
}

// Threshold returns the configured failure threshold.
func (t *Tracker) Threshold() int {
	return t.threshold
}

func (t *Tracker) shardFor(addr string) *shard {
	return &t.shards[xxhash.Sum64String(addr)%shardCount]
}

// lookup returns the record for addr, or nil if none exists.
func (t *Tracker) lookup(addr string) *record {
	s := t.shardFor(addr)
	s.mu.RLock()
	r := s.records[addr]
	s.mu.RUnlock()

	return r
}

// getOrCreate returns the record for addr, creating an available one if needed.
func (t *Tracker) getOrCreate(addr string) *record {
	if r := t.lookup(addr); r != nil {
		return r
	}

	s := t.shardFor(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[addr]
	if !ok {
		r = &record{available: true}
		s.records[addr] = r
	}

	return r
}

// RecordSuccess resets the failure counter of a node and marks it available.
//
// Parameters:
//   - node: The node that served a request successfully
func (t *Tracker) RecordSuccess(node types.Node) {
	r := t.lookup(node.Address)
	if r == nil {
		// Unknown nodes are already healthy.
		return
	}

	r.mu.Lock()
	wasUnavailable := !r.available
	r.failures = 0
	r.available = true
	r.mu.Unlock()

	if wasUnavailable {
		t.metrics.SetNodeAvailable(node.Address, true)
		t.logger.Info("node recovered",
			"datacenter", node.Datacenter,
			"node", node.Address,
		)
	}
}

// RecordFailure records a retryable failure against a node.
//
// The failure is time-stamped. When the consecutive failure count reaches
// the threshold, the node is marked unavailable.
//
// Parameters:
//   - node: The node that failed
func (t *Tracker) RecordFailure(node types.Node) {
	r := t.getOrCreate(node.Address)

	r.mu.Lock()
	r.failures++
	r.lastFailure = t.now()
	failures := r.failures
	tripped := r.available && failures >= t.threshold
	if tripped {
		r.available = false
	}
	r.mu.Unlock()

	if tripped {
		t.metrics.IncNodeUnavailable(node.Address)
		t.metrics.SetNodeAvailable(node.Address, false)
		t.logger.Warn("node marked unavailable",
			"datacenter", node.Datacenter,
			"node", node.Address,
			"consecutiveFailures", failures,
			"threshold", t.threshold,
		)
	}
}

// IsAvailable reports whether a node should be tried.
//
// Nodes that have never failed are available.
//
// Parameters:
//   - node: The node to check
//
// Returns:
//   - bool: true if the node is available
func (t *Tracker) IsAvailable(node types.Node) bool {
	r := t.lookup(node.Address)
	if r == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.available
}

// Record returns the current health record of a node.
//
// Parameters:
//   - node: The node to inspect
//
// Returns:
//   - types.HealthRecord: The record (available with zero failures if unknown)
//   - bool: true if the tracker has observed the node
func (t *Tracker) Record(node types.Node) (types.HealthRecord, bool) {
	r := t.lookup(node.Address)
	if r == nil {
		return types.HealthRecord{Available: true}, false
	}

	return r.snapshot(), true
}

// Reset clears the failure history of a node and marks it available.
//
// Parameters:
//   - node: The node to reset
func (t *Tracker) Reset(node types.Node) {
	if r := t.lookup(node.Address); r != nil {
		t.resetRecord(node.Address, r)
	}
}

// ResetNodes resets every node in nodes.
//
// Parameters:
//   - nodes: The nodes to reset
func (t *Tracker) ResetNodes(nodes []types.Node) {
	for _, n := range nodes {
		t.Reset(n)
	}
}

// ResetAll clears the failure history of every node.
func (t *Tracker) ResetAll() {
	for addr, r := range t.records() {
		t.resetRecord(addr, r)
	}
}

func (t *Tracker) resetRecord(addr string, r *record) {
	r.mu.Lock()
	wasUnavailable := !r.available
	r.available = true
	r.failures = 0
	r.lastFailure = time.Time{}
	r.mu.Unlock()

	if wasUnavailable {
		t.metrics.SetNodeAvailable(addr, true)
	}
}

// records returns a point-in-time copy of the record index.
func (t *Tracker) records() map[string]*record {
	out := make(map[string]*record)
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for addr, r := range s.records {
			out[addr] = r
		}
		s.mu.RUnlock()
	}

	return out
}

// Retain drops the records of every node whose address is not in keep.
//
// Used after reconfiguration so that removed nodes do not linger in
// snapshots.
//
// Parameters:
//   - keep: Addresses to retain
func (t *Tracker) Retain(keep map[string]struct{}) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for addr := range s.records {
			if _, ok := keep[addr]; !ok {
				delete(s.records, addr)
			}
		}
		s.mu.Unlock()
	}
}

// Snapshot returns the health records of every node the tracker has observed.
//
// Returns:
//   - map[string]types.HealthRecord: Records keyed by node address
func (t *Tracker) Snapshot() map[string]types.HealthRecord {
	records := t.records()
	out := make(map[string]types.HealthRecord, len(records))
	for addr, r := range records {
		out[addr] = r.snapshot()
	}

	return out
}
