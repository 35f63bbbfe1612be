package meridian

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/meridian/health"
	"github.com/arloliu/meridian/internal/logging"
	"github.com/arloliu/meridian/internal/metrics"
	"github.com/arloliu/meridian/policy"
	"github.com/arloliu/meridian/topology"
	"github.com/arloliu/meridian/types"
)

// Router routes logical operations to the nodes of the active datacenter.
//
// For every operation the router asks the selection policy for an ordering
// of the active datacenter's nodes, tries the available ones in order, and
// records each outcome in the node health tracker. When every candidate of
// the active datacenter fails and automatic failover is enabled, the router
// switches to the next datacenter and retries once.
//
// There is no coordinator: each Router decides from the health it observed
// itself. A Router is safe for concurrent use.
type Router struct {
	config *Config
	topo   *topology.Topology
	health *health.Tracker
	policy SelectionPolicy
	closed atomic.Bool

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// NewRouter creates a new Router.
//
// If a TopologySource is configured, the router starts watching it
// immediately and applies updates until Close is called.
//
// Parameters:
//   - datacenters: Datacenters in configuration order (at least one)
//   - opts: Optional configuration options
//
// Returns:
//   - *Router: A new router
//   - error: A TopologyConfiguration error if the topology, the active
//     datacenter or the policy name is invalid
func NewRouter(datacenters []types.Datacenter, opts ...Option) (*Router, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	config.Metrics = metrics.OrNop(config.Metrics)
	config.Logger = logging.OrNop(config.Logger)

	if config.SelectionPolicy == nil {
		p, err := policy.New(config.Policy)
		if err != nil {
			return nil, err
		}
		config.SelectionPolicy = p
	}

	propagateLogger(config)

	topo, err := topology.New(datacenters, config.ActiveDatacenter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Router{
		config: config,
		topo:   topo,
		health: health.NewTracker(
			health.WithThreshold(config.FailureThreshold),
			health.WithMetrics(config.Metrics),
			health.WithLogger(config.Logger),
		),
		policy:      config.SelectionPolicy,
		watchCtx:    ctx,
		watchCancel: cancel,
	}

	topo.OnActivate(func(dc types.Datacenter) {
		r.health.ResetNodes(dc.Nodes)
	})
	config.Metrics.SetActiveDatacenter(topo.Active())

	if config.TopologySource != nil {
		go r.watchTopology(config.TopologySource.Watch(ctx))
	}

	return r, nil
}

// NewRouterFromEndpoints creates a Router from discovery tuples.
//
// Parameters:
//   - endpoints: (datacenter, address, weight) tuples
//   - opts: Optional configuration options
//
// Returns:
//   - *Router: A new router
//   - error: A TopologyConfiguration error if the topology is invalid
func NewRouterFromEndpoints(endpoints []types.Endpoint, opts ...Option) (*Router, error) {
	return NewRouter(topology.Group(endpoints), opts...)
}

// watchTopology applies topology updates until the channel closes.
func (r *Router) watchTopology(updates <-chan []types.Endpoint) {
	for endpoints := range updates {
		if r.closed.Load() {
			return
		}

		if err := r.ReconfigureEndpoints(endpoints); err != nil {
			r.config.Logger.Warn("ignoring invalid topology update",
				"endpoints", len(endpoints),
				"error", err.Error(),
			)

			continue
		}

		snap := r.topo.Snapshot()
		r.config.Logger.Info("topology updated",
			"version", snap.Version(),
			"datacenters", snap.Names(),
			"active", snap.Active(),
		)
	}
}

// Execute runs a logical operation with node retry and datacenter failover.
//
// The attempt function is called once per node tried. It returns as soon as
// an attempt succeeds, an attempt fails with a non-retryable error, or the
// caller's context ends. Context cancellation is returned as the context
// error and leaves node health untouched.
//
// Parameters:
//   - ctx: Context for the whole operation
//   - fn: Function sending one attempt to a node
//
// Returns:
//   - error: nil on success, ctx.Err() on cancellation, or a *types.RouteError
//     of KindNonRetryable or KindNoResourceAvailable
func (r *Router) Execute(ctx context.Context, fn AttemptFunc) error {
	if fn == nil {
		return types.ErrNilDispatcher
	}
	if r.closed.Load() {
		return types.ErrRouterClosed
	}

	r.config.Metrics.IncRequestTotal()

	op := &operation{id: uuid.NewString(), fn: fn}
	err := r.execute(ctx, op)
	if err != nil && !types.IsContextError(err) {
		r.config.Metrics.IncRequestFailed(types.KindOf(err))
	}

	return err
}

// operation is the per-Execute state.
type operation struct {
	id       string
	fn       AttemptFunc
	attempts []types.Attempt
}

func (r *Router) execute(ctx context.Context, op *operation) error {
	var exhausted []string
	var lastErr error
	failedOver := false

	for {
		snap := r.topo.Snapshot()
		dc := snap.ActiveDatacenter()

		done, err := r.tryDatacenter(ctx, op, snap, dc)
		if done {
			return err
		}
		if err != nil {
			lastErr = err
		}
		exhausted = append(exhausted, dc.Name)

		if failedOver || !r.config.AutoDatacenterFailover || snap.Len() < 2 {
			break
		}

		to, switched := r.topo.FailoverFrom(dc.Name)
		if switched {
			r.activated(dc.Name, to, true)
			r.config.Logger.Warn("datacenter exhausted, failed over",
				"operationId", op.id,
				"fromDatacenter", dc.Name,
				"toDatacenter", to,
				"attempts", len(op.attempts),
			)
		}
		if to == dc.Name {
			break
		}
		failedOver = true
	}

	routeErr := &types.RouteError{
		Kind:        types.KindNoResourceAvailable,
		OperationID: op.id,
		Datacenters: exhausted,
		Attempts:    op.attempts,
		Cause:       lastErr,
	}
	if len(op.attempts) == 0 {
		routeErr.Message = "no nodes to try"
	}

	r.config.Logger.Error("no resource available",
		"operationId", op.id,
		"datacenters", exhausted,
		"attempts", len(op.attempts),
	)

	return routeErr
}

// tryDatacenter attempts the candidates of one datacenter.
//
// It returns done=true with the terminal result (success, non-retryable
// error or context error), or done=false with the last retryable error when
// the datacenter is exhausted.
func (r *Router) tryDatacenter(
	ctx context.Context,
	op *operation,
	snap *topology.Snapshot,
	dc types.Datacenter,
) (bool, error) {
	ordered := r.policy.Order(policy.Request{
		Topology:   r.topo.ID(),
		Datacenter: dc.Name,
		Generation: snap.Generation(dc.Name),
		Nodes:      dc.Nodes,
		Available:  r.health.IsAvailable,
	})

	candidates := make([]types.Node, 0, len(ordered))
	for _, node := range ordered {
		if r.health.IsAvailable(node) {
			candidates = append(candidates, node)
		}
	}

	desperation := false
	if len(candidates) == 0 {
		node, ok := r.desperationCandidate(ordered)
		if !ok {
			return false, nil
		}
		candidates = append(candidates, node)
		desperation = true

		r.config.Metrics.IncDesperationRetry(dc.Name)
		r.config.Logger.Warn("no available node, retrying most recently failed node",
			"operationId", op.id,
			"datacenter", dc.Name,
			"node", node.Address,
		)
	}

	limit := min(r.maxAttempts(len(dc.Nodes)), len(candidates))

	var lastErr error
	for _, node := range candidates[:limit] {
		if err := ctx.Err(); err != nil {
			return true, err
		}

		r.config.Metrics.IncAttemptTotal(dc.Name, node.Address)
		start := time.Now()
		err := op.fn(ctx, node)
		r.config.Metrics.ObserveAttemptDuration(dc.Name, time.Since(start).Seconds())

		if err == nil {
			r.health.RecordSuccess(node)

			return true, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, ctxErr
		}

		kind := types.Classify(err)
		r.config.Metrics.IncAttemptError(dc.Name, node.Address, kind)
		op.attempts = append(op.attempts, types.Attempt{
			Datacenter:  dc.Name,
			Node:        node.Address,
			Desperation: desperation,
			Err:         err,
		})

		if kind == types.KindNonRetryable {
			r.config.Logger.Debug("non-retryable error",
				"operationId", op.id,
				"datacenter", dc.Name,
				"node", node.Address,
				"error", err.Error(),
			)

			return true, &types.RouteError{
				Kind:        types.KindNonRetryable,
				OperationID: op.id,
				Datacenters: []string{dc.Name},
				Attempts:    op.attempts,
				Cause:       err,
			}
		}

		r.health.RecordFailure(node)
		r.config.Logger.Debug("attempt failed, trying next node",
			"operationId", op.id,
			"datacenter", dc.Name,
			"node", node.Address,
			"error", err.Error(),
		)
		lastErr = err
	}

	return false, lastErr
}

// desperationCandidate picks the node that failed most recently. Ties keep
// the policy order.
func (r *Router) desperationCandidate(ordered []types.Node) (types.Node, bool) {
	var best types.Node
	var bestAt time.Time
	found := false

	for _, node := range ordered {
		rec, _ := r.health.Record(node)
		if !found || rec.LastFailureAt.After(bestAt) {
			best = node
			bestAt = rec.LastFailureAt
			found = true
		}
	}

	return best, found
}

// maxAttempts returns the attempt budget for a datacenter of n nodes.
func (r *Router) maxAttempts(n int) int {
	if r.config.MaxAttemptsPerDatacenter > 0 {
		return r.config.MaxAttemptsPerDatacenter
	}

	return min(n, MaxAttemptsCeiling)
}

// activated records a transition of the active datacenter. The health of
// the new active datacenter is reset by the topology activation hook.
func (r *Router) activated(from, to string, failover bool) {
	r.config.Metrics.SetActiveDatacenter(to)
	if failover {
		r.config.Metrics.IncFailoverTotal(from, to)
	} else {
		r.config.Metrics.IncSwitchTotal(from, to)
	}
}

// SwitchDatacenter makes name the active datacenter.
//
// The health of every node in the new active datacenter is reset. An
// unknown name leaves the active datacenter unchanged.
//
// Parameters:
//   - name: The datacenter to activate
//
// Returns:
//   - error: A TopologyConfiguration error for unknown names, or ErrRouterClosed
func (r *Router) SwitchDatacenter(name string) error {
	if r.closed.Load() {
		return types.ErrRouterClosed
	}

	prev, err := r.topo.SetActive(name)
	if err != nil {
		r.config.Logger.Warn("datacenter switch rejected",
			"datacenter", name,
			"active", prev,
		)

		return err
	}

	if prev == name {
		if dc, ok := r.topo.Snapshot().Datacenter(name); ok {
			r.health.ResetNodes(dc.Nodes)
		}

		return nil
	}

	r.activated(prev, name, false)
	r.config.Logger.Info("switched active datacenter",
		"fromDatacenter", prev,
		"toDatacenter", name,
	)

	return nil
}

// Reconfigure replaces the datacenter mapping.
//
// The active datacenter is kept if it is still present; otherwise the first
// datacenter becomes active. Health records of removed nodes are dropped.
//
// Parameters:
//   - datacenters: The new datacenters in configuration order
//
// Returns:
//   - error: A TopologyConfiguration error; the previous topology stays in place
func (r *Router) Reconfigure(datacenters []types.Datacenter) error {
	if r.closed.Load() {
		return types.ErrRouterClosed
	}

	snap, prevActive, err := r.topo.Replace(datacenters)
	if err != nil {
		return err
	}

	r.health.Retain(snap.Addresses())

	if snap.Active() != prevActive {
		r.activated(prevActive, snap.Active(), false)
		r.config.Logger.Warn("active datacenter removed, switched to first datacenter",
			"fromDatacenter", prevActive,
			"toDatacenter", snap.Active(),
		)
	}

	return nil
}

// ReconfigureEndpoints replaces the datacenter mapping from discovery tuples.
//
// Parameters:
//   - endpoints: (datacenter, address, weight) tuples
//
// Returns:
//   - error: A TopologyConfiguration error; the previous topology stays in place
func (r *Router) ReconfigureEndpoints(endpoints []types.Endpoint) error {
	return r.Reconfigure(topology.Group(endpoints))
}

// ActiveDatacenter returns the name of the active datacenter.
func (r *Router) ActiveDatacenter() string {
	return r.topo.Active()
}

// Topology returns the current topology snapshot.
func (r *Router) Topology() *topology.Snapshot {
	return r.topo.Snapshot()
}

// HealthSnapshot returns the health of every node in the topology.
//
// Nodes that never failed are reported available with zero failures.
//
// Returns:
//   - map[string]types.HealthRecord: Records keyed by node address
func (r *Router) HealthSnapshot() map[string]types.HealthRecord {
	snap := r.topo.Snapshot()
	out := make(map[string]types.HealthRecord)
	for _, dc := range snap.Datacenters() {
		for _, node := range dc.Nodes {
			rec, _ := r.health.Record(node)
			out[node.Address] = rec
		}
	}

	return out
}

// ResetHealth clears the failure history of a node.
func (r *Router) ResetHealth(node types.Node) {
	r.health.Reset(node)
}

// ResetAllHealth clears the failure history of every node.
func (r *Router) ResetAllHealth() {
	r.health.ResetAll()
}

// Config returns the router configuration.
//
// The returned value must not be modified.
func (r *Router) Config() *Config {
	return r.config
}

// Close stops the topology watch.
//
// After Close is called, Execute returns ErrRouterClosed. The topology
// source itself is not closed.
func (r *Router) Close() {
	if r.closed.CompareAndSwap(false, true) {
		r.watchCancel()
	}
}

// Call runs a value-returning operation through the router.
//
// Parameters:
//   - ctx: Context for the whole operation
//   - r: The router
//   - fn: Function sending one attempt to a node
//
// Returns:
//   - T: The value returned by the successful attempt
//   - error: As returned by Router.Execute
func Call[T any](ctx context.Context, r *Router, fn func(ctx context.Context, node types.Node) (T, error)) (T, error) {
	var result T
	if fn == nil {
		return result, types.ErrNilDispatcher
	}

	err := r.Execute(ctx, func(ctx context.Context, node types.Node) error {
		v, err := fn(ctx, node)
		if err != nil {
			return err
		}
		result = v

		return nil
	})

	return result, err
}

// Send dispatches op through the router using a Dispatcher.
//
// Parameters:
//   - ctx: Context for the whole operation
//   - r: The router
//   - d: The dispatcher
//   - op: The operation
//
// Returns:
//   - Res: The result of the successful attempt
//   - error: As returned by Router.Execute, or ErrNilDispatcher
func Send[Op, Res any](ctx context.Context, r *Router, d Dispatcher[Op, Res], op Op) (Res, error) {
	if d == nil {
		var zero Res
		return zero, types.ErrNilDispatcher
	}

	return Call(ctx, r, func(ctx context.Context, node types.Node) (Res, error) {
		return d.Send(ctx, node, op)
	})
}
