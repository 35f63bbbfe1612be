package policy

import (
	"fmt"
	"math/rand/v2"

	"github.com/arloliu/meridian/types"
)

// SelectionPolicy orders the nodes of a datacenter for one request.
//
// The returned slice contains every node of the request exactly once.
// Nodes for which Request.Available reports true come first, in the order
// chosen by the policy; unavailable nodes follow in the same relative order.
//
// Implementations MUST be safe for concurrent use.
type SelectionPolicy interface {
	// Order returns the attempt order for a request.
	//
	// Parameters:
	//   - req: Datacenter, generation, nodes and availability predicate
	//
	// Returns:
	//   - []types.Node: A newly allocated ordering
	Order(req Request) []types.Node
}

// Request describes the nodes a policy should order.
type Request struct {
	// Topology identifies the routing table the datacenter belongs to.
	// Routers sharing one policy instance pass distinct values, so their
	// datacenters never share state even when the names match.
	Topology uint64

	// Datacenter is the name of the datacenter the nodes belong to.
	Datacenter string

	// Generation identifies the node list of the datacenter. Policies keep
	// per-datacenter state keyed by (Topology, Datacenter) and rebuild it
	// when the generation changes.
	Generation uint64

	// Nodes in configuration order.
	Nodes []types.Node

	// Available reports whether a node is currently healthy. A nil
	// predicate treats every node as available.
	Available func(types.Node) bool
}

// Option configures the randomness of a policy.
type Option func(*options)

type options struct {
	intN func(n int) int
}

func defaultOptions() options {
	return options{intN: rand.IntN}
}

// WithIntN overrides the random source used by Random and Weighted.
//
// The function must return a value in [0, n). Tests use it to make
// orderings deterministic.
//
// Parameters:
//   - fn: Random integer source
//
// Returns:
//   - Option: Configuration option
func WithIntN(fn func(n int) int) Option {
	return func(o *options) {
		if fn != nil {
			o.intN = fn
		}
	}
}

// New creates the selection policy of the given kind.
//
// Parameters:
//   - kind: ROUND_ROBIN, RANDOM or WEIGHT_LOAD_BALANCING
//   - opts: Optional randomness configuration
//
// Returns:
//   - SelectionPolicy: The policy
//   - error: ErrTopologyConfiguration wrapped error for unknown kinds
func New(kind types.PolicyKind, opts ...Option) (SelectionPolicy, error) {
	switch kind {
	case types.PolicyRoundRobin, "":
		return NewRoundRobin(), nil
	case types.PolicyRandom:
		return NewRandom(opts...), nil
	case types.PolicyWeighted:
		return NewWeighted(opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown selection policy %q", types.ErrTopologyConfiguration, kind)
	}
}

// partition stably moves unavailable nodes behind available ones, in place.
func partition(nodes []types.Node, available func(types.Node) bool) []types.Node {
	if available == nil || len(nodes) == 0 {
		return nodes
	}

	var down []types.Node
	up := nodes[:0]
	for _, n := range nodes {
		if available(n) {
			up = append(up, n)
		} else {
			down = append(down, n)
		}
	}

	return append(up, down...)
}

// stateKey identifies the per-datacenter state of a policy.
type stateKey struct {
	topology   uint64
	datacenter string
}

func keyOf(req Request) stateKey {
	return stateKey{topology: req.Topology, datacenter: req.Datacenter}
}
