package meridian

import (
	"context"

	"github.com/arloliu/meridian/policy"
	"github.com/arloliu/meridian/topology"
	"github.com/arloliu/meridian/types"
)

// AttemptFunc sends one attempt of a logical operation to a node.
//
// The function MUST honor ctx and SHOULD classify its errors with
// types.Retryable or types.NonRetryable. Unclassified errors are treated
// as retryable.
type AttemptFunc func(ctx context.Context, node types.Node) error

// Dispatcher sends operations of type Op to a node and returns a result of
// type Res.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// See adapter/http and adapter/cql for implementations.
type Dispatcher[Op, Res any] interface {
	// Send dispatches op to node.
	//
	// Parameters:
	//   - ctx: Context for the attempt
	//   - node: Target node
	//   - op: The operation
	//
	// Returns:
	//   - Res: The result on success
	//   - error: A classified error on failure
	Send(ctx context.Context, node types.Node, op Op) (Res, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc[Op, Res any] func(ctx context.Context, node types.Node, op Op) (Res, error)

// Send calls f(ctx, node, op).
func (f DispatcherFunc[Op, Res]) Send(ctx context.Context, node types.Node, op Op) (Res, error) {
	return f(ctx, node, op)
}

// SelectionPolicy orders the nodes of the active datacenter for a request.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// Built-in policies live in the policy package.
type SelectionPolicy = policy.SelectionPolicy

// TopologySource is a topology discovery feed.
//
// Implementations include topology.Local (in-memory), topology.NATS (NATS
// KV backed) and topology.File (YAML file).
type TopologySource = topology.Source
