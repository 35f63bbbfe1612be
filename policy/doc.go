// Package policy provides the node selection policies used by the meridian
// router.
//
// A selection policy decides the order in which the nodes of the active
// datacenter are attempted for one request. All policies implement the
// SelectionPolicy interface:
//
//	type SelectionPolicy interface {
//	    Order(req Request) []types.Node
//	}
//
// Every node appears exactly once in the ordering. Available nodes come
// first; nodes the health tracker marked unavailable are moved to the end
// while keeping their relative order.
//
// Available policies:
//
//   - [RoundRobin]: Rotates the node list by one position per request (default)
//   - [Random]: Uniform random permutation per request
//   - [Weighted]: Weighted random sampling without replacement
//
// Policies are usually selected by name:
//
//	p, err := policy.New(types.PolicyWeighted)
//
// or injected directly:
//
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithSelectionPolicy(policy.NewRandom()),
//	)
//
// # Generations
//
// Policy state (round-robin cursors, weight tables) is kept per datacenter
// and tagged with the generation carried by Request. The router bumps a
// datacenter's generation when its node list changes or when it becomes
// active, so stale state is discarded on the next request.
package policy
