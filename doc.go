// Package meridian provides a client-side request router for API clusters
// spread over several datacenters.
//
// Given a logical operation, the router picks a node in the active
// datacenter, retries against alternates when a node fails, tracks node
// health from the outcomes it observes, and fails over between datacenters
// on request or automatically. There is no coordinator: each client decides
// from its own view of node health.
//
// # Key Features
//
//   - Selection Policies: Round-robin, random and weighted node ordering
//   - Reactive Health: Nodes are marked unavailable after consecutive failures
//     and restored by a single success
//   - Desperation Retry: When every node is unavailable, the most recently
//     failed node is tried once
//   - Datacenter Failover: Manual switch or automatic failover to the next
//     datacenter when the active one is exhausted
//   - Topology Feeds: Live reconfiguration from NATS KV, a YAML file or memory
//
// # Basic Usage
//
//	router, err := meridian.NewRouter([]meridian.Datacenter{
//	    {Name: "us_east", Nodes: []meridian.Node{
//	        {Address: "https://10.0.0.1:8082"},
//	        {Address: "https://10.0.0.2:8082"},
//	    }},
//	    {Name: "us_west", Nodes: []meridian.Node{
//	        {Address: "https://10.1.0.1:8082"},
//	    }},
//	},
//	    meridian.WithPolicy(meridian.PolicyRoundRobin),
//	    meridian.WithAutoDatacenterFailover(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer router.Close()
//
//	err = router.Execute(ctx, func(ctx context.Context, node meridian.Node) error {
//	    return callNode(ctx, node.Address)
//	})
//
// Operations that return a value use Call, or Send with a Dispatcher:
//
//	dispatcher := httpadapter.New(http.DefaultClient)
//	resp, err := meridian.Send[*httpadapter.Request, *httpadapter.Response](ctx, router, dispatcher, &httpadapter.Request{
//	    Method: http.MethodGet,
//	    Path:   "/v1/status",
//	})
//
// # Error Classification
//
// Attempt functions classify their errors:
//
//   - types.Retryable: Node-level failure (connection refused, timeout, 5xx).
//     The failure is recorded and the next candidate is tried.
//   - types.NonRetryable: Request-level failure (4xx, validation). Returned
//     immediately without touching node health.
//
// Unclassified errors are treated as retryable.
//
// # Terminal Errors
//
// Execute returns a *types.RouteError naming the datacenters and nodes
// that were tried:
//
//	err := router.Execute(ctx, fn)
//	switch {
//	case errors.Is(err, types.ErrNoResourceAvailable):
//	    // every candidate failed
//	case errors.Is(err, types.ErrNonRetryable):
//	    // the request itself was rejected
//	case errors.Is(err, context.DeadlineExceeded):
//	    // the caller's context expired
//	}
//
// # Sentinel Errors
//
//   - types.ErrRouterClosed: Operation attempted on a closed router
//   - types.ErrTopologyConfiguration: Invalid topology or unknown datacenter
//   - types.ErrNilDispatcher: Nil attempt function or dispatcher
//
// # Context and Cancellation
//
// The caller's context is passed to every attempt. When it ends, Execute
// returns the context error without recording a failure against the node
// that was in flight.
package meridian
