// Package types provides shared types and error definitions for the meridian library.
//
// This is a leaf package with zero meridian imports to prevent import cycles.
// All packages in meridian can safely import this package.
//
// # Types
//
// Node and Datacenter describe the topology:
//
//	dc := types.Datacenter{
//	    Name: "us_east",
//	    Nodes: []types.Node{
//	        {Address: "https://10.0.0.1:8082", Weight: 2},
//	        {Address: "https://10.0.0.2:8082"},
//	    },
//	}
//
// Endpoint is the (datacenter, address, weight) tuple produced by discovery
// feeds. HealthRecord is the per-node state exposed in health snapshots.
//
// # Errors
//
// Failures are classified by ErrorKind rather than by one type per resource:
//
//   - KindRetryable: node-level failure, the router tries the next candidate
//   - KindNonRetryable: request-level failure, returned immediately
//   - KindNoResourceAvailable: every candidate was exhausted
//   - KindTopologyConfiguration: invalid topology or datacenter name
//
// Dispatchers classify their errors with Retryable and NonRetryable. The
// router returns *RouteError, which matches the sentinels ErrNonRetryable,
// ErrNoResourceAvailable and ErrTopologyConfiguration through errors.Is:
//
//	if errors.Is(err, types.ErrNoResourceAvailable) {
//	    var routeErr *types.RouteError
//	    errors.As(err, &routeErr)
//	    log.Printf("exhausted %v after %d attempts", routeErr.Datacenters, len(routeErr.Attempts))
//	}
package types
