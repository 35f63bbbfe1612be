package meridian

import "github.com/arloliu/meridian/types"

// Type aliases for convenience - re-export from types package.
type (
	Node             = types.Node
	Datacenter       = types.Datacenter
	Endpoint         = types.Endpoint
	HealthRecord     = types.HealthRecord
	PolicyKind       = types.PolicyKind
	ErrorKind        = types.ErrorKind
	RouteError       = types.RouteError
	Attempt          = types.Attempt
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export policy kind constants for convenience.
const (
	PolicyRoundRobin = types.PolicyRoundRobin
	PolicyRandom     = types.PolicyRandom
	PolicyWeighted   = types.PolicyWeighted
)

// Re-export error kind constants for convenience.
const (
	KindRetryable             = types.KindRetryable
	KindNonRetryable          = types.KindNonRetryable
	KindNoResourceAvailable   = types.KindNoResourceAvailable
	KindTopologyConfiguration = types.KindTopologyConfiguration
)
