package meridian

import (
	"github.com/arloliu/meridian/internal/logging"
	"github.com/arloliu/meridian/internal/metrics"
	"github.com/arloliu/meridian/types"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that
	// marks a node unavailable.
	DefaultFailureThreshold = 3

	// MaxAttemptsCeiling bounds the default number of attempts per
	// datacenter when MaxAttemptsPerDatacenter is not set.
	MaxAttemptsCeiling = 5
)

// Config holds configuration for a Router.
type Config struct {
	// Policy names the selection policy. Ignored when SelectionPolicy is set.
	Policy types.PolicyKind

	// SelectionPolicy overrides Policy with a custom implementation.
	SelectionPolicy SelectionPolicy

	// FailureThreshold is the number of consecutive failures before a node
	// is marked unavailable.
	FailureThreshold int

	// MaxAttemptsPerDatacenter caps the attempts made in one datacenter per
	// request. Zero means min(number of nodes, MaxAttemptsCeiling).
	MaxAttemptsPerDatacenter int

	// AutoDatacenterFailover enables switching to the next datacenter when
	// every candidate of the active one has failed.
	AutoDatacenterFailover bool

	// ActiveDatacenter pins the initial active datacenter. Empty selects
	// the first configured datacenter.
	ActiveDatacenter string

	// TopologySource feeds topology updates to the router.
	TopologySource TopologySource

	Metrics MetricsCollector
	Logger  types.Logger
}

// DefaultConfig returns a Config with sensible defaults.
//
// Defaults:
//   - Policy: ROUND_ROBIN
//   - FailureThreshold: 3
//   - MaxAttemptsPerDatacenter: 0 (min(nodes, 5))
//   - AutoDatacenterFailover: false
//
// Returns:
//   - *Config: Configuration with default settings
func DefaultConfig() *Config {
	return &Config{
		Policy:           types.PolicyRoundRobin,
		FailureThreshold: DefaultFailureThreshold,
		Metrics:          metrics.NewNopMetrics(),
		Logger:           logging.NewNopLogger(),
	}
}

// Option configures a Config.
type Option func(*Config)

// WithPolicy selects a built-in selection policy by name.
//
// Parameters:
//   - kind: ROUND_ROBIN, RANDOM or WEIGHT_LOAD_BALANCING
//
// Returns:
//   - Option: Configuration option
func WithPolicy(kind types.PolicyKind) Option {
	return func(c *Config) {
		c.Policy = kind
	}
}

// WithSelectionPolicy sets a custom selection policy.
//
// One instance may be shared by several routers; each router passes its own
// topology identity in policy.Request.
//
// Parameters:
//   - p: The selection policy implementation
//
// Returns:
//   - Option: Configuration option
func WithSelectionPolicy(p SelectionPolicy) Option {
	return func(c *Config) {
		c.SelectionPolicy = p
	}
}

// WithFailureThreshold sets the number of consecutive failures before a node
// is marked unavailable.
//
// Parameters:
//   - n: Failure threshold (values below 1 are treated as 1)
//
// Returns:
//   - Option: Configuration option
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		c.FailureThreshold = n
	}
}

// WithMaxAttemptsPerDatacenter caps the attempts made in one datacenter.
//
// Parameters:
//   - n: Maximum attempts; zero restores the default min(nodes, 5)
//
// Returns:
//   - Option: Configuration option
func WithMaxAttemptsPerDatacenter(n int) Option {
	return func(c *Config) {
		c.MaxAttemptsPerDatacenter = n
	}
}

// WithAutoDatacenterFailover enables or disables automatic failover to the
// next datacenter when the active one is exhausted.
//
// Parameters:
//   - enabled: true to enable automatic failover
//
// Returns:
//   - Option: Configuration option
func WithAutoDatacenterFailover(enabled bool) Option {
	return func(c *Config) {
		c.AutoDatacenterFailover = enabled
	}
}

// WithActiveDatacenter pins the initial active datacenter.
//
// Parameters:
//   - name: Datacenter name
//
// Returns:
//   - Option: Configuration option
func WithActiveDatacenter(name string) Option {
	return func(c *Config) {
		c.ActiveDatacenter = name
	}
}

// WithTopologySource sets a topology discovery feed.
//
// The router watches the source until Close and applies every update
// through Reconfigure. Invalid updates are logged and ignored.
//
// Parameters:
//   - src: The topology source (e.g., topology.NATS, topology.File)
//
// Returns:
//   - Option: Configuration option
func WithTopologySource(src TopologySource) Option {
	return func(c *Config) {
		c.TopologySource = src
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	import vmmetrics "github.com/arloliu/meridian/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithMetrics(collector),
//	)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// Use contrib/logging/zaplog to adapt a zap logger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	logger, _ := zap.NewProduction()
//	router, _ := meridian.NewRouter(datacenters,
//	    meridian.WithLogger(zaplog.New(logger)),
//	)
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// propagateLogger hands the router logger to components that accept one.
func propagateLogger(c *Config) {
	if setter, ok := c.SelectionPolicy.(types.LoggerSetter); ok {
		setter.SetLogger(c.Logger)
	}
	if setter, ok := c.TopologySource.(types.LoggerSetter); ok {
		setter.SetLogger(c.Logger)
	}
}
