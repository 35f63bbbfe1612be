package topology

import (
	"time"

	"github.com/arloliu/meridian/types"
)

// Document is the JSON document stored in NATS KV describing the topology.
//
// Example:
//
//	{
//	  "endpoints": [
//	    {"datacenter": "us_east", "address": "https://10.0.0.1:8082", "weight": 2},
//	    {"datacenter": "us_west", "address": "https://10.1.0.1:8082"}
//	  ]
//	}
type Document struct {
	// Endpoints lists every node with its datacenter and optional weight.
	Endpoints []types.Endpoint `json:"endpoints"`
}

// FileDocument is the YAML document read by the File source.
//
// Example:
//
//	datacenters:
//	  - name: us_east
//	    nodes:
//	      - address: https://10.0.0.1:8082
//	        weight: 2
//	  - name: us_west
//	    nodes:
//	      - address: https://10.1.0.1:8082
type FileDocument struct {
	Datacenters []types.Datacenter `yaml:"datacenters"`
}

// WatcherConfig holds configuration for topology watchers.
type WatcherConfig struct {
	// Key is the NATS KV key holding the topology document.
	// Default: "meridian.topology"
	Key string

	// PollInterval is the fallback polling interval while the watch cannot
	// be established, and the maximum delay between watch retries.
	// Default: 5 seconds
	PollInterval time.Duration

	// InitialFetchTimeout is the timeout for a single KV fetch.
	// Default: 10 seconds
	InitialFetchTimeout time.Duration

	// Logger receives parse and watch errors.
	// Default: no-op
	Logger types.Logger
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:                 "meridian.topology",
		PollInterval:        5 * time.Second,
		InitialFetchTimeout: 10 * time.Second,
	}
}

// WatcherOption configures a topology watcher.
type WatcherOption func(*WatcherConfig)

// WithKey sets the NATS KV key to watch.
//
// Parameters:
//   - key: The key name (e.g., "api.topology")
//
// Returns:
//   - WatcherOption: Configuration option
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher polls the key at this
// interval while it retries the watch with exponential backoff.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithInitialFetchTimeout sets the timeout for KV fetches.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithInitialFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.InitialFetchTimeout = d
	}
}

// WithLogger sets the logger for watch and parse errors.
//
// Parameters:
//   - l: The logger
//
// Returns:
//   - WatcherOption: Configuration option
func WithLogger(l types.Logger) WatcherOption {
	return func(c *WatcherConfig) {
		c.Logger = l
	}
}
