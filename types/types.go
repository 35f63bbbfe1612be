// Package types provides shared types and errors for the meridian library.
//
// This is a "leaf" package with no imports from other meridian packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultWeight is the weight assigned to nodes that do not declare one.
const DefaultWeight = 1

// datacenterNameRegex validates datacenter names for use in metrics labels
// and log fields. Dashes are allowed since region names commonly use them.
var datacenterNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// Node is one addressable API endpoint instance within a datacenter.
//
// Address is the node identity (typically a base URL such as
// "https://10.0.0.1:8082"). Health state is not part of Node; it is owned
// exclusively by the health tracker.
type Node struct {
	// Address identifies the node. Must be non-empty and unique across the topology.
	Address string `json:"address" yaml:"address" mapstructure:"address"`

	// Datacenter is the name of the datacenter the node belongs to.
	Datacenter string `json:"datacenter,omitempty" yaml:"datacenter,omitempty" mapstructure:"datacenter"`

	// Weight is the static selection weight used by weighted load balancing.
	// Zero means DefaultWeight.
	Weight int `json:"weight,omitempty" yaml:"weight,omitempty" mapstructure:"weight"`
}

// String returns the node address.
func (n Node) String() string {
	return n.Address
}

// EffectiveWeight returns the node weight, substituting DefaultWeight for zero.
func (n Node) EffectiveWeight() int {
	if n.Weight <= 0 {
		return DefaultWeight
	}

	return n.Weight
}

// Datacenter is a named group of nodes and the unit of failover.
type Datacenter struct {
	// Name is the datacenter (or region) name.
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Replicas is a display/configuration hint. It is never used for routing.
	Replicas int `json:"replicas,omitempty" yaml:"replicas,omitempty" mapstructure:"replicas"`

	// Nodes in insertion order. The order is the round-robin base order.
	Nodes []Node `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
}

// Clone returns a deep copy of the datacenter with node datacenter
// membership and weights normalized.
func (d Datacenter) Clone() Datacenter {
	nodes := make([]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		n.Datacenter = d.Name
		n.Weight = n.EffectiveWeight()
		nodes[i] = n
	}

	return Datacenter{Name: d.Name, Replicas: d.Replicas, Nodes: nodes}
}

// Validate checks the datacenter name and its nodes.
//
// Returns:
//   - error: A TopologyConfiguration RouteError describing the first problem, or nil
func (d Datacenter) Validate() error {
	if err := ValidateDatacenterName(d.Name); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if strings.TrimSpace(n.Address) == "" {
			return NewTopologyError(d.Name, "node address cannot be empty")
		}
		if n.Weight < 0 {
			return NewTopologyError(d.Name, fmt.Sprintf("node %s has negative weight %d", n.Address, n.Weight))
		}
		if n.Datacenter != "" && n.Datacenter != d.Name {
			return NewTopologyError(d.Name, fmt.Sprintf("node %s declares datacenter %s", n.Address, n.Datacenter))
		}
		if _, dup := seen[n.Address]; dup {
			return NewTopologyError(d.Name, "duplicate node "+n.Address)
		}
		seen[n.Address] = struct{}{}
	}

	return nil
}

// ValidateDatacenterName checks that a datacenter name is usable as a
// metrics label value and log field.
//
// Names must be 1-64 characters, start with a letter or underscore, and
// contain only alphanumerics, underscores and dashes.
//
// Parameters:
//   - name: The datacenter name
//
// Returns:
//   - error: Validation error, or nil if valid
func ValidateDatacenterName(name string) error {
	if len(name) == 0 {
		return NewTopologyError("", "datacenter name cannot be empty")
	}
	if len(name) > 64 {
		return NewTopologyError(name, "datacenter name cannot exceed 64 characters")
	}
	if !datacenterNameRegex.MatchString(name) {
		return NewTopologyError(name, "datacenter name must be alphanumeric with underscores or dashes, starting with letter or underscore")
	}

	return nil
}

// Endpoint is a single tuple produced by a topology discovery feed.
type Endpoint struct {
	// Datacenter is the datacenter the node belongs to.
	Datacenter string `json:"datacenter" yaml:"datacenter" mapstructure:"datacenter"`

	// Address is the node address.
	Address string `json:"address" yaml:"address" mapstructure:"address"`

	// Weight is the optional static weight (0 means DefaultWeight).
	Weight int `json:"weight,omitempty" yaml:"weight,omitempty" mapstructure:"weight"`
}

// HealthRecord is the locally observed health of a single node.
//
// Invariant: Available == false implies ConsecutiveFailures >= the tracker's
// failure threshold.
type HealthRecord struct {
	// Available reports whether the node should be tried.
	Available bool `json:"available"`

	// ConsecutiveFailures counts retryable failures since the last success or reset.
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// LastFailureAt is the time of the most recent failure. Zero when absent.
	LastFailureAt time.Time `json:"lastFailureAt,omitzero"`
}

// PolicyKind names a node selection policy.
type PolicyKind string

const (
	// PolicyRoundRobin rotates the start node on every request.
	PolicyRoundRobin PolicyKind = "ROUND_ROBIN"
	// PolicyRandom produces a uniformly random ordering on every request.
	PolicyRandom PolicyKind = "RANDOM"
	// PolicyWeighted favors nodes proportionally to their weight.
	PolicyWeighted PolicyKind = "WEIGHT_LOAD_BALANCING"
)

// String returns the policy name.
func (k PolicyKind) String() string {
	return string(k)
}

// ParsePolicyKind parses a policy name case-insensitively.
//
// Accepted values are ROUND_ROBIN, RANDOM and WEIGHT_LOAD_BALANCING. Dashes
// are accepted in place of underscores, and "WEIGHTED" is accepted as an
// alias for WEIGHT_LOAD_BALANCING.
//
// Parameters:
//   - s: The policy name
//
// Returns:
//   - PolicyKind: The parsed policy
//   - error: Error if the name is not recognized
func ParsePolicyKind(s string) (PolicyKind, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch norm {
	case "", string(PolicyRoundRobin):
		return PolicyRoundRobin, nil
	case string(PolicyRandom):
		return PolicyRandom, nil
	case string(PolicyWeighted), "WEIGHTED":
		return PolicyWeighted, nil
	}

	return "", errors.New("meridian: unknown selection policy " + s)
}
