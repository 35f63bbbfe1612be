package types

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind classifies routing failures.
type ErrorKind int

const (
	// KindRetryable is a node-level failure (connection refused, timeout, 5xx).
	// The router records the failure and moves on to the next candidate.
	KindRetryable ErrorKind = iota + 1

	// KindNonRetryable is a request-level failure (4xx, validation). It is
	// returned to the caller immediately without further attempts.
	KindNonRetryable

	// KindNoResourceAvailable means every candidate in the reachable
	// datacenter(s) was exhausted.
	KindNoResourceAvailable

	// KindTopologyConfiguration is an invalid topology or datacenter name.
	KindTopologyConfiguration
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindNonRetryable:
		return "non-retryable"
	case KindNoResourceAvailable:
		return "no resource available"
	case KindTopologyConfiguration:
		return "topology configuration"
	}

	return "unknown"
}

// Sentinel errors matched by NodeError and RouteError through errors.Is.
var (
	// ErrRetryable matches any NodeError or RouteError of KindRetryable.
	ErrRetryable = errors.New("meridian: retryable node error")

	// ErrNonRetryable matches any error of KindNonRetryable.
	ErrNonRetryable = errors.New("meridian: non-retryable request error")

	// ErrNoResourceAvailable matches any error of KindNoResourceAvailable.
	ErrNoResourceAvailable = errors.New("meridian: no resource available")

	// ErrTopologyConfiguration matches any error of KindTopologyConfiguration.
	ErrTopologyConfiguration = errors.New("meridian: invalid topology configuration")

	// ErrRouterClosed indicates an operation was attempted on a closed router.
	ErrRouterClosed = errors.New("meridian: router is closed")

	// ErrNilDispatcher indicates a nil dispatcher or attempt function was provided.
	ErrNilDispatcher = errors.New("meridian: dispatcher cannot be nil")
)

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindRetryable:
		return ErrRetryable
	case KindNonRetryable:
		return ErrNonRetryable
	case KindNoResourceAvailable:
		return ErrNoResourceAvailable
	case KindTopologyConfiguration:
		return ErrTopologyConfiguration
	}

	return nil
}

// NodeError is the classification a dispatcher attaches to a failed attempt.
//
// Dispatchers wrap transport errors with Retryable or NonRetryable. Errors
// that carry no classification are treated as retryable.
type NodeError struct {
	// Kind is KindRetryable or KindNonRetryable.
	Kind ErrorKind

	// Node is the address the attempt was sent to, if known.
	Node string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	var b strings.Builder
	b.WriteString("meridian: ")
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Node != "" {
		b.WriteString(" from node ")
		b.WriteString(e.Node)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *NodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *NodeError) Is(target error) bool {
	return target != nil && target == sentinelFor(e.Kind)
}

// Retryable marks err as a node-level failure worth retrying elsewhere.
//
// Parameters:
//   - err: The underlying error (nil returns nil)
//
// Returns:
//   - error: A *NodeError of KindRetryable
func Retryable(err error) error {
	if err == nil {
		return nil
	}

	return &NodeError{Kind: KindRetryable, Cause: err}
}

// NonRetryable marks err as a request-level failure that must not be retried.
//
// Parameters:
//   - err: The underlying error (nil returns nil)
//
// Returns:
//   - error: A *NodeError of KindNonRetryable
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}

	return &NodeError{Kind: KindNonRetryable, Cause: err}
}

// Classify returns the kind of a dispatch error.
//
// A NodeError reports its own kind. Context cancellation and deadline errors
// are reported as KindRetryable here; callers decide separately whether the
// caller's own context ended. Any other error is KindRetryable.
//
// Parameters:
//   - err: The dispatch error (must be non-nil)
//
// Returns:
//   - ErrorKind: KindRetryable or KindNonRetryable
func Classify(err error) ErrorKind {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) && nodeErr.Kind == KindNonRetryable {
		return KindNonRetryable
	}

	var routeErr *RouteError
	if errors.As(err, &routeErr) && routeErr.Kind == KindNonRetryable {
		return KindNonRetryable
	}

	return KindRetryable
}

// IsContextError reports whether err is a context cancellation or deadline error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Attempt records a single dispatch against a node.
type Attempt struct {
	// Datacenter is the datacenter the node belongs to.
	Datacenter string

	// Node is the node address.
	Node string

	// Desperation is true when the node was tried although it was marked
	// unavailable, because no healthy node remained.
	Desperation bool

	// Err is the attempt error (nil on success).
	Err error
}

// RouteError is a terminal routing error returned by the router.
//
// It names the datacenters that were tried, every attempt made and the last
// underlying cause, so a cluster-wide outage can be told apart from a
// single node blip.
type RouteError struct {
	// Kind is the error classification.
	Kind ErrorKind

	// OperationID identifies the Execute call in logs.
	OperationID string

	// Datacenters lists the datacenters involved (exhausted datacenters for
	// KindNoResourceAvailable, the requested name for KindTopologyConfiguration).
	Datacenters []string

	// Attempts lists every dispatch made, in order.
	Attempts []Attempt

	// Message is an optional human-readable detail.
	Message string

	// Cause is the last underlying error, if any.
	Cause error
}

// NewTopologyError creates a KindTopologyConfiguration RouteError.
//
// Parameters:
//   - datacenter: The datacenter name involved (may be empty)
//   - msg: Description of the problem
//
// Returns:
//   - *RouteError: The configuration error
func NewTopologyError(datacenter, msg string) *RouteError {
	e := &RouteError{Kind: KindTopologyConfiguration, Message: msg}
	if datacenter != "" {
		e.Datacenters = []string{datacenter}
	}

	return e
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	var b strings.Builder
	b.WriteString("meridian: ")
	b.WriteString(e.Kind.String())
	if len(e.Datacenters) > 0 {
		b.WriteString(" (datacenter ")
		b.WriteString(strings.Join(e.Datacenters, ", "))
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Attempts) > 0 {
		b.WriteString("; attempted ")
		for i, a := range e.Attempts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Datacenter)
			b.WriteString("/")
			b.WriteString(a.Node)
			if a.Desperation {
				b.WriteString(" (desperation)")
			}
		}
	}
	if e.Cause != nil {
		b.WriteString("; last error: ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RouteError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
func (e *RouteError) Is(target error) bool {
	return target != nil && target == sentinelFor(e.Kind)
}

// KindOf returns the ErrorKind carried by err, or 0 if err carries none.
func KindOf(err error) ErrorKind {
	var routeErr *RouteError
	if errors.As(err, &routeErr) {
		return routeErr.Kind
	}

	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Kind
	}

	return 0
}
