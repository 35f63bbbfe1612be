package topology

import (
	"context"
	"slices"
	"sync"

	"github.com/arloliu/meridian/types"
)

// Local provides an in-memory topology source for testing and embedding.
//
// Unlike NATS and File, updates are pushed programmatically through
// Publish, making it ideal for unit tests and demos.
type Local struct {
	mu            sync.Mutex
	current       []types.Endpoint
	updates       chan []types.Endpoint
	done          chan struct{}
	closed        bool
	updatesClosed bool
	watchStarted  bool
}

var _ Source = (*Local)(nil)

// NewLocal creates a new in-memory topology source.
//
// Parameters:
//   - initial: Optional initial endpoints, delivered on the first Watch
//
// Returns:
//   - *Local: A new local topology source
func NewLocal(initial ...types.Endpoint) *Local {
	l := &Local{
		updates: make(chan []types.Endpoint, 1),
		done:    make(chan struct{}),
	}
	if len(initial) > 0 {
		l.current = slices.Clone(initial)
		publish(l.updates, l.current)
	}

	return l
}

// Watch returns a channel that receives endpoint lists.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan []types.Endpoint: Channel of endpoint lists
func (l *Local) Watch(ctx context.Context) <-chan []types.Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.watchStarted {
		l.watchStarted = true
		go l.waitForClose(ctx)
	}

	return l.updates
}

// Publish replaces the endpoint list and emits it to the watcher.
//
// Only the most recent unread list is kept. Publishing an identical list
// emits nothing.
//
// Parameters:
//   - endpoints: The complete endpoint list
func (l *Local) Publish(endpoints []types.Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.updatesClosed || !changed(l.current, endpoints) {
		return
	}

	l.current = slices.Clone(endpoints)
	publish(l.updates, l.current)
}

// PublishDatacenters publishes a datacenter list as endpoint tuples.
//
// Parameters:
//   - datacenters: The datacenters to publish
func (l *Local) PublishDatacenters(datacenters []types.Datacenter) {
	l.Publish(Flatten(datacenters))
}

// Current returns the last published endpoint list.
func (l *Local) Current() []types.Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.current)
}

// Close stops the source and closes the watch channel.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.done)

	if !l.watchStarted && !l.updatesClosed {
		l.updatesClosed = true
		close(l.updates)
	}

	return nil
}

// waitForClose waits for context cancellation or close signal.
func (l *Local) waitForClose(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-l.done:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.updatesClosed {
		l.updatesClosed = true
		close(l.updates)
	}
}
