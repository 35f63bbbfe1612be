package topology

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/meridian/internal/logging"
	"github.com/arloliu/meridian/types"
)

// NATS reads the topology from a NATS KV bucket.
//
// It watches a configurable key holding a JSON Document and emits the full
// endpoint list every time the document changes. If the watch cannot be
// established, or the server closes it, the key is polled while the watch is
// retried with exponential backoff.
//
// Deleting or purging the key, or storing an invalid document, keeps the
// last known topology.
//
// Watch() should be called once per instance. Subsequent calls return the
// same channel. The channel is closed when Close() is called or the context
// is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig
	logger types.Logger

	explicitLogger bool

	mu           sync.Mutex
	last         []types.Endpoint
	updates      chan []types.Endpoint
	done         chan struct{}
	closed       bool
	watchStarted bool
	closeOnce    sync.Once
}

var _ Source = (*NATS)(nil)

// NewNATS creates a new NATS KV topology source.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new source instance
//   - error: Error if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "meridian-config")
//
//	source, _ := topology.NewNATS(kv,
//	    topology.WithKey("api.topology"),
//	    topology.WithPollInterval(10*time.Second),
//	)
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("meridian/topology: KeyValue store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:             kv,
		config:         config,
		logger:         logging.OrNop(config.Logger),
		explicitLogger: config.Logger != nil,
		updates:        make(chan []types.Endpoint, 1),
		done:           make(chan struct{}),
	}, nil
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
func (n *NATS) Watch(ctx context.Context) <-chan []types.Endpoint {
	n.mu.Lock()
	if n.watchStarted {
		n.mu.Unlock()

		return n.updates
	}
	n.watchStarted = true
	n.mu.Unlock()

	go n.watchLoop(ctx)

	return n.updates
}

// Publish stores an endpoint list as the topology document.
//
// Parameters:
//   - ctx: Context for cancellation
//   - endpoints: The complete endpoint list
//
// Returns:
//   - error: Error if encoding or the KV put fails
func (n *NATS) Publish(ctx context.Context, endpoints []types.Endpoint) error {
	data, err := json.Marshal(Document{Endpoints: endpoints})
	if err != nil {
		return err
	}

	_, err = n.kv.Put(ctx, n.config.Key, data)

	return err
}

// SetLogger sets the logger unless one was configured with WithLogger.
//
// Must be called before Watch.
func (n *NATS) SetLogger(l types.Logger) {
	if n.explicitLogger || l == nil {
		return
	}
	n.logger = l
}

// Close stops the watcher and releases resources.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	n.closed = true
	close(n.done)

	return nil
}

// Config returns the watcher configuration.
//
// Returns:
//   - WatcherConfig: The current watcher configuration
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// Current returns the last endpoint list read from the bucket.
//
// This returns the cached list and does not perform a live KV fetch.
func (n *NATS) Current() []types.Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()

	return slices.Clone(n.last)
}

// watchLoop establishes the KV watch and re-establishes it with backoff.
func (n *NATS) watchLoop(ctx context.Context) {
	defer n.closeOnce.Do(func() { close(n.updates) })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-n.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = n.config.PollInterval
	b.MaxElapsedTime = 0
	b.Reset()

	n.fetchAndEmit(ctx)

	for ctx.Err() == nil {
		watcher, err := n.kv.Watch(ctx, n.config.Key)
		if err != nil {
			n.logger.Warn("topology watch failed, polling", "key", n.config.Key, "error", err)
			if !n.sleep(ctx, b.NextBackOff()) {
				return
			}
			n.fetchAndEmit(ctx)

			continue
		}

		b.Reset()
		n.consume(ctx, watcher)
		_ = watcher.Stop()
	}
}

// consume processes watch updates until the watcher closes or ctx ends.
func (n *NATS) consume(ctx context.Context, watcher jetstream.KeyWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.logger.Warn("topology watch closed, re-watching", "key", n.config.Key)
				return
			}
			if entry == nil {
				// End of initial values.
				continue
			}
			n.processEntry(entry)
		}
	}
}

func (n *NATS) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fetchAndEmit fetches the current KV value and emits it if changed.
func (n *NATS) fetchAndEmit(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.InitialFetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			n.logger.Debug("topology fetch failed", "key", n.config.Key, "error", err)
		}

		return
	}

	n.processEntry(entry)
}

// processEntry parses a KV entry and emits its endpoints.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.logger.Warn("topology key removed, keeping last topology", "key", n.config.Key)
		return
	}

	var doc Document
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		n.logger.Warn("invalid topology document", "key", n.config.Key, "revision", entry.Revision(), "error", err)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed || !changed(n.last, doc.Endpoints) {
		return
	}
	n.last = doc.Endpoints
	publish(n.updates, doc.Endpoints)
}
