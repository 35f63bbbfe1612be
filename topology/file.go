package topology

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/meridian/internal/logging"
	"github.com/arloliu/meridian/types"
)

// File reads the topology from a YAML file and reloads it on change.
//
// The file holds a FileDocument. The parent directory is watched rather
// than the file itself, so editors that replace the file atomically are
// handled. A file that fails to parse or validate keeps the last topology.
type File struct {
	path   string
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

var _ Source = (*File)(nil)

// NewFile creates a new file topology source.
//
// Parameters:
//   - path: Path to the YAML topology file
//   - opts: Optional configuration (only WithLogger applies)
//
// Returns:
//   - *File: A new source instance
//   - error: Error if path is empty
func NewFile(path string, opts ...WatcherOption) (*File, error) {
	if path == "" {
		return nil, errors.New("meridian/topology: file path is empty")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &File{
		path:           filepath.Clean(path),
		logger:         logging.OrNop(config.Logger),
		explicitLogger: config.Logger != nil,
		updates:        make(chan []types.Endpoint, 1),
		done:           make(chan struct{}),
	}, nil
}

// LoadFile reads and validates a topology file.
//
// Parameters:
//   - path: Path to the YAML topology file
//
// Returns:
//   - []types.Datacenter: The datacenters in file order
//   - error: Read, parse or TopologyConfiguration error
func LoadFile(path string) ([]types.Datacenter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc FileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("meridian/topology: parse %s: %w", path, err)
	}
	if err := Validate(doc.Datacenters); err != nil {
		return nil, err
	}

	return doc.Datacenters, nil
}

// Load reads the file once.
//
// Returns:
//   - []types.Endpoint: The endpoints described by the file
//   - error: Read, parse or validation error
func (f *File) Load() ([]types.Endpoint, error) {
	dcs, err := LoadFile(f.path)
	if err != nil {
		return nil, err
	}

	return Flatten(dcs), nil
}

// Watch returns a channel that receives endpoint lists.
//
// The current file contents are emitted first, then every change.
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan []types.Endpoint: Channel of endpoint lists
func (f *File) Watch(ctx context.Context) <-chan []types.Endpoint {
	f.mu.Lock()
	if f.watchStarted {
		f.mu.Unlock()

		return f.updates
	}
	f.watchStarted = true
	f.mu.Unlock()

	go f.watchLoop(ctx)

	return f.updates
}

// SetLogger sets the logger unless one was configured with WithLogger.
//
// Must be called before Watch.
func (f *File) SetLogger(l types.Logger) {
	if f.explicitLogger || l == nil {
		return
	}
	f.logger = l
}

// Close stops the watcher and releases resources.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	close(f.done)

	return nil
}

// Current returns the last endpoint list read from the file.
func (f *File) Current() []types.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.last)
}

func (f *File) watchLoop(ctx context.Context) {
	defer f.closeOnce.Do(func() { close(f.updates) })

	f.reload()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Error("topology file watcher unavailable", "path", f.path, "error", err)
		f.wait(ctx)

		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		f.logger.Error("cannot watch topology directory", "path", f.path, "error", err)
		f.wait(ctx)

		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				f.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("topology file watch error", "path", f.path, "error", err)
		}
	}
}

func (f *File) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-f.done:
	}
}

func (f *File) reload() {
	endpoints, err := f.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("invalid topology file, keeping last topology", "path", f.path, "error", err)
		}

		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || !changed(f.last, endpoints) {
		return
	}
	f.last = endpoints
	publish(f.updates, endpoints)
}
