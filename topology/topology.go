package topology

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/meridian/types"
)

// Snapshot is an immutable view of the datacenter topology.
//
// Snapshots are shared between goroutines without locking; callers must not
// modify the slices they return.
type Snapshot struct {
	version     uint64
	active      string
	datacenters []types.Datacenter
	index       map[string]int
	generations map[string]uint64
}

// Version returns the snapshot version. It increases on every change.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Active returns the name of the active datacenter.
func (s *Snapshot) Active() string {
	return s.active
}

// ActiveDatacenter returns the active datacenter.
func (s *Snapshot) ActiveDatacenter() types.Datacenter {
	return s.datacenters[s.index[s.active]]
}

// Datacenters returns every datacenter in configuration order.
func (s *Snapshot) Datacenters() []types.Datacenter {
	return s.datacenters
}

// Names returns the datacenter names in configuration order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.datacenters))
	for i, dc := range s.datacenters {
		names[i] = dc.Name
	}

	return names
}

// Len returns the number of datacenters.
func (s *Snapshot) Len() int {
	return len(s.datacenters)
}

// Datacenter looks up a datacenter by name.
//
// Parameters:
//   - name: The datacenter name
//
// Returns:
//   - types.Datacenter: The datacenter
//   - bool: false if no datacenter has that name
func (s *Snapshot) Datacenter(name string) (types.Datacenter, bool) {
	i, ok := s.index[name]
	if !ok {
		return types.Datacenter{}, false
	}

	return s.datacenters[i], true
}

// Generation returns the generation of a datacenter, or 0 if unknown.
//
// The generation changes when the datacenter's node list changes or when it
// becomes active through a switch or failover.
func (s *Snapshot) Generation(name string) uint64 {
	return s.generations[name]
}

// Next returns the datacenter following name in configuration order,
// wrapping around at the end.
//
// Returns the empty string if name is unknown or it is the only datacenter.
func (s *Snapshot) Next(name string) string {
	i, ok := s.index[name]
	if !ok || len(s.datacenters) < 2 {
		return ""
	}

	return s.datacenters[(i+1)%len(s.datacenters)].Name
}

// Addresses returns the set of every node address in the topology.
func (s *Snapshot) Addresses() map[string]struct{} {
	out := make(map[string]struct{})
	for _, dc := range s.datacenters {
		for _, n := range dc.Nodes {
			out[n.Address] = struct{}{}
		}
	}

	return out
}

// Topology holds the datacenter mapping and the active datacenter.
//
// Reads are lock-free: Snapshot loads an immutable value published through
// an atomic pointer. Writers serialize on a mutex and publish a new
// snapshot.
type Topology struct {
	id         uint64
	mu         sync.Mutex
	current    atomic.Pointer[Snapshot]
	onActivate func(types.Datacenter)
}

// generations is shared by every Topology in the process so that a
// (datacenter, generation) pair never identifies two different node lists.
var generations atomic.Uint64

var instances atomic.Uint64

// New creates a topology from a list of datacenters.
//
// Parameters:
//   - datacenters: Datacenters in configuration order (at least one)
//   - active: Initial active datacenter; empty selects the first one
//
// Returns:
//   - *Topology: The topology
//   - error: A TopologyConfiguration error if the input is invalid
func New(datacenters []types.Datacenter, active string) (*Topology, error) {
	dcs, err := normalize(datacenters)
	if err != nil {
		return nil, err
	}

	if active == "" {
		active = dcs[0].Name
	}

	t := &Topology{id: instances.Add(1)}
	snap := &Snapshot{
		version:     1,
		active:      active,
		datacenters: dcs,
		index:       indexOf(dcs),
		generations: make(map[string]uint64, len(dcs)),
	}
	if _, ok := snap.index[active]; !ok {
		return nil, types.NewTopologyError(active, "active datacenter not found")
	}
	for _, dc := range dcs {
		snap.generations[dc.Name] = nextGen()
	}
	t.current.Store(snap)

	return t, nil
}

// Snapshot returns the current topology snapshot.
func (t *Topology) Snapshot() *Snapshot {
	return t.current.Load()
}

// Active returns the name of the active datacenter.
func (t *Topology) Active() string {
	return t.current.Load().active
}

// ID returns an identifier unique to this Topology within the process.
func (t *Topology) ID() uint64 {
	return t.id
}

// OnActivate registers fn to run whenever a datacenter becomes active
// through SetActive, FailoverFrom or Replace.
//
// fn runs under the topology write lock, before the snapshot naming the new
// active datacenter is published. It must not call SetActive, FailoverFrom,
// Replace or OnActivate.
//
// Parameters:
//   - fn: Called with the newly active datacenter
func (t *Topology) OnActivate(fn func(types.Datacenter)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onActivate = fn
}

// Replace installs a new datacenter mapping.
//
// The active datacenter is kept if it is still present; otherwise the first
// datacenter becomes active. Datacenters whose node lists are unchanged keep
// their generation.
//
// Parameters:
//   - datacenters: The new datacenters in configuration order
//
// Returns:
//   - *Snapshot: The published snapshot
//   - string: The active datacenter before the call
//   - error: A TopologyConfiguration error; the topology is unchanged
func (t *Topology) Replace(datacenters []types.Datacenter) (*Snapshot, string, error) {
	dcs, err := normalize(datacenters)
	if err != nil {
		return nil, "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.current.Load()
	snap := &Snapshot{
		version:     prev.version + 1,
		active:      prev.active,
		datacenters: dcs,
		index:       indexOf(dcs),
		generations: make(map[string]uint64, len(dcs)),
	}
	if _, ok := snap.index[snap.active]; !ok {
		snap.active = dcs[0].Name
	}

	for _, dc := range dcs {
		old, ok := prev.Datacenter(dc.Name)
		switch {
		case ok && sameNodes(old.Nodes, dc.Nodes) && (dc.Name != snap.active || dc.Name == prev.active):
			snap.generations[dc.Name] = prev.generations[dc.Name]
		default:
			snap.generations[dc.Name] = nextGen()
		}
	}
	if snap.active != prev.active {
		t.activated(snap)
	}
	t.current.Store(snap)

	return snap, prev.active, nil
}

// SetActive makes name the active datacenter.
//
// Setting the already active datacenter is a no-op.
//
// Parameters:
//   - name: The datacenter to activate
//
// Returns:
//   - string: The previously active datacenter
//   - error: A TopologyConfiguration error if name is unknown; active is unchanged
func (t *Topology) SetActive(name string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.current.Load()
	if _, ok := prev.index[name]; !ok {
		return prev.active, types.NewTopologyError(name, "unknown datacenter")
	}
	if prev.active == name {
		return name, nil
	}

	t.current.Store(t.activate(prev, name))

	return prev.active, nil
}

// FailoverFrom switches the active datacenter away from from.
//
// The target is the next datacenter after from in configuration order. The
// switch only happens if from is still active, so concurrent callers that
// exhausted the same datacenter cause a single switch.
//
// Parameters:
//   - from: The datacenter that was exhausted
//
// Returns:
//   - string: The active datacenter after the call
//   - bool: true if this call performed the switch
func (t *Topology) FailoverFrom(from string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.current.Load()
	if prev.active != from {
		return prev.active, false
	}

	next := prev.Next(from)
	if next == "" {
		return prev.active, false
	}

	t.current.Store(t.activate(prev, next))

	return next, true
}

// activate returns a copy of prev with name active and a fresh generation
// for it, after running the activation hook. Caller holds t.mu.
func (t *Topology) activate(prev *Snapshot, name string) *Snapshot {
	gens := make(map[string]uint64, len(prev.generations))
	for k, v := range prev.generations {
		gens[k] = v
	}
	gens[name] = nextGen()

	snap := &Snapshot{
		version:     prev.version + 1,
		active:      name,
		datacenters: prev.datacenters,
		index:       prev.index,
		generations: gens,
	}
	t.activated(snap)

	return snap
}

// activated runs the activation hook for the active datacenter of snap.
// Caller holds t.mu.
func (t *Topology) activated(snap *Snapshot) {
	if t.onActivate == nil {
		return
	}
	if dc, ok := snap.Datacenter(snap.active); ok {
		t.onActivate(dc)
	}
}

func nextGen() uint64 {
	return generations.Add(1)
}

// Validate checks a datacenter list without building a topology.
//
// Parameters:
//   - datacenters: The datacenters to check
//
// Returns:
//   - error: A TopologyConfiguration error, or nil
func Validate(datacenters []types.Datacenter) error {
	_, err := normalize(datacenters)
	return err
}

// normalize validates and deep-copies the datacenters.
func normalize(datacenters []types.Datacenter) ([]types.Datacenter, error) {
	if len(datacenters) == 0 {
		return nil, types.NewTopologyError("", "at least one datacenter is required")
	}

	out := make([]types.Datacenter, 0, len(datacenters))
	names := make(map[string]struct{}, len(datacenters))
	owners := make(map[string]string)
	for _, dc := range datacenters {
		if err := dc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := names[dc.Name]; dup {
			return nil, types.NewTopologyError(dc.Name, "duplicate datacenter")
		}
		names[dc.Name] = struct{}{}

		for _, n := range dc.Nodes {
			if owner, dup := owners[n.Address]; dup {
				return nil, types.NewTopologyError(dc.Name,
					fmt.Sprintf("node %s already belongs to datacenter %s", n.Address, owner))
			}
			owners[n.Address] = dc.Name
		}

		out = append(out, dc.Clone())
	}

	return out, nil
}

func indexOf(dcs []types.Datacenter) map[string]int {
	index := make(map[string]int, len(dcs))
	for i, dc := range dcs {
		index[dc.Name] = i
	}

	return index
}

func sameNodes(a, b []types.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
