package policy

import (
	"sort"
	"sync"

	"github.com/arloliu/meridian/types"
)

// Weighted orders nodes by weighted random sampling without replacement.
//
// The first position is drawn from a cumulative weight table cached per
// datacenter generation. Each following position is drawn from the
// remaining nodes in proportion to their weights, so a node with twice the
// weight is twice as likely to be tried first.
type Weighted struct {
	opts options

	mu     sync.RWMutex
	tables map[stateKey]*weightTable
}

type weightTable struct {
	gen        uint64
	cumulative []int
	total      int
}

var _ SelectionPolicy = (*Weighted)(nil)

// NewWeighted creates a new Weighted policy.
//
// Parameters:
//   - opts: Optional randomness configuration
//
// Returns:
//   - *Weighted: A new weighted policy
func NewWeighted(opts ...Option) *Weighted {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Weighted{
		opts:   o,
		tables: make(map[stateKey]*weightTable),
	}
}

// Order returns the request nodes in weighted random order.
func (w *Weighted) Order(req Request) []types.Node {
	n := len(req.Nodes)
	if n == 0 {
		return []types.Node{}
	}

	table := w.table(keyOf(req), req.Generation, req.Nodes)

	out := make([]types.Node, 0, n)
	first := sort.SearchInts(table.cumulative, w.opts.intN(table.total)+1)
	out = append(out, req.Nodes[first])

	remaining := make([]types.Node, 0, n-1)
	remaining = append(remaining, req.Nodes[:first]...)
	remaining = append(remaining, req.Nodes[first+1:]...)
	total := table.total - req.Nodes[first].EffectiveWeight()

	for len(remaining) > 0 {
		pick := w.opts.intN(total)
		idx := 0
		for i, node := range remaining {
			pick -= node.EffectiveWeight()
			if pick < 0 {
				idx = i
				break
			}
		}

		chosen := remaining[idx]
		out = append(out, chosen)
		total -= chosen.EffectiveWeight()
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	return partition(out, req.Available)
}

// table returns the cumulative weight table of a datacenter, rebuilding it
// when the generation or node count changed.
func (w *Weighted) table(key stateKey, gen uint64, nodes []types.Node) *weightTable {
	w.mu.RLock()
	t, ok := w.tables[key]
	w.mu.RUnlock()
	if ok && t.gen == gen && len(t.cumulative) == len(nodes) {
		return t
	}

	t = &weightTable{gen: gen, cumulative: make([]int, len(nodes))}
	for i, node := range nodes {
		t.total += node.EffectiveWeight()
		t.cumulative[i] = t.total
	}

	w.mu.Lock()
	w.tables[key] = t
	w.mu.Unlock()

	return t
}
