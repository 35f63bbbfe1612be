package policy

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/meridian/types"
)

// RoundRobin rotates the node list of each datacenter by one position per
// request.
//
// The cursor of a datacenter is reset when its generation changes, so a
// reconfigured or newly activated datacenter starts from its first node.
type RoundRobin struct {
	mu      sync.RWMutex
	cursors map[stateKey]*rrCursor
}

type rrCursor struct {
	gen uint64
	pos atomic.Uint64
}

var _ SelectionPolicy = (*RoundRobin)(nil)

// NewRoundRobin creates a new RoundRobin policy.
//
// Returns:
//   - *RoundRobin: A new round-robin policy
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{cursors: make(map[stateKey]*rrCursor)}
}

// Order returns the nodes rotated by the datacenter cursor, then advances
// the cursor.
//
// Over N consecutive calls on a datacenter of N available nodes, every node
// is first exactly once.
func (r *RoundRobin) Order(req Request) []types.Node {
	n := len(req.Nodes)
	if n == 0 {
		return []types.Node{}
	}

	c := r.cursor(keyOf(req), req.Generation)
	offset := int((c.pos.Add(1) - 1) % uint64(n))

	out := make([]types.Node, 0, n)
	out = append(out, req.Nodes[offset:]...)
	out = append(out, req.Nodes[:offset]...)

	return partition(out, req.Available)
}

func (r *RoundRobin) cursor(key stateKey, gen uint64) *rrCursor {
	r.mu.RLock()
	c, ok := r.cursors[key]
	r.mu.RUnlock()
	if ok && c.gen == gen {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok = r.cursors[key]
	if !ok || c.gen != gen {
		c = &rrCursor{gen: gen}
		r.cursors[key] = c
	}

	return c
}
