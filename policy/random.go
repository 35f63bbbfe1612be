package policy

import (
	"github.com/arloliu/meridian/types"
)

// Random orders nodes by a uniform random permutation per request.
type Random struct {
	opts options
}

var _ SelectionPolicy = (*Random)(nil)

// NewRandom creates a new Random policy.
//
// Parameters:
//   - opts: Optional randomness configuration
//
// Returns:
//   - *Random: A new random policy
func NewRandom(opts ...Option) *Random {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Random{opts: o}
}

// Order returns a Fisher-Yates shuffle of the request nodes.
func (r *Random) Order(req Request) []types.Node {
	out := make([]types.Node, len(req.Nodes))
	copy(out, req.Nodes)

	for i := len(out) - 1; i > 0; i-- {
		j := r.opts.intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return partition(out, req.Available)
}
