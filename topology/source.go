package topology

import (
	"context"
	"slices"

	"github.com/arloliu/meridian/types"
)

// Source is a topology discovery feed.
//
// Each value received from the channel is the complete list of
// (datacenter, address, weight) tuples known to the feed. The channel is
// closed when the context is cancelled or the source is closed.
type Source interface {
	// Watch returns a channel of endpoint lists.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//
	// Returns:
	//   - <-chan []types.Endpoint: Channel of complete endpoint lists
	Watch(ctx context.Context) <-chan []types.Endpoint
}

// Group converts endpoint tuples into datacenters.
//
// Datacenters appear in the order their first endpoint appears; nodes keep
// their order within a datacenter. The result is not validated.
//
// Parameters:
//   - endpoints: Endpoint tuples
//
// Returns:
//   - []types.Datacenter: Grouped datacenters
func Group(endpoints []types.Endpoint) []types.Datacenter {
	var out []types.Datacenter
	index := make(map[string]int)
	for _, ep := range endpoints {
		i, ok := index[ep.Datacenter]
		if !ok {
			i = len(out)
			index[ep.Datacenter] = i
			out = append(out, types.Datacenter{Name: ep.Datacenter})
		}
		out[i].Nodes = append(out[i].Nodes, types.Node{
			Address:    ep.Address,
			Datacenter: ep.Datacenter,
			Weight:     ep.Weight,
		})
	}

	return out
}

// Flatten converts datacenters into endpoint tuples in configuration order.
//
// Parameters:
//   - datacenters: The datacenters
//
// Returns:
//   - []types.Endpoint: One tuple per node
func Flatten(datacenters []types.Datacenter) []types.Endpoint {
	var out []types.Endpoint
	for _, dc := range datacenters {
		for _, n := range dc.Nodes {
			out = append(out, types.Endpoint{
				Datacenter: dc.Name,
				Address:    n.Address,
				Weight:     n.Weight,
			})
		}
	}

	return out
}

// publish delivers endpoints to a buffered channel, replacing an unread
// older value. The channel must have a single sender.
func publish(ch chan []types.Endpoint, endpoints []types.Endpoint) {
	for {
		select {
		case ch <- endpoints:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}

// changed reports whether endpoints differ from last.
func changed(last, endpoints []types.Endpoint) bool {
	return last == nil || !slices.Equal(last, endpoints)
}
