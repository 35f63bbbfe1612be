package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/meridian/types"
)

func testNodes(weights ...int) []types.Node {
	nodes := make([]types.Node, len(weights))
	for i, w := range weights {
		nodes[i] = types.Node{
			Address:    string(rune('a' + i)),
			Datacenter: "dc1",
			Weight:     w,
		}
	}

	return nodes
}

func addresses(nodes []types.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Address
	}

	return out
}

func TestNewPolicy(t *testing.T) {
	p, err := New(types.PolicyRoundRobin)
	require.NoError(t, err)
	assert.IsType(t, &RoundRobin{}, p)

	p, err = New(types.PolicyRandom)
	require.NoError(t, err)
	assert.IsType(t, &Random{}, p)

	p, err = New(types.PolicyWeighted)
	require.NoError(t, err)
	assert.IsType(t, &Weighted{}, p)

	p, err = New("")
	require.NoError(t, err)
	assert.IsType(t, &RoundRobin{}, p)

	_, err = New("LEAST_CONN")
	require.ErrorIs(t, err, types.ErrTopologyConfiguration)
}

func TestPoliciesEmptyInput(t *testing.T) {
	for _, p := range []SelectionPolicy{NewRoundRobin(), NewRandom(), NewWeighted()} {
		out := p.Order(Request{Datacenter: "dc1"})
		assert.NotNil(t, out)
		assert.Empty(t, out)
	}
}

func TestPoliciesReturnEveryNodeOnce(t *testing.T) {
	nodes := testNodes(1, 2, 3, 4, 5)
	for _, p := range []SelectionPolicy{NewRoundRobin(), NewRandom(), NewWeighted()} {
		for range 50 {
			out := p.Order(Request{Datacenter: "dc1", Nodes: nodes})
			assert.ElementsMatch(t, addresses(nodes), addresses(out))
		}
	}
}

func TestPoliciesUnavailableLast(t *testing.T) {
	nodes := testNodes(1, 1, 1, 1)
	down := map[string]bool{"a": true, "c": true}
	available := func(n types.Node) bool { return !down[n.Address] }

	for _, p := range []SelectionPolicy{NewRoundRobin(), NewRandom(), NewWeighted()} {
		for range 20 {
			out := p.Order(Request{Datacenter: "dc1", Nodes: nodes, Available: available})
			require.Len(t, out, 4)
			assert.True(t, available(out[0]))
			assert.True(t, available(out[1]))
			assert.False(t, available(out[2]))
			assert.False(t, available(out[3]))
		}
	}
}

func TestPoliciesDoNotMutateInput(t *testing.T) {
	nodes := testNodes(1, 2, 3)
	before := addresses(nodes)
	allDown := func(types.Node) bool { return false }

	for _, p := range []SelectionPolicy{NewRoundRobin(), NewRandom(), NewWeighted()} {
		for range 10 {
			p.Order(Request{Datacenter: "dc1", Nodes: nodes, Available: allDown})
		}
	}
	assert.Equal(t, before, addresses(nodes))
}

func TestPartitionStable(t *testing.T) {
	nodes := testNodes(1, 1, 1, 1, 1)
	out := partition(nodes, func(n types.Node) bool { return n.Address == "b" || n.Address == "d" })
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, addresses(out))
}
