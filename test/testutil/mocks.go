package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/arloliu/meridian/types"
)

// Cluster is a scripted set of nodes for router tests.
//
// Every node succeeds unless configured otherwise. A node can fail
// permanently (Fail), follow a script of outcomes (Script) or delay its
// response (Delay). Calls are counted per address.
type Cluster struct {
	mu      sync.Mutex
	fails   map[string]error
	scripts map[string][]error
	delays  map[string]time.Duration
	calls   map[string]int
	order   []string

	// OnAttempt, if set, is called before the scripted outcome is applied.
	OnAttempt func(ctx context.Context, node types.Node)
}

// NewCluster creates a cluster where every node succeeds.
func NewCluster() *Cluster {
	return &Cluster{
		fails:   make(map[string]error),
		scripts: make(map[string][]error),
		delays:  make(map[string]time.Duration),
		calls:   make(map[string]int),
	}
}

// Fail makes every attempt against addr return err.
func (c *Cluster) Fail(addr string, err error) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fails[addr] = err

	return c
}

// Recover clears Fail and Script state for addr.
func (c *Cluster) Recover(addr string) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.fails, addr)
	delete(c.scripts, addr)

	return c
}

// Script queues outcomes for addr. Each attempt consumes one entry; nil
// means success. Once the script is exhausted the node falls back to Fail
// or success.
func (c *Cluster) Script(addr string, outcomes ...error) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scripts[addr] = append(c.scripts[addr], outcomes...)

	return c
}

// Delay makes attempts against addr wait d or until the context ends.
func (c *Cluster) Delay(addr string, d time.Duration) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delays[addr] = d

	return c
}

// Attempt runs one scripted attempt. It has the signature of
// meridian.AttemptFunc.
func (c *Cluster) Attempt(ctx context.Context, node types.Node) error {
	if c.OnAttempt != nil {
		c.OnAttempt(ctx, node)
	}

	c.mu.Lock()
	c.calls[node.Address]++
	c.order = append(c.order, node.Address)
	delay := c.delays[node.Address]

	var err error
	if script := c.scripts[node.Address]; len(script) > 0 {
		err = script[0]
		c.scripts[node.Address] = script[1:]
	} else {
		err = c.fails[node.Address]
	}
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

// Send implements meridian.Dispatcher[string, string]. On success it
// returns op prefixed with the node address.
func (c *Cluster) Send(ctx context.Context, node types.Node, op string) (string, error) {
	if err := c.Attempt(ctx, node); err != nil {
		return "", err
	}

	return node.Address + ":" + op, nil
}

// Calls returns the number of attempts against addr.
func (c *Cluster) Calls(addr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[addr]
}

// TotalCalls returns the number of attempts against all nodes.
func (c *Cluster) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}

// Order returns the addresses attempted, in order.
func (c *Cluster) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.order))
	copy(out, c.order)

	return out
}

// ResetCalls clears the call history.
func (c *Cluster) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = make(map[string]int)
	c.order = nil
}

// Nodes builds nodes for a datacenter from addresses.
func Nodes(datacenter string, addrs ...string) []types.Node {
	nodes := make([]types.Node, len(addrs))
	for i, a := range addrs {
		nodes[i] = types.Node{Address: a, Datacenter: datacenter, Weight: types.DefaultWeight}
	}

	return nodes
}

// Datacenter builds a datacenter from addresses.
func Datacenter(name string, addrs ...string) types.Datacenter {
	return types.Datacenter{Name: name, Nodes: Nodes(name, addrs...)}
}
