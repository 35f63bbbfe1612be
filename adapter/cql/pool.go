package cql

import (
	"context"
	"net"
	"sync"

	"github.com/gocql/gocql"

	"github.com/arloliu/meridian/types"
)

// Pool opens one gocql session per node on first use.
//
// Each session is restricted to its node with a host filter, so the
// driver never reroutes a statement behind the router's back.
type Pool struct {
	newCluster func(address string) *gocql.ClusterConfig
	open       func(node types.Node) (Session, error)

	mu       sync.Mutex
	sessions map[string]Session
}

var _ SessionProvider = (*Pool)(nil)

// NewPool creates a session pool.
//
// Parameters:
//   - newCluster: Builds the cluster config for a node address. Hosts and
//     HostFilter are set by the pool.
//
// Returns:
//   - *Pool: A new pool
//
// Example:
//
//	pool := cql.NewPool(func(addr string) *gocql.ClusterConfig {
//	    c := gocql.NewCluster(addr)
//	    c.Keyspace = "app"
//	    c.Timeout = 2 * time.Second
//	    return c
//	})
//	defer pool.Close()
func NewPool(newCluster func(address string) *gocql.ClusterConfig) *Pool {
	p := &Pool{
		newCluster: newCluster,
		sessions:   make(map[string]Session),
	}
	p.open = p.openSession

	return p
}

func (p *Pool) openSession(node types.Node) (Session, error) {
	cluster := p.newCluster(node.Address)
	cluster.Hosts = []string{node.Address}
	host := node.Address
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	cluster.HostFilter = gocql.WhiteListHostFilter(host)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	return WrapSession(session), nil
}

// Session returns the session for node, opening it if needed.
//
// A failed open is not cached; the next attempt retries it.
func (p *Pool) Session(ctx context.Context, node types.Node) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[node.Address]; ok {
		return s, nil
	}

	s, err := p.open(node)
	if err != nil {
		return nil, err
	}
	p.sessions[node.Address] = s

	return s, nil
}

// Retain closes and forgets sessions of nodes not in addresses.
//
// Call it after a topology change to release removed nodes.
func (p *Pool) Retain(addresses map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, s := range p.sessions {
		if _, ok := addresses[addr]; !ok {
			s.Close()
			delete(p.sessions, addr)
		}
	}
}

// Close closes every open session.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, s := range p.sessions {
		s.Close()
		delete(p.sessions, addr)
	}
}
