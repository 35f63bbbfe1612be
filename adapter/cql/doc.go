// Package cql routes CQL statements to Cassandra-compatible nodes through
// the meridian router.
//
// The router chooses the node; this package runs the statement on that
// node's session and classifies the driver error so the router knows
// whether to try another node.
//
// # Components
//
//   - Session, Query: The subset of the gocql API used for dispatch
//   - WrapSession: Adapts a *gocql.Session
//   - Pool: Opens one node-pinned gocql session per node on demand
//   - StaticSessions: Fixed address to session mapping
//   - Dispatcher: meridian.Dispatcher[*Statement, *Result]
//   - Classify: gocql error to retryable/non-retryable
//
// # Usage
//
//	pool := cql.NewPool(func(addr string) *gocql.ClusterConfig {
//	    c := gocql.NewCluster(addr)
//	    c.Keyspace = "app"
//	    return c
//	})
//	defer pool.Close()
//
//	d := cql.New(pool, cql.WithAttemptTimeout(2*time.Second))
//	res, err := meridian.Send[*cql.Statement, *cql.Result](ctx, router, d, &cql.Statement{
//	    CQL:        "UPDATE users SET name = ? WHERE id = ?",
//	    Values:     []any{name, id},
//	    Idempotent: true,
//	})
//
// # Error Classification
//
// Coordinator overload, unavailability, timeouts and connection failures
// are retryable. Syntax, invalid, unauthorized and already-exists errors
// are not. Write timeouts are retried only for idempotent statements.
package cql
