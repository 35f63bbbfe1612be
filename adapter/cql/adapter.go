// Package cql dispatches CQL statements through the meridian router.
package cql

import (
	"context"

	"github.com/gocql/gocql"
)

// Session is a CQL session bound to a single node.
//
// It is the subset of *gocql.Session the dispatcher needs. Use WrapSession
// to adapt a gocql session.
type Session interface {
	// Query creates a new query for the given statement.
	//
	// Parameters:
	//   - stmt: CQL statement with ? placeholders
	//   - values: Values to bind to placeholders
	//
	// Returns:
	//   - Query: A query builder
	Query(stmt string, values ...any) Query

	// Close terminates the session.
	Close()
}

// Query is a CQL query with bound values.
type Query interface {
	// WithContext associates a context with the query.
	WithContext(ctx context.Context) Query

	// Consistency sets the consistency level.
	Consistency(c gocql.Consistency) Query

	// Idempotent marks the query as safe to run more than once.
	Idempotent(value bool) Query

	// Exec executes the query without returning rows.
	Exec() error

	// Rows executes the query and returns every row as a column map.
	Rows() ([]map[string]any, error)
}

// gocqlSession wraps a *gocql.Session.
type gocqlSession struct {
	session *gocql.Session
}

var _ Session = (*gocqlSession)(nil)

// WrapSession adapts a gocql session.
//
// The session should be pinned to one node (for example with
// gocql.WhiteListHostFilter) so that meridian, not the driver, decides
// which node serves each attempt.
//
// Example:
//
//	cluster := gocql.NewCluster("10.0.0.1")
//	cluster.HostFilter = gocql.WhiteListHostFilter("10.0.0.1")
//	session, _ := cluster.CreateSession()
//	s := cql.WrapSession(session)
//
// Parameters:
//   - session: A gocql.Session instance
//
// Returns:
//   - Session: An adapter implementing Session
func WrapSession(session *gocql.Session) Session {
	return &gocqlSession{session: session}
}

func (s *gocqlSession) Query(stmt string, values ...any) Query {
	return &gocqlQuery{query: s.session.Query(stmt, values...)}
}

func (s *gocqlSession) Close() {
	s.session.Close()
}

// gocqlQuery wraps a *gocql.Query.
type gocqlQuery struct {
	query *gocql.Query
}

func (q *gocqlQuery) WithContext(ctx context.Context) Query {
	q.query = q.query.WithContext(ctx)
	return q
}

func (q *gocqlQuery) Consistency(c gocql.Consistency) Query {
	q.query = q.query.Consistency(c)
	return q
}

func (q *gocqlQuery) Idempotent(value bool) Query {
	q.query = q.query.Idempotent(value)
	return q
}

func (q *gocqlQuery) Exec() error {
	return q.query.Exec()
}

func (q *gocqlQuery) Rows() ([]map[string]any, error) {
	iter := q.query.Iter()
	rows, err := iter.SliceMap()
	if closeErr := iter.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}

	return rows, nil
}
