package cql

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"

	"github.com/arloliu/meridian/types"
)

// Statement is one CQL statement routed through meridian.
type Statement struct {
	// CQL is the statement text with ? placeholders.
	CQL string

	// Values are bound to the placeholders.
	Values []any

	// Consistency overrides the session consistency. Zero keeps the session default.
	Consistency gocql.Consistency

	// Idempotent marks the statement as safe to run more than once. Write
	// timeouts on non-idempotent statements are not retried.
	Idempotent bool

	// Rows requests the result rows. Otherwise the statement is executed
	// with Exec.
	Rows bool
}

// Result is the outcome of a successful statement.
type Result struct {
	// Node is the address of the node that served the statement.
	Node string

	// Rows holds the result rows when Statement.Rows was set.
	Rows []map[string]any
}

// SessionProvider returns the session for a node.
type SessionProvider interface {
	Session(ctx context.Context, node types.Node) (Session, error)
}

// ErrNoSession is returned by StaticSessions for nodes without a session.
var ErrNoSession = errors.New("meridian/cql: no session for node")

// StaticSessions maps node addresses to sessions.
type StaticSessions map[string]Session

// Session implements SessionProvider.
func (s StaticSessions) Session(_ context.Context, node types.Node) (Session, error) {
	session, ok := s[node.Address]
	if !ok {
		return nil, ErrNoSession
	}

	return session, nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAttemptTimeout bounds each attempt. Zero means no per-attempt timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// Dispatcher runs Statements on the session of the node chosen by the router.
//
// It implements meridian.Dispatcher[*Statement, *Result].
type Dispatcher struct {
	sessions SessionProvider
	timeout  time.Duration
}

// New creates a new CQL dispatcher.
//
// Parameters:
//   - sessions: Source of per-node sessions
//   - opts: Optional configuration options
//
// Returns:
//   - *Dispatcher: A new dispatcher
//
// Example:
//
//	d := cql.New(cql.StaticSessions{
//	    "10.0.0.1": cql.WrapSession(east1),
//	    "10.1.0.1": cql.WrapSession(west1),
//	})
//	res, err := meridian.Send[*cql.Statement, *cql.Result](ctx, router, d, &cql.Statement{
//	    CQL:    "SELECT * FROM users WHERE id = ?",
//	    Values: []any{id},
//	    Rows:   true,
//	})
func New(sessions SessionProvider, opts ...Option) *Dispatcher {
	d := &Dispatcher{sessions: sessions}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Send runs st on node.
//
// A missing session or a failure to open one is retryable. Driver errors
// are classified with Classify.
//
// Parameters:
//   - ctx: Context for the attempt
//   - node: The node chosen by the router
//   - st: The statement
//
// Returns:
//   - *Result: The statement result
//   - error: A classified error
func (d *Dispatcher) Send(ctx context.Context, node types.Node, st *Statement) (*Result, error) {
	session, err := d.sessions.Session(ctx, node)
	if err != nil {
		return nil, types.Retryable(err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	q := session.Query(st.CQL, st.Values...).WithContext(ctx).Idempotent(st.Idempotent)
	if st.Consistency != 0 {
		q = q.Consistency(st.Consistency)
	}

	res := &Result{Node: node.Address}
	if st.Rows {
		res.Rows, err = q.Rows()
	} else {
		err = q.Exec()
	}
	if err != nil {
		return nil, Classify(err, st.Idempotent)
	}

	return res, nil
}
