package cql

import (
	"errors"

	"github.com/gocql/gocql"

	"github.com/arloliu/meridian/types"
)

// Classify wraps a gocql error as retryable or non-retryable.
//
// Coordinator-side failures (unavailable, overloaded, bootstrapping, read
// and write timeouts, server errors) and connection failures are retryable
// on another node. Request errors (syntax, invalid, unauthorized, already
// exists) and gocql.ErrNotFound are non-retryable. A write timeout on a
// statement that is not idempotent is non-retryable, since the write may
// have been applied.
//
// Context errors and nil are returned unchanged.
//
// Parameters:
//   - err: The error returned by gocql
//   - idempotent: Whether the statement may safely run twice
//
// Returns:
//   - error: err wrapped with types.Retryable or types.NonRetryable
func Classify(err error, idempotent bool) error {
	if err == nil || types.IsContextError(err) {
		return err
	}

	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) {
		if retryableCode(reqErr.Code(), idempotent) {
			return types.Retryable(err)
		}

		return types.NonRetryable(err)
	}

	switch {
	case errors.Is(err, gocql.ErrNotFound),
		errors.Is(err, gocql.ErrUnsupported),
		errors.Is(err, gocql.ErrTooManyStmts),
		errors.Is(err, gocql.ErrUseStmt),
		errors.Is(err, gocql.ErrNoKeyspace),
		errors.Is(err, gocql.ErrKeyspaceDoesNotExist):
		return types.NonRetryable(err)
	case errors.Is(err, gocql.ErrTimeoutNoResponse):
		if !idempotent {
			return types.NonRetryable(err)
		}
	}

	// ErrNoConnections, ErrConnectionClosed, ErrSessionClosed, ErrUnavailable
	// and unknown driver errors.
	return types.Retryable(err)
}

func retryableCode(code int, idempotent bool) bool {
	switch code {
	case gocql.ErrCodeServer,
		gocql.ErrCodeUnavailable,
		gocql.ErrCodeOverloaded,
		gocql.ErrCodeBootstrapping,
		gocql.ErrCodeTruncate,
		gocql.ErrCodeReadTimeout,
		gocql.ErrCodeReadFailure,
		gocql.ErrCodeUnprepared:
		return true
	case gocql.ErrCodeWriteTimeout, gocql.ErrCodeWriteFailure:
		return idempotent
	case gocql.ErrCodeProtocol,
		gocql.ErrCodeCredentials,
		gocql.ErrCodeFunctionFailure,
		gocql.ErrCodeSyntax,
		gocql.ErrCodeUnauthorized,
		gocql.ErrCodeInvalid,
		gocql.ErrCodeConfig,
		gocql.ErrCodeAlreadyExists:
		return false
	}

	// 0x2xxx codes are request errors.
	return code < 0x2000
}
