package pgdesk

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectionError is returned when the pool cannot produce a usable
// connection after bounded retries (exhaustion, dial failure, TLS or
// authentication failure). Cause holds the last underlying error.
type ConnectionError struct {
	Attempts int
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to acquire connection after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// QueryError is a SQL failure: syntax error, constraint violation, or any
// other runtime error reported by the server. It is never retried. Position
// is the 1-based character offset into the statement when the server
// provides one (syntax errors), 0 otherwise.
type QueryError struct {
	Message  string
	Code     string // SQLSTATE, empty for client-side failures
	Position int
	Cause    error
}

func (e *QueryError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("query failed at position %d: %s", e.Position, e.Message)
	}
	return "query failed: " + e.Message
}

func (e *QueryError) Unwrap() error { return e.Cause }

// ValidationError rejects bad input (backup options, unsafe paths) before
// any I/O is performed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// FileNotFoundError is returned by ExecuteFile when the given path does not
// resolve to an existing file under the working directory context.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return "file not found: " + e.Path
}

// newQueryError wraps a pgx execution error into a *QueryError, pulling the
// SQLSTATE and source position out of the server error when present.
func newQueryError(err error) *QueryError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{
			Message:  pgErr.Message,
			Code:     pgErr.Code,
			Position: int(pgErr.Position),
			Cause:    err,
		}
	}
	return &QueryError{Message: err.Error(), Cause: err}
}

// isConnectionFailure reports whether a server error belongs to the
// connection-exception class (SQLSTATE 08xxx) or invalid authorization.
// Such errors surface as *ConnectionError rather than *QueryError.
func isConnectionFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgerrcode.IsConnectionException(pgErr.Code) ||
		pgerrcode.IsInvalidAuthorizationSpecification(pgErr.Code)
}
