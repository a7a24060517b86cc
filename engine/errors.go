package engine

import "fmt"

// ValidationError marks a malformed query: bad filter shape, unresolvable relative time syntax,
// unknown field reference or an inverted time range. Never retried; surfaced straight to the
// caller without touching the data source.
type ValidationError struct {
	err error
}

func validationError(err error) ValidationError {
	return ValidationError{err: err}
}

func (err ValidationError) Error() string {
	return fmt.Sprintf("invalid query: %v", err.err)
}

func (err ValidationError) Unwrap() error {
	return err.err
}

// DataSourceError marks a failed data source access. Retried a bounded number of times inside
// the engine before surfacing as a QueryExecutionError.
type DataSourceError struct {
	err error
}

func (err DataSourceError) Error() string {
	return fmt.Sprintf("data source access failed: %v", err.err)
}

func (err DataSourceError) Unwrap() error {
	return err.err
}

// QueryExecutionError marks a query that failed after exhausting data source retries. Every
// caller attached to the same in-flight computation receives the same terminal error.
type QueryExecutionError struct {
	err error
}

func (err QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", err.err)
}

func (err QueryExecutionError) Unwrap() error {
	return err.err
}
