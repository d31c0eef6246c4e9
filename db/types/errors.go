package types

import "fmt"

// DuplicateError represents a unique or primary key constraint violation,
// i.e. an attempt to insert a row that already exists.
type DuplicateError struct {
	Table string
	Key   string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("row with %s already exists in table %s", e.Key, e.Table)
}

// BackendError represents a connection or protocol failure of the underlying
// store, as opposed to a failure of a specific statement.
type BackendError struct {
	Op  string
	Err error
}

// Error returns a string representation of the error.
func (e BackendError) Error() string {
	return fmt.Sprintf("backend failure during %s: %s", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e BackendError) Unwrap() error {
	return e.Err
}
