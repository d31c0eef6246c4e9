package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// RuntimeError is an error caused by a failure at runtime, as opposed to a
// user error. It optionally carries a hint with a suggestion for resolving it.
type RuntimeError struct {
	msg   string
	cause error
	hint  string
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(msg string, cause error, hint string) *RuntimeError {
	return &RuntimeError{msg: msg, cause: cause, hint: hint}
}

// Error implements the error interface.
func (e RuntimeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause)
	}
	return e.msg
}

// Hint returns the optional suggestion for resolving the error.
func (e RuntimeError) Hint() string {
	return e.hint
}

// Unwrap returns the underlying error.
func (e RuntimeError) Unwrap() error {
	return e.cause
}

// Log logs an error using the default slog logger, extracting metadata if
// it's a StructuredError.
func Log(err error) {
	var serr *StructuredError
	if !errors.As(err, &serr) {
		slog.Error(err.Error())
		return
	}

	args := make([]any, 0, len(serr.metadata)*2+2)

	cause := serr.metadata["cause"]
	if serr.cause != nil {
		cause = serr.cause
	}
	if cause != nil {
		args = append(args, "cause", cause)
	}

	keys := make([]string, 0, len(serr.metadata))
	for k := range serr.metadata {
		if k != "cause" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, k, serr.metadata[k])
	}

	slog.Error(serr.Error(), args...)
}

// Errorf prints an error to stderr, including any structured metadata and the
// hint if it's a RuntimeError that carries one. Meant to be used from main,
// after all other error handling is done.
func Errorf(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)

	var serr *StructuredError
	if errors.As(err, &serr) {
		md := serr.Metadata()
		keys := make([]string, 0, len(md))
		for k := range md {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", k, md[k])
		}
	}

	var rerr *RuntimeError
	if errors.As(err, &rerr) && rerr.Hint() != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", rerr.Hint())
	}
}
