package migrator

import (
	"fmt"
	"strings"
	"time"
)

// Phase identifies where in a run a failure occurred.
type Phase string

// Run phases, in the order they occur.
const (
	PhaseLoad     Phase = "load"
	PhaseLock     Phase = "lock"
	PhaseResolve  Phase = "resolve"
	PhaseApply    Phase = "apply"
	PhaseRollback Phase = "rollback"
	PhaseMark     Phase = "mark"
)

// ParseError represents a malformed migration source unit: an unreadable
// file, a malformed or unresolvable depends header, or a duplicate identifier.
type ParseError struct {
	Unit   string
	Reason string
	Err    error
}

// Error returns a string representation of the error.
func (e ParseError) Error() string {
	msg := fmt.Sprintf("failed parsing migration '%s': %s", e.Unit, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e ParseError) Unwrap() error {
	return e.Err
}

// CycleError represents a cycle in the migration dependency graph.
type CycleError struct {
	Cycle []string
}

// Error returns a string representation of the error, listing the cycle path.
func (e CycleError) Error() string {
	return fmt.Sprintf("migration dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// LockTimeoutError indicates that the advisory lock couldn't be acquired
// within the configured timeout. It implies that no mutation was attempted.
type LockTimeoutError struct {
	Timeout time.Duration
}

// Error returns a string representation of the error.
func (e LockTimeoutError) Error() string {
	return fmt.Sprintf("failed acquiring migration lock within %s; "+
		"another run may be in progress", e.Timeout)
}

// HashMismatchError indicates that a migration's source content diverged from
// what was recorded when it was applied.
type HashMismatchError struct {
	ID       string
	Stored   string
	Computed string
}

// Error returns a string representation of the error.
func (e HashMismatchError) Error() string {
	return fmt.Sprintf("content of migration '%s' changed after it was applied "+
		"(stored hash %s, computed %s)", e.ID, short(e.Stored), short(e.Computed))
}

// NotReversibleError indicates that a rollback was requested for a migration
// that declares no rollback steps.
type NotReversibleError struct {
	ID string
}

// Error returns a string representation of the error.
func (e NotReversibleError) Error() string {
	return fmt.Sprintf("migration '%s' has no rollback steps", e.ID)
}

// ExecutionError represents a failed statement of a specific migration,
// wrapping the underlying cause. Step is the 1-based index of the failed
// statement.
type ExecutionError struct {
	ID    string
	Phase Phase
	Step  int
	Err   error
}

// Error returns a string representation of the error.
func (e ExecutionError) Error() string {
	return fmt.Sprintf("failed during %s of migration '%s' (step %d): %s",
		e.Phase, e.ID, e.Step, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e ExecutionError) Unwrap() error {
	return e.Err
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
