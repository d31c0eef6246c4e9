package migrator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Migration is a single named unit of schema change. It is immutable once
// loaded, and the full set is reloaded from source at the start of every run.
type Migration struct {
	// ID is the unique, sortable identifier derived from the file name.
	ID string
	// Depends lists the IDs of migrations that must be applied before this one.
	Depends []string
	// ApplySteps are the ordered statements that perform the schema change.
	ApplySteps []string
	// RollbackSteps are the ordered statements that undo it. May be empty,
	// in which case the migration is not reversible.
	RollbackSteps []string
	// Hash is the hex-encoded digest over the apply and rollback steps.
	Hash string
	// Source is the path the migration was loaded from, for error reporting.
	Source string
}

// Reversible reports whether the migration declares rollback steps.
func (m *Migration) Reversible() bool {
	return len(m.RollbackSteps) > 0
}

// AppliedRecord is a row of the state table: a migration the engine currently
// considers applied, with the hash captured at apply time.
type AppliedRecord struct {
	ID        string
	Hash      string
	AppliedAt time.Time
}

// LogEntry is an append-only audit record. Entries are never mutated or
// deleted.
type LogEntry struct {
	ID        string
	Operation Operation
	CreatedAt time.Time
	Comment   string
}

// Operation is the direction of a migration run.
type Operation string

// Operations recorded in the audit log.
const (
	OpApply     Operation = "apply"
	OpRollback  Operation = "rollback"
	OpMark      Operation = "mark"
	OpBreakLock Operation = "break-lock"
)

// computeHash digests the apply and rollback steps. Each step is prefixed
// with its length so that step boundaries can't alias, and the two sections
// are separated so moving a statement between them changes the digest.
func computeHash(applySteps, rollbackSteps []string) string {
	h := sha256.New()
	for _, s := range applySteps {
		fmt.Fprintf(h, "%d:", len(s))
		io.WriteString(h, s)
	}
	io.WriteString(h, "|")
	for _, s := range rollbackSteps {
		fmt.Fprintf(h, "%d:", len(s))
		io.WriteString(h, s)
	}

	return hex.EncodeToString(h.Sum(nil))
}
