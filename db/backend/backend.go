// Package backend contains the closed set of database backend variants
// supported by strata. Each variant implements the Backend capability
// interface; adding an engine means implementing the interface, not extending
// a name switch somewhere else.
package backend

import (
	"context"
	"fmt"

	"go.hackfix.me/strata/db/types"
)

// Tables holds the names of the three bookkeeping tables owned by the
// migration engine: the applied-migration ledger, the advisory lock row and
// the append-only audit log.
type Tables struct {
	State string
	Lock  string
	Log   string
}

// Backend is the capability contract a database engine must implement to be
// usable as a migration target. Implementations must be stateless; all
// per-run state (open transactions, lock ownership) is carried by the caller.
type Backend interface {
	// Name reports the engine name, e.g. "postgres".
	Name() string
	// DriverName reports the database/sql driver to open connections with.
	DriverName() string
	// DataSource converts a parsed DSN into the driver-specific connection string.
	DataSource(dsn *DSN) (string, error)
	// QuoteIdent quotes an identifier for safe interpolation into DDL.
	QuoteIdent(ident string) string
	// Placeholder returns the parameter placeholder for position n (1-based).
	Placeholder(n int) string
	// CreateBookkeepingSQL returns idempotent statements that create the
	// bookkeeping tables if they don't exist. Never destructive.
	CreateBookkeepingSQL(t Tables) []string
	// ListTables returns the names of all tables in the target schema.
	ListTables(ctx context.Context, q types.Querier) (map[string]struct{}, error)
	// TranslateErr converts driver-specific errors into typed DB errors,
	// e.g. unique constraint violations into types.DuplicateError.
	// Unrecognized errors are returned unchanged.
	TranslateErr(err error, table string) error
}

// FromDSN selects the backend variant matching the DSN scheme.
func FromDSN(dsn *DSN) (Backend, error) {
	switch dsn.Scheme {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "file":
		return SQLite{}, nil
	}
	return nil, types.BackendError{
		Op:  "open",
		Err: fmt.Errorf("unsupported database scheme '%s'", dsn.Scheme),
	}
}
