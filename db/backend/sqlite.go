package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/go-sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"go.hackfix.me/strata/db/types"
)

// SQLite is the embedded file-based backend variant. Its DDL is
// transactional, so schema changes roll back cleanly with the transaction.
type SQLite struct{}

var _ Backend = SQLite{}

// Name reports the engine name.
func (SQLite) Name() string { return "sqlite" }

// DriverName reports the database/sql driver name.
func (SQLite) DriverName() string { return "sqlite" }

// DataSource converts the DSN into a SQLite file URI.
func (SQLite) DataSource(dsn *DSN) (string, error) {
	if dsn.Database == "" {
		return "", types.BackendError{
			Op:  "open",
			Err: fmt.Errorf("sqlite DSN '%s' has no file path", dsn),
		}
	}
	uri := "file:" + dsn.Database
	if len(dsn.Options) > 0 {
		uri += "?" + dsn.Options.Encode()
	}
	return uri, nil
}

// QuoteIdent quotes an identifier using double quotes.
func (SQLite) QuoteIdent(ident string) string {
	return fmt.Sprintf("%q", ident)
}

// Placeholder returns the parameter placeholder for position n.
func (SQLite) Placeholder(_ int) string { return "?" }

// CreateBookkeepingSQL returns idempotent statements creating the three
// bookkeeping tables.
func (s SQLite) CreateBookkeepingSQL(t Tables) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			migration_id TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`, s.QuoteIdent(t.State)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			lock_key INTEGER PRIMARY KEY,
			owner TEXT NOT NULL,
			acquired_at TIMESTAMP NOT NULL,
			timeout_seconds INTEGER NOT NULL
		)`, s.QuoteIdent(t.Lock)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			migration_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			comment TEXT
		)`, s.QuoteIdent(t.Log)),
	}
}

// ListTables returns the names of all tables in the database.
func (SQLite) ListTables(ctx context.Context, q types.Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, types.BackendError{Op: "list tables", Err: err}
	}
	defer rows.Close()

	tables := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, types.BackendError{Op: "list tables", Err: err}
		}
		tables[name] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return nil, types.BackendError{Op: "list tables", Err: err}
	}

	return tables, nil
}

// TranslateErr converts SQLite driver errors into typed DB errors.
func (SQLite) TranslateErr(err error, table string) error {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}

	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return types.DuplicateError{Table: table, Key: "primary key"}
	}

	return err
}
