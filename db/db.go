package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB drivers.
	_ "github.com/glebarez/go-sqlite"
	//nolint:revive,nolintlint // Idiomatic way of loading DB drivers.
	_ "github.com/go-sql-driver/mysql"
	//nolint:revive,nolintlint // Idiomatic way of loading DB drivers.
	_ "github.com/jackc/pgx/v5/stdlib"

	"go.hackfix.me/strata/db/backend"
	"go.hackfix.me/strata/db/types"
)

// probeTable is the throwaway table used to detect DDL transactionality.
const probeTable = "_strata_ddl_probe"

// DB wraps sql.DB with the backend variant matching its DSN, a bound context,
// and a cached probe of whether the engine's DDL is transactional.
type DB struct {
	*sql.DB
	ctx     context.Context
	timeNow func() time.Time
	dsn     *backend.DSN
	backend backend.Backend
	ddlTx   *bool
}

var _ types.Querier = (*DB)(nil)

// Open creates a new database connection for the given connection string,
// selecting the backend variant by its scheme.
func Open(ctx context.Context, rawDSN string, timeNow func() time.Time) (*DB, error) {
	dsn, err := backend.ParseDSN(rawDSN)
	if err != nil {
		return nil, err
	}
	b, err := backend.FromDSN(dsn)
	if err != nil {
		return nil, err
	}
	dataSource, err := b.DataSource(dsn)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(b.DriverName(), dataSource)
	if err != nil {
		return nil, types.BackendError{Op: "open", Err: err}
	}

	d := &DB{DB: sqlDB, ctx: ctx, timeNow: timeNow, dsn: dsn, backend: b}

	if _, ok := b.(backend.SQLite); ok {
		if strings.Contains(dataSource, "mode=memory") || strings.Contains(dataSource, ":memory:") {
			// See https://github.com/mattn/go-sqlite3#faq
			d.SetMaxIdleConns(10)
			d.SetConnMaxLifetime(time.Duration(math.Inf(1)))
		}

		// Enable foreign key enforcement
		if _, err = d.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
			return nil, types.BackendError{Op: "open", Err: err}
		}
	}

	return d, nil
}

// Backend returns the backend variant this connection was opened with.
func (d *DB) Backend() backend.Backend {
	return d.backend
}

// DSN returns the parsed connection string.
func (d *DB) DSN() *backend.DSN {
	return d.dsn
}

// NewContext returns the main database context. Cancelling it aborts any
// in-flight statement.
func (d *DB) NewContext() context.Context {
	return d.ctx
}

// TimeNow returns the current system time.
func (d *DB) TimeNow() time.Time {
	return d.timeNow()
}

// DDLTransactional reports whether schema-altering statements on this
// connection participate in transactions. The result is probed once by
// creating a table inside a transaction that is rolled back, then checking
// whether the table survived, and cached for the connection's lifetime.
func (d *DB) DDLTransactional(ctx context.Context) (bool, error) {
	if d.ddlTx != nil {
		return *d.ddlTx, nil
	}

	probe := d.backend.QuoteIdent(probeTable)
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return false, types.BackendError{Op: "ddl probe", Err: err}
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (id INTEGER)`, probe)); err != nil {
		_ = tx.Rollback()
		return false, types.BackendError{Op: "ddl probe", Err: err}
	}
	if err = tx.Rollback(); err != nil {
		return false, types.BackendError{Op: "ddl probe", Err: err}
	}

	tables, err := d.backend.ListTables(ctx, d)
	if err != nil {
		return false, err
	}

	_, survived := tables[probeTable]
	if survived {
		if _, err = d.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s`, probe)); err != nil {
			return false, types.BackendError{Op: "ddl probe", Err: err}
		}
	}

	transactional := !survived
	d.ddlTx = &transactional

	return transactional, nil
}

// Savepoint creates a named savepoint inside the given transaction, allowing
// nested transactional scopes.
func Savepoint(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return types.BackendError{Op: "savepoint", Err: err}
	}
	return nil
}

// ReleaseSavepoint releases a named savepoint, keeping its effects.
func ReleaseSavepoint(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return types.BackendError{Op: "release savepoint", Err: err}
	}
	return nil
}

// RollbackToSavepoint undoes all statements executed after the named
// savepoint was created.
func RollbackToSavepoint(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return types.BackendError{Op: "rollback to savepoint", Err: err}
	}
	return nil
}
