package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgconn"

	"go.hackfix.me/strata/db/types"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations. See https://www.postgresql.org/docs/current/errcodes-appendix.html
const pgUniqueViolation = "23505"

// Postgres is the PostgreSQL backend variant. Its DDL is fully transactional.
type Postgres struct{}

var _ Backend = Postgres{}

// Name reports the engine name.
func (Postgres) Name() string { return "postgres" }

// DriverName reports the database/sql driver name.
func (Postgres) DriverName() string { return "pgx" }

// DataSource rebuilds the DSN into the URL form pgx expects.
func (Postgres) DataSource(dsn *DSN) (string, error) {
	if dsn.Hostname == "" {
		return "", types.BackendError{
			Op:  "open",
			Err: fmt.Errorf("postgres DSN '%s' has no hostname", dsn),
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     dsn.Hostname,
		Path:     "/" + dsn.Database,
		RawQuery: dsn.Options.Encode(),
	}
	if dsn.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", dsn.Hostname, dsn.Port)
	}
	if dsn.Username != "" {
		u.User = url.UserPassword(dsn.Username, dsn.Password)
	}

	return u.String(), nil
}

// QuoteIdent quotes an identifier using double quotes.
func (Postgres) QuoteIdent(ident string) string {
	return fmt.Sprintf("%q", ident)
}

// Placeholder returns the parameter placeholder for position n.
func (Postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// CreateBookkeepingSQL returns idempotent statements creating the three
// bookkeeping tables.
func (p Postgres) CreateBookkeepingSQL(t Tables) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			migration_id TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL
		)`, p.QuoteIdent(t.State)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			lock_key INTEGER PRIMARY KEY,
			owner TEXT NOT NULL,
			acquired_at TIMESTAMPTZ NOT NULL,
			timeout_seconds INTEGER NOT NULL
		)`, p.QuoteIdent(t.Lock)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			migration_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			comment TEXT
		)`, p.QuoteIdent(t.Log)),
	}
}

// ListTables returns the names of all tables in the current schema.
func (Postgres) ListTables(ctx context.Context, q types.Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tablename FROM pg_catalog.pg_tables
		 WHERE schemaname NOT IN ('pg_catalog', 'information_schema')`)
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

// TranslateErr converts PostgreSQL driver errors into typed DB errors.
func (Postgres) TranslateErr(err error, table string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	if pgErr.Code == pgUniqueViolation {
		return types.DuplicateError{Table: table, Key: pgErr.ConstraintName}
	}

	return err
}
