package types

import (
	"context"
	"database/sql"
)

// Querier exposes only methods for running SQL statements. It is satisfied by
// both *db.DB and *sql.Tx, so bookkeeping writes can run either inside a
// migration's own transaction or in a separate one, depending on whether the
// backend supports transactional DDL.
type Querier interface {
	ExecContext(ctx context.Context, sql string, arguments ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
