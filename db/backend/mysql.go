package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"go.hackfix.me/strata/db/types"
)

// mysqlDupEntry is the MySQL error number for duplicate key violations.
// See https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const mysqlDupEntry = 1062

// MySQL is the MySQL/MariaDB backend variant. Its DDL is not transactional:
// every schema-altering statement causes an implicit commit, so failed
// migrations cannot be rolled back automatically and bookkeeping is committed
// in a separate short transaction right after the schema change.
type MySQL struct{}

var _ Backend = MySQL{}

// Name reports the engine name.
func (MySQL) Name() string { return "mysql" }

// DriverName reports the database/sql driver name.
func (MySQL) DriverName() string { return "mysql" }

// DataSource converts the DSN into the go-sql-driver format:
// user:pass@tcp(host:port)/dbname?opts
func (MySQL) DataSource(dsn *DSN) (string, error) {
	if dsn.Hostname == "" {
		return "", types.BackendError{
			Op:  "open",
			Err: fmt.Errorf("mysql DSN '%s' has no hostname", dsn),
		}
	}

	cfg := mysql.NewConfig()
	cfg.User = dsn.Username
	cfg.Passwd = dsn.Password
	cfg.Net = "tcp"
	cfg.Addr = dsn.Hostname
	if dsn.Port != 0 {
		cfg.Addr = fmt.Sprintf("%s:%d", dsn.Hostname, dsn.Port)
	}
	cfg.DBName = dsn.Database
	// Timestamps in the bookkeeping tables are scanned into time.Time.
	cfg.ParseTime = true
	if len(dsn.Options) > 0 {
		cfg.Params = make(map[string]string, len(dsn.Options))
		for k := range dsn.Options {
			cfg.Params[k] = dsn.Options.Get(k)
		}
	}

	return cfg.FormatDSN(), nil
}

// QuoteIdent quotes an identifier using backticks.
func (MySQL) QuoteIdent(ident string) string {
	return fmt.Sprintf("`%s`", ident)
}

// Placeholder returns the parameter placeholder for position n.
func (MySQL) Placeholder(_ int) string { return "?" }

// CreateBookkeepingSQL returns idempotent statements creating the three
// bookkeeping tables. Key columns use VARCHAR since MySQL can't index TEXT
// without a prefix length.
func (m MySQL) CreateBookkeepingSQL(t Tables) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			migration_id VARCHAR(191) PRIMARY KEY,
			hash VARCHAR(64) NOT NULL,
			applied_at DATETIME(6) NOT NULL
		)`, m.QuoteIdent(t.State)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			lock_key INT PRIMARY KEY,
			owner VARCHAR(64) NOT NULL,
			acquired_at DATETIME(6) NOT NULL,
			timeout_seconds INT NOT NULL
		)`, m.QuoteIdent(t.Lock)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			migration_id VARCHAR(191) NOT NULL,
			operation VARCHAR(16) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			comment TEXT
		)`, m.QuoteIdent(t.Log)),
	}
}

// ListTables returns the names of all tables in the current database.
func (MySQL) ListTables(ctx context.Context, q types.Querier) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = DATABASE()`)
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

// TranslateErr converts MySQL driver errors into typed DB errors.
func (MySQL) TranslateErr(err error, table string) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}

	if myErr.Number == mysqlDupEntry {
		return types.DuplicateError{Table: table, Key: "primary key"}
	}

	return err
}
