package migrator

import (
	"context"
	"fmt"
	"log/slog"

	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/db/backend"
	"go.hackfix.me/strata/db/types"
)

// State is the persisted ledger of applied migrations and the append-only
// audit log. Its writes happen only inside an orchestrator-held lock; reads
// are lock-free and may observe a stale snapshot mid-run.
type State struct {
	db     *db.DB
	tables backend.Tables
	logger *slog.Logger
}

// NewState creates a state tracker over the given bookkeeping tables.
func NewState(d *db.DB, tables backend.Tables, logger *slog.Logger) *State {
	return &State{db: d, tables: tables, logger: logger}
}

// Applied returns the records of all currently applied migrations, keyed by
// migration id.
func (s *State) Applied(ctx context.Context) (map[string]AppliedRecord, error) {
	b := s.db.Backend()
	query := fmt.Sprintf(`SELECT migration_id, hash, applied_at FROM %s`,
		b.QuoteIdent(s.tables.State))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, types.BackendError{Op: "read applied migrations", Err: err}
	}
	defer rows.Close()

	applied := make(map[string]AppliedRecord)
	for rows.Next() {
		var rec AppliedRecord
		if err = rows.Scan(&rec.ID, &rec.Hash, &rec.AppliedAt); err != nil {
			return nil, types.BackendError{Op: "read applied migrations", Err: err}
		}
		applied[rec.ID] = rec
	}
	if err = rows.Err(); err != nil {
		return nil, types.BackendError{Op: "read applied migrations", Err: err}
	}

	return applied, nil
}

// Mark records a migration as applied. The querier may be the migration's own
// transaction (transactional DDL) or the connection itself (the separate
// short transaction for non-transactional engines).
func (s *State) Mark(ctx context.Context, q types.Querier, m *Migration) error {
	b := s.db.Backend()
	insert := fmt.Sprintf(
		`INSERT INTO %s (migration_id, hash, applied_at) VALUES (%s, %s, %s)`,
		b.QuoteIdent(s.tables.State), b.Placeholder(1), b.Placeholder(2), b.Placeholder(3),
	)
	if _, err := q.ExecContext(ctx, insert, m.ID, m.Hash, s.db.TimeNow().UTC()); err != nil {
		return ExecutionError{ID: m.ID, Phase: PhaseMark, Err: b.TranslateErr(err, s.tables.State)}
	}

	return nil
}

// Unmark deletes a migration's applied record.
func (s *State) Unmark(ctx context.Context, q types.Querier, m *Migration) error {
	b := s.db.Backend()
	del := fmt.Sprintf(`DELETE FROM %s WHERE migration_id = %s`,
		b.QuoteIdent(s.tables.State), b.Placeholder(1))
	if _, err := q.ExecContext(ctx, del, m.ID); err != nil {
		return ExecutionError{ID: m.ID, Phase: PhaseMark, Err: b.TranslateErr(err, s.tables.State)}
	}

	return nil
}

// UpdateHash overwrites the stored hash of an applied migration. Used only
// for forced runs after the operator accepted a content change.
func (s *State) UpdateHash(ctx context.Context, m *Migration) error {
	b := s.db.Backend()
	update := fmt.Sprintf(`UPDATE %s SET hash = %s WHERE migration_id = %s`,
		b.QuoteIdent(s.tables.State), b.Placeholder(1), b.Placeholder(2))
	if _, err := s.db.ExecContext(ctx, update, m.Hash, m.ID); err != nil {
		return ExecutionError{ID: m.ID, Phase: PhaseResolve, Err: b.TranslateErr(err, s.tables.State)}
	}

	return nil
}

// Log appends an entry to the audit log. Logging is best-effort: a failed
// write is reported at warning level but never fails the surrounding
// operation.
func (s *State) Log(ctx context.Context, id string, op Operation, comment string) {
	b := s.db.Backend()
	insert := fmt.Sprintf(
		`INSERT INTO %s (migration_id, operation, created_at, comment) VALUES (%s, %s, %s, %s)`,
		b.QuoteIdent(s.tables.Log),
		b.Placeholder(1), b.Placeholder(2), b.Placeholder(3), b.Placeholder(4),
	)

	var c any
	if comment != "" {
		c = comment
	}
	if _, err := s.db.ExecContext(ctx, insert, id, string(op), s.db.TimeNow().UTC(), c); err != nil {
		s.logger.Warn("failed writing audit log entry",
			"migration", id, "operation", op, "error", err)
	}
}

// History returns all audit log entries in insertion order.
func (s *State) History(ctx context.Context) ([]LogEntry, error) {
	b := s.db.Backend()
	query := fmt.Sprintf(
		`SELECT migration_id, operation, created_at, comment FROM %s ORDER BY id`,
		b.QuoteIdent(s.tables.Log))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, types.BackendError{Op: "read audit log", Err: err}
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			e       LogEntry
			op      string
			comment *string
		)
		if err = rows.Scan(&e.ID, &op, &e.CreatedAt, &comment); err != nil {
			return nil, types.BackendError{Op: "read audit log", Err: err}
		}
		e.Operation = Operation(op)
		if comment != nil {
			e.Comment = *comment
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, types.BackendError{Op: "read audit log", Err: err}
	}

	return entries, nil
}
