package migrator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"

	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/db/backend"
	"go.hackfix.me/strata/db/types"
)

// Migrator sequences migration runs: locking, loading, resolution, hash
// verification, per-migration execution and bookkeeping. All run state lives
// on the Migrator and its per-run lock handle, never in globals, so multiple
// instances never interfere.
type Migrator struct {
	db     *db.DB
	fs     vfs.FileSystem
	dir    string
	tables backend.Tables
	state  *State
	logger *slog.Logger
}

// Options control a single apply/rollback run.
type Options struct {
	// Force bypasses the hash-mismatch guard and overwrites stored hashes of
	// changed migrations. It never bypasses locking or ordering.
	Force bool
	// LockTimeout is the maximum time to wait for the advisory lock.
	// Zero means a single acquisition attempt.
	LockTimeout time.Duration
	// LockPollInterval is the time between lock acquisition attempts.
	LockPollInterval time.Duration
}

// Status describes the current migration state of the target store.
type Status struct {
	// Applied migrations in application order.
	Applied []AppliedRecord
	// Pending migration ids in application order.
	Pending []string
}

// New creates a Migrator reading migration sources from dir on the given
// filesystem and tracking state in the given bookkeeping tables.
func New(d *db.DB, fsys vfs.FileSystem, dir string, tables backend.Tables, logger *slog.Logger) *Migrator {
	return &Migrator{
		db:     d,
		fs:     fsys,
		dir:    dir,
		tables: tables,
		state:  NewState(d, tables, logger),
		logger: logger,
	}
}

// State returns the state tracker, for lock-free observability reads.
func (mg *Migrator) State() *State {
	return mg.state
}

// Bootstrap creates the three bookkeeping tables if they don't exist.
// Idempotent and never destructive.
func (mg *Migrator) Bootstrap(ctx context.Context) error {
	for _, stmt := range mg.db.Backend().CreateBookkeepingSQL(mg.tables) {
		if _, err := mg.db.ExecContext(ctx, stmt); err != nil {
			return types.BackendError{Op: "bootstrap", Err: err}
		}
	}
	return nil
}

// Apply executes all pending migrations in dependency order and returns the
// ids applied by this run. On the first failing migration it rolls back that
// migration's open transaction (if any), stops and propagates an error naming
// the migration; migrations applied before the failure stay applied.
func (mg *Migrator) Apply(ctx context.Context, opts Options) ([]string, error) {
	if err := mg.Bootstrap(ctx); err != nil {
		return nil, err
	}

	var applied []string
	err := mg.withLock(ctx, opts, func() error {
		all, err := LoadMigrations(mg.fs, mg.dir)
		if err != nil {
			return err
		}
		appliedRecs, err := mg.state.Applied(ctx)
		if err != nil {
			return err
		}
		if err = mg.verifyHashes(ctx, all, appliedRecs, opts.Force); err != nil {
			return err
		}
		pending, err := toApply(all, appliedRecs)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			mg.logger.Info("no pending migrations")
			return nil
		}

		ddlTx, err := mg.db.DDLTransactional(ctx)
		if err != nil {
			return err
		}

		for _, m := range pending {
			if err = mg.applyOne(ctx, m, ddlTx); err != nil {
				return err
			}
			mg.state.Log(ctx, m.ID, OpApply, "")
			mg.logger.Info("applied migration", "id", m.ID)
			applied = append(applied, m.ID)
		}

		return nil
	})

	return applied, err
}

// Rollback undoes the most recent count applied migrations in reverse
// dependency order. If any selected migration declares no rollback steps, the
// whole request fails with NotReversibleError before any mutation occurs.
// A negative count rolls back the entire applied set.
func (mg *Migrator) Rollback(ctx context.Context, count int, opts Options) ([]string, error) {
	if err := mg.Bootstrap(ctx); err != nil {
		return nil, err
	}

	var rolledBack []string
	err := mg.withLock(ctx, opts, func() error {
		all, err := LoadMigrations(mg.fs, mg.dir)
		if err != nil {
			return err
		}
		appliedRecs, err := mg.state.Applied(ctx)
		if err != nil {
			return err
		}
		if err = mg.verifyHashes(ctx, all, appliedRecs, opts.Force); err != nil {
			return err
		}
		selected, err := toRollback(all, appliedRecs, count)
		if err != nil {
			return err
		}
		for _, m := range selected {
			if !m.Reversible() {
				return NotReversibleError{ID: m.ID}
			}
		}
		if len(selected) == 0 {
			mg.logger.Info("no migrations to roll back")
			return nil
		}

		ddlTx, err := mg.db.DDLTransactional(ctx)
		if err != nil {
			return err
		}

		for _, m := range selected {
			if err = mg.rollbackOne(ctx, m, ddlTx); err != nil {
				return err
			}
			mg.state.Log(ctx, m.ID, OpRollback, "")
			mg.logger.Info("rolled back migration", "id", m.ID)
			rolledBack = append(rolledBack, m.ID)
		}

		return nil
	})

	return rolledBack, err
}

// Status returns the applied and pending migrations, verifying stored hashes
// along the way. It reads lock-free, so the result may be stale while a run
// is in progress elsewhere.
func (mg *Migrator) Status(ctx context.Context) (*Status, error) {
	if err := mg.Bootstrap(ctx); err != nil {
		return nil, err
	}

	all, err := LoadMigrations(mg.fs, mg.dir)
	if err != nil {
		return nil, err
	}
	appliedRecs, err := mg.state.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err = mg.verifyHashes(ctx, all, appliedRecs, false); err != nil {
		return nil, err
	}
	order, err := resolveOrder(all)
	if err != nil {
		return nil, err
	}

	st := &Status{}
	inSource := make(map[string]struct{}, len(order))
	for _, m := range order {
		inSource[m.ID] = struct{}{}
		if rec, ok := appliedRecs[m.ID]; ok {
			st.Applied = append(st.Applied, rec)
		} else {
			st.Pending = append(st.Pending, m.ID)
		}
	}

	// Records whose source unit has disappeared are still shown, after the
	// resolvable ones.
	var orphans []AppliedRecord
	for id, rec := range appliedRecs {
		if _, ok := inSource[id]; !ok {
			orphans = append(orphans, rec)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	st.Applied = append(st.Applied, orphans...)

	return st, nil
}

// BreakLock unconditionally removes the advisory lock row regardless of
// owner. Always recorded in the audit log.
func (mg *Migrator) BreakLock(ctx context.Context) error {
	if err := mg.Bootstrap(ctx); err != nil {
		return err
	}

	// Logged before deleting, so the audit entry survives even though the
	// lock row does not.
	mg.state.Log(ctx, "-", OpBreakLock, "lock forcibly removed by operator")

	return NewLock(mg.db, mg.tables.Lock, mg.logger).Break(ctx)
}

// withLock runs fn while holding the advisory lock. Release is guaranteed on
// every exit path: normal return, error, panic, or cancellation of the run's
// context.
func (mg *Migrator) withLock(ctx context.Context, opts Options, fn func() error) error {
	lock := NewLock(mg.db, mg.tables.Lock, mg.logger)
	if err := lock.Acquire(ctx, opts.LockTimeout, opts.LockPollInterval); err != nil {
		return err
	}
	defer func() {
		// A cancelled run context must not prevent the release.
		rctx := context.WithoutCancel(ctx)
		if rerr := lock.Release(rctx); rerr != nil {
			mg.logger.Error("failed releasing migration lock",
				"owner", lock.Owner(), "error", rerr)
		}
	}()

	return fn()
}

// verifyHashes compares the freshly computed hash of every applied migration
// against the hash stored when it was applied. A mismatch fails the run
// unless force is set, in which case the stored hash is overwritten and the
// override is recorded.
func (mg *Migrator) verifyHashes(
	ctx context.Context, all []*Migration, applied map[string]AppliedRecord, force bool,
) error {
	for _, m := range all {
		rec, ok := applied[m.ID]
		if !ok || rec.Hash == m.Hash {
			continue
		}

		if !force {
			return HashMismatchError{ID: m.ID, Stored: rec.Hash, Computed: m.Hash}
		}

		mg.logger.Warn("migration content changed after apply; updating stored hash",
			"id", m.ID, "stored_hash", short(rec.Hash), "computed_hash", short(m.Hash))
		if err := mg.state.UpdateHash(ctx, m); err != nil {
			return err
		}
		mg.state.Log(ctx, m.ID, OpMark, "hash updated (forced)")
		rec.Hash = m.Hash
		applied[m.ID] = rec
	}

	return nil
}

// applyOne executes a single migration's apply steps and marks it applied.
// With transactional DDL the steps and the mark commit atomically; without
// it, the steps run outside any transaction and the mark is committed in an
// immediately following short transaction.
func (mg *Migrator) applyOne(ctx context.Context, m *Migration, ddlTx bool) error {
	return mg.execute(ctx, m, ddlTx, m.ApplySteps, PhaseApply, mg.state.Mark)
}

// rollbackOne executes a single migration's rollback steps and deletes its
// applied record, with the same transaction discipline as applyOne.
func (mg *Migrator) rollbackOne(ctx context.Context, m *Migration, ddlTx bool) error {
	return mg.execute(ctx, m, ddlTx, m.RollbackSteps, PhaseRollback, mg.state.Unmark)
}

func (mg *Migrator) execute(
	ctx context.Context, m *Migration, ddlTx bool, steps []string, phase Phase,
	record func(context.Context, types.Querier, *Migration) error,
) error {
	if ddlTx {
		tx, err := mg.db.BeginTx(ctx, nil)
		if err != nil {
			return types.BackendError{Op: "begin", Err: err}
		}
		for i, step := range steps {
			if _, err = tx.ExecContext(ctx, step); err != nil {
				_ = tx.Rollback()
				return ExecutionError{ID: m.ID, Phase: phase, Step: i + 1, Err: err}
			}
		}
		if err = record(ctx, tx, m); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err = tx.Commit(); err != nil {
			return types.BackendError{Op: "commit", Err: err}
		}
		return nil
	}

	// Non-transactional DDL: a crash between the last step and the mark
	// leaves the schema changed but unrecorded. The window is inherent to
	// such engines; the hash/applied-state check surfaces it on the next run.
	for i, step := range steps {
		if _, err := mg.db.ExecContext(ctx, step); err != nil {
			return ExecutionError{ID: m.ID, Phase: phase, Step: i + 1, Err: err}
		}
	}

	tx, err := mg.db.BeginTx(ctx, nil)
	if err != nil {
		return types.BackendError{Op: "begin", Err: err}
	}
	if err = record(ctx, tx, m); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return types.BackendError{Op: "commit", Err: err}
	}

	return nil
}
