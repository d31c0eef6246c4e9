package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nrednav/cuid2"

	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/db/types"
)

// lockKey is the value of the singleton lock row's key column. The table
// holds at most this one row.
const lockKey = 1

// Lock is a cooperative advisory lock implemented as a uniquely-keyed row in
// the lock table. It guarantees at most one concurrent apply/rollback run per
// target store across any number of cooperating processes; it cannot prevent
// an operator from issuing conflicting DDL outside the engine.
type Lock struct {
	db     *db.DB
	table  string
	owner  string
	held   bool
	logger *slog.Logger
}

// NewLock creates a lock handle with a fresh owner token. The lock is not
// acquired until Acquire succeeds.
func NewLock(d *db.DB, table string, logger *slog.Logger) *Lock {
	return &Lock{db: d, table: table, owner: cuid2.Generate(), logger: logger}
}

// Owner returns this handle's owner token.
func (l *Lock) Owner() string {
	return l.owner
}

// Held reports whether this handle currently holds the lock.
func (l *Lock) Held() bool {
	return l.held
}

// Acquire attempts to insert the lock row. If another run holds it, the
// insert conflicts and is retried every interval until timeout elapses, in
// which case it fails with LockTimeoutError and leaves all state untouched.
// A timeout of zero or less means a single attempt.
func (l *Lock) Acquire(ctx context.Context, timeout, interval time.Duration) error {
	if timeout < 0 {
		timeout = 0
	}

	b := l.db.Backend()
	insert := fmt.Sprintf(
		`INSERT INTO %s (lock_key, owner, acquired_at, timeout_seconds) VALUES (%d, %s, %s, %s)`,
		b.QuoteIdent(l.table), lockKey, b.Placeholder(1), b.Placeholder(2), b.Placeholder(3),
	)

	attempt := func() error {
		// The timeout is stored as a hint for operators deciding whether a
		// leftover lock is stale enough to break.
		_, err := l.db.ExecContext(ctx, insert,
			l.owner, l.db.TimeNow().UTC(), int(timeout/time.Second))
		if err != nil {
			translated := b.TranslateErr(err, l.table)
			var dup types.DuplicateError
			if errors.As(translated, &dup) {
				// Another run holds the lock; keep polling.
				return translated
			}
			return backoff.Permanent(types.BackendError{Op: "acquire lock", Err: err})
		}
		l.held = true
		return nil
	}

	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(interval), uint64(timeout/interval),
		),
		ctx,
	)

	if err := backoff.Retry(attempt, policy); err != nil {
		var dup types.DuplicateError
		if errors.As(err, &dup) {
			return LockTimeoutError{Timeout: timeout}
		}
		return err
	}

	l.logger.Debug("acquired migration lock", "owner", l.owner)

	return nil
}

// Release deletes the lock row, but only if this handle owns it. Releasing an
// already-released lock is a no-op, not an error.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}

	b := l.db.Backend()
	del := fmt.Sprintf(
		`DELETE FROM %s WHERE lock_key = %d AND owner = %s`,
		b.QuoteIdent(l.table), lockKey, b.Placeholder(1),
	)
	if _, err := l.db.ExecContext(ctx, del, l.owner); err != nil {
		return types.BackendError{Op: "release lock", Err: err}
	}
	l.held = false

	l.logger.Debug("released migration lock", "owner", l.owner)

	return nil
}

// Break unconditionally deletes the lock row regardless of owner. It is an
// operator escape hatch for recovering from a crashed run that never released
// its lock.
func (l *Lock) Break(ctx context.Context) error {
	b := l.db.Backend()
	del := fmt.Sprintf(`DELETE FROM %s WHERE lock_key = %d`, b.QuoteIdent(l.table), lockKey)
	if _, err := l.db.ExecContext(ctx, del); err != nil {
		return types.BackendError{Op: "break lock", Err: err}
	}

	l.logger.Warn("forcibly removed migration lock")

	return nil
}
