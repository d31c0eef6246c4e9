package cli

import (
	"fmt"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
)

// The Lock command manages the advisory migration lock.
type Lock struct {
	Break LockBreak `kong:"cmd,help='Forcibly remove the migration lock, regardless of owner. Only use this to recover from a crashed run.'"`
}

// LockBreak is the lock break subcommand.
type LockBreak struct{}

// Run the lock break command.
func (c *LockBreak) Run(appCtx *actx.Context) error {
	mig, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	if err = mig.BreakLock(appCtx.DB.NewContext()); err != nil {
		return aerrors.NewRuntimeError("failed breaking migration lock", err, "")
	}

	fmt.Fprintln(appCtx.Stdout, "Migration lock removed")

	return nil
}
