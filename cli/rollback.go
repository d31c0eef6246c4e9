package cli

import (
	"fmt"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
)

// The Rollback command undoes the most recently applied migrations, in
// reverse dependency order.
type Rollback struct {
	Count int  `default:"1" help:"Number of migrations to roll back."`
	All   bool `help:"Roll back all applied migrations."`
	Force bool `help:"Proceed despite changed content of applied migrations, updating their stored hashes."`
}

// Run the rollback command.
func (c *Rollback) Run(appCtx *actx.Context) error {
	mig, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	count := c.Count
	if c.All {
		count = -1
	}

	rolledBack, err := mig.Rollback(appCtx.DB.NewContext(), count, runOptions(appCtx.Config, c.Force))
	if err != nil {
		return aerrors.With(err,
			"database", appCtx.DB.DSN().String(),
			"dir", appCtx.Config.Migrations.Dir.V)
	}

	if len(rolledBack) == 0 {
		fmt.Fprintln(appCtx.Stdout, "Nothing to roll back")
		return nil
	}
	for _, id := range rolledBack {
		fmt.Fprintf(appCtx.Stdout, "Rolled back %s\n", id)
	}

	return nil
}
