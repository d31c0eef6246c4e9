package cli

import (
	"fmt"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
)

// The Apply command executes all pending migrations against the target
// database, in dependency order.
type Apply struct {
	Force bool `help:"Proceed despite changed content of applied migrations, updating their stored hashes."`
}

// Run the apply command.
func (c *Apply) Run(appCtx *actx.Context) error {
	mig, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	applied, err := mig.Apply(appCtx.DB.NewContext(), runOptions(appCtx.Config, c.Force))
	if err != nil {
		return aerrors.With(err,
			"database", appCtx.DB.DSN().String(),
			"dir", appCtx.Config.Migrations.Dir.V)
	}

	if len(applied) == 0 {
		fmt.Fprintln(appCtx.Stdout, "Nothing to apply")
		return nil
	}
	for _, id := range applied {
		fmt.Fprintf(appCtx.Stdout, "Applied %s\n", id)
	}

	return nil
}
