package cli

import (
	"fmt"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
)

// The Init command creates the bookkeeping tables (state, lock, log) in the
// target database. It is idempotent: existing tables are left untouched.
type Init struct {
	Save bool `kong:"help='Persist the resolved configuration to the configuration file, so later runs need no flags.'"`
}

// Run the init command.
func (c *Init) Run(appCtx *actx.Context) error {
	mig, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	if err = mig.Bootstrap(appCtx.DB.NewContext()); err != nil {
		return aerrors.NewRuntimeError("failed creating bookkeeping tables", err, "")
	}

	fmt.Fprintf(appCtx.Stdout, "Bookkeeping tables ready in %s database\n",
		appCtx.DB.Backend().Name())

	if c.Save {
		if err = appCtx.Config.Save(); err != nil {
			return aerrors.NewRuntimeError("failed saving configuration", err, "")
		}
		fmt.Fprintf(appCtx.Stdout, "Configuration saved to %s\n", appCtx.Config.Path())
	}

	return nil
}
