package cli

import (
	"go.hackfix.me/strata/app/config"
	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
	"go.hackfix.me/strata/db"
	"go.hackfix.me/strata/db/backend"
	"go.hackfix.me/strata/db/migrator"
)

// newMigrator opens the database connection if it isn't open yet, and builds
// the migration engine from the resolved configuration.
func newMigrator(appCtx *actx.Context) (*migrator.Migrator, error) {
	cfg := appCtx.Config
	if appCtx.DB == nil {
		dsn := cfg.Database.DSN.V
		if !cfg.Database.DSN.Valid && appCtx.Env != nil {
			dsn = appCtx.Env.Get("STRATA_DSN")
		}
		if dsn == "" {
			return nil, aerrors.NewRuntimeError("no database connection string provided", nil,
				"Set the --dsn flag, the STRATA_DSN environment variable, "+
					"or the database.dsn configuration value.")
		}
		d, err := db.Open(appCtx.Ctx, dsn, appCtx.TimeNow)
		if err != nil {
			return nil, aerrors.NewRuntimeError("failed opening database", err, "")
		}
		appCtx.DB = d
	}

	tables := backend.Tables{
		State: cfg.Database.StateTable.V,
		Lock:  cfg.Database.LockTable.V,
		Log:   cfg.Database.LogTable.V,
	}

	return migrator.New(
		appCtx.DB, appCtx.FS, cfg.Migrations.Dir.V, tables, appCtx.Logger,
	), nil
}

// runOptions converts the lock configuration into per-run engine options.
func runOptions(cfg *config.Config, force bool) migrator.Options {
	return migrator.Options{
		Force:            force,
		LockTimeout:      cfg.Lock.Timeout.V,
		LockPollInterval: cfg.Lock.PollInterval.V,
	}
}
