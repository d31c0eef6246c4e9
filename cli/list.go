package cli

import (
	"fmt"
	"time"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
)

// The List command prints all migrations with their status: applied (with
// timestamp) or pending.
type List struct{}

// Run the list command.
func (c *List) Run(appCtx *actx.Context) error {
	mig, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	status, err := mig.Status(appCtx.DB.NewContext())
	if err != nil {
		return err
	}

	data := make([][]string, 0, len(status.Applied)+len(status.Pending))
	for _, rec := range status.Applied {
		data = append(data, []string{
			rec.ID, "applied", rec.AppliedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, id := range status.Pending {
		data = append(data, []string{id, "pending", ""})
	}

	if len(data) == 0 {
		fmt.Fprintln(appCtx.Stdout, "No migrations found")
		return nil
	}

	if err = renderTable([]string{"ID", "Status", "Applied At"}, data, appCtx.Stdout); err != nil {
		return aerrors.NewRuntimeError("failed rendering migrations table", err, "")
	}

	return nil
}
