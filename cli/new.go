package cli

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"

	actx "go.hackfix.me/strata/app/context"
	aerrors "go.hackfix.me/strata/app/errors"
)

const scaffoldTemplate = `-- %s
-- depends:
--
-- Apply statements go here, separated by semicolons.

-- rollback:
-- Statements undoing the change go here. Remove this section to make the
-- migration irreversible.
`

var seqPrefix = regexp.MustCompile(`^(\d+)-`)

// The New command scaffolds an empty migration file in the migrations
// directory, named with the next sequence number.
type NewCmd struct {
	Name string `arg:"" help:"Short description of the migration, e.g. add-users-table."`
}

// Run the new command.
func (c *NewCmd) Run(appCtx *actx.Context) error {
	dir := appCtx.Config.Migrations.Dir.V
	if err := appCtx.FS.MkdirAll(dir, 0o755); err != nil {
		return aerrors.NewRuntimeError("failed creating migrations directory", err, "")
	}

	entries, err := vfs.ReadDir(appCtx.FS, dir)
	if err != nil {
		return aerrors.NewRuntimeError("failed reading migrations directory", err, "")
	}
	maxSeq := 0
	for _, entry := range entries {
		m := seqPrefix.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if seq, serr := strconv.Atoi(m[1]); serr == nil && seq > maxSeq {
			maxSeq = seq
		}
	}

	slug := strings.ToLower(strings.Join(strings.Fields(c.Name), "-"))
	name := fmt.Sprintf("%04d-%s.sql", maxSeq+1, slug)
	path := filepath.Join(dir, name)

	content := fmt.Sprintf(scaffoldTemplate, strings.TrimSuffix(name, ".sql"))
	if err = vfs.WriteFile(appCtx.FS, path, []byte(content), 0o644); err != nil {
		return aerrors.NewRuntimeError("failed writing migration file", err, "")
	}

	fmt.Fprintf(appCtx.Stdout, "Created %s\n", path)

	return nil
}
