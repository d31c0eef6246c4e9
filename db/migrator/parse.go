package migrator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
)

const (
	dependsMarker  = "-- depends:"
	rollbackMarker = "-- rollback:"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// LoadMigrations reads all .sql migration units from dir, ordered by file
// name. It fails with ParseError on an unreadable unit, a malformed depends
// header, or a duplicate identifier.
func LoadMigrations(fsys vfs.FileSystem, dir string) ([]*Migration, error) {
	entries, err := vfs.ReadDir(fsys, dir)
	if err != nil {
		return nil, ParseError{Unit: dir, Reason: "unreadable migrations directory", Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	migrations := make([]*Migration, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		content, rerr := vfs.ReadFile(fsys, path)
		if rerr != nil {
			return nil, ParseError{Unit: name, Reason: "unreadable unit", Err: rerr}
		}

		id := strings.TrimSuffix(name, ".sql")
		if prev, ok := seen[id]; ok {
			return nil, ParseError{
				Unit:   name,
				Reason: fmt.Sprintf("duplicate migration id '%s' (already loaded from %s)", id, prev),
			}
		}
		seen[id] = path

		m, perr := parseMigration(id, path, string(content))
		if perr != nil {
			return nil, perr
		}
		migrations = append(migrations, m)
	}

	return migrations, nil
}

// parseMigration extracts the depends header, splits the body into apply and
// rollback sections, and splits each section into ordered statements.
func parseMigration(id, source, content string) (*Migration, error) {
	if !validID.MatchString(id) {
		return nil, ParseError{Unit: id, Reason: "invalid migration id"}
	}

	applyPart := content
	var rollbackPart string
	if idx := findMarker(content, rollbackMarker); idx >= 0 {
		applyPart = content[:idx]
		rollbackPart = content[idx+len(rollbackMarker):]
		if findMarker(rollbackPart, rollbackMarker) >= 0 {
			return nil, ParseError{Unit: id, Reason: "multiple rollback markers"}
		}
	}

	depends, err := parseDepends(id, applyPart)
	if err != nil {
		return nil, err
	}

	// An empty apply section is allowed; freshly scaffolded units have one.
	applySteps := splitStatements(applyPart)
	rollbackSteps := splitStatements(rollbackPart)

	return &Migration{
		ID:            id,
		Depends:       depends,
		ApplySteps:    applySteps,
		RollbackSteps: rollbackSteps,
		Hash:          computeHash(applySteps, rollbackSteps),
		Source:        source,
	}, nil
}

// parseDepends scans comment lines for the depends header. At most one is
// allowed per unit.
func parseDepends(id, content string) ([]string, error) {
	var depends []string
	found := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, dependsMarker) {
			continue
		}
		if found {
			return nil, ParseError{Unit: id, Reason: "multiple depends headers"}
		}
		found = true

		for _, dep := range strings.Fields(trimmed[len(dependsMarker):]) {
			if !validID.MatchString(dep) {
				return nil, ParseError{
					Unit:   id,
					Reason: fmt.Sprintf("invalid id '%s' in depends header", dep),
				}
			}
			if dep == id {
				return nil, ParseError{Unit: id, Reason: "migration depends on itself"}
			}
			depends = append(depends, dep)
		}
	}

	return depends, nil
}

// findMarker returns the byte offset of the marker at the start of a line, or
// -1 if it's absent.
func findMarker(content, marker string) int {
	if strings.HasPrefix(content, marker) {
		return 0
	}
	idx := strings.Index(content, "\n"+marker)
	if idx < 0 {
		return -1
	}
	return idx + 1
}

// splitStatements splits a migration section into statements on semicolons,
// respecting single- and double-quoted strings and line comments. Empty
// statements are dropped.
func splitStatements(content string) []string {
	var (
		stmts   []string
		sb      strings.Builder
		inS     bool // inside a '...' string
		inD     bool // inside a "..." identifier
		comment bool // inside a -- line comment
	)

	flush := func() {
		stmt := strings.TrimSpace(sb.String())
		sb.Reset()
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case comment:
			if r == '\n' {
				comment = false
				sb.WriteRune(r)
			}
			continue
		case inS:
			if r == '\'' {
				inS = false
			}
		case inD:
			if r == '"' {
				inD = false
			}
		case r == '\'':
			inS = true
		case r == '"':
			inD = true
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			comment = true
			i++
			continue
		case r == ';':
			flush()
			continue
		}
		sb.WriteRune(r)
	}
	flush()

	// Strip leading/trailing blank lines left behind by removed comments.
	for i, stmt := range stmts {
		lines := strings.Split(stmt, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if strings.TrimSpace(line) != "" {
				kept = append(kept, line)
			}
		}
		stmts[i] = strings.Join(kept, "\n")
	}

	return stmts
}
