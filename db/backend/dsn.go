package backend

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.hackfix.me/strata/db/types"
)

// DSN is the parsed form of a database connection string. A single URL-style
// syntax is accepted for all backends; each backend variant converts it into
// whatever its driver expects.
type DSN struct {
	Scheme   string
	Username string
	Password string
	Hostname string
	Port     int
	Database string
	Options  url.Values

	raw string
}

// ParseDSN parses a URL-style connection string.
func ParseDSN(raw string) (*DSN, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, types.BackendError{Op: "open", Err: fmt.Errorf("invalid DSN: %w", err)}
	}
	if u.Scheme == "" {
		return nil, types.BackendError{Op: "open", Err: fmt.Errorf("DSN '%s' has no scheme", raw)}
	}

	dsn := &DSN{
		Scheme:   u.Scheme,
		Hostname: u.Hostname(),
		Options:  u.Query(),
		raw:      raw,
	}
	if u.User != nil {
		dsn.Username = u.User.Username()
		dsn.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		port, perr := strconv.Atoi(p)
		if perr != nil {
			return nil, types.BackendError{Op: "open", Err: fmt.Errorf("invalid DSN port '%s'", p)}
		}
		dsn.Port = port
	}

	switch u.Scheme {
	case "sqlite", "file":
		// For file-based engines the "database" is a filesystem path, which
		// ends up in the host position for relative paths (sqlite://data.db)
		// and in the opaque part for file:data.db.
		switch {
		case u.Opaque != "":
			dsn.Database = u.Opaque
		default:
			dsn.Database = u.Host + u.Path
		}
		dsn.Hostname = ""
		dsn.Port = 0
	default:
		dsn.Database = strings.TrimPrefix(u.Path, "/")
	}

	return dsn, nil
}

// String returns the original connection string with the password redacted.
// Safe for logging.
func (d *DSN) String() string {
	if d.Password == "" {
		return d.raw
	}
	return strings.Replace(d.raw, ":"+d.Password+"@", ":***@", 1)
}
