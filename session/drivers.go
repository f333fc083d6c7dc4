package session

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// storeDriver binds a URL scheme to a database/sql driver and a bun dialect.
type storeDriver struct {
	name       string
	dialect    func() schema.Dialect
	dsn        func(u *url.URL) string
	constraint func(err error) bool
	// prepare runs before the pool is opened, when set.
	prepare func(u *url.URL) error
}

var drivers = map[string]storeDriver{}

func registerDriver(d storeDriver, schemes ...string) {
	for _, scheme := range schemes {
		drivers[scheme] = d
	}
}

func init() {
	registerDriver(storeDriver{
		name:    "sqlite",
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		dsn: func(u *url.URL) string {
			return sqliteDSN(u, "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		},
		constraint: func(err error) bool {
			var se *sqlite.Error
			return errors.As(err, &se) && se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
		},
		prepare: ensureSQLiteDir,
	}, "sqlite")

	registerDriver(storeDriver{
		name:    "postgres",
		dialect: func() schema.Dialect { return pgdialect.New() },
		dsn: func(u *url.URL) string {
			c := *u
			c.Scheme = "postgres"
			return c.String()
		},
		constraint: func(err error) bool {
			var pe *pq.Error
			return errors.As(err, &pe) && pe.Code.Class() == "23"
		},
	}, "postgres", "postgresql")
}

// lookupDriver resolves a scheme such as "sqlite+aiosqlite" to its driver.
// Anything after '+' is ignored.
func lookupDriver(scheme string) (storeDriver, bool) {
	base, _, _ := strings.Cut(strings.ToLower(scheme), "+")
	d, ok := drivers[base]
	return d, ok
}

// resolve parses a store URL into the driver and the DSN handed to sql.Open.
func resolve(raw string) (storeDriver, string, error) {
	d, u, err := parseURL(raw)
	if err != nil {
		return storeDriver{}, "", err
	}
	return d, d.dsn(u), nil
}

// prepareStore runs the driver specific setup for raw, such as creating the
// directory of a sqlite database file.
func prepareStore(raw string) error {
	d, u, err := parseURL(raw)
	if err != nil {
		return err
	}
	if d.prepare == nil {
		return nil
	}
	return d.prepare(u)
}

func parseURL(raw string) (storeDriver, *url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return storeDriver{}, nil, fmt.Errorf("parse store url: %w", err)
	}
	d, ok := lookupDriver(u.Scheme)
	if !ok {
		return storeDriver{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, u.Scheme)
	}
	return d, u, nil
}

// isConstraintViolation reports whether any registered driver recognises err
// as an integrity constraint failure.
func isConstraintViolation(err error) bool {
	for _, d := range drivers {
		if d.constraint != nil && d.constraint(err) {
			return true
		}
	}
	return false
}

// sqlitePath extracts the database path of sqlite:///relative/path and
// sqlite:////absolute/path. The second result is false for in-memory URLs.
func sqlitePath(u *url.URL) (string, bool) {
	path := strings.TrimPrefix(u.Path, "/")
	if u.Host != "" {
		path = u.Host + "/" + path
	}
	if path == "" || path == ":memory:" {
		return "", false
	}
	return path, true
}

// sqliteDSN turns a sqlite URL into a file: URI. In-memory databases live
// in the memdb VFS under a unique name, so every pooled connection sees the
// same data and lock waits honour busy_timeout.
func sqliteDSN(u *url.URL, pragmas string) string {
	query := pragmas
	if u.RawQuery != "" {
		query = u.RawQuery + "&" + pragmas
	}

	path, ok := sqlitePath(u)
	if !ok {
		return "file:/memdb-" + uuid.NewString() + "?vfs=memdb&" + query
	}
	return "file:" + path + "?" + query
}

// ensureSQLiteDir creates the parent directory of a file backed database.
func ensureSQLiteDir(u *url.URL) error {
	path, ok := sqlitePath(u)
	if !ok {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// redact hides the password of a store URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
