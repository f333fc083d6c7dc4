//go:build cgo

package session

import (
	"errors"
	"net/url"

	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// The cgo sqlite driver is only registered when cgo is available; pure Go
// builds fall back to the sqlite scheme.
func init() {
	registerDriver(storeDriver{
		name:    "sqlite3",
		dialect: func() schema.Dialect { return sqlitedialect.New() },
		dsn: func(u *url.URL) string {
			return sqliteDSN(u, "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
		},
		constraint: func(err error) bool {
			var se sqlite3.Error
			return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
		},
		prepare: ensureSQLiteDir,
	}, "sqlite3")
}
