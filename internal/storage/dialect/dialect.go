// Package dialect holds the SQL differences the usage store cares about.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect is the per-database SQL surface used by sqldb.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Rebind rewrites ? placeholders into the dialect's form.
	Rebind(query string) string
	// PragmaStatements run once after the connection opens.
	PragmaStatements() []string
	// ColumnExistsQuery takes (table, column) and yields a count.
	ColumnExistsQuery() string
}

// DialectType names a supported database.
type DialectType string

const SQLite DialectType = "sqlite"

var aliases = map[string]DialectType{
	"sqlite":  SQLite,
	"sqlite3": SQLite,
}

// New returns the dialect for t.
func New(t DialectType) (Dialect, error) {
	if t != SQLite {
		return nil, fmt.Errorf("unsupported dialect: %s", t)
	}
	return sqlite{}, nil
}

// FromDriverName resolves a driver name, case-insensitively, to its dialect.
func FromDriverName(driver string) (Dialect, error) {
	t, ok := aliases[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	return New(t)
}

// sqlite targets modernc.org/sqlite in WAL mode.
type sqlite struct{}

func (sqlite) Name() string               { return string(SQLite) }
func (sqlite) DriverName() string         { return "sqlite" }
func (sqlite) Rebind(query string) string { return query }

func (sqlite) PragmaStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
}

func (sqlite) ColumnExistsQuery() string {
	return `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`
}
