package query

import (
	"strings"
)

// QueryDialect abstracts SQL syntax differences needed for query building.
// Each database backend provides an implementation. The default is SQLite.
type QueryDialect interface {
	// Placeholder returns the parameter placeholder for the given 1-based index.
	// SQLite returns "?" (ignoring the index), PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// IDColumn returns the name of the row identifier column.
	// SQLite uses "rowid", PostgreSQL uses "id".
	IDColumn() string

	// QuoteColumn returns the column name quoted appropriately for the dialect.
	// SQLite returns the name unchanged. PostgreSQL wraps reserved words
	// (user, count) in double quotes.
	QuoteColumn(name string) string
}

// sqliteQueryDialect is the default dialect, producing SQLite-compatible SQL.
type sqliteQueryDialect struct{}

func (d sqliteQueryDialect) Placeholder(index int) string   { return "?" }
func (d sqliteQueryDialect) IDColumn() string               { return "rowid" }
func (d sqliteQueryDialect) QuoteColumn(name string) string { return name }

// DefaultDialect is the query dialect used when none is explicitly set.
// It produces SQLite-compatible SQL.
var DefaultDialect QueryDialect = sqliteQueryDialect{}

// Rebind replaces the "?" placeholders of sql with the dialect's numbered
// form. Question marks inside single-quoted literals are left alone.
func Rebind(d QueryDialect, sql string) string {
	if d.Placeholder(1) == "?" {
		return sql
	}
	var b strings.Builder
	n := 0
	quoted := false
	for _, r := range sql {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
