package database

import (
	"fmt"
	"strings"
)

// pgQuoteCol wraps a column name in double quotes if it is a PostgreSQL
// reserved word. Other names are returned as-is so PostgreSQL folds them to
// lowercase consistently with unquoted DDL definitions.
func pgQuoteCol(name string) string {
	switch name {
	case "user", "count", "offset", "desc":
		return `"` + name + `"`
	default:
		return name
	}
}

// pgSanitizeString strips null bytes (0x00) from a string. SQLite stores these
// fine but PostgreSQL rejects them with "invalid byte sequence for encoding UTF8".
func pgSanitizeString(s string) string {
	if strings.ContainsRune(s, '\x00') {
		return strings.ReplaceAll(s, "\x00", "")
	}
	return s
}

// PostgresDialect implements the Dialect interface for PostgreSQL databases.
// It also satisfies query.QueryDialect through structural typing.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string             { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }
func (d *PostgresDialect) IDColumn() string                { return "id" }
func (d *PostgresDialect) QuoteColumn(name string) string  { return pgQuoteCol(name) }
func (d *PostgresDialect) Value(v string) any              { return pgSanitizeString(v) }

func (d *PostgresDialect) CreateTableSQL() string {
	return createTableSQL(d, "id BIGSERIAL PRIMARY KEY")
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, pgQuoteCol(column))
}

func (d *PostgresDialect) InsertRowSQL() string {
	return insertRowSQL(d)
}
