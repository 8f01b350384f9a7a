package database

import "fmt"

// SQLiteDialect implements the Dialect interface for SQLite databases.
// It also satisfies query.QueryDialect through structural typing.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string             { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }
func (d *SQLiteDialect) IDColumn() string                { return "rowid" }
func (d *SQLiteDialect) QuoteColumn(name string) string  { return name }
func (d *SQLiteDialect) Value(v string) any              { return v }

func (d *SQLiteDialect) CreateTableSQL() string {
	return createTableSQL(d, "")
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *SQLiteDialect) InsertRowSQL() string {
	return insertRowSQL(d)
}
