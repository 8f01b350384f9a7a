package database

import (
	"strings"

	"github.com/samber/lo"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// TableName is the table holding exported timeline rows.
const TableName = "timeline"

// RunColumn tags every row with the run that exported it.
const RunColumn = "run_id"

// Columns are the SQL column names of model.Fields, in the same order.
var Columns = lo.Map(model.Fields, func(f string, _ int) string { return model.Column(f) })

// Dialect abstracts all database-specific SQL generation.
// Each database backend (SQLite, PostgreSQL) implements this interface.
// The Placeholder, IDColumn and QuoteColumn methods match the
// query.QueryDialect interface through Go structural typing, so a Dialect can
// also serve as a QueryDialect.
type Dialect interface {
	// DriverName returns the database/sql driver name ("sqlite", "pgx").
	DriverName() string

	// DSN returns the data source name for opening a connection.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	// SQLite: "?" (ignoring index), PostgreSQL: "$1", "$2", etc.
	Placeholder(index int) string

	// IDColumn returns the row identifier column name.
	// SQLite: "rowid" (implicit), PostgreSQL: "id" (explicit serial).
	IDColumn() string

	// QuoteColumn returns the column name quoted appropriately for the dialect.
	QuoteColumn(name string) string

	// CreateTableSQL returns the DDL for the timeline table.
	CreateTableSQL() string

	// CreateIndexSQL returns DDL to create an index on a table column.
	CreateIndexSQL(indexName, tableName, column string) string

	// InsertRowSQL returns the parameterized INSERT for one row: the run id
	// followed by every column of model.Fields.
	InsertRowSQL() string

	// Value prepares a field value for binding.
	Value(v string) any
}

// createTableSQL renders the shared column list after an optional id column.
func createTableSQL(d Dialect, idDef string) string {
	defs := make([]string, 0, len(Columns)+2)
	if idDef != "" {
		defs = append(defs, idDef)
	}
	defs = append(defs, RunColumn+" TEXT")
	for _, c := range Columns {
		defs = append(defs, d.QuoteColumn(c)+" TEXT")
	}
	return "CREATE TABLE IF NOT EXISTS " + TableName + " (\n\t\t" + strings.Join(defs, ",\n\t\t") + "\n\t)"
}

func insertRowSQL(d Dialect) string {
	cols := append([]string{RunColumn}, lo.Map(Columns, func(c string, _ int) string { return d.QuoteColumn(c) })...)
	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return "INSERT INTO " + TableName + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}
