package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// DefaultIndexFields are the canonical fields indexed when creating a store.
var DefaultIndexFields = []string{"DateTime", "ArtifactName", "Tool", "Computer", "User", "EventId"}

// RunSummary describes the rows one run exported into a store.
type RunSummary struct {
	RunID string `json:"run_id"`
	Rows  int64  `json:"rows"`
	First string `json:"first"`
	Last  string `json:"last"`
}

// Store defines the interface for all timeline database operations.
// The CLI depends on the interface, not on a concrete database type.
type Store interface {
	InsertRows(runID string, rows []model.TimelineRow, onProgress func(int)) (int, error)
	QueryRows(where string, args []any, orderBy string, limit, offset int) ([]model.TimelineRow, error)
	CountRows(where string, args []any) (int64, error)

	// Query execution for pre-built SQL (from query.Build). The SELECT list
	// is the id column followed by model.Fields.
	ExecuteQuery(sql string, args []any) ([]model.TimelineRow, error)
	ExecuteCountQuery(sql string, args []any) (int64, error)

	GetDistinctValues(field string) (map[string]int64, error)
	GetMinMaxDate() (string, string, error)
	Runs() ([]RunSummary, error)
	DeleteRun(runID string) (int64, error)

	Dialect() Dialect
	Close() error
	Path() string
}

// sqlStore implements Store over database/sql for any Dialect.
type sqlStore struct {
	path    string
	conn    *sql.DB
	dialect Dialect
}

func open(d Dialect, pathOrConnStr string) (*sqlStore, error) {
	conn, err := sql.Open(d.DriverName(), d.DSN(pathOrConnStr))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify the connection works
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &sqlStore{path: pathOrConnStr, conn: conn, dialect: d}, nil
}

func create(d Dialect, pathOrConnStr string, indexFields []string) (*sqlStore, error) {
	conn, err := sql.Open(d.DriverName(), d.DSN(pathOrConnStr))
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	db := &sqlStore{path: pathOrConnStr, conn: conn, dialect: d}
	if err := db.createSchema(indexFields); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// createSchema builds the timeline table and its indexes. Existing tables
// are kept, so a store can collect several runs.
func (db *sqlStore) createSchema(indexFields []string) error {
	if indexFields == nil {
		indexFields = DefaultIndexFields
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(db.dialect.CreateTableSQL()); err != nil {
		return fmt.Errorf("creating %s table: %w", TableName, err)
	}

	columns := []string{RunColumn}
	for _, f := range indexFields {
		if !model.IsField(f) {
			return fmt.Errorf("invalid index field: %s", f)
		}
		columns = append(columns, model.Column(f))
	}
	for _, col := range columns {
		_, err = tx.Exec(db.dialect.CreateIndexSQL(TableName+"_"+col+"_idx", TableName, col))
		if err != nil {
			return fmt.Errorf("creating index on %s: %w", col, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (db *sqlStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path or connection string of the database.
func (db *sqlStore) Path() string {
	return db.path
}

// Dialect returns the SQL dialect of the store.
func (db *sqlStore) Dialect() Dialect {
	return db.dialect
}

// InsertRows inserts rows tagged with runID inside a single transaction.
// The onProgress callback is called every 10,000 rows with the current count.
// Pass nil for onProgress if you don't need progress updates.
func (db *sqlStore) InsertRows(runID string, rows []model.TimelineRow, onProgress func(count int)) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(db.dialect.InsertRowSQL())
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(model.Fields)+1)
	inserted := 0
	for _, r := range rows {
		args[0] = runID
		for i, v := range r.Values() {
			args[i+1] = db.dialect.Value(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return inserted, fmt.Errorf("inserting row %d: %w", inserted+1, err)
		}
		inserted++
		if onProgress != nil && inserted%10000 == 0 {
			onProgress(inserted)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing transaction: %w", err)
	}
	return inserted, nil
}

// SelectList is the column list read by the scan helpers: the id column
// followed by model.Fields.
func SelectList(d Dialect) string {
	cols := make([]string, 0, len(Columns)+1)
	cols = append(cols, d.IDColumn())
	for _, c := range Columns {
		cols = append(cols, d.QuoteColumn(c))
	}
	return strings.Join(cols, ", ")
}

// QueryRows runs a SELECT over the timeline table and returns the matching rows.
// whereClause and orderBy are inserted as-is; args bind the where placeholders.
func (db *sqlStore) QueryRows(whereClause string, args []any, orderBy string, limit, offset int) ([]model.TimelineRow, error) {
	query := "SELECT " + SelectList(db.dialect) + " FROM " + TableName

	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// CountRows returns the number of stored rows, optionally filtered by a WHERE clause.
func (db *sqlStore) CountRows(whereClause string, args []any) (int64, error) {
	query := "SELECT COUNT(" + db.dialect.IDColumn() + ") FROM " + TableName
	if whereClause != "" {
		query += " WHERE " + whereClause
	}

	var count int64
	err := db.conn.QueryRow(query, args...).Scan(&count)
	return count, err
}

// ExecuteQuery runs a pre-built SELECT and scans the results.
func (db *sqlStore) ExecuteQuery(sqlStr string, args []any) ([]model.TimelineRow, error) {
	rows, err := db.conn.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ExecuteCountQuery runs a pre-built COUNT query and returns the result.
func (db *sqlStore) ExecuteCountQuery(sqlStr string, args []any) (int64, error) {
	var count int64
	if err := db.conn.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("executing count query: %w", err)
	}
	return count, nil
}

// GetMinMaxDate returns the earliest and latest DateTime values, ignoring
// empty ones. Both are "" for an empty store.
func (db *sqlStore) GetMinMaxDate() (minDate, maxDate string, err error) {
	err = db.conn.QueryRow(
		"SELECT COALESCE(MIN(date_time), ''), COALESCE(MAX(date_time), '') FROM " + TableName + " WHERE date_time <> ''",
	).Scan(&minDate, &maxDate)
	return
}

// GetDistinctValues returns the distinct non-empty values of a canonical
// field with their counts.
func (db *sqlStore) GetDistinctValues(fieldName string) (map[string]int64, error) {
	// Validate field name against known fields to prevent injection
	if !model.IsField(fieldName) {
		return nil, fmt.Errorf("invalid field name: %s", fieldName)
	}
	col := db.dialect.QuoteColumn(model.Column(fieldName))

	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s GROUP BY %s", col, TableName, col)
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var value sql.NullString
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		if value.String != "" {
			result[value.String] = count
		}
	}
	return result, rows.Err()
}

// Runs summarizes the stored rows per run, ordered by run id.
func (db *sqlStore) Runs() ([]RunSummary, error) {
	rows, err := db.conn.Query(
		"SELECT " + RunColumn + ", COUNT(*), COALESCE(MIN(date_time), ''), COALESCE(MAX(date_time), '') FROM " +
			TableName + " GROUP BY " + RunColumn + " ORDER BY " + RunColumn)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var id sql.NullString
		if err := rows.Scan(&id, &r.Rows, &r.First, &r.Last); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.RunID = id.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes every row exported by runID and returns how many went.
func (db *sqlStore) DeleteRun(runID string) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM "+TableName+" WHERE "+RunColumn+" = "+db.dialect.Placeholder(1), runID)
	if err != nil {
		return 0, fmt.Errorf("deleting run %s: %w", runID, err)
	}
	return res.RowsAffected()
}

// scanRows converts sql.Rows selected with SelectList into timeline rows.
// NULL values read as "".
func scanRows(rows *sql.Rows) ([]model.TimelineRow, error) {
	var id int64
	values := make([]sql.NullString, len(model.Fields))
	dest := make([]any, 0, len(values)+1)
	dest = append(dest, &id)
	for i := range values {
		dest = append(dest, &values[i])
	}

	var out []model.TimelineRow
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning timeline row: %w", err)
		}
		var r model.TimelineRow
		for i, f := range model.Fields {
			r.Set(f, values[i].String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
