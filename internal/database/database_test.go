package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func createTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := CreateSQLite(tempDBPath(t), nil)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRow() model.TimelineRow {
	return model.TimelineRow{
		DateTime:      "2025-01-15T10:30:00Z",
		TimestampInfo: "Last Run",
		ArtifactName:  "Prefetch",
		Tool:          "EZ Tools",
		Description:   "Program Execution",
		DataPath:      `C:\Windows\System32\cmd.exe`,
		User:          "admin",
		Computer:      "WORKSTATION1",
		Count:         "3",
		EvidencePath:  "kape/ProgramExecution/PECmd_Output.csv",
	}
}

func insert(t *testing.T, db Store, runID string, rows ...model.TimelineRow) {
	t.Helper()
	if _, err := db.InsertRows(runID, rows, nil); err != nil {
		t.Fatalf("InsertRows failed: %v", err)
	}
}

func TestCreateAndOpen(t *testing.T) {
	path := tempDBPath(t)

	db, err := CreateSQLite(path, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	insert(t, db, "run-1", sampleRow())
	db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	// Creating again keeps the existing rows
	db2, err := CreateSQLite(path, nil)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	db2.Close()

	db3, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db3.Close()

	count, err := db3.CountRows("", nil)
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestOpenMissingFile(t *testing.T) {
	path := tempDBPath(t)
	if _, err := OpenSQLite(path); err == nil {
		t.Fatal("expected error opening a missing database")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("open must not create the file")
	}
}

func TestInsertAndQueryRow(t *testing.T) {
	db := createTestDB(t)
	insert(t, db, "run-1", sampleRow())

	rows, err := db.QueryRows("", nil, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0] != sampleRow() {
		t.Errorf("row did not round trip:\n got %+v\nwant %+v", rows[0], sampleRow())
	}
}

func TestInsertBatchProgress(t *testing.T) {
	db := createTestDB(t)

	rows := make([]model.TimelineRow, 10001)
	for i := range rows {
		r := sampleRow()
		r.Computer = fmt.Sprintf("HOST%d", i%26)
		rows[i] = r
	}

	var progress []int
	inserted, err := db.InsertRows("run-1", rows, func(count int) {
		progress = append(progress, count)
	})
	if err != nil {
		t.Fatalf("InsertRows failed: %v", err)
	}
	if inserted != 10001 {
		t.Errorf("expected 10001 inserted, got %d", inserted)
	}
	if len(progress) != 1 || progress[0] != 10000 {
		t.Errorf("expected one progress call at 10000, got %v", progress)
	}
}

func TestQueryWithFilter(t *testing.T) {
	db := createTestDB(t)

	for _, artifact := range []string{"Prefetch", "Amcache", "EventLogs", "Prefetch", "Prefetch"} {
		r := sampleRow()
		r.ArtifactName = artifact
		insert(t, db, "run-1", r)
	}

	rows, err := db.QueryRows("artifact_name = ?", []any{"Prefetch"}, "", 0, 0)
	if err != nil {
		t.Fatalf("QueryRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 Prefetch rows, got %d", len(rows))
	}

	count, err := db.CountRows("artifact_name = ?", []any{"Amcache"})
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 Amcache row, got %d", count)
	}
}

func TestQueryPaginationAndOrder(t *testing.T) {
	db := createTestDB(t)

	var rows []model.TimelineRow
	for i := 24; i >= 0; i-- {
		r := sampleRow()
		r.DateTime = fmt.Sprintf("2025-01-15T10:%02d:00Z", i)
		rows = append(rows, r)
	}
	insert(t, db, "run-1", rows...)

	page, err := db.QueryRows("", nil, "date_time", 10, 20)
	if err != nil {
		t.Fatalf("QueryRows failed: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("expected 5 rows on the last page, got %d", len(page))
	}
	if page[0].DateTime != "2025-01-15T10:20:00Z" {
		t.Errorf("expected ordered page to start at 10:20, got %s", page[0].DateTime)
	}
}

func TestGetMinMaxDate(t *testing.T) {
	db := createTestDB(t)

	minDate, maxDate, err := db.GetMinMaxDate()
	if err != nil {
		t.Fatalf("GetMinMaxDate failed: %v", err)
	}
	if minDate != "" || maxDate != "" {
		t.Errorf("expected empty range for empty store, got %q..%q", minDate, maxDate)
	}

	early, late, blank := sampleRow(), sampleRow(), sampleRow()
	early.DateTime = "2024-03-01T08:00:00Z"
	late.DateTime = "2025-06-30T23:59:59Z"
	blank.DateTime = ""
	insert(t, db, "run-1", late, blank, early)

	minDate, maxDate, err = db.GetMinMaxDate()
	if err != nil {
		t.Fatalf("GetMinMaxDate failed: %v", err)
	}
	if minDate != early.DateTime || maxDate != late.DateTime {
		t.Errorf("unexpected range %q..%q", minDate, maxDate)
	}
}

func TestGetDistinctValues(t *testing.T) {
	db := createTestDB(t)

	for _, tool := range []string{"EZ Tools", "Hayabusa", "EZ Tools", ""} {
		r := sampleRow()
		r.Tool = tool
		insert(t, db, "run-1", r)
	}

	values, err := db.GetDistinctValues("Tool")
	if err != nil {
		t.Fatalf("GetDistinctValues failed: %v", err)
	}
	if len(values) != 2 || values["EZ Tools"] != 2 || values["Hayabusa"] != 1 {
		t.Errorf("unexpected distinct values: %v", values)
	}

	if _, err := db.GetDistinctValues("tool; DROP TABLE timeline"); err == nil {
		t.Error("expected error for invalid field name")
	}
}

func TestRunsAndDeleteRun(t *testing.T) {
	db := createTestDB(t)

	first := sampleRow()
	first.DateTime = "2025-01-01T00:00:00Z"
	insert(t, db, "run-a", first, sampleRow())
	insert(t, db, "run-b", sampleRow())

	runs, err := db.Runs()
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	want := RunSummary{RunID: "run-a", Rows: 2, First: first.DateTime, Last: sampleRow().DateTime}
	if runs[0] != want {
		t.Errorf("unexpected run summary %+v", runs[0])
	}

	deleted, err := db.DeleteRun("run-a")
	if err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted rows, got %d", deleted)
	}
	count, _ := db.CountRows("", nil)
	if count != 1 {
		t.Errorf("expected 1 remaining row, got %d", count)
	}
}

func TestExecuteQuery(t *testing.T) {
	db := createTestDB(t)
	insert(t, db, "run-1", sampleRow())

	sql := "SELECT " + SelectList(db.Dialect()) + " FROM " + TableName + " WHERE computer = ?"
	rows, err := db.ExecuteQuery(sql, []any{"WORKSTATION1"})
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if len(rows) != 1 || rows[0].User != "admin" {
		t.Errorf("unexpected rows: %+v", rows)
	}

	count, err := db.ExecuteCountQuery("SELECT COUNT(*) FROM "+TableName, nil)
	if err != nil {
		t.Fatalf("ExecuteCountQuery failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestCreateWithInvalidIndexField(t *testing.T) {
	if _, err := CreateSQLite(tempDBPath(t), []string{"Bogus"}); err == nil {
		t.Fatal("expected error for unknown index field")
	}
}

func TestFactoryUnsupportedDriver(t *testing.T) {
	if _, err := OpenStore("mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver in OpenStore")
	}
	if _, err := CreateStore("mysql", "x", nil); err == nil {
		t.Error("expected error for unsupported driver in CreateStore")
	}

	db, err := CreateStore(DriverSQLite, tempDBPath(t), nil)
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	db.Close()
}

func TestPostgresDialect(t *testing.T) {
	d := &PostgresDialect{}

	ddl := d.CreateTableSQL()
	for _, want := range []string{"id BIGSERIAL PRIMARY KEY", `"user" TEXT`, `"count" TEXT`, "date_time TEXT", "run_id TEXT"} {
		if !strings.Contains(ddl, want) {
			t.Errorf("DDL missing %q:\n%s", want, ddl)
		}
	}

	insertSQL := d.InsertRowSQL()
	last := fmt.Sprintf("$%d)", len(model.Fields)+1)
	if !strings.HasSuffix(insertSQL, last) {
		t.Errorf("expected insert to end with %s, got %s", last, insertSQL)
	}
	if got := d.Value("a\x00b"); got != "ab" {
		t.Errorf("expected null bytes stripped, got %q", got)
	}
}

func TestSQLiteDialect(t *testing.T) {
	d := &SQLiteDialect{}
	if strings.Contains(d.CreateTableSQL(), "BIGSERIAL") {
		t.Error("sqlite table must use the implicit rowid")
	}
	if n := strings.Count(d.InsertRowSQL(), "?"); n != len(model.Fields)+1 {
		t.Errorf("expected %d placeholders, got %d", len(model.Fields)+1, n)
	}
}
