package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdtdelta/4n6timeliner/internal/config"
	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/model"
	"github.com/cdtdelta/4n6timeliner/internal/query"
)

const (
	amcacheCSV = "ApplicationName,FullPath,FileExtension,SHA1,FileKeyLastWriteTimestamp\n" +
		"Evil,C:\\evil.exe,.exe,abc,2024-01-01 12:00:00\n" +
		"evil ,C:\\evil.exe,.exe,ABC,2024-01-01 12:00:00\n"
	sigmaCSV = "Timestamp,RuleTitle,Detection,EventID,ComputerName,User,CommandLine,Image,SHA1\n" +
		"2024-01-02T00:00:00Z,Mimikatz,cred dump,10,WS1,bob,mimi.exe,C:\\mimi.exe,\n"
)

func writeCase(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"kape/ProgramExecution/20240101_120000_Amcache_AssociatedFileEntries.csv": amcacheCSV,
		"chainsaw/sigma.csv": sigmaCSV,
		"notes.csv":          "a,b\n1,2\n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args, "--env-file", filepath.Join(t.TempDir(), "none.env"))
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func newTestApp(t *testing.T, apply func(*config.Config)) (*App, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	a := NewApp(&stdout, &bytes.Buffer{})
	opts := config.LoadOptions{
		EnvFile:   filepath.Join(t.TempDir(), "none.env"),
		LookupEnv: func(string) (string, bool) { return "", false },
	}
	require.NoError(t, a.Configure(opts, apply))
	return a, &stdout
}

func TestExecuteRunCSV(t *testing.T) {
	root := writeCase(t)
	out := t.TempDir()

	code, stdout, stderr := run(t, "run", "--input", root, "--output", out, "--tools", "ez,chainsaw")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Amcache")
	assert.Contains(t, stdout, "duplicates 1, exported 2")

	written, err := filepath.Glob(filepath.Join(out, "*_forensic_timeliner.csv"))
	require.NoError(t, err)
	require.Len(t, written, 1)

	rows, err := csvparser.ReadRows(afero.NewOsFs(), written[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Amcache", rows[0].ArtifactName)
	assert.Equal(t, "Mimikatz", rows[1].Description)
}

func TestRunInMemoryFilesystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/case/kape/ProgramExecution/20240101_120000_Amcache_AssociatedFileEntries.csv", []byte(amcacheCSV), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/case/chainsaw/sigma.csv", []byte(sigmaCSV), 0o644))
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	var stdout bytes.Buffer
	a := NewApp(&stdout, &bytes.Buffer{})
	a.fs = fs
	a.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	opts := config.LoadOptions{
		EnvFile:   "/none.env",
		LookupEnv: func(string) (string, bool) { return "", false },
	}
	require.NoError(t, a.Configure(opts, func(cfg *config.Config) {
		cfg.InputDir = "/case"
		cfg.Output.Path = "/out"
		cfg.Tools = []string{"ez", "chainsaw"}
		cfg.Dedup.Disabled = true
		cfg.Dedup.PostExport = true
	}))

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/out/20240301_080000_forensic_timeliner.csv", res.Output)
	assert.Equal(t, 3, res.Written)
	assert.Equal(t, 1, res.PostDeduped)

	rows, err := csvparser.ReadRows(fs, res.Output)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Mimikatz", rows[1].Description)

	_, err = os.Stat(res.Output)
	assert.True(t, os.IsNotExist(err))

	_, err = a.Dedup("/out/missing.csv", "", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	a.cfg.InputDir = t.TempDir()
	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, fault.ErrMissingRoot)
}

func TestExecuteRunNoRows(t *testing.T) {
	root := t.TempDir()
	code, _, stderr := run(t, "run", "--input", root, "--output", filepath.Join(t.TempDir(), "out.csv"))
	assert.Equal(t, 1, code)
	assert.NotContains(t, stderr, "Error:")
}

func TestExecuteRunMissingInput(t *testing.T) {
	code, _, stderr := run(t, "run", "--output", filepath.Join(t.TempDir(), "out.csv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "input_dir")
}

func TestExecuteRunInvalidFormat(t *testing.T) {
	code, _, stderr := run(t, "run", "--input", writeCase(t), "--format", "xml")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "output.format")
}

func TestExecuteRunDateWindow(t *testing.T) {
	root := writeCase(t)
	path := filepath.Join(t.TempDir(), "nested", "timeline.jsonl")

	code, stdout, stderr := run(t, "run", "--input", root, "--output", path, "--format", "jsonl", "--start", "2024-01-02")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "out of range 2")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Mimikatz")
	assert.NotContains(t, string(data), "evil.exe")
}

func TestExecuteSignatures(t *testing.T) {
	code, stdout, stderr := run(t, "signatures")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "name: Amcache")
	assert.Contains(t, stdout, "name: Chainsaw_Sigma")
}

func TestExecutePreview(t *testing.T) {
	root := writeCase(t)

	code, stdout, stderr := run(t, "preview", "--input", root, "--tools", "ez,chainsaw")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "ez: matched 1 of 10 artifacts (10%)")
	assert.Contains(t, stdout, "chainsaw: matched 1 of 2 artifacts (50%)")
	assert.Contains(t, stdout, "Amcache")
	assert.Contains(t, stdout, "1 csv files matched no artifact")
}

func TestExecuteDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.csv")
	row := model.TimelineRow{DateTime: "2024-01-01T00:00:00Z", Tool: "EZ Tools", ArtifactName: "Prefetch"}
	require.NoError(t, csvparser.WriteRows(afero.NewOsFs(), path, []model.TimelineRow{row, row}))

	code, stdout, stderr := run(t, "dedup", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "removed 1 duplicate rows")

	rows, err := csvparser.ReadRows(afero.NewOsFs(), path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecuteDedupMissingFile(t *testing.T) {
	code, _, stderr := run(t, "dedup", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "file does not exist")
}

func TestSQLiteExportQueryAndRuns(t *testing.T) {
	root := writeCase(t)
	db := filepath.Join(t.TempDir(), "case.db")

	a, stdout := newTestApp(t, func(cfg *config.Config) {
		cfg.InputDir = root
		cfg.Output.Path = db
		cfg.Output.Format = config.FormatSQLite
	})
	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, db, res.Output)

	stdout.Reset()
	require.NoError(t, a.Query(db, QueryOptions{
		Driver: "sqlite",
		Where:  []string{"ArtifactName=Amcache"},
		Order:  "DateTime",
		Page:   1,
		Format: "csv",
	}))
	assert.Contains(t, stdout.String(), "Amcache")
	assert.NotContains(t, stdout.String(), "Mimikatz")

	stdout.Reset()
	require.NoError(t, a.Query(db, QueryOptions{Driver: "sqlite", Order: "DateTime", Page: 1, Count: true}))
	assert.Equal(t, "2\n", stdout.String())

	stdout.Reset()
	require.NoError(t, a.Query(db, QueryOptions{
		Driver: "sqlite",
		Where:  []string{"Description~mimi", "ArtifactName=Amcache"},
		Any:    true,
		From:   "2024-01-02",
		Order:  "DateTime",
		Page:   1,
		Count:  true,
	}))
	assert.Equal(t, "1\n", stdout.String())

	runID := res.Report.RunID.String()
	stdout.Reset()
	require.NoError(t, a.Runs("sqlite", db))
	assert.Contains(t, stdout.String(), runID)

	stdout.Reset()
	require.NoError(t, a.DeleteRun("sqlite", db, runID))
	assert.Contains(t, stdout.String(), "deleted 2 rows")
}

func TestExecuteQueryBadFilter(t *testing.T) {
	root := writeCase(t)
	db := filepath.Join(t.TempDir(), "case.db")
	code, _, stderr := run(t, "run", "--input", root, "--output", db, "--format", "sqlite")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = run(t, "query", db, "--where", "Bogus=1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown field")

	code, stdout, stderr := run(t, "query", db, "--where", "Tool=Chainsaw", "--format", "jsonl")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"ArtifactName":"Sigma Match"`)
}

func TestParseWhere(t *testing.T) {
	tests := []struct {
		expr  string
		where string
		arg   any
	}{
		{"ArtifactName=Prefetch", "(artifact_name = ?)", "Prefetch"},
		{"User != SYSTEM", "(user != ?)", "SYSTEM"},
		{"DataPath~powershell", "(data_path LIKE ?)", "%powershell%"},
		{"DataPath!~temp", "(data_path NOT LIKE ?)", "%temp%"},
		{"DateTime>=2024-01-01", "(date_time >= ?)", "2024-01-01"},
		{"DateTime<=2024-01-31", "(date_time <= ?)", "2024-01-31"},
		{"Description=a=b", "(description = ?)", "a=b"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := parseWhere(tt.expr)
			require.NoError(t, err)
			where, args := p.WhereClause(query.DefaultDialect)
			assert.Equal(t, tt.where, where)
			assert.Equal(t, []any{tt.arg}, args)
		})
	}

	for _, bad := range []string{"Prefetch", "=x", "Nope=1"} {
		_, err := parseWhere(bad)
		assert.Error(t, err, bad)
	}
}
