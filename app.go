package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/config"
	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/database"
	"github.com/cdtdelta/4n6timeliner/internal/discovery"
	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/filter"
	"github.com/cdtdelta/4n6timeliner/internal/jsonlparser"
	"github.com/cdtdelta/4n6timeliner/internal/logging"
	"github.com/cdtdelta/4n6timeliner/internal/model"
	"github.com/cdtdelta/4n6timeliner/internal/pipeline"
	"github.com/cdtdelta/4n6timeliner/internal/query"
	"github.com/cdtdelta/4n6timeliner/internal/signature"
	"github.com/cdtdelta/4n6timeliner/internal/tlnparser"
)

// errNoRows marks a run that produced nothing to export. It maps to exit
// code 1 without an extra error line.
var errNoRows = errors.New("no timeline rows exported")

// App holds everything one CLI invocation works with.
type App struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	cfg      *config.Config
	log      *log.Logger
	registry *signature.Registry
}

// NewApp creates an App on the OS filesystem.
func NewApp(stdout, stderr io.Writer) *App {
	return &App{
		fs:     afero.NewOsFs(),
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
		log:    logging.Setup("info", "text", stderr),
	}
}

// Configure loads the layered configuration, lets apply write flag values on
// top, validates the result and prepares the logger and signature registry.
func (a *App) Configure(opts config.LoadOptions, apply func(*config.Config)) error {
	cfg, err := config.Load(a.fs, opts)
	if err != nil {
		return err
	}
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, a.stderr)

	reg := signature.Default()
	if cfg.OverridePath != "" {
		ov, err := signature.LoadOverride(a.fs, cfg.OverridePath)
		if err != nil {
			return err
		}
		if err := reg.Apply(ov); err != nil {
			return err
		}
		a.log.Info("signature override applied", "file", cfg.OverridePath, "artifacts", len(ov))
	}
	a.registry = reg
	return nil
}

// RunResult is what a timeline run produced.
type RunResult struct {
	Report *pipeline.Report
	// Output is the written file or database connection target.
	Output string
	// Written is the number of rows the exporter stored.
	Written int
	// PostDeduped counts rows removed by the post-export pass.
	PostDeduped int
}

// Run executes the pipeline and exports its rows. A cancelled run still
// exports what was collected and returns the cancellation error afterwards.
func (a *App) Run(ctx context.Context) (*RunResult, error) {
	if err := a.cfg.ValidateRun(a.fs); err != nil {
		return nil, err
	}
	a.log.Debug("configuration", "config", a.cfg.String())

	session := pipeline.NewSession(a.cfg, a.registry, a.fs, a.log)
	report, runErr := session.Run(ctx)
	if runErr != nil {
		a.log.Warn("run interrupted, exporting collected rows", "err", runErr)
	}
	res := &RunResult{Report: report}
	a.printSummary(report)

	if len(report.Rows) == 0 {
		a.log.Warn("no rows collected, nothing exported")
		return res, errNoRows
	}

	out, written, err := a.Export(report.RunID, report.Rows)
	if err != nil {
		return res, err
	}
	res.Output, res.Written = out, written
	a.log.Info("timeline exported", "output", a.displayTarget(out), "format", a.cfg.Output.Format, "rows", written)

	if a.cfg.Dedup.PostExport {
		removed, err := a.postExportDedup(out)
		if err != nil {
			return res, err
		}
		res.PostDeduped = removed
	}

	if written == 0 {
		return res, errNoRows
	}
	return res, runErr
}

// Export writes rows in the configured format and returns the target and
// the number of rows written. File formats go through a.fs; database
// targets are opened by their drivers.
func (a *App) Export(runID uuid.UUID, rows []model.TimelineRow) (string, int, error) {
	format := strings.ToLower(a.cfg.Output.Format)

	if format == config.FormatPostgres {
		n, err := a.exportStore(database.DriverPostgres, a.cfg.Output.DatabaseURL, runID, rows)
		return a.cfg.Output.DatabaseURL, n, err
	}

	path, err := a.resolveOutputPath(a.cfg.Output.Path, format)
	if err != nil {
		return "", 0, err
	}

	switch format {
	case config.FormatCSV:
		err = csvparser.WriteRows(a.fs, path, rows)
		return path, len(rows), errors.Wrap(err, "writing csv")
	case config.FormatJSONL:
		err = jsonlparser.WriteRows(a.fs, path, rows)
		return path, len(rows), errors.Wrap(err, "writing jsonl")
	case config.FormatTLN, config.FormatL2TTLN:
		tf := tlnparser.TLN
		if format == config.FormatL2TTLN {
			tf = tlnparser.L2TTLN
		}
		wr, err := tlnparser.WriteRows(a.fs, path, rows, tf)
		if err != nil {
			return path, 0, errors.Wrap(err, "writing tln")
		}
		if wr.Skipped > 0 {
			a.log.Warn("rows without a usable DateTime left out of TLN", "skipped", wr.Skipped)
		}
		return path, wr.Written, nil
	case config.FormatSQLite:
		n, err := a.exportStore(database.DriverSQLite, path, runID, rows)
		return path, n, err
	default:
		return "", 0, &fault.ConfigurationError{Reason: "unsupported output format " + format}
	}
}

func (a *App) exportStore(driver, target string, runID uuid.UUID, rows []model.TimelineRow) (int, error) {
	store, err := database.CreateStore(driver, target, nil)
	if err != nil {
		return 0, errors.Wrap(err, "opening timeline store")
	}
	defer store.Close()

	n, err := store.InsertRows(runID.String(), rows, func(count int) {
		a.log.Info("storing", "rows", count, "total", len(rows))
	})
	return n, errors.Wrap(err, "storing rows")
}

// extensions maps file formats to the extension of a generated file name.
var extensions = map[string]string{
	config.FormatCSV:    ".csv",
	config.FormatJSONL:  ".jsonl",
	config.FormatTLN:    ".tln",
	config.FormatL2TTLN: ".tln",
	config.FormatSQLite: ".db",
}

// resolveOutputPath turns a directory into a timestamped file name inside it
// and makes sure the parent directory exists.
func (a *App) resolveOutputPath(path, format string) (string, error) {
	if info, err := a.fs.Stat(path); err == nil && info.IsDir() {
		name := a.now().Format("20060102_150405") + "_forensic_timeliner" + extensions[format]
		path = filepath.Join(path, name)
	}
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &fault.FileAccessError{Path: path, Op: "create output directory", Err: err}
	}
	return path, nil
}

func (a *App) postExportDedup(path string) (int, error) {
	format := strings.ToLower(a.cfg.Output.Format)
	if format == config.FormatSQLite || format == config.FormatPostgres {
		a.log.Warn("post-export dedup only applies to file outputs, skipping", "format", format)
		return 0, nil
	}
	removed, err := filter.DedupFile(a.fs, path, format, a.cfg.Dedup.Keys...)
	if err != nil {
		return 0, errors.Wrap(err, "post-export dedup")
	}
	a.log.Info("post-export dedup", "file", path, "removed", removed)
	return removed, nil
}

// displayTarget hides database credentials in log output.
func (a *App) displayTarget(target string) string {
	if target != "" && target == a.cfg.Output.DatabaseURL {
		return "[MASKED]"
	}
	return target
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// printSummary writes the per-artifact counts and file problems of a run.
func (a *App) printSummary(r *pipeline.Report) {
	t := newTable("Tool", "Artifact", "Rows")
	for _, c := range r.Summary {
		t.Row(c.Tool, c.Artifact, strconv.Itoa(c.Rows))
	}
	fmt.Fprintln(a.stdout, t.Render())

	for _, f := range r.Files {
		if f.Outcome != fault.Success {
			fmt.Fprintf(a.stdout, "%s: %s (%v)\n", f.Outcome, f.Path, f.Err)
		}
	}
	fmt.Fprintf(a.stdout, "collected %d, out of range %d, duplicates %d, exported %d\n",
		r.Collected, r.OutOfRange, r.Deduped, len(r.Rows))
}

// Dedup runs the post-export pass on an existing csv, jsonl or tln file.
func (a *App) Dedup(path, format string, keys []string) (int, error) {
	if err := filter.ValidateKeys(keys); err != nil {
		return 0, err
	}
	if _, err := a.fs.Stat(path); os.IsNotExist(err) {
		return 0, errors.Wrap(os.ErrNotExist, path)
	}
	removed, err := filter.DedupFile(a.fs, path, format, keys...)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(a.stdout, "removed %d duplicate rows from %s\n", removed, path)
	return removed, nil
}

// Signatures prints the effective signature registry as YAML.
func (a *App) Signatures() error {
	out, err := yaml.Marshal(a.registry.All())
	if err != nil {
		return errors.Wrap(err, "encoding signatures")
	}
	_, err = a.stdout.Write(out)
	return err
}

// Preview prints which artifacts a scan root would yield, per tool group.
func (a *App) Preview(root string) error {
	p, err := discovery.PreviewRoot(a.fs, root, a.registry, a.cfg.Tools, a.log)
	if err != nil {
		return err
	}

	for _, tp := range p.Tools {
		fmt.Fprintf(a.stdout, "%s: matched %d of %d artifacts (%d%%)\n",
			tp.Tool, len(tp.Found), len(tp.Found)+len(tp.Missing), tp.Coverage())
		if len(tp.Matched) > 0 {
			t := newTable("Artifact", "File", "Match")
			for _, c := range tp.Matched {
				t.Row(c.Artifact, c.Path, c.Rationale)
			}
			fmt.Fprintln(a.stdout, t.Render())
		}
		if len(tp.Missing) > 0 {
			t := newTable("Missing artifact", "Expected filename", "Expected folder")
			for _, s := range tp.Missing {
				t.Row(s.Name, strings.Join(s.FilenamePatterns, ", "), strings.Join(s.FoldernamePatterns, ", "))
			}
			fmt.Fprintln(a.stdout, t.Render())
		}
	}
	for _, f := range p.Unmatched {
		a.log.Info("unmatched csv", "file", f)
	}
	if len(p.Unmatched) > 0 {
		fmt.Fprintf(a.stdout, "%d csv files matched no artifact\n", len(p.Unmatched))
	}
	return nil
}

// QueryOptions select rows from a timeline store.
type QueryOptions struct {
	Driver string
	Where  []string
	Any    bool
	From   string
	To     string
	RunID  string
	Order  string
	Desc   bool
	Limit  int
	Page   int
	Count  bool
	Format string
}

// Query prints matching rows of a timeline store as CSV or JSONL.
func (a *App) Query(target string, opts QueryOptions) error {
	store, err := database.OpenStore(opts.Driver, target)
	if err != nil {
		return err
	}
	defer store.Close()

	logic := query.AND
	if opts.Any {
		logic = query.OR
	}
	var filters []*query.Predicate
	for _, w := range opts.Where {
		p, err := parseWhere(w)
		if err != nil {
			return err
		}
		filters = append(filters, p)
	}

	q := query.New(opts.Limit)
	q.SetDialect(store.Dialect())
	q.AddPredicate(query.Combine(filters, logic))
	// The date window and run narrow the result even under --any.
	q.AddPredicate(query.DateRange(opts.From, opts.To))
	q.AddPredicate(query.Run(opts.RunID))
	if err := q.OrderBy(opts.Order, opts.Desc); err != nil {
		return err
	}
	q.SetPage(opts.Page)

	if opts.Count {
		sqlStr, args := q.BuildCount()
		n, err := store.ExecuteCountQuery(sqlStr, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, n)
		return nil
	}

	sqlStr, args := q.Build()
	rows, err := store.ExecuteQuery(sqlStr, args)
	if err != nil {
		return err
	}
	if strings.ToLower(opts.Format) == config.FormatJSONL {
		return jsonlparser.EncodeRows(a.stdout, rows)
	}
	return csvparser.EncodeRows(a.stdout, rows)
}

// whereOps lists two-character operators first so they win at a position.
var whereOps = []struct {
	token string
	op    query.Operator
}{
	{"!~", query.NotLike},
	{"!=", query.NotEqual},
	{">=", query.GreaterOrEqual},
	{"<=", query.LessOrEqual},
	{"~", query.Like},
	{"=", query.Equal},
}

// parseWhere turns "Field=value" style expressions into a predicate. The
// first operator in the expression splits field from value; "~" and "!~"
// are substring matches.
func parseWhere(expr string) (*query.Predicate, error) {
	for i := 1; i < len(expr); i++ {
		for _, w := range whereOps {
			if !strings.HasPrefix(expr[i:], w.token) {
				continue
			}
			field := strings.TrimSpace(expr[:i])
			p := query.Simple(field, w.op, strings.TrimSpace(expr[i+len(w.token):]))
			if p == nil {
				return nil, errors.Errorf("unknown field %q in %q", field, expr)
			}
			return p, nil
		}
	}
	return nil, errors.Errorf("cannot parse filter %q, expected Field=value", expr)
}

// Runs lists the runs stored in a timeline database.
func (a *App) Runs(driver, target string) error {
	store, err := database.OpenStore(driver, target)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return err
	}
	t := newTable("Run", "Rows", "First", "Last")
	for _, r := range runs {
		t.Row(r.RunID, strconv.FormatInt(r.Rows, 10), r.First, r.Last)
	}
	fmt.Fprintln(a.stdout, t.Render())
	return nil
}

// DeleteRun removes one run from a timeline database.
func (a *App) DeleteRun(driver, target, runID string) error {
	store, err := database.OpenStore(driver, target)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.DeleteRun(runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "deleted %d rows of run %s\n", n, runID)
	return nil
}
