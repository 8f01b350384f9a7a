// Package pipeline runs discovery, ingestion, normalization and collection
// for every selected artifact type, then applies the date window and dedup.
//
// Failures are contained at the narrowest scope: a bad row is skipped by the
// normalizer, a bad file is recorded in the Report, and an unusable artifact
// type is logged and skipped. Run only returns an error on cancellation.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/collector"
	"github.com/cdtdelta/4n6timeliner/internal/config"
	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/discovery"
	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/filter"
	"github.com/cdtdelta/4n6timeliner/internal/logging"
	"github.com/cdtdelta/4n6timeliner/internal/model"
	"github.com/cdtdelta/4n6timeliner/internal/normalize"
	"github.com/cdtdelta/4n6timeliner/internal/signature"
)

// Session owns everything one run mutates.
type Session struct {
	ID          uuid.UUID
	Config      *config.Config
	Registry    *signature.Registry
	Normalizers *normalize.Registry
	Collector   *collector.Collector
	FS          afero.Fs
	Log         logging.Logger

	// OnProgress receives per-batch progress for chunked files.
	OnProgress func(csvparser.Progress)
}

// NewSession snapshots reg so later changes to it do not affect the run.
func NewSession(cfg *config.Config, reg *signature.Registry, fs afero.Fs, log logging.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	s := &Session{
		ID:       uuid.New(),
		Config:   cfg,
		Registry: reg.Clone(),
		Normalizers: normalize.Default(normalize.Options{
			MFTExtensions: cfg.MFT.Extensions,
			MFTPaths:      cfg.MFT.Paths,
		}),
		Collector: collector.New(),
		FS:        fs,
		Log:       log,
	}
	s.OnProgress = func(p csvparser.Progress) {
		s.Log.Info("batch", "file", p.File, "batch", p.Batch, "of", p.Batches, "rows", p.Rows, "total", p.Total)
	}
	return s
}

// FileResult records what happened to one candidate file.
type FileResult struct {
	Path      string
	Artifact  string
	Rationale string
	Outcome   fault.Outcome
	Rows      int
	// Skipped counts timestamp values that could not be parsed.
	Skipped int
	// Filtered counts source rows dropped by artifact filters.
	Filtered int
	// Malformed counts CSV lines the reader could not use.
	Malformed int
	Err       error
}

// Report summarizes a run.
type Report struct {
	RunID   uuid.UUID
	Files   []FileResult
	Errors  []error
	Summary []collector.Count
	// Collected is the row count before the date window and dedup.
	Collected int
	// OutOfRange is the number of rows removed by the date window.
	OutOfRange int
	// Deduped is the number of duplicate rows removed.
	Deduped int
	Rows    []model.TimelineRow
}

// FilesWith returns the results with the given outcome.
func (r *Report) FilesWith(o fault.Outcome) []FileResult {
	return lo.Filter(r.Files, func(f FileResult, _ int) bool { return f.Outcome == o })
}

// Artifacts resolves the artifact names selected by Config.Tools and
// Config.Artifacts. Named artifacts take precedence over tool groups.
func (s *Session) Artifacts() []string {
	if len(s.Config.Artifacts) > 0 {
		return lo.Uniq(s.Config.Artifacts)
	}
	tools := s.Config.Tools
	if len(tools) == 0 {
		tools = []string{signature.ToolAll}
	}
	var names []string
	for _, t := range tools {
		names = append(names, s.Registry.ByTool(strings.ToLower(t))...)
	}
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

// Run processes every selected artifact type in order. It checks ctx between
// files and between batches; on cancellation it returns the rows collected
// so far together with ctx.Err().
func (s *Session) Run(ctx context.Context) (*Report, error) {
	s.Collector.Reset()
	report := &Report{RunID: s.ID}

	var runErr error
	for _, name := range s.Artifacts() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := s.runArtifact(ctx, name, report); err != nil {
			runErr = err
			break
		}
	}

	s.finish(report)
	return report, runErr
}

func (s *Session) runArtifact(ctx context.Context, name string, report *Report) error {
	sig, err := s.Registry.Lookup(name)
	if err != nil {
		s.Log.Warn("skipping artifact", "artifact", name, "err", err)
		report.Errors = append(report.Errors, err)
		return nil
	}
	norm, ok := s.Normalizers.For(name)
	if !ok {
		err := &fault.ConfigurationError{Artifact: name, Reason: "no normalizer", Err: fault.ErrUnknownArtifact}
		s.Log.Warn("skipping artifact", "artifact", name, "err", err)
		report.Errors = append(report.Errors, err)
		return nil
	}

	s.Log.Info("scanning", "artifact", name, "root", s.Config.InputDir)
	files, err := discovery.FindArtifactFiles(s.FS, s.Config.InputDir, sig, s.Log)
	if err != nil {
		report.Errors = append(report.Errors, err)
		return nil
	}
	if len(files) == 0 {
		s.Log.Info("no matching files", "artifact", name)
		return nil
	}

	enc, err := csvparser.ParseEncoding(sig.Encoding)
	if err != nil {
		cfgErr := &fault.ConfigurationError{Artifact: name, Reason: "bad signature encoding", Err: err}
		s.Log.Warn("skipping artifact", "artifact", name, "err", cfgErr)
		report.Errors = append(report.Errors, cfgErr)
		return nil
	}

	for _, c := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		fr := s.processFile(ctx, c, enc, norm)
		report.Files = append(report.Files, fr)
		if errors.Is(fr.Err, context.Canceled) || errors.Is(fr.Err, context.DeadlineExceeded) {
			return fr.Err
		}
	}
	return nil
}

func (s *Session) processFile(ctx context.Context, c discovery.CandidateFile, enc csvparser.Encoding, norm normalize.Normalizer) FileResult {
	fr := FileResult{Path: c.Path, Artifact: c.Artifact, Rationale: c.Rationale}
	s.Log.Info("processing", "artifact", c.Artifact, "file", c.Path, "match", c.Rationale)

	br, err := csvparser.LoadWithProgress(s.FS, c.Path, enc, s.Config.BatchSize, s.OnProgress)
	if err != nil {
		s.Log.Warn("cannot read file, skipping", "artifact", c.Artifact, "file", c.Path, "err", err)
		fr.Outcome, fr.Err = fault.Skip, err
		return fr
	}
	defer br.Close()
	br.Artifact = c.Artifact

	logged := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			fr.Err = err
			break
		}
		b, err := br.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.Log.Warn("read failed, skipping rest of file", "artifact", c.Artifact, "file", c.Path, "err", err)
			fr.Outcome, fr.Err = fault.Skip, err
			break
		}

		res, err := norm.Normalize(b, s.Config.InputDir)
		if err != nil {
			s.Log.Error("abandoning file", "artifact", c.Artifact, "file", c.Path, "err", err)
			fr.Outcome, fr.Err = fault.Classify(err), err
			break
		}
		for _, issue := range res.Issues {
			if logged[issue.Key()] {
				continue
			}
			logged[issue.Key()] = true
			s.Log.Warn("skipping unparseable values", "artifact", c.Artifact, "file", c.Path,
				"field", issue.Field, "cause", issue.Cause, "example", issue.Err)
		}

		s.Collector.AddRows(res.Rows...)
		fr.Rows += len(res.Rows)
		fr.Skipped += res.Skipped
		fr.Filtered += res.Filtered
	}
	fr.Malformed = br.Skipped()

	s.Log.Info("parsed", "artifact", c.Artifact, "file", c.Path, "rows", fr.Rows,
		"skipped", fr.Skipped, "filtered", fr.Filtered, "malformed", fr.Malformed)
	return fr
}

// finish applies the date window then dedup to the collected rows.
func (s *Session) finish(report *Report) {
	rows := s.Collector.Rows()
	report.Collected = len(rows)
	report.Summary = s.Collector.Summary()

	start, end := s.Config.Bounds()
	rows = filter.ByRange(rows, start, end)
	report.OutOfRange = report.Collected - len(rows)

	if !s.Config.Dedup.Disabled {
		before := len(rows)
		deduped, err := filter.Dedup(rows, s.Config.Dedup.Keys...)
		if err != nil {
			s.Log.Error("dedup skipped", "err", err)
			report.Errors = append(report.Errors, err)
		} else {
			rows = deduped
			report.Deduped = before - len(rows)
		}
	}

	report.Rows = rows
	s.Log.Info("run complete", "run", report.RunID, "collected", report.Collected,
		"out_of_range", report.OutOfRange, "deduped", report.Deduped, "rows", len(rows))
}
