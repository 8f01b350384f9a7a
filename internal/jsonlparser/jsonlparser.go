package jsonlparser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// ReadResult contains the outcome of a JSONL timeline read.
type ReadResult struct {
	Rows     []model.TimelineRow
	Count    int
	Excluded int
}

// ValidateFile checks if a file looks like an exported JSONL timeline by reading the first line.
func ValidateFile(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	if !scanner.Scan() {
		return fmt.Errorf("empty file")
	}

	line := strings.TrimSpace(scanner.Text())
	if len(line) == 0 || line[0] != '{' {
		return fmt.Errorf("first line is not a JSON object")
	}
	if !gjson.Valid(line) {
		return fmt.Errorf("first line is not valid JSON")
	}

	parsed := gjson.Parse(line)
	if !parsed.Get("DateTime").Exists() {
		return fmt.Errorf("no DateTime field found; does not appear to be a timeline export")
	}
	if !parsed.Get("Tool").Exists() && !parsed.Get("ArtifactName").Exists() {
		return fmt.Errorf("no Tool or ArtifactName field found; does not appear to be a timeline export")
	}

	return nil
}

// WriteRows writes one JSON object per row. Keys use the canonical column names.
func WriteRows(fs afero.Fs, path string, rows []model.TimelineRow) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if err := EncodeRows(f, rows); err != nil {
		return err
	}
	return f.Close()
}

// EncodeRows writes rows as JSON lines to w.
func EncodeRows(w io.Writer, rows []model.TimelineRow) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

// ReadRows reads all rows from a JSONL timeline. Lines that are not JSON
// objects are counted as excluded. An onProgress callback is called every
// 10,000 rows if non-nil.
func ReadRows(fs afero.Fs, path string, onProgress func(count int)) (*ReadResult, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Allow up to 10MB per line
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)

	result := &ReadResult{}
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !gjson.Valid(line) || !gjson.Parse(line).IsObject() {
			result.Excluded++
			continue
		}

		result.Rows = append(result.Rows, mapToRow(line))
		result.Count++

		if onProgress != nil && result.Count%10000 == 0 {
			onProgress(result.Count)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file at line %d: %w", lineNum, err)
	}

	return result, nil
}

// mapToRow picks the canonical columns out of one JSON object. Numbers and
// booleans are rendered as their JSON text; missing keys stay empty.
func mapToRow(line string) model.TimelineRow {
	values := gjson.GetMany(line, model.Fields...)
	var r model.TimelineRow
	for i, name := range model.Fields {
		v := values[i]
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		r.Set(name, v.String())
	}
	return r
}
