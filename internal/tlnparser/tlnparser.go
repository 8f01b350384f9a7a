package tlnparser

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// Format selects the pipe-delimited layout.
type Format string

const (
	TLN    Format = "TLN"    // Time|Source|Host|User|Description
	L2TTLN Format = "L2TTLN" // Time|Source|Host|User|Description|TZ|Notes
)

const (
	tlnHeader    = "Time|Source|Host|User|Description"
	l2ttlnHeader = "Time|Source|Host|User|Description|TZ|Notes"

	// descSep joins ArtifactName, TimestampInfo and Description in the
	// Description column.
	descSep = " - "

	dateLayout = "2006-01-02T15:04:05Z"
)

// ReadResult contains the outcome of a TLN read.
type ReadResult struct {
	Rows     []model.TimelineRow
	Count    int
	Excluded int
	Format   Format
}

// WriteResult contains the outcome of a TLN export.
type WriteResult struct {
	Written int
	// Skipped counts rows whose DateTime has no epoch representation.
	Skipped int
}

// ValidateFile checks if a file is a valid TLN or L2TTLN file.
// Returns an error if the file cannot be parsed.
func ValidateFile(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return fmt.Errorf("empty file")
	}

	header := strings.TrimSpace(scanner.Text())
	if header == l2ttlnHeader || header == tlnHeader {
		return nil
	}

	// Check if first line looks like data (no header)
	parts := strings.Split(header, "|")
	if len(parts) == 5 || len(parts) == 7 {
		if _, err := strconv.ParseInt(parts[0], 10, 64); err == nil {
			return nil
		}
	}

	return fmt.Errorf("not a valid TLN/L2TTLN file: expected 5 or 7 pipe-delimited fields, got %d", len(parts))
}

// WriteRows exports rows as TLN or L2TTLN with a header line.
func WriteRows(fs afero.Fs, path string, rows []model.TimelineRow, format Format) (*WriteResult, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := tlnHeader
	if format == L2TTLN {
		header = l2ttlnHeader
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	result := &WriteResult{}
	for _, r := range rows {
		line, ok := formatLine(r, format)
		if !ok {
			result.Skipped++
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", result.Written+1, err)
		}
		result.Written++
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flushing: %w", err)
	}
	return result, f.Close()
}

// formatLine renders one row. Pipes inside values would shift columns, so
// they are replaced with slashes.
func formatLine(r model.TimelineRow, format Format) (string, bool) {
	t, err := time.Parse(time.RFC3339Nano, r.DateTime)
	if err != nil {
		return "", false
	}

	desc := strings.Join([]string{r.ArtifactName, r.TimestampInfo, r.Description}, descSep)
	parts := []string{
		strconv.FormatInt(t.Unix(), 10),
		clean(r.Tool),
		clean(r.Computer),
		clean(r.User),
		clean(desc),
	}
	if format == L2TTLN {
		notes := "-"
		if r.DataPath != "" {
			notes = "File: " + clean(r.DataPath)
		}
		parts = append(parts, "UTC", notes)
	}
	return strings.Join(parts, "|"), true
}

func clean(s string) string {
	return strings.ReplaceAll(s, "|", "/")
}

// ReadRows reads rows from a TLN or L2TTLN file.
// Auto-detects the format based on header or field count.
func ReadRows(fs afero.Fs, path string, onProgress func(int)) (*ReadResult, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Increase buffer for potentially long description lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	result := &ReadResult{}
	lineNum := 0
	fieldCount := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++

		if line == "" {
			continue
		}

		// Detect format from first line
		if fieldCount == 0 {
			switch line {
			case l2ttlnHeader:
				result.Format, fieldCount = L2TTLN, 7
				continue
			case tlnHeader:
				result.Format, fieldCount = TLN, 5
				continue
			}

			// No header, detect from field count
			switch n := len(strings.Split(line, "|")); n {
			case 7:
				result.Format, fieldCount = L2TTLN, 7
			case 5:
				result.Format, fieldCount = TLN, 5
			default:
				return nil, fmt.Errorf("line %d: expected 5 or 7 pipe-delimited fields, got %d", lineNum, n)
			}
		}

		parts := strings.SplitN(line, "|", fieldCount)
		// Tolerate short lines by padding
		for len(parts) < fieldCount {
			parts = append(parts, "")
		}

		row, err := parseLine(parts, fieldCount)
		if err != nil {
			result.Excluded++
			continue
		}

		result.Rows = append(result.Rows, row)
		result.Count++

		if onProgress != nil && result.Count%10000 == 0 {
			onProgress(result.Count)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	return result, nil
}

// parseLine parses a single TLN or L2TTLN line into a row.
func parseLine(parts []string, fieldCount int) (model.TimelineRow, error) {
	var r model.TimelineRow

	epoch, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || epoch <= 0 {
		return r, fmt.Errorf("invalid timestamp: %s", parts[0])
	}
	r.DateTime = time.Unix(epoch, 0).UTC().Format(dateLayout)

	r.Tool = strings.TrimSpace(parts[1])
	r.Computer = strings.TrimSpace(parts[2])
	r.User = strings.TrimSpace(parts[3])

	// Description is "ArtifactName - TimestampInfo - Description" when written here
	desc := strings.TrimSpace(parts[4])
	if descParts := strings.SplitN(desc, descSep, 3); len(descParts) == 3 {
		r.ArtifactName = descParts[0]
		r.TimestampInfo = descParts[1]
		r.Description = descParts[2]
	} else {
		r.Description = desc
	}

	if fieldCount == 7 {
		notes := strings.TrimSpace(parts[6])
		if strings.HasPrefix(notes, "File: ") {
			r.DataPath = strings.TrimPrefix(notes, "File: ")
		}
	}

	return r, nil
}
