package csvparser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// WriteRows writes timeline rows to a CSV file in model.Fields column order.
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

// EncodeRows writes the header and rows as CSV to w.
func EncodeRows(w io.Writer, rows []model.TimelineRow) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(model.Fields); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := writer.Write(r.Values()); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteRecords writes a raw header and records to a CSV file.
func WriteRecords(fs afero.Fs, path string, header []string, records [][]string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return f.Close()
}

// ReadRecords reads an exported CSV file as a header and raw records.
func ReadRecords(fs afero.Fs, path string) ([]string, [][]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(newSourceReader(f, UTF8))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// ReadRows reads an exported timeline CSV back into rows. Columns are
// matched by header name; unknown columns are ignored.
func ReadRows(fs afero.Fs, path string) ([]model.TimelineRow, error) {
	header, records, err := ReadRecords(fs, path)
	if err != nil {
		return nil, err
	}

	rows := make([]model.TimelineRow, 0, len(records))
	for _, rec := range records {
		var r model.TimelineRow
		for i, name := range header {
			r.Set(name, safeIndex(rec, i))
		}
		rows = append(rows, r)
	}
	return rows, nil
}
