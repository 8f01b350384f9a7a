// Package csvparser streams tool CSV exports as row batches and writes the
// fused timeline back out as CSV.
package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
)

// DefaultBatchSize is the number of rows per batch for large files.
const DefaultBatchSize = 10000

// Batch is a chunk of raw rows from one source file.
type Batch struct {
	Header     []string
	Rows       [][]string
	SourcePath string
	Artifact   string
	Index      int
	// Skipped counts malformed lines dropped while reading this batch.
	Skipped int

	columns map[string]int
}

// Column returns the index of a header column, matched case-insensitively.
func (b *Batch) Column(name string) (int, bool) {
	if b.columns == nil {
		b.columns = make(map[string]int, len(b.Header))
		for i, h := range b.Header {
			key := strings.ToLower(strings.TrimSpace(h))
			if _, dup := b.columns[key]; !dup {
				b.columns[key] = i
			}
		}
	}
	i, ok := b.columns[strings.ToLower(strings.TrimSpace(name))]
	return i, ok
}

// Value returns the named column of a row, or "" when absent.
func (b *Batch) Value(row []string, name string) string {
	i, ok := b.Column(name)
	if !ok {
		return ""
	}
	return safeIndex(row, i)
}

// Progress describes a completed batch of a chunked read.
type Progress struct {
	File    string
	Batch   int
	Batches int
	Rows    int
	Total   int
}

// BatchReader yields the batches of one file. It is finite and not
// restartable; open a new reader to read the file again.
type BatchReader struct {
	// Artifact is copied into every batch.
	Artifact string

	path       string
	file       afero.File
	reader     *csv.Reader
	header     []string
	batchSize  int
	total      int
	chunked    bool
	index      int
	rows       int
	skipped    int
	done       bool
	onProgress func(Progress)
}

// CountRows counts the data lines of a file, header excluded.
func CountRows(fs afero.Fs, path string) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, &fault.FileAccessError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	lines := 0
	sawData := false
	for {
		chunk, err := r.ReadSlice('\n')
		if len(chunk) > 0 {
			sawData = true
			if chunk[len(chunk)-1] == '\n' {
				lines++
				sawData = false
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, &fault.FileAccessError{Path: path, Op: "count lines", Err: err}
		}
	}
	if sawData {
		lines++
	}
	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil
}

// LoadWithProgress opens a file for batched reading, decoding it from enc
// (UTF-8 when empty). When the file holds more data rows than batchSize it
// is read in batchSize chunks and onProgress is called after each one;
// otherwise the whole file is a single batch. onProgress may be nil.
func LoadWithProgress(fs afero.Fs, path string, enc Encoding, batchSize int, onProgress func(Progress)) (*BatchReader, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	total, err := CountRows(fs, path)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, &fault.FileAccessError{Path: path, Op: "open", Err: err}
	}

	reader := csv.NewReader(newSourceReader(f, enc))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = 0 // fixed to the header width

	br := &BatchReader{
		path:       path,
		file:       f,
		reader:     reader,
		batchSize:  batchSize,
		total:      total,
		chunked:    total > batchSize,
		onProgress: onProgress,
	}

	header, err := reader.Read()
	if err == io.EOF {
		br.finish()
		return br, nil
	}
	if err != nil {
		br.finish()
		return nil, &fault.FileAccessError{Path: path, Op: "read header", Err: err}
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}
	br.header = header

	return br, nil
}

// Header returns the file's header row.
func (br *BatchReader) Header() []string { return br.header }

// Total returns the counted number of data lines.
func (br *BatchReader) Total() int { return br.total }

// Chunked reports whether the file is read in more than one batch.
func (br *BatchReader) Chunked() bool { return br.chunked }

// Skipped returns the number of malformed lines dropped so far.
func (br *BatchReader) Skipped() int { return br.skipped }

// Batches returns the expected number of batches.
func (br *BatchReader) Batches() int {
	if !br.chunked {
		return 1
	}
	return (br.total + br.batchSize - 1) / br.batchSize
}

// Next returns the next batch, or io.EOF when the file is exhausted.
// The file is closed once EOF or an error is returned.
func (br *BatchReader) Next() (*Batch, error) {
	if br.done {
		return nil, io.EOF
	}

	b := &Batch{
		Header:     br.header,
		SourcePath: br.path,
		Artifact:   br.Artifact,
		Index:      br.index,
	}

	for !br.chunked || len(b.Rows) < br.batchSize {
		rec, err := br.reader.Read()
		if err == io.EOF {
			br.finish()
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				b.Skipped++
				br.skipped++
				continue
			}
			br.finish()
			return nil, &fault.FileAccessError{Path: br.path, Op: "read", Err: err}
		}
		b.Rows = append(b.Rows, rec)
	}

	if len(b.Rows) == 0 && br.done {
		return nil, io.EOF
	}

	br.index++
	br.rows += len(b.Rows)
	if br.chunked && br.onProgress != nil {
		br.onProgress(Progress{
			File:    br.path,
			Batch:   br.index,
			Batches: br.Batches(),
			Rows:    br.rows,
			Total:   br.total,
		})
	}
	return b, nil
}

// Close releases the file. It is safe to call more than once.
func (br *BatchReader) Close() error {
	if br.file == nil {
		return nil
	}
	err := br.file.Close()
	br.file = nil
	return err
}

func (br *BatchReader) finish() {
	br.done = true
	br.Close()
}

// safeIndex returns the value at index i, or empty string if out of bounds.
func safeIndex(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
