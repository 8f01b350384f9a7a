package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/jsonlparser"
	"github.com/cdtdelta/4n6timeliner/internal/tlnparser"
)

// DedupFile removes duplicates from an exported CSV, JSONL or TLN timeline in
// place and returns the number of rows removed. The rewrite goes to a
// sibling temp file that replaces the original only on success.
func DedupFile(fs afero.Fs, path, format string, keys ...string) (int, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	if err := ValidateKeys(keys); err != nil {
		return 0, err
	}

	tmp := path + ".dedup.tmp"
	var removed int
	var err error
	switch format {
	case "csv":
		removed, err = dedupCSV(fs, path, tmp, keys)
	case "jsonl", "json":
		removed, err = dedupJSONL(fs, path, tmp, keys)
	case "tln", "l2ttln":
		removed, err = dedupTLN(fs, path, tmp, keys)
	default:
		return 0, fmt.Errorf("post-export dedup does not support %q output", format)
	}
	if err != nil {
		fs.Remove(tmp)
		return 0, err
	}
	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)
		return 0, fmt.Errorf("replacing %s: %w", path, err)
	}
	return removed, nil
}

func dedupCSV(fs afero.Fs, path, tmp string, keys []string) (int, error) {
	header, records, err := csvparser.ReadRecords(fs, path)
	if err != nil {
		return 0, err
	}
	kept, err := DedupRecords(header, records, keys...)
	if err != nil {
		return 0, err
	}
	if err := csvparser.WriteRecords(fs, tmp, header, kept); err != nil {
		return 0, err
	}
	return len(records) - len(kept), nil
}

func dedupJSONL(fs afero.Fs, path, tmp string, keys []string) (int, error) {
	if err := jsonlparser.ValidateFile(fs, path); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	result, err := jsonlparser.ReadRows(fs, path, nil)
	if err != nil {
		return 0, err
	}
	kept, err := Dedup(result.Rows, keys...)
	if err != nil {
		return 0, err
	}
	if err := jsonlparser.WriteRows(fs, tmp, kept); err != nil {
		return 0, err
	}
	return len(result.Rows) - len(kept), nil
}

// dedupTLN rewrites the file in the layout it was read in. Columns TLN does
// not carry take no part in the comparison.
func dedupTLN(fs afero.Fs, path, tmp string, keys []string) (int, error) {
	if err := tlnparser.ValidateFile(fs, path); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	result, err := tlnparser.ReadRows(fs, path, nil)
	if err != nil {
		return 0, err
	}
	kept, err := Dedup(result.Rows, keys...)
	if err != nil {
		return 0, err
	}
	if _, err := tlnparser.WriteRows(fs, tmp, kept, result.Format); err != nil {
		return 0, err
	}
	return len(result.Rows) - len(kept), nil
}
