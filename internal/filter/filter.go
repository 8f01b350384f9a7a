// Package filter applies the post-collection stages of a run: an inclusive
// date window, then normalized deduplication.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/model"
)

var boundLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseBound parses a user supplied range bound as UTC. An end bound given as
// a bare date is extended to the last instant of that day.
func ParseBound(s string, end bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range boundLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if end && layout == "2006-01-02" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s)
}

// ByRange keeps rows with start <= DateTime <= end. A nil bound is open.
// Rows whose DateTime does not parse are dropped.
func ByRange(rows []model.TimelineRow, start, end *time.Time) []model.TimelineRow {
	if start == nil && end == nil {
		return rows
	}
	out := make([]model.TimelineRow, 0, len(rows))
	for _, r := range rows {
		t, err := time.Parse(time.RFC3339Nano, r.DateTime)
		if err != nil {
			continue
		}
		if start != nil && t.Before(*start) {
			continue
		}
		if end != nil && t.After(*end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ValidateKeys rejects dedup keys that are not canonical column names.
func ValidateKeys(keys []string) error {
	var unknown []string
	for _, k := range keys {
		if !model.IsField(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return &fault.ConfigurationError{
			Reason: fmt.Sprintf("unknown dedup key(s): %s", strings.Join(unknown, ", ")),
		}
	}
	return nil
}

// emptyToken is what null-like values collapse to in a dedup key.
const emptyToken = ""

// normalizeValue is the per-field comparison form.
func normalizeValue(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "nan", "null", "none":
		return emptyToken
	}
	return v
}

// keyColumns returns the column names compared for the given keys, sorted so
// the key does not depend on column order.
func keyColumns(all []string, keys []string) []string {
	cols := keys
	if len(cols) == 0 {
		cols = all
	}
	out := append([]string(nil), cols...)
	sort.Strings(out)
	return out
}

func dedupKey(get func(string) string, cols []string) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(normalizeValue(get(c)))
		b.WriteByte(0x1f)
	}
	return b.String()
}

// Dedup drops rows whose normalized key was already seen, keeping the first
// occurrence. With no keys the whole row is compared.
func Dedup(rows []model.TimelineRow, keys ...string) ([]model.TimelineRow, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	cols := keyColumns(model.Fields, keys)
	seen := make(map[string]struct{}, len(rows))
	out := make([]model.TimelineRow, 0, len(rows))
	for _, r := range rows {
		m := r.Map()
		k := dedupKey(func(c string) string { return m[c] }, cols)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// DedupRecords is Dedup over raw exported records described by header.
// Columns outside the canonical set are compared too in full-row mode.
func DedupRecords(header []string, records [][]string, keys ...string) ([][]string, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := index[h]; !ok {
			index[h] = i
		}
	}
	var all []string
	for h := range index {
		all = append(all, h)
	}
	cols := keyColumns(all, keys)

	seen := make(map[string]struct{}, len(records))
	out := make([][]string, 0, len(records))
	for _, rec := range records {
		get := func(c string) string {
			i, ok := index[c]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		k := dedupKey(get, cols)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}
