package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
)

// OutputLayout is the canonical DateTime rendering. Fractional seconds are
// kept to 100ns precision and trimmed when zero.
const OutputLayout = "2006-01-02T15:04:05.9999999Z"

// timestampLayouts are tried in order. Layouts without a zone parse as UTC.
// Fractional seconds after the seconds field are accepted by every layout.
// Slash dates are always month first; there is no day-first layout.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"01/02/2006 03:04:05 PM",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

var errPlaceholderDate = errors.New("placeholder date")

// emptyValues are placeholders exporters write for "no timestamp".
var emptyValues = map[string]bool{
	"":     true,
	"nan":  true,
	"-":    true,
	"nat":  true,
	"null": true,
	"none": true,
}

// IsEmptyValue reports whether a raw cell holds no value at all.
func IsEmptyValue(s string) bool {
	return emptyValues[strings.ToLower(strings.TrimSpace(s))]
}

// ParseTimestamp parses a tool timestamp into a UTC instant.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if IsEmptyValue(s) {
		return time.Time{}, fmt.Errorf("%w: empty value", fault.ErrUnparseableTimestamp)
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// FILETIME zero and pre-epoch placeholders are not real events.
		if t.Year() <= 1601 {
			return time.Time{}, fmt.Errorf("%w: %q (%w)", fault.ErrUnparseableTimestamp, s, errPlaceholderDate)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", fault.ErrUnparseableTimestamp, s)
}

// parseCause names why raw could not be parsed.
func parseCause(err error) string {
	if errors.Is(err, errPlaceholderDate) {
		return "placeholder date"
	}
	return "unrecognized format"
}

// FormatTimestamp renders t in the canonical output layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(OutputLayout)
}

// NormalizeTimestamp parses raw and renders it canonically.
func NormalizeTimestamp(raw string) (string, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}
