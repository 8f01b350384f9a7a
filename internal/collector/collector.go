// Package collector accumulates normalized rows for one run.
package collector

import (
	"sort"
	"strings"
	"sync"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// Sanitize cleans one exported value: missing and "nan" become empty,
// embedded line breaks become spaces, and surrounding whitespace is trimmed.
func Sanitize(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), "nan") {
		return ""
	}
	value = strings.ReplaceAll(value, "\r\n", " ")
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	return strings.TrimSpace(value)
}

// Count is the number of rows one tool/artifact pair contributed.
type Count struct {
	Tool     string
	Artifact string
	Rows     int
}

// Collector is an append-only row buffer owned by a single session.
type Collector struct {
	mu     sync.Mutex
	rows   []model.TimelineRow
	counts map[[2]string]int
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{counts: make(map[[2]string]int)}
}

// AddRows sanitizes and appends rows in order.
func (c *Collector) AddRows(rows ...model.TimelineRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rows {
		r.Apply(Sanitize)
		c.rows = append(c.rows, r)
		c.counts[[2]string{r.Tool, r.ArtifactName}]++
	}
}

// Rows returns a copy of the collected rows.
func (c *Collector) Rows() []model.TimelineRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.TimelineRow, len(c.rows))
	copy(out, c.rows)
	return out
}

// Len returns the number of collected rows.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// Reset clears all rows and counts.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.counts = make(map[[2]string]int)
}

// Summary returns per tool/artifact row counts sorted by tool then artifact.
func (c *Collector) Summary() []Count {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Count, 0, len(c.counts))
	for k, n := range c.counts {
		out = append(out, Count{Tool: k[0], Artifact: k[1], Rows: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].Artifact < out[j].Artifact
	})
	return out
}
