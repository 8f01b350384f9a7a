package normalize

import (
	"fmt"
	"strings"

	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// stamp is one timestamp the artifact emits. The first listed column whose
// value parses supplies it.
type stamp struct {
	columns []string
	label   string
}

func ts(label string, columns ...string) stamp {
	return stamp{columns: columns, label: label}
}

// column fills one canonical field from the first non-empty source column,
// falling back to value.
type column struct {
	field   string
	sources []string
	value   string
}

func col(field string, sources ...string) column {
	return column{field: field, sources: sources}
}

func literal(field, value string) column {
	return column{field: field, value: value}
}

func (c column) or(value string) column {
	c.value = value
	return c
}

// table is a declarative normalizer: timestamp columns fan out into rows,
// field columns are copied onto every row of the same record.
type table struct {
	artifact string
	tool     string
	// name is the ArtifactName written to rows; defaults to artifact.
	name     string
	stamps   []stamp
	required []string
	fields   []column
	enrich   func(r *model.TimelineRow)
	keep     func(r *model.TimelineRow) bool
}

func (t *table) Artifact() string { return t.artifact }

func (t *table) Tool() string { return t.tool }

func (t *table) artifactName() string {
	if t.name != "" {
		return t.name
	}
	return t.artifact
}

// binding is a table resolved against one batch header.
type binding struct {
	stamps []boundStamp
	fields []boundColumn
}

type boundStamp struct {
	label   string
	columns []string
	index   []int
}

type boundColumn struct {
	field string
	index []int
	value string
}

// bind resolves column names to header indices. It reports the columns the
// batch cannot do without.
func (t *table) bind(b *csvparser.Batch) (*binding, []string) {
	bd := &binding{}
	var missing []string

	for _, name := range t.required {
		if _, ok := b.Column(name); !ok {
			missing = append(missing, name)
		}
	}

	anyStamp := false
	var stampNames []string
	for _, s := range t.stamps {
		bs := boundStamp{label: s.label}
		for _, name := range s.columns {
			stampNames = append(stampNames, name)
			if i, ok := b.Column(name); ok {
				bs.index = append(bs.index, i)
				bs.columns = append(bs.columns, name)
			}
		}
		if len(bs.index) > 0 {
			anyStamp = true
			bd.stamps = append(bd.stamps, bs)
		}
	}
	if !anyStamp {
		missing = append(missing, strings.Join(stampNames, "|"))
	}

	for _, c := range t.fields {
		bc := boundColumn{field: c.field, value: c.value}
		for _, name := range c.sources {
			if i, ok := b.Column(name); ok {
				bc.index = append(bc.index, i)
			}
		}
		bd.fields = append(bd.fields, bc)
	}
	return bd, missing
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func firstValue(row []string, index []int) (string, int) {
	for n, i := range index {
		if v := cell(row, i); !IsEmptyValue(v) {
			return v, n
		}
	}
	return "", -1
}

// parse returns the first parseable value among the stamp's populated
// columns. When none parses it reports the first failure; n is -1 when every
// column is empty.
func (bs boundStamp) parse(row []string) (when string, n int, err error) {
	n = -1
	var firstErr error
	for k, i := range bs.index {
		v := cell(row, i)
		if IsEmptyValue(v) {
			continue
		}
		if n < 0 {
			n = k
		}
		ts, perr := NormalizeTimestamp(v)
		if perr == nil {
			return ts, k, nil
		}
		if firstErr == nil {
			firstErr = perr
		}
	}
	return "", n, firstErr
}

func (t *table) Normalize(b *csvparser.Batch, scanRoot string) (*Result, error) {
	bd, missing := t.bind(b)
	if len(missing) > 0 {
		return nil, &fault.SchemaError{Path: b.SourcePath, Artifact: t.artifact, Missing: missing}
	}

	res := &Result{}
	evidence := EvidencePath(b.SourcePath, scanRoot)

	for _, row := range b.Rows {
		base := model.TimelineRow{
			ArtifactName: t.artifactName(),
			Tool:         t.tool,
			EvidencePath: evidence,
		}
		for _, bc := range bd.fields {
			v, _ := firstValue(row, bc.index)
			if v == "" {
				v = bc.value
			}
			if v != "" {
				base.Set(bc.field, v)
			}
		}
		if t.enrich != nil {
			t.enrich(&base)
		}
		if t.keep != nil && !t.keep(&base) {
			res.Filtered++
			continue
		}

		for _, bs := range bd.stamps {
			when, n, err := bs.parse(row)
			if n < 0 {
				continue
			}
			if err != nil {
				res.Skipped++
				res.issue(&fault.ParseError{
					Path:  b.SourcePath,
					Field: bs.columns[n],
					Cause: parseCause(err),
					Err:   err,
				})
				continue
			}
			out := base
			out.DateTime = when
			out.TimestampInfo = bs.label
			res.Rows = append(res.Rows, out)
		}
	}
	return res, nil
}

func (t *table) String() string {
	return fmt.Sprintf("%s/%s", t.tool, t.artifact)
}
