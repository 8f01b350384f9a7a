// Package query builds parameterized SELECT statements over the timeline store.
package query

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// Table is the timeline table queried by Build.
const Table = "timeline"

// Logic determines how multiple predicates are combined.
type Logic int

const (
	AND Logic = iota
	OR
)

// Operator represents a SQL comparison operator.
type Operator string

const (
	Equal          Operator = "="
	NotEqual       Operator = "!="
	Like           Operator = "LIKE"
	NotLike        Operator = "NOT LIKE"
	GreaterOrEqual Operator = ">="
	LessOrEqual    Operator = "<="
)

// validOperators is the set of allowed operators for validation.
var validOperators = map[Operator]bool{
	Equal: true, NotEqual: true, Like: true, NotLike: true,
	GreaterOrEqual: true, LessOrEqual: true,
}

// ParseOperator maps a textual operator ("=", "like", ...) to an Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToUpper(strings.TrimSpace(s)))
	if !validOperators[op] {
		return "", fmt.Errorf("invalid operator: %s", s)
	}
	return op, nil
}

// Predicate represents a single filter condition or a composite of conditions.
// Predicates use parameterized values to prevent SQL injection.
type Predicate struct {
	kind  predicateKind
	field string
	op    Operator
	value string
	date1 string
	date2 string
	left  *Predicate
	right *Predicate
	logic Logic
}

type predicateKind int

const (
	predNone predicateKind = iota
	predSimple
	predDate
	predRun
	predComposite
)

// Simple creates a predicate that compares a canonical field to a value.
// Returns nil if the field name is invalid or the operator is unrecognized.
func Simple(field string, op Operator, value string) *Predicate {
	if !model.IsField(field) || !validOperators[op] {
		return nil
	}
	return &Predicate{
		kind:  predSimple,
		field: field,
		op:    op,
		value: value,
	}
}

// DateRange creates a predicate keeping rows whose DateTime lies between two
// ISO-8601 instants (inclusive). Either bound may be empty for an open range.
func DateRange(date1, date2 string) *Predicate {
	if date1 == "" && date2 == "" {
		return nil
	}
	return &Predicate{
		kind:  predDate,
		date1: date1,
		date2: date2,
	}
}

// Run creates a predicate selecting the rows exported by one run.
func Run(runID string) *Predicate {
	if runID == "" {
		return nil
	}
	return &Predicate{kind: predRun, value: runID}
}

// Combine folds preds into a left-leaning tree joined by logic. Nil entries
// are dropped; it returns nil when nothing is left and the predicate itself
// when only one is.
func Combine(preds []*Predicate, logic Logic) *Predicate {
	kept := lo.Compact(preds)
	if len(kept) == 0 {
		return nil
	}
	return lo.Reduce(kept[1:], func(acc *Predicate, p *Predicate, _ int) *Predicate {
		return &Predicate{kind: predComposite, left: acc, right: p, logic: logic}
	}, kept[0])
}

// WhereClause returns the SQL WHERE fragment with "?" placeholders and its
// parameter values. Columns are quoted for d.
// For example: "(artifact_name = ?)", []any{"Prefetch"}
func (p *Predicate) WhereClause(d QueryDialect) (string, []any) {
	if p == nil {
		return "", nil
	}
	if d == nil {
		d = DefaultDialect
	}

	switch p.kind {
	case predSimple:
		col := d.QuoteColumn(model.Column(p.field))
		if p.op == Like || p.op == NotLike {
			return fmt.Sprintf("(%s %s ?)", col, p.op), []any{"%" + p.value + "%"}
		}
		return fmt.Sprintf("(%s %s ?)", col, p.op), []any{p.value}

	case predDate:
		col := d.QuoteColumn(model.Column("DateTime"))
		switch {
		case p.date1 == "":
			return fmt.Sprintf("(%s <= ?)", col), []any{p.date2}
		case p.date2 == "":
			return fmt.Sprintf("(%s >= ?)", col), []any{p.date1}
		default:
			return fmt.Sprintf("(%s BETWEEN ? AND ?)", col), []any{p.date1, p.date2}
		}

	case predRun:
		return "(run_id = ?)", []any{p.value}

	case predComposite:
		leftSQL, leftArgs := p.left.WhereClause(d)
		rightSQL, rightArgs := p.right.WhereClause(d)

		if leftSQL == "" && rightSQL == "" {
			return "", nil
		}
		if leftSQL == "" {
			return rightSQL, rightArgs
		}
		if rightSQL == "" {
			return leftSQL, leftArgs
		}

		logicStr := "AND"
		if p.logic == OR {
			logicStr = "OR"
		}
		return fmt.Sprintf("(%s %s %s)", leftSQL, logicStr, rightSQL), append(leftArgs, rightArgs...)

	default:
		return "", nil
	}
}

// Fields returns the canonical field names referenced by this predicate tree.
func (p *Predicate) Fields() []string {
	if p == nil {
		return nil
	}

	switch p.kind {
	case predSimple:
		return []string{p.field}
	case predDate:
		return []string{"DateTime"}
	case predComposite:
		return lo.Uniq(append(p.left.Fields(), p.right.Fields()...))
	default:
		return nil
	}
}

// Query builds a full SELECT statement from predicates, ordering, and pagination.
type Query struct {
	dialect    QueryDialect
	predicates []*Predicate
	logic      Logic
	orderBy    string
	descending bool
	pageSize   int
	page       int
}

// New creates a new Query with the given page size.
// Pass 0 for no pagination.
func New(pageSize int) *Query {
	return &Query{
		dialect:  DefaultDialect,
		logic:    AND,
		pageSize: pageSize,
		page:     1,
	}
}

// SetDialect switches the SQL flavor. A nil dialect restores the default.
func (q *Query) SetDialect(d QueryDialect) {
	if d == nil {
		d = DefaultDialect
	}
	q.dialect = d
}

// SetLogic sets how top-level predicates are combined (AND or OR).
func (q *Query) SetLogic(logic Logic) {
	q.logic = logic
}

// AddPredicate appends a predicate to the query. Nil predicates are ignored.
func (q *Query) AddPredicate(p *Predicate) {
	if p != nil {
		q.predicates = append(q.predicates, p)
	}
}

// ClearPredicates removes all predicates from the query.
func (q *Query) ClearPredicates() {
	q.predicates = nil
}

// OrderBy sets the canonical field to sort results by.
// Pass an empty string to clear ordering.
// Returns an error if the field name is not valid.
func (q *Query) OrderBy(field string, descending bool) error {
	if field == "" {
		q.orderBy = ""
		q.descending = false
		return nil
	}
	if !model.IsField(field) {
		return fmt.Errorf("invalid order by field: %s", field)
	}
	q.orderBy = field
	q.descending = descending
	return nil
}

// SetPage sets the current page number (1-based).
func (q *Query) SetPage(page int) {
	if page >= 1 {
		q.page = page
	}
}

// PageNumber returns the current page number (1-based).
func (q *Query) PageNumber() int {
	return q.page
}

func (q *Query) selectList() string {
	cols := lo.Map(model.Fields, func(f string, _ int) string { return q.dialect.QuoteColumn(model.Column(f)) })
	return q.dialect.IDColumn() + ", " + strings.Join(cols, ", ")
}

func (q *Query) where() (string, []any) {
	combined := Combine(q.predicates, q.logic)
	sql, args := combined.WhereClause(q.dialect)
	if sql == "" {
		return "", nil
	}
	return " WHERE " + sql, args
}

// Build generates the full SQL SELECT statement and its parameter values.
// The SELECT list is the id column followed by model.Fields.
func (q *Query) Build() (string, []any) {
	where, args := q.where()
	sql := "SELECT " + q.selectList() + " FROM " + Table + where

	if q.orderBy != "" {
		sql += " ORDER BY " + q.dialect.QuoteColumn(model.Column(q.orderBy))
		if q.descending {
			sql += " DESC"
		}
	} else {
		sql += " ORDER BY " + q.dialect.IDColumn()
	}

	if q.pageSize > 0 {
		offset := q.pageSize * (q.page - 1)
		sql += fmt.Sprintf(" LIMIT %d OFFSET %d", q.pageSize, offset)
	}

	return Rebind(q.dialect, sql), args
}

// BuildCount generates a COUNT query using the same predicates.
func (q *Query) BuildCount() (string, []any) {
	where, args := q.where()
	sql := "SELECT COUNT(" + q.dialect.IDColumn() + ") FROM " + Table + where
	return Rebind(q.dialect, sql), args
}

// PredicateFields returns all field names referenced across all predicates.
func (q *Query) PredicateFields() []string {
	return Combine(q.predicates, AND).Fields()
}
