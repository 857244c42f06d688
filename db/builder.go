// Package db — builder.go
// A small accumulator for dynamically assembled SELECT statements. The
// classic failure mode of dynamic SQL is building the clause list and the
// parameter list in separate passes and zipping them afterwards; here a
// predicate and its bound value are appended in one call and the builder
// owns placeholder numbering, so a positional mismatch cannot be expressed.
package db

import (
	"fmt"
	"strings"
)

// SelectBuilder assembles one SELECT statement and its ordered parameter
// list. Predicates appear in the statement in append order, which makes the
// generated SQL deterministic for a given call sequence. The zero value is
// not usable; start with NewSelect.
type SelectBuilder struct {
	columns string
	table   string
	conds   []string
	args    []any
	orderBy string
	limit   *int
	offset  *int
}

// NewSelect starts a builder selecting columns from table.
func NewSelect(columns, table string) *SelectBuilder {
	return &SelectBuilder{columns: columns, table: table}
}

// Where appends one predicate and its bound value as a single step.
// op is a comparison operator such as "=", "<>", ">=" or "LIKE".
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.conds = append(b.conds, fmt.Sprintf("%s %s $%d", column, op, len(b.args)+1))
	b.args = append(b.args, value)
	return b
}

// OrderBy sets the ORDER BY expression, e.g. "id ASC".
func (b *SelectBuilder) OrderBy(expr string) *SelectBuilder {
	b.orderBy = expr
	return b
}

// Paginate applies LIMIT/OFFSET for a zero-based page of the given size.
func (b *SelectBuilder) Paginate(page, size int) *SelectBuilder {
	limit := size
	offset := page * size
	b.limit = &limit
	b.offset = &offset
	return b
}

// Build renders the statement and returns it with the parameter list, whose
// order matches placeholder order by construction.
func (b *SelectBuilder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.columns)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	if len(b.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conds, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}

	// The returned slice must not share backing storage with b.args, or a
	// later Where or Build on the same builder could clobber it.
	args := make([]any, len(b.args), len(b.args)+2)
	copy(args, b.args)
	if b.limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)+1))
		args = append(args, *b.limit)
	}
	if b.offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)+1))
		args = append(args, *b.offset)
	}
	return sb.String(), args
}
