// Package table implements the immutable, column-typed in-memory table the
// dashboard pipeline filters and aggregates.
package table

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNoColumns       = errors.New("table has no columns")
	ErrLengthMismatch  = errors.New("columns have different lengths")
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// RowError reports a record with more fields than the header.
type RowError struct {
	Row      int
	Fields   int
	Expected int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d has %d fields, header has %d", e.Row, e.Fields, e.Expected)
}

// Table is an ordered set of rows over named, ordered columns. A Table is
// never mutated after construction; every narrowing returns a new Table.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New assembles a table from columns of equal length.
func New(columns ...*Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	t := &Table{
		columns: columns,
		index:   make(map[string]int, len(columns)),
		rows:    columns[0].Len(),
	}
	for i, c := range columns {
		if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, expected %d", ErrLengthMismatch, c.name, c.Len(), t.rows)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.name)
		}
		t.index[c.name] = i
	}
	return t, nil
}

// FromRecords builds a table from a header and text records. Short records
// are padded with empty cells; longer ones are rejected. Blank or repeated
// header names are made unique.
func FromRecords(header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrNoColumns
	}
	names := UniqueNames(header)

	cells := make([][]string, len(names))
	for j := range cells {
		cells[j] = make([]string, len(records))
	}
	for i, rec := range records {
		if len(rec) > len(names) {
			return nil, &RowError{Row: i + 1, Fields: len(rec), Expected: len(names)}
		}
		for j := range rec {
			cells[j][i] = rec[j]
		}
	}

	columns := make([]*Column, len(names))
	for j, name := range names {
		columns[j] = NewColumn(name, cells[j])
	}
	return New(columns...)
}

// UniqueNames trims header names, names blank ones "Unnamed: i" and suffixes
// repeats with ".1", ".2" and so on.
func UniqueNames(header []string) []string {
	names := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	next := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if taken[name] {
			base := name
			for taken[name] {
				next[base]++
				name = base + "." + strconv.Itoa(next[base])
			}
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the columns in order. Callers must not modify the slice.
func (t *Table) Columns() []*Column { return t.columns }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether every named column is present.
func (t *Table) Has(names ...string) bool {
	return len(t.Missing(names...)) == 0
}

// Missing returns the named columns that are absent, in argument order.
func (t *Table) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.values[i]
	}
	return row
}

// Select returns a new table holding the given rows in the given order.
func (t *Table) Select(indices []int) *Table {
	columns := make([]*Column, len(t.columns))
	for j, c := range t.columns {
		columns[j] = c.selectRows(indices)
	}
	return &Table{columns: columns, index: t.index, rows: len(indices)}
}

// Slice returns rows [from, to) clamped to the table bounds.
func (t *Table) Slice(from, to int) *Table {
	from = max(0, min(from, t.rows))
	to = max(from, min(to, t.rows))
	indices := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		indices = append(indices, i)
	}
	return t.Select(indices)
}

// SortedBy returns the table stably sorted on the named column with nulls
// last. An absent column returns the table unchanged.
func (t *Table) SortedBy(name string, desc bool) *Table {
	order, ok := t.Order(name, desc)
	if !ok {
		return t
	}
	return t.Select(order)
}

// Order returns the row permutation SortedBy would apply.
func (t *Table) Order(name string, desc bool) ([]int, bool) {
	c, ok := t.Column(name)
	if !ok {
		return nil, false
	}
	order := make([]int, t.rows)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := c.values[order[a]], c.values[order[b]]
		switch {
		case va.IsNull():
			return false
		case vb.IsNull():
			return true
		case desc:
			return Compare(va, vb) > 0
		default:
			return Compare(va, vb) < 0
		}
	})
	return order, true
}

// Records returns every row as raw text, header excluded.
func (t *Table) Records() [][]string {
	out := make([][]string, t.rows)
	for i := range out {
		rec := make([]string, len(t.columns))
		for j, c := range t.columns {
			rec[j] = c.values[i].raw
		}
		out[i] = rec
	}
	return out
}
