// Package table holds the in-memory record table shared by every pipeline stage.
package table

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrDuplicateColumn is returned when two columns would share a name.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrUnknownColumn is returned when a named column does not exist.
	ErrUnknownColumn = errors.New("unknown column")
)

// Row is a positional slice of values aligned with the table's columns.
type Row []Value

// Table is an ordered sequence of rows over named columns.
// Stages treat a Table handed to them as read-only and return a new one.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New builds a table. Every row must have exactly one value per column.
func New(columns []string, rows []Row) (*Table, error) {
	t := &Table{columns: slices.Clone(columns)}
	if err := t.reindex(); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), len(columns))
		}
	}
	t.rows = rows
	return t, nil
}

func (t *Table) reindex() error {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		if _, ok := t.index[c]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		t.index[c] = i
	}
	return nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Row returns the i-th row. The returned slice must not be modified.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Value returns the value at row i in the named column, or missing.
func (t *Table) Value(i int, name string) Value {
	c, ok := t.index[name]
	if !ok {
		return Missing()
	}
	return t.rows[i][c]
}

// Column returns a copy of every value in the named column.
func (t *Table) Column(name string) ([]Value, error) {
	c, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[c]
	}
	return out, nil
}

// Floats returns the non-missing numbers of the named column in row order.
func (t *Table) Floats(name string) ([]float64, error) {
	c, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]float64, 0, len(t.rows))
	for _, r := range t.rows {
		if f, ok := r[c].Float(); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Clone returns a deep copy whose rows may be modified independently.
func (t *Table) Clone() *Table {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = slices.Clone(r)
	}
	c := &Table{columns: slices.Clone(t.columns), rows: rows}
	c.index = make(map[string]int, len(t.index))
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

// Rename applies fn to every column name in place. No column is added or
// removed; two names collapsing into one is an error and leaves t untouched.
func (t *Table) Rename(fn func(string) string) error {
	renamed := make([]string, len(t.columns))
	for i, c := range t.columns {
		renamed[i] = fn(c)
	}
	prev := t.columns
	t.columns = renamed
	if err := t.reindex(); err != nil {
		t.columns = prev
		t.reindex()
		return err
	}
	return nil
}

// MapColumn replaces every value of the named column with fn(value).
// The first error aborts the map and is returned with the row number.
func (t *Table) MapColumn(name string, fn func(Value) (Value, error)) error {
	c, ok := t.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	for i, r := range t.rows {
		v, err := fn(r[c])
		if err != nil {
			return fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		r[c] = v
	}
	return nil
}

// SetColumn fills the named column with fn(row), appending the column if it
// does not exist yet.
func (t *Table) SetColumn(name string, fn func(Row) Value) {
	c, ok := t.index[name]
	if !ok {
		c = len(t.columns)
		t.columns = append(t.columns, name)
		t.index[name] = c
		for i, r := range t.rows {
			t.rows[i] = append(r, Missing())
		}
	}
	for _, r := range t.rows {
		r[c] = fn(r)
	}
}

// Filter returns a new table holding the rows for which keep returns true,
// in their original order. Row values are shared with t.
func (t *Table) Filter(keep func(i int, r Row) bool) *Table {
	rows := make([]Row, 0, len(t.rows))
	for i, r := range t.rows {
		if keep(i, r) {
			rows = append(rows, r)
		}
	}
	out := &Table{columns: slices.Clone(t.columns), rows: rows}
	out.reindex()
	return out
}

// MemoryFootprint estimates the bytes held by the table.
func (t *Table) MemoryFootprint() int64 {
	var n int64
	for _, c := range t.columns {
		n += int64(len(c)) + 16
	}
	for _, r := range t.rows {
		n += 24
		for _, v := range r {
			n += v.size()
		}
	}
	return n
}
