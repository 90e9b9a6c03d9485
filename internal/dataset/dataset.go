// Package dataset holds the in-memory tabular model that the cleaning engine
// operates on, plus CSV ingestion and serialization helpers.
//
// A Dataset has a fixed, ordered column set and an ordered list of rows.
// Every transformation returns a new Dataset; rows are never mutated in
// place, so a Dataset may be profiled any number of times and handed to
// other goroutines once a pipeline run is done with it.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Row is one record, positionally aligned with the dataset's columns.
type Row []Value

// IsEmpty reports whether every cell in the row is null.
func (r Row) IsEmpty() bool {
	for _, v := range r {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// Key returns a string that is equal for two rows exactly when every
// cell has the same kind and rendered content. Each cell is written as
// kind, byte length and content, so no cell text can be mistaken for a
// boundary between cells.
func (r Row) Key() string {
	var b strings.Builder
	for _, v := range r {
		s := v.String()
		b.WriteString(strconv.Itoa(int(v.Kind())))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}

// Dataset is an ordered sequence of rows over a fixed set of named columns.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New builds a dataset. Column names must be non-empty and unique, and every
// row must have exactly one value per column.
func New(columns []string, rows []Row) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrMalformedInput)
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrMalformedInput, i+1)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformedInput, c)
		}
		index[c] = i
	}

	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrMalformedInput, i+1, len(r), len(columns))
		}
	}

	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{columns: cols, index: index, rows: rows}, nil
}

// MustNew is New for fixtures and tests; it panics on error.
func MustNew(columns []string, rows []Row) *Dataset {
	ds, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return ds
}

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// NumColumns returns the number of columns.
func (d *Dataset) NumColumns() int { return len(d.columns) }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// ColumnIndex returns the position of the named column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// At returns the value at the given row and column position.
func (d *Dataset) At(row, col int) Value { return d.rows[row][col] }

// Row returns a copy of the row at position i.
func (d *Dataset) Row(i int) Row {
	out := make(Row, len(d.rows[i]))
	copy(out, d.rows[i])
	return out
}

// Column returns a copy of every value in the column at position col.
func (d *Dataset) Column(col int) []Value {
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[col]
	}
	return out
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	rows := make([]Row, len(d.rows))
	for i := range d.rows {
		rows[i] = d.Row(i)
	}
	return d.derive(rows)
}

// Filter returns a dataset holding only the rows for which keep returns
// true, along with the number of rows dropped.
func (d *Dataset) Filter(keep func(Row) bool) (*Dataset, int) {
	rows := make([]Row, 0, len(d.rows))
	for _, r := range d.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return d.derive(rows), len(d.rows) - len(rows)
}

// MapColumn returns a dataset in which every value of column col has been
// replaced by fn's result, along with the number of cells that changed.
// Rows whose cell did not change are shared with the receiver.
func (d *Dataset) MapColumn(col int, fn func(Value) Value) (*Dataset, int) {
	rows := make([]Row, len(d.rows))
	changed := 0
	for i, r := range d.rows {
		next := fn(r[col])
		if next.Equal(r[col]) {
			rows[i] = r
			continue
		}
		nr := make(Row, len(r))
		copy(nr, r)
		nr[col] = next
		rows[i] = nr
		changed++
	}
	return d.derive(rows), changed
}

// Equal reports whether both datasets have the same columns and rows.
func (d *Dataset) Equal(o *Dataset) bool {
	if len(d.columns) != len(o.columns) || len(d.rows) != len(o.rows) {
		return false
	}
	for i := range d.columns {
		if d.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range d.rows {
		for j := range d.rows[i] {
			if !d.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func (d *Dataset) derive(rows []Row) *Dataset {
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}
