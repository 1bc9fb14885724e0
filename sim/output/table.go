package output

import (
	"errors"
	"fmt"
	"sort"
)

// ErrFrozen is returned when appending to a finished table.
var ErrFrozen = errors.New("output table is frozen")

// Table is the per-timestep output of one run: ordered columns and one row
// per timestep. Rows are appended while the run is in progress; Freeze makes
// the table read-only.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]float64
	frozen  bool
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// Append adds a row. The row is copied.
func (t *Table) Append(row []float64) error {
	if t.frozen {
		return ErrFrozen
	}
	if len(row) != len(t.columns) {
		return fmt.Errorf("output row has %d values, table has %d columns", len(row), len(t.columns))
	}
	t.rows = append(t.rows, append([]float64(nil), row...))
	return nil
}

// Freeze marks the table complete.
func (t *Table) Freeze() { t.frozen = true }

// Frozen reports whether the table is complete.
func (t *Table) Frozen() bool { return t.frozen }

// Columns returns the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Rows is the number of recorded timesteps.
func (t *Table) Rows() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 { return append([]float64(nil), t.rows[i]...) }

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	j, err := t.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Value returns the named column at row i.
func (t *Table) Value(i int, name string) (float64, error) {
	j, err := t.lookup(name)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(t.rows) {
		return 0, fmt.Errorf("row %d out of range [0, %d)", i, len(t.rows))
	}
	return t.rows[i][j], nil
}

func (t *Table) lookup(name string) (int, error) {
	j, ok := t.index[name]
	if !ok {
		known := append([]string(nil), t.columns...)
		sort.Strings(known)
		return 0, &SchemaError{Column: name, Known: known}
	}
	return j, nil
}

// Equal reports whether two tables hold identical columns and values.
func (t *Table) Equal(o *Table) bool {
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if t.rows[i][j] != o.rows[i][j] {
				return false
			}
		}
	}
	return true
}
