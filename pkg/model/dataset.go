// pkg/model/dataset.go
package model

import (
	"errors"
	"fmt"
)

// Record is a row view: column name to cell
type Record map[string]Cell

// Dataset is an ordered, fixed set of columns over a stable sequence of rows.
// Cells are stored column-major so that stages working on different columns
// never share mutable state.
type Dataset struct {
	columns []string
	index   map[string]int
	cells   [][]Cell
	rows    int
}

// NewDataset creates an empty dataset with the given column order
func NewDataset(columns []string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, errors.New("dataset requires at least one column")
	}

	ds := &Dataset{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
		cells:   make([][]Cell, len(columns)),
	}
	copy(ds.columns, columns)

	for i, name := range columns {
		if _, dup := ds.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		ds.index[name] = i
	}

	return ds, nil
}

// AppendRow adds a row; cells must follow the dataset's column order
func (d *Dataset) AppendRow(cells []Cell) error {
	if len(cells) != len(d.columns) {
		return fmt.Errorf("row %d has %d cells, expected %d", d.rows, len(cells), len(d.columns))
	}
	for i, c := range cells {
		d.cells[i] = append(d.cells[i], c)
	}
	d.rows++
	return nil
}

// AppendRecord adds a row from a record; absent columns are Missing
func (d *Dataset) AppendRecord(rec Record) error {
	row := make([]Cell, len(d.columns))
	for i, name := range d.columns {
		row[i] = rec[name]
	}
	return d.AppendRow(row)
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return d.rows
}

// Columns returns a copy of the column order
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether the dataset carries the named column
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the backing cells of a column. Writes through the returned
// slice mutate the dataset; its length never changes.
func (d *Dataset) Column(name string) ([]Cell, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cells[i], true
}

// Get returns a single cell
func (d *Dataset) Get(row int, column string) Cell {
	i, ok := d.index[column]
	if !ok || row < 0 || row >= d.rows {
		return Missing()
	}
	return d.cells[i][row]
}

// Set replaces a single cell
func (d *Dataset) Set(row int, column string, c Cell) error {
	i, ok := d.index[column]
	if !ok {
		return fmt.Errorf("unknown column %q", column)
	}
	if row < 0 || row >= d.rows {
		return fmt.Errorf("row %d out of range [0,%d)", row, d.rows)
	}
	d.cells[i][row] = c
	return nil
}

// Record returns a copy of row i as a column-keyed map
func (d *Dataset) Record(row int) Record {
	rec := make(Record, len(d.columns))
	for i, name := range d.columns {
		rec[name] = d.cells[i][row]
	}
	return rec
}

// Row returns a copy of row i in column order
func (d *Dataset) Row(row int) []Cell {
	out := make([]Cell, len(d.columns))
	for i := range d.columns {
		out[i] = d.cells[i][row]
	}
	return out
}

// MissingCounts returns the number of Missing cells per column
func (d *Dataset) MissingCounts() map[string]int {
	counts := make(map[string]int, len(d.columns))
	for i, name := range d.columns {
		n := 0
		for _, c := range d.cells[i] {
			if c.IsMissing() {
				n++
			}
		}
		counts[name] = n
	}
	return counts
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: d.Columns(),
		index:   make(map[string]int, len(d.index)),
		cells:   make([][]Cell, len(d.cells)),
		rows:    d.rows,
	}
	for k, v := range d.index {
		out.index[k] = v
	}
	for i, col := range d.cells {
		out.cells[i] = make([]Cell, len(col))
		copy(out.cells[i], col)
	}
	return out
}
