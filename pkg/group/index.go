// Package group clusters rows by customer and computes per-group statistics.
package group

import (
	"fmt"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// Key is the decoded customer identifier shared by an entity's rows
type Key float64

// Index maps each group key to its row positions in dataset order.
// An Index is read-only once built and safe for concurrent readers.
type Index struct {
	column    string
	keys      []Key
	rows      map[Key][]int
	rowKey    []Key
	grouped   []bool
	ungrouped []int
}

// Build indexes ds by the numeric key column in a single pass. Rows whose
// key is not a Number belong to no group.
func Build(ds *model.Dataset, keyColumn string) (*Index, error) {
	cells, ok := ds.Column(keyColumn)
	if !ok {
		return nil, fmt.Errorf("group key column %q: %w", keyColumn, model.ErrSchemaMismatch)
	}

	idx := &Index{
		column:  keyColumn,
		rows:    make(map[Key][]int),
		rowKey:  make([]Key, len(cells)),
		grouped: make([]bool, len(cells)),
	}

	for row, c := range cells {
		f, ok := c.AsNumber()
		if !ok {
			idx.ungrouped = append(idx.ungrouped, row)
			continue
		}
		k := Key(f)
		if _, seen := idx.rows[k]; !seen {
			idx.keys = append(idx.keys, k)
		}
		idx.rows[k] = append(idx.rows[k], row)
		idx.rowKey[row] = k
		idx.grouped[row] = true
	}

	return idx, nil
}

// KeyColumn returns the column the index was built from
func (i *Index) KeyColumn() string {
	return i.column
}

// Keys returns group keys in order of first appearance
func (i *Index) Keys() []Key {
	out := make([]Key, len(i.keys))
	copy(out, i.keys)
	return out
}

// Len returns the number of groups
func (i *Index) Len() int {
	return len(i.keys)
}

// Rows returns the row positions of a group in dataset order.
// The returned slice must not be modified.
func (i *Index) Rows(k Key) []int {
	return i.rows[k]
}

// GroupOf returns the key of a row and whether the row belongs to a group
func (i *Index) GroupOf(row int) (Key, bool) {
	if row < 0 || row >= len(i.grouped) || !i.grouped[row] {
		return 0, false
	}
	return i.rowKey[row], true
}

// Ungrouped returns the rows excluded from group-aware stages
func (i *Index) Ungrouped() []int {
	out := make([]int, len(i.ungrouped))
	copy(out, i.ungrouped)
	return out
}

// Each calls fn for every group in first-appearance order
func (i *Index) Each(fn func(k Key, rows []int)) {
	for _, k := range i.keys {
		fn(k, i.rows[k])
	}
}
