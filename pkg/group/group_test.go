package group

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

func keyedDataset(t *testing.T, keys ...model.Cell) *model.Dataset {
	t.Helper()
	ds, err := model.NewDataset([]string{model.ColCustomerID})
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, ds.AppendRow([]model.Cell{k}))
	}
	return ds
}

func TestBuild(t *testing.T) {
	ds := keyedDataset(t,
		model.Number(7), model.Number(3), model.Missing(), model.Number(7), model.Number(3), model.Text("CUS_bad"),
	)

	idx, err := Build(ds, model.ColCustomerID)
	require.NoError(t, err)

	assert.Equal(t, []Key{7, 3}, idx.Keys(), "first-appearance order")
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []int{0, 3}, idx.Rows(7))
	assert.Equal(t, []int{1, 4}, idx.Rows(3))
	assert.Equal(t, []int{2, 5}, idx.Ungrouped())

	k, ok := idx.GroupOf(3)
	assert.True(t, ok)
	assert.Equal(t, Key(7), k)

	_, ok = idx.GroupOf(2)
	assert.False(t, ok)
	_, ok = idx.GroupOf(99)
	assert.False(t, ok)
}

func TestBuild_EveryRowInAtMostOneGroup(t *testing.T) {
	ds := keyedDataset(t, model.Number(1), model.Number(2), model.Number(1), model.Missing(), model.Number(2))
	idx, err := Build(ds, model.ColCustomerID)
	require.NoError(t, err)

	seen := make(map[int]int)
	idx.Each(func(_ Key, rows []int) {
		for _, r := range rows {
			seen[r]++
		}
	})
	for _, r := range idx.Ungrouped() {
		seen[r]++
	}
	require.Len(t, seen, ds.Len())
	for row, n := range seen {
		assert.Equal(t, 1, n, "row %d", row)
	}
}

func TestBuild_MissingColumn(t *testing.T) {
	ds := keyedDataset(t, model.Number(1))
	_, err := Build(ds, "nope")
	assert.True(t, errors.Is(err, model.ErrSchemaMismatch))
}

func TestMean(t *testing.T) {
	cells := []model.Cell{model.Number(10), model.Missing(), model.Number(30), model.Text("x")}

	m, ok := Mean(cells, []int{0, 1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, 20.0, m)

	_, ok = Mean(cells, []int{1, 3})
	assert.False(t, ok)
}

func TestMode(t *testing.T) {
	tests := []struct {
		name  string
		cells []model.Cell
		want  model.Cell
		ok    bool
	}{
		{"single winner", []model.Cell{model.Number(4), model.Number(4), model.Number(9)}, model.Number(4), true},
		{"tie goes to smallest", []model.Cell{model.Number(5), model.Number(50), model.Number(7)}, model.Number(5), true},
		{"tie on two pairs", []model.Cell{model.Number(9), model.Number(2), model.Number(9), model.Number(2)}, model.Number(2), true},
		{"missing ignored", []model.Cell{model.Missing(), model.Missing(), model.Number(3)}, model.Number(3), true},
		{"text values", []model.Cell{model.Text("Good"), model.Text("Bad"), model.Text("Good")}, model.Text("Good"), true},
		{"no values", []model.Cell{model.Missing(), model.Missing()}, model.Missing(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]int, len(tt.cells))
			for i := range rows {
				rows[i] = i
			}
			got, ok := Mode(tt.cells, rows)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatCache_SnapshotAndLaziness(t *testing.T) {
	ds := keyedDataset(t, model.Number(1), model.Number(1), model.Number(2))
	idx, err := Build(ds, model.ColCustomerID)
	require.NoError(t, err)

	cells := []model.Cell{model.Number(10), model.Number(30), model.Missing()}
	cache := NewStatCache(idx, cells)

	cells[0] = model.Number(1000)

	m, ok := cache.Mean(1)
	require.True(t, ok)
	assert.Equal(t, 20.0, m, "cache reads the snapshot, not later writes")

	_, ok = cache.Mean(2)
	assert.False(t, ok, "group with no values has no mean")
	_, ok = cache.Mode(2)
	assert.False(t, ok)

	mode, ok := cache.Mode(1)
	require.True(t, ok)
	assert.Equal(t, model.Number(10), mode)
}
