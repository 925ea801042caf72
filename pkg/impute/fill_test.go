package impute

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/group"
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

type recordingTracker struct {
	mu      sync.Mutex
	changes map[string]int
}

func (r *recordingTracker) Track(_ *model.Dataset, column, _, _ string, _ int, _, _ model.Cell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.changes == nil {
		r.changes = make(map[string]int)
	}
	r.changes[column]++
}

// fixture builds a dataset with a key column and one value column per entry
func fixture(t *testing.T, keys []model.Cell, columns map[string][]model.Cell) (*model.Dataset, *group.Index) {
	t.Helper()

	names := []string{model.ColCustomerID}
	for name := range columns {
		names = append(names, name)
	}
	ds, err := model.NewDataset(names)
	require.NoError(t, err)

	for row, k := range keys {
		rec := model.Record{model.ColCustomerID: k}
		for name, cells := range columns {
			rec[name] = cells[row]
		}
		require.NoError(t, ds.AppendRecord(rec))
	}

	idx, err := group.Build(ds, model.ColCustomerID)
	require.NoError(t, err)
	return ds, idx
}

func keys(ks ...float64) []model.Cell {
	out := make([]model.Cell, len(ks))
	for i, k := range ks {
		out[i] = model.Number(k)
	}
	return out
}

func TestFillDirectional(t *testing.T) {
	cells := []model.Cell{model.Missing(), model.Text("A"), model.Missing(), model.Text("B")}
	_, idx := fixture(t, keys(1, 1, 1, 1), map[string][]model.Cell{"Name": cells})

	filled, unresolved := FillDirectional(cells, idx)
	assert.Equal(t, 2, filled)
	assert.Zero(t, unresolved)
	assert.Equal(t, []model.Cell{model.Text("A"), model.Text("A"), model.Text("A"), model.Text("B")}, cells,
		"forward fill first, backward fill only for the leading gap")
}

func TestFillDirectional_LeadingGapTakesNextValue(t *testing.T) {
	cells := []model.Cell{model.Missing(), model.Missing(), model.Text("B"), model.Missing()}
	_, idx := fixture(t, keys(1, 1, 1, 1), map[string][]model.Cell{"Name": cells})

	FillDirectional(cells, idx)
	assert.Equal(t, []model.Cell{model.Text("B"), model.Text("B"), model.Text("B"), model.Text("B")}, cells)
}

func TestFillDirectional_GroupsAreIndependent(t *testing.T) {
	cells := []model.Cell{model.Text("A"), model.Missing(), model.Missing(), model.Missing(), model.Text("C")}
	_, idx := fixture(t, keys(1, 2, 1, 3, 3), map[string][]model.Cell{"Name": cells})

	filled, unresolved := FillDirectional(cells, idx)
	assert.Equal(t, 2, filled)
	assert.Equal(t, 1, unresolved, "group 2 has no value")
	assert.Equal(t, []model.Cell{model.Text("A"), model.Missing(), model.Text("A"), model.Text("C"), model.Text("C")}, cells)
}

func TestFillDirectional_UngroupedRowsUntouched(t *testing.T) {
	cells := []model.Cell{model.Text("A"), model.Missing()}
	_, idx := fixture(t, []model.Cell{model.Number(1), model.Missing()}, map[string][]model.Cell{"Name": cells})

	FillDirectional(cells, idx)
	assert.True(t, cells[1].IsMissing())
}

func TestFillGroupMean(t *testing.T) {
	cells := []model.Cell{model.Number(10), model.Missing(), model.Number(30), model.Missing(), model.Missing()}
	_, idx := fixture(t, keys(1, 1, 1, 2, 2), map[string][]model.Cell{"Age": cells})

	filled, unresolved := FillGroupMean(cells, idx)
	assert.Equal(t, 1, filled)
	assert.Equal(t, 2, unresolved)
	assert.Equal(t, []model.Cell{model.Number(10), model.Number(20), model.Number(30), model.Missing(), model.Missing()}, cells)
}

func TestFillConstant(t *testing.T) {
	cells := []model.Cell{model.Missing(), model.Text("7"), model.Missing()}
	filled := FillConstant(cells, model.Number(0))
	assert.Equal(t, 2, filled)
	assert.Equal(t, []model.Cell{model.Number(0), model.Text("7"), model.Number(0)}, cells)
}

func TestFiller_Apply(t *testing.T) {
	ds, idx := fixture(t, keys(1, 1, 2), map[string][]model.Cell{
		"Name":    {model.Text("Ann"), model.Missing(), model.Missing()},
		"Age":     {model.Missing(), model.Number(30), model.Missing()},
		"Balance": {model.Missing(), model.Text("12.5"), model.Missing()},
	})

	tracker := &recordingTracker{}
	f, err := NewFiller(zap.NewNop(), tracker, 2)
	require.NoError(t, err)

	results, err := f.Apply(context.Background(), ds, idx, "fill",
		Directional("Name"),
		GroupMean("Age"),
		Constant("Balance", model.Number(0)),
	)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, Result{Column: "Name", Strategy: StrategyDirectional, Filled: 1, Unresolved: 1}, results[0])
	assert.Equal(t, Result{Column: "Age", Strategy: StrategyGroupMean, Filled: 1, Unresolved: 1}, results[1])
	assert.Equal(t, Result{Column: "Balance", Strategy: StrategyConstant, Filled: 2}, results[2])

	assert.Equal(t, model.Text("Ann"), ds.Get(1, "Name"))
	assert.Equal(t, model.Number(30), ds.Get(0, "Age"))
	assert.Equal(t, model.Number(0), ds.Get(2, "Balance"))
	assert.Equal(t, map[string]int{"Name": 1, "Age": 1, "Balance": 2}, tracker.changes)
}

func TestFiller_ApplyRejectsBadPolicies(t *testing.T) {
	ds, idx := fixture(t, keys(1), map[string][]model.Cell{"Name": {model.Missing()}})
	f, err := NewFiller(zap.NewNop(), nil, 0)
	require.NoError(t, err)

	_, err = f.Apply(context.Background(), ds, idx, "fill", Directional("Name"), Directional("Name"))
	assert.Error(t, err, "duplicate column")

	_, err = f.Apply(context.Background(), ds, idx, "fill", Directional("Nope"))
	assert.ErrorIs(t, err, model.ErrSchemaMismatch)

	_, err = f.Apply(context.Background(), ds, nil, "fill", Directional("Name"))
	assert.Error(t, err, "group index required")

	_, err = NewFiller(nil, nil, 1)
	assert.Error(t, err)
}

func TestFiller_ApplyHonoursCancellation(t *testing.T) {
	ds, idx := fixture(t, keys(1), map[string][]model.Cell{"Name": {model.Missing()}})
	f, err := NewFiller(zap.NewNop(), nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Apply(ctx, ds, idx, "fill", Directional("Name"))
	assert.ErrorIs(t, err, context.Canceled)
}
