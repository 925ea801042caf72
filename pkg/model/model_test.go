package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_Kinds(t *testing.T) {
	assert.True(t, Missing().IsMissing())
	assert.True(t, Cell{}.IsMissing(), "zero value must be Missing")

	s, ok := Text("abc").AsText()
	assert.True(t, ok)
	assert.Equal(t, "abc", s)

	f, ok := Number(1.5).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	assert.True(t, Number(math.NaN()).IsMissing(), "NaN is stored as Missing")
}

func TestCell_String(t *testing.T) {
	tests := []struct {
		cell Cell
		want string
	}{
		{Missing(), ""},
		{Text("Scientist"), "Scientist"},
		{Number(23), "23"},
		{Number(1824.8433333333332), "1824.8433333333332"},
		{Number(-3), "-3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cell.String())
	}
}

func TestCell_Equal(t *testing.T) {
	assert.True(t, Text("a").Equal(Text("a")))
	assert.False(t, Text("1").Equal(Number(1)))
	assert.True(t, Missing().Equal(Missing()))
	assert.False(t, Number(1).Equal(Number(2)))
}

func TestDataset_AppendAndAccess(t *testing.T) {
	ds, err := NewDataset([]string{"a", "b"})
	require.NoError(t, err)

	require.NoError(t, ds.AppendRow([]Cell{Text("x"), Number(1)}))
	require.NoError(t, ds.AppendRecord(Record{"b": Number(2)}))
	assert.Error(t, ds.AppendRow([]Cell{Text("short")}))

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, Text("x"), ds.Get(0, "a"))
	assert.True(t, ds.Get(1, "a").IsMissing())
	assert.True(t, ds.Get(5, "a").IsMissing())

	col, ok := ds.Column("b")
	require.True(t, ok)
	col[0] = Number(10)
	assert.Equal(t, Number(10), ds.Get(0, "b"), "column slice writes through")

	require.NoError(t, ds.Set(1, "a", Text("y")))
	assert.Error(t, ds.Set(2, "a", Text("y")))
	assert.Error(t, ds.Set(0, "zzz", Text("y")))

	rec := ds.Record(1)
	assert.Equal(t, Text("y"), rec["a"])
	assert.Equal(t, []Cell{Text("y"), Number(2)}, ds.Row(1))

	assert.Equal(t, map[string]int{"a": 0, "b": 0}, ds.MissingCounts())
}

func TestDataset_DuplicateColumns(t *testing.T) {
	_, err := NewDataset([]string{"a", "a"})
	assert.Error(t, err)

	_, err = NewDataset(nil)
	assert.Error(t, err)
}

func TestDataset_CloneIsDeep(t *testing.T) {
	ds, err := NewDataset([]string{"a"})
	require.NoError(t, err)
	require.NoError(t, ds.AppendRow([]Cell{Number(1)}))

	clone := ds.Clone()
	require.NoError(t, clone.Set(0, "a", Number(2)))

	assert.Equal(t, Number(1), ds.Get(0, "a"))
	assert.Equal(t, Number(2), clone.Get(0, "a"))
}

func TestSchema_Validate(t *testing.T) {
	schema := CreditSchema()

	ds, err := NewDataset(schema.RequiredColumns())
	require.NoError(t, err)
	assert.NoError(t, schema.Validate(ds))

	partial, err := NewDataset([]string{ColID, ColCustomerID})
	require.NoError(t, err)
	err = schema.Validate(partial)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, ColName)
	assert.NotContains(t, schemaErr.Missing, ColID)
}

func TestSchema_GetColumnByName(t *testing.T) {
	schema := CreditSchema()

	col := schema.GetColumnByName("customer_id")
	require.NotNil(t, col)
	assert.Equal(t, ColCustomerID, col.Name)
	assert.Nil(t, schema.GetColumnByName("nope"))
}

func TestParseError(t *testing.T) {
	cause := errors.New("bad digit")
	err := NewParseError("zz", cause).At(ColID, 4)

	assert.True(t, errors.Is(err, ErrParseFailure))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "column ID")
	assert.Contains(t, err.Error(), "row 4")
}
