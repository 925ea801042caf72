package converter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

func TestColumnKind(t *testing.T) {
	tests := []struct {
		name  string
		cells []model.Cell
		want  model.Kind
	}{
		{"all numbers", []model.Cell{model.Number(1), model.Missing(), model.Number(2.5)}, model.KindNumber},
		{"mixed", []model.Cell{model.Number(1), model.Text("a")}, model.KindText},
		{"all missing", []model.Cell{model.Missing(), model.Missing()}, model.KindText},
		{"empty", nil, model.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnKind(tt.cells))
		})
	}
}

func TestGenerateColumnDefinitions(t *testing.T) {
	ds, err := model.NewDataset([]string{model.ColID, "Annual_Income", "Name"})
	require.NoError(t, err)
	require.NoError(t, ds.AppendRow([]model.Cell{model.Number(5634), model.Number(19114.12), model.Text("Aaron")}))
	require.NoError(t, ds.AppendRow([]model.Cell{model.Number(5635), model.Missing(), model.Missing()}))

	tc := NewTypeConverter(zaptest.NewLogger(t))
	defs := tc.GenerateColumnDefinitions(ds)

	assert.Equal(t, []string{
		`"id" DOUBLE PRECISION NOT NULL`,
		`"annual_income" DOUBLE PRECISION NULL`,
		`"name" TEXT NULL`,
	}, defs)

	tc = NewTypeConverterWithConfig(zaptest.NewLogger(t), TypeConverterConfig{})
	assert.True(t, strings.HasPrefix(tc.GenerateColumnDefinitions(ds)[1], `"Annual_Income"`))
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, `"public"."credit"`, QualifiedName("public", "credit"))
	assert.Equal(t, `"odd""name"`, QuoteIdentifier(`odd"name`))
}

func TestToCell(t *testing.T) {
	tc := NewTypeConverter(zaptest.NewLogger(t))
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  model.Cell
	}{
		{"null", nil, model.Missing()},
		{"string", "22 Years 1 Months", model.Text("22 Years 1 Months")},
		{"empty string", "", model.Missing()},
		{"bytes", []byte("CUS_0xd40"), model.Text("CUS_0xd40")},
		{"float", 19114.12, model.Text("19114.12")},
		{"int", int64(23), model.Text("23")},
		{"bool", true, model.Text("true")},
		{"time", ts, model.Text("2024-03-01T12:00:00Z")},
		{"map", map[string]int{"a": 1}, model.Text(`{"a":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tc.ToCell(tt.value)
			assert.True(t, tt.want.Equal(got), "got %v (%s)", got, got.Kind())
		})
	}

	keep := NewTypeConverterWithConfig(zaptest.NewLogger(t), TypeConverterConfig{EmptyStringAsNull: false})
	assert.Equal(t, model.KindText, keep.ToCell("").Kind())
}

func TestToDriverValue(t *testing.T) {
	tc := NewTypeConverter(zaptest.NewLogger(t))

	v, err := tc.ToDriverValue(model.Missing(), model.KindNumber)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = tc.ToDriverValue(model.Number(3.5), model.KindNumber)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = tc.ToDriverValue(model.Number(3.5), model.KindText)
	require.NoError(t, err)
	assert.Equal(t, "3.5", v)

	v, err = tc.ToDriverValue(model.Text("Good"), model.KindText)
	require.NoError(t, err)
	assert.Equal(t, "Good", v)

	v, err = tc.ToDriverValue(model.Text("12"), model.KindNumber)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	_, err = tc.ToDriverValue(model.Text("Good"), model.KindNumber)
	assert.Error(t, err)
}
