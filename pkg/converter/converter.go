// pkg/converter/converter.go
package converter

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// TypeConverter maps cells to and from database values and column kinds to
// PostgreSQL types
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Whether to treat empty strings read from a source as Missing
	EmptyStringAsNull bool
	// Whether column names are lowercased in PostgreSQL
	LowercaseIdentifiers bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		EmptyStringAsNull:    true,
		LowercaseIdentifiers: true,
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	return &TypeConverter{
		logger: logger,
		config: config,
	}
}

// ColumnKind returns the kind a column holds: Number when every non-Missing
// cell is a Number, Text otherwise. An all-Missing column is Text.
func ColumnKind(cells []model.Cell) model.Kind {
	kind := model.KindMissing
	for _, c := range cells {
		switch c.Kind() {
		case model.KindText:
			return model.KindText
		case model.KindNumber:
			kind = model.KindNumber
		}
	}
	if kind == model.KindMissing {
		return model.KindText
	}
	return kind
}

// ColumnKinds returns ColumnKind for every column of ds, in column order
func ColumnKinds(ds *model.Dataset) []model.Kind {
	columns := ds.Columns()
	kinds := make([]model.Kind, len(columns))
	for i, name := range columns {
		cells, _ := ds.Column(name)
		kinds[i] = ColumnKind(cells)
	}
	return kinds
}

// PostgresType maps a column kind to its PostgreSQL type
func PostgresType(kind model.Kind) string {
	if kind == model.KindNumber {
		return "DOUBLE PRECISION"
	}
	return "TEXT"
}

// ColumnName returns the PostgreSQL column name for a dataset column
func (c *TypeConverter) ColumnName(name string) string {
	if c.config.LowercaseIdentifiers {
		return strings.ToLower(name)
	}
	return name
}

// GenerateColumnDefinitions creates PostgreSQL column definitions for ds
func (c *TypeConverter) GenerateColumnDefinitions(ds *model.Dataset) []string {
	columns := ds.Columns()
	kinds := ColumnKinds(ds)

	definitions := make([]string, 0, len(columns))
	for i, name := range columns {
		nullability := "NULL"
		if name == model.ColID {
			nullability = "NOT NULL"
			if cells, _ := ds.Column(name); hasMissing(cells) {
				nullability = "NULL"
			}
		}

		definitions = append(definitions, fmt.Sprintf("%s %s %s",
			QuoteIdentifier(c.ColumnName(name)),
			PostgresType(kinds[i]),
			nullability))
	}
	return definitions
}

// QuoteIdentifier properly quotes and escapes a PostgreSQL identifier
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// QualifiedName returns the quoted schema-qualified table name
func QualifiedName(schema, table string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

func hasMissing(cells []model.Cell) bool {
	for _, c := range cells {
		if c.IsMissing() {
			return true
		}
	}
	return false
}
