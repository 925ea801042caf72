// pkg/converter/values.go
package converter

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// ToCell converts a value scanned from a database row into a Text cell, the
// form every raw feed value takes before cleaning. NULL becomes Missing.
func (c *TypeConverter) ToCell(value interface{}) model.Cell {
	if value == nil {
		return model.Missing()
	}

	text, err := c.convertToText(value)
	if err != nil {
		c.logger.Debug("Falling back to formatted value", zap.Error(err))
		text = fmt.Sprintf("%v", value)
	}
	if text == "" && c.config.EmptyStringAsNull {
		return model.Missing()
	}
	return model.Text(text)
}

// ToDriverValue converts a cell into a value for a column of the given kind.
// Missing becomes NULL; Number cells bound for a TEXT column are formatted.
func (c *TypeConverter) ToDriverValue(cell model.Cell, kind model.Kind) (driver.Value, error) {
	switch cell.Kind() {
	case model.KindMissing:
		return nil, nil
	case model.KindNumber:
		f, _ := cell.AsNumber()
		if kind == model.KindNumber {
			return f, nil
		}
		return cell.String(), nil
	case model.KindText:
		s, _ := cell.AsText()
		if kind == model.KindNumber {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert text %q to numeric", s)
			}
			return f, nil
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cell kind %s", cell.Kind())
	}
}

// convertToText converts a value to text/string
func (c *TypeConverter) convertToText(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprintf("%v", v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case nil:
		return "", nil
	default:
		// Try JSON marshaling for complex types
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to text: %w", value, err)
		}
		return string(jsonBytes), nil
	}
}
