// pkg/cleaner/operations.go
package cleaner

import (
	"fmt"
	"strings"

	"github.com/David-Botos/credit-cleaning/pkg/model"
	"github.com/David-Botos/credit-cleaning/pkg/parser"
)

// boundaryChars are stripped from both ends of every text cell
const boundaryChars = `_ ,"`

// sentinelTokens are junk values the feed uses in place of a missing value
var sentinelTokens = map[string]struct{}{
	"":          {},
	"nan":       {},
	"!@9#%8":    {},
	"#F%$D@*&8": {},
}

// NormalizeText strips boundary junk from a text cell and maps sentinel
// tokens to Missing. Non-text cells are returned unchanged.
func NormalizeText(c model.Cell) model.Cell {
	s, ok := c.AsText()
	if !ok {
		return c
	}

	s = strings.Trim(s, boundaryChars)
	if _, sentinel := sentinelTokens[s]; sentinel {
		return model.Missing()
	}
	return model.Text(s)
}

// NormalizeDataset applies NormalizeText to every cell of every column
func (c *DataCleaner) NormalizeDataset(ds *model.Dataset) int {
	total := 0
	for _, column := range ds.Columns() {
		cells, _ := ds.Column(column)
		for row, before := range cells {
			after := NormalizeText(before)
			if after.Equal(before) {
				continue
			}
			cells[row] = after
			total++
			c.Track(ds, column, "normalize_text", reasonForText(after), row, before, after)
		}
	}
	return total
}

// CoerceNumeric converts the given columns to Number, unparsable cells to Missing
func (c *DataCleaner) CoerceNumeric(ds *model.Dataset, operation string, columns ...string) (int, error) {
	total := 0
	for _, column := range columns {
		n, err := c.ApplyParser(ds, column, operation, parser.ParseNumber)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ScrubNegative replaces negative numbers in column with Missing. Zero is kept.
func (c *DataCleaner) ScrubNegative(ds *model.Dataset, column string) (int, error) {
	cells, ok := ds.Column(column)
	if !ok {
		return 0, fmt.Errorf("column %q: %w", column, model.ErrSchemaMismatch)
	}

	changed := 0
	for row, before := range cells {
		if f, ok := before.AsNumber(); ok && f < 0 {
			cells[row] = model.Missing()
			changed++
			c.Track(ds, column, "scrub_negative", "negative_value", row, before, cells[row])
		}
	}
	return changed, nil
}

// RemapSentinel replaces text cells equal to token with Missing
func (c *DataCleaner) RemapSentinel(ds *model.Dataset, column, token string) (int, error) {
	cells, ok := ds.Column(column)
	if !ok {
		return 0, fmt.Errorf("column %q: %w", column, model.ErrSchemaMismatch)
	}

	changed := 0
	for row, before := range cells {
		if s, ok := before.AsText(); ok && s == token {
			cells[row] = model.Missing()
			changed++
			c.Track(ds, column, "remap_sentinel", "sentinel_token", row, before, cells[row])
		}
	}
	return changed, nil
}

// Interpolate fills Missing cells of a numeric column by linear interpolation
// over row position. Missing cells before the first number stay Missing;
// cells after the last number take its value.
func (c *DataCleaner) Interpolate(ds *model.Dataset, column string) (int, error) {
	cells, ok := ds.Column(column)
	if !ok {
		return 0, fmt.Errorf("column %q: %w", column, model.ErrSchemaMismatch)
	}

	changed := 0
	prev := -1
	for row := 0; row < len(cells); row++ {
		if _, ok := cells[row].AsNumber(); ok {
			if prev >= 0 && row-prev > 1 {
				changed += c.fillSpan(ds, column, cells, prev, row)
			}
			prev = row
		}
	}

	if prev >= 0 {
		last, _ := cells[prev].AsNumber()
		for row := prev + 1; row < len(cells); row++ {
			if cells[row].IsMissing() {
				before := cells[row]
				cells[row] = model.Number(last)
				changed++
				c.Track(ds, column, "interpolate", "trailing_missing", row, before, cells[row])
			}
		}
	}
	return changed, nil
}

// fillSpan interpolates the Missing cells strictly between rows lo and hi
func (c *DataCleaner) fillSpan(ds *model.Dataset, column string, cells []model.Cell, lo, hi int) int {
	a, _ := cells[lo].AsNumber()
	b, _ := cells[hi].AsNumber()
	step := (b - a) / float64(hi-lo)

	changed := 0
	for row := lo + 1; row < hi; row++ {
		if !cells[row].IsMissing() {
			continue
		}
		before := cells[row]
		cells[row] = model.Number(a + step*float64(row-lo))
		changed++
		c.Track(ds, column, "interpolate", "missing_value", row, before, cells[row])
	}
	return changed
}

func reasonForText(after model.Cell) string {
	if after.IsMissing() {
		return "sentinel_token"
	}
	return "boundary_characters"
}
