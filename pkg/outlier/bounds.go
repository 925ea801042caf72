// Package outlier flags values outside global quantile bounds and replaces
// them with the most frequent value of the row's customer group.
package outlier

import (
	"fmt"
	"math"
	"sort"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// Bounds is the closed range of accepted values for a column
type Bounds struct {
	Lower float64
	Upper float64
}

// Outside reports whether v falls strictly outside the bounds
func (b Bounds) Outside(v float64) bool {
	return v < b.Lower || v > b.Upper
}

// Quantile returns the p-quantile of sorted values using linear
// interpolation between closest ranks (h = (n-1)p). sorted must be in
// ascending order and non-empty; p is clamped to [0, 1].
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}

	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// ComputeBounds returns the [lowerP, upperP] quantile bounds of each column
// over its Number cells. Columns without any Number get no entry.
func ComputeBounds(ds *model.Dataset, lowerP, upperP float64, columns ...string) (map[string]Bounds, error) {
	if lowerP < 0 || upperP > 1 || lowerP > upperP {
		return nil, fmt.Errorf("invalid quantile range [%g, %g]", lowerP, upperP)
	}

	bounds := make(map[string]Bounds, len(columns))
	for _, column := range columns {
		cells, ok := ds.Column(column)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", column, model.ErrSchemaMismatch)
		}

		values := make([]float64, 0, len(cells))
		for _, c := range cells {
			if f, ok := c.AsNumber(); ok {
				values = append(values, f)
			}
		}
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)

		bounds[column] = Bounds{
			Lower: Quantile(values, lowerP),
			Upper: Quantile(values, upperP),
		}
	}
	return bounds, nil
}
