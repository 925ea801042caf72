package outlier

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/credit-cleaning/pkg/group"
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// Tracker receives every cell the corrector rewrites
type Tracker interface {
	Track(ds *model.Dataset, column, operation, reason string, row int, before, after model.Cell)
}

// Result summarizes the correction of one column
type Result struct {
	Column    string
	Bounds    Bounds
	Outliers  int // Number cells strictly outside the bounds
	Corrected int // Outliers whose group mode differs from their value
}

// Corrector replaces out-of-bounds cells with their group mode
type Corrector struct {
	logger  *zap.Logger
	tracker Tracker
	workers int
}

// NewCorrector creates a Corrector. workers <= 0 means runtime.NumCPU().
func NewCorrector(logger *zap.Logger, tracker Tracker, workers int) (*Corrector, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Corrector{
		logger:  logger.Named("outlier"),
		tracker: tracker,
		workers: workers,
	}, nil
}

// Correct rewrites every column in bounds. Group modes are taken from the
// column as it was before any replacement. Results are sorted by column
// name.
func (c *Corrector) Correct(ctx context.Context, ds *model.Dataset, idx *group.Index, operation string, bounds map[string]Bounds) ([]Result, error) {
	if idx == nil {
		return nil, errors.New("outlier correction requires a group index")
	}

	columns := make([]string, 0, len(bounds))
	for column := range bounds {
		if _, ok := ds.Column(column); !ok {
			return nil, fmt.Errorf("column %q: %w", column, model.ErrSchemaMismatch)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	results := make([]Result, len(columns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, column := range columns {
		i, column := i, column
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cells, _ := ds.Column(column)
			var emit func(row int, before, after model.Cell)
			if c.tracker != nil {
				emit = func(row int, before, after model.Cell) {
					c.tracker.Track(ds, column, operation, "group_mode", row, before, after)
				}
			}
			results[i] = correctColumn(column, cells, idx, bounds[column], emit)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		c.logger.Debug("Corrected outliers",
			zap.String("column", r.Column),
			zap.Float64("lower", r.Bounds.Lower),
			zap.Float64("upper", r.Bounds.Upper),
			zap.Int("outliers", r.Outliers),
			zap.Int("corrected", r.Corrected))
	}
	return results, nil
}

// CorrectColumn replaces the out-of-bounds Number cells of one column with
// their group mode. Ungrouped rows are never changed.
func CorrectColumn(cells []model.Cell, idx *group.Index, b Bounds) Result {
	return correctColumn("", cells, idx, b, nil)
}

func correctColumn(column string, cells []model.Cell, idx *group.Index, b Bounds, emit func(int, model.Cell, model.Cell)) Result {
	r := Result{Column: column, Bounds: b}
	stats := group.NewStatCache(idx, cells)

	idx.Each(func(k group.Key, rows []int) {
		for _, row := range rows {
			v, ok := cells[row].AsNumber()
			if !ok || !b.Outside(v) {
				continue
			}
			r.Outliers++

			mode, ok := stats.Mode(k)
			if !ok || mode.Equal(cells[row]) {
				continue
			}
			before := cells[row]
			cells[row] = mode
			r.Corrected++
			if emit != nil {
				emit(row, before, mode)
			}
		}
	})
	return r
}
