// Package impute fills missing cells from values known within the same
// customer group.
package impute

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/credit-cleaning/pkg/group"
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// Strategy selects how a column's missing cells are filled
type Strategy int

const (
	// StrategyDirectional propagates the previous known value in the group,
	// then the next known value for leading gaps
	StrategyDirectional Strategy = iota
	// StrategyGroupMean uses the mean of the group's numbers
	StrategyGroupMean
	// StrategyConstant uses a fixed value regardless of group
	StrategyConstant
)

// String returns the strategy name used in logs and audit reasons
func (s Strategy) String() string {
	switch s {
	case StrategyDirectional:
		return "directional"
	case StrategyGroupMean:
		return "group_mean"
	case StrategyConstant:
		return "constant"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Policy binds a fill strategy to a column
type Policy struct {
	Column   string
	Strategy Strategy
	Value    model.Cell // Fill value for StrategyConstant
}

// Directional returns a directional fill policy for column
func Directional(column string) Policy {
	return Policy{Column: column, Strategy: StrategyDirectional}
}

// GroupMean returns a group-mean fill policy for column
func GroupMean(column string) Policy {
	return Policy{Column: column, Strategy: StrategyGroupMean}
}

// Constant returns a constant fill policy for column
func Constant(column string, value model.Cell) Policy {
	return Policy{Column: column, Strategy: StrategyConstant, Value: value}
}

// Tracker receives every cell a fill rewrites
type Tracker interface {
	Track(ds *model.Dataset, column, operation, reason string, row int, before, after model.Cell)
}

// Result summarizes one policy application
type Result struct {
	Column     string
	Strategy   Strategy
	Filled     int // Missing cells that received a value
	Unresolved int // Missing cells left as-is because their group had no value
}

// Filler applies fill policies, one worker per column
type Filler struct {
	logger  *zap.Logger
	tracker Tracker
	workers int
}

// NewFiller creates a Filler. workers <= 0 means runtime.NumCPU().
func NewFiller(logger *zap.Logger, tracker Tracker, workers int) (*Filler, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Filler{
		logger:  logger.Named("impute"),
		tracker: tracker,
		workers: workers,
	}, nil
}

// Apply runs every policy against ds. Policies must name distinct columns;
// each column is filled by its own worker and no policy reads another's
// column. Results are returned in policy order.
func (f *Filler) Apply(ctx context.Context, ds *model.Dataset, idx *group.Index, operation string, policies ...Policy) ([]Result, error) {
	seen := make(map[string]bool, len(policies))
	for _, p := range policies {
		if seen[p.Column] {
			return nil, fmt.Errorf("column %q has more than one fill policy", p.Column)
		}
		seen[p.Column] = true
		if _, ok := ds.Column(p.Column); !ok {
			return nil, fmt.Errorf("column %q: %w", p.Column, model.ErrSchemaMismatch)
		}
		if p.Strategy != StrategyConstant && idx == nil {
			return nil, fmt.Errorf("%s fill of %q requires a group index", p.Strategy, p.Column)
		}
	}

	results := make([]Result, len(policies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, p := range policies {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cells, _ := ds.Column(p.Column)
			emit := func(row int, before, after model.Cell) {
				if f.tracker != nil {
					f.tracker.Track(ds, p.Column, operation, p.Strategy.String()+"_fill", row, before, after)
				}
			}

			r := Result{Column: p.Column, Strategy: p.Strategy}
			switch p.Strategy {
			case StrategyDirectional:
				r.Filled, r.Unresolved = fillDirectional(cells, idx, emit)
			case StrategyGroupMean:
				r.Filled, r.Unresolved = fillGroupMean(cells, idx, emit)
			case StrategyConstant:
				r.Filled = fillConstant(cells, p.Value, emit)
			default:
				return fmt.Errorf("unknown fill strategy %d for column %q", p.Strategy, p.Column)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		f.logger.Debug("Filled column",
			zap.String("operation", operation),
			zap.String("column", r.Column),
			zap.String("strategy", r.Strategy.String()),
			zap.Int("filled", r.Filled),
			zap.Int("unresolved", r.Unresolved))
	}
	return results, nil
}

type emitFunc func(row int, before, after model.Cell)

// FillDirectional fills cells within each group: forward from the previous
// known value, then backward from the next known value for leading gaps.
// Rows outside any group are untouched.
func FillDirectional(cells []model.Cell, idx *group.Index) (filled, unresolved int) {
	return fillDirectional(cells, idx, nil)
}

// FillGroupMean fills Missing numbers with their group's mean
func FillGroupMean(cells []model.Cell, idx *group.Index) (filled, unresolved int) {
	return fillGroupMean(cells, idx, nil)
}

// FillConstant replaces every Missing cell with value
func FillConstant(cells []model.Cell, value model.Cell) int {
	return fillConstant(cells, value, nil)
}

func fillDirectional(cells []model.Cell, idx *group.Index, emit emitFunc) (filled, unresolved int) {
	idx.Each(func(_ group.Key, rows []int) {
		var last model.Cell
		have := false
		firstKnown := -1

		for i, r := range rows {
			c := cells[r]
			if !c.IsMissing() {
				last, have = c, true
				if firstKnown < 0 {
					firstKnown = i
				}
				continue
			}
			if have {
				set(cells, r, last, emit)
				filled++
			}
		}

		if firstKnown < 0 {
			unresolved += len(rows)
			return
		}
		next := cells[rows[firstKnown]]
		for _, r := range rows[:firstKnown] {
			set(cells, r, next, emit)
			filled++
		}
	})
	return filled, unresolved
}

func fillGroupMean(cells []model.Cell, idx *group.Index, emit emitFunc) (filled, unresolved int) {
	stats := group.NewStatCache(idx, cells)
	idx.Each(func(k group.Key, rows []int) {
		for _, r := range rows {
			if !cells[r].IsMissing() {
				continue
			}
			mean, ok := stats.Mean(k)
			if !ok {
				unresolved++
				continue
			}
			set(cells, r, model.Number(mean), emit)
			filled++
		}
	})
	return filled, unresolved
}

func fillConstant(cells []model.Cell, value model.Cell, emit emitFunc) int {
	filled := 0
	for r, c := range cells {
		if c.IsMissing() {
			set(cells, r, value, emit)
			filled++
		}
	}
	return filled
}

func set(cells []model.Cell, row int, value model.Cell, emit emitFunc) {
	before := cells[row]
	cells[row] = value
	if emit != nil {
		emit(row, before, value)
	}
}
