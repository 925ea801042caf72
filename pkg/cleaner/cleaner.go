// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/model"
	"github.com/David-Botos/credit-cleaning/pkg/parser"
)

// FailureRecorder receives per-cell parse failures for diagnostics
type FailureRecorder interface {
	RecordParseFailure(err *model.ParseError)
}

// OperationRecorder persists cleaning operations (e.g. an audit table)
type OperationRecorder interface {
	RecordCleaningOperations(ctx context.Context, operations []model.CleaningOperation) error
}

// DataCleaner applies cell-level cleaning to a dataset and keeps the audit
// trail of every cell it rewrites. Stages in other packages report their
// changes through Track so that one run has one trail.
type DataCleaner struct {
	logger      *zap.Logger
	runID       string
	datasetName string
	failures    FailureRecorder
	keepTrail   bool

	mu         sync.Mutex
	operations []model.CleaningOperation
}

// Option configures a DataCleaner
type Option func(*DataCleaner)

// WithFailureRecorder routes parse failures to r
func WithFailureRecorder(r FailureRecorder) Option {
	return func(c *DataCleaner) {
		c.failures = r
	}
}

// WithOperationTrail keeps every CleaningOperation in memory so it can be
// recorded after the run
func WithOperationTrail(keep bool) Option {
	return func(c *DataCleaner) {
		c.keepTrail = keep
	}
}

// NewDataCleaner creates a new DataCleaner for one pipeline run
func NewDataCleaner(logger *zap.Logger, runID, datasetName string, opts ...Option) (*DataCleaner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}

	c := &DataCleaner{
		logger:      logger.Named("cleaner"),
		runID:       runID,
		datasetName: datasetName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunID returns the run the cleaner belongs to
func (c *DataCleaner) RunID() string {
	return c.runID
}

// ApplyParser runs fn over every cell of column. Failures become Missing and
// are reported; changed cells are tracked. It returns the number of cells
// rewritten.
func (c *DataCleaner) ApplyParser(ds *model.Dataset, column, operation string, fn parser.Func) (int, error) {
	cells, ok := ds.Column(column)
	if !ok {
		return 0, fmt.Errorf("column %q: %w", column, model.ErrSchemaMismatch)
	}

	changed, failed := 0, 0
	for row, before := range cells {
		r := fn(before)
		if err := r.Err(); err != nil {
			failed++
			c.reportFailure(err, column, row)
		}

		after := r.Cell()
		if after.Equal(before) {
			continue
		}
		cells[row] = after
		changed++
		c.Track(ds, column, operation, reasonFor(r), row, before, after)
	}

	if failed > 0 {
		c.logger.Debug("Parse failures converted to missing",
			zap.String("column", column),
			zap.String("operation", operation),
			zap.Int("failed", failed))
	}
	return changed, nil
}

// Track records one cell rewrite. Safe for concurrent use by column workers.
func (c *DataCleaner) Track(ds *model.Dataset, column, operation, reason string, row int, before, after model.Cell) {
	if !c.keepTrail {
		return
	}

	op := model.CleaningOperation{
		RunID:             c.runID,
		DatasetName:       c.datasetName,
		ColumnName:        column,
		RowIndex:          row,
		RowIdentifier:     ds.Get(row, model.ColID).String(),
		OriginalValue:     before,
		NewValue:          after,
		CleaningOperation: operation,
		CleaningReason:    reason,
		CleanedAt:         time.Now().UTC(),
	}

	c.mu.Lock()
	c.operations = append(c.operations, op)
	c.mu.Unlock()
}

// Operations returns a copy of the recorded trail
func (c *DataCleaner) Operations() []model.CleaningOperation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.CleaningOperation, len(c.operations))
	copy(out, c.operations)
	return out
}

// RecordCleaningOperations hands the recorded trail to recorder
func (c *DataCleaner) RecordCleaningOperations(ctx context.Context, recorder OperationRecorder) error {
	if recorder == nil {
		return errors.New("operation recorder cannot be nil")
	}

	ops := c.Operations()
	if len(ops) == 0 {
		return nil
	}

	if err := recorder.RecordCleaningOperations(ctx, ops); err != nil {
		return fmt.Errorf("failed to record cleaning operations: %w", err)
	}

	c.logger.Info("Recorded cleaning operations", zap.Int("count", len(ops)))
	return nil
}

func (c *DataCleaner) reportFailure(err error, column string, row int) {
	if c.failures == nil {
		return
	}
	var parseErr *model.ParseError
	if errors.As(err, &parseErr) {
		c.failures.RecordParseFailure(parseErr.At(column, row))
	}
}

func reasonFor(r parser.Result) string {
	if r.OK() {
		return "parsed"
	}
	return "parse_failure"
}
