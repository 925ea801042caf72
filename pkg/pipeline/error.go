package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// ErrorCategory defines categories of errors during a cleaning run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryParseFailure: a field parser could not interpret a cell.
	// The cell becomes Missing and the run continues.
	ErrorCategoryParseFailure
	// ErrorCategoryGroupUndefined: a group had no value to fill or correct
	// from. The cell is left as-is.
	ErrorCategoryGroupUndefined
	// ErrorCategorySchemaMismatch: a required column is absent. Fatal.
	ErrorCategorySchemaMismatch
	ErrorCategoryInternal
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryParseFailure:
		return "ParseFailure"
	case ErrorCategoryGroupUndefined:
		return "GroupUndefined"
	case ErrorCategorySchemaMismatch:
		return "SchemaMismatch"
	case ErrorCategoryInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// Fatal reports whether errors of this category stop the run
func (ec ErrorCategory) Fatal() bool {
	return ec >= ErrorCategorySchemaMismatch
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category    ErrorCategory
	Stage       string
	ColumnName  string
	RowIndex    int
	SourceValue string
	Error       error
	Message     string // Derived from Error but stored for serialization
	Timestamp   time.Time
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		RowIndex:  -1,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}
	return record
}

// WithStage adds stage information to the error record
func (r ErrorRecord) WithStage(stage string) ErrorRecord {
	r.Stage = stage
	return r
}

// WithCell adds cell position and raw value to the error record
func (r ErrorRecord) WithCell(column string, row int, value string) ErrorRecord {
	r.ColumnName = column
	r.RowIndex = row
	r.SourceValue = value
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}
	if r.ColumnName != "" {
		sb.WriteString(fmt.Sprintf("Column: %s ", r.ColumnName))
	}
	if r.RowIndex >= 0 {
		sb.WriteString(fmt.Sprintf("Row: %d ", r.RowIndex))
	}
	if r.SourceValue != "" {
		sb.WriteString(fmt.Sprintf("Value: %q ", r.SourceValue))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}
	return strings.TrimSpace(sb.String())
}

// ErrorHandler collects the recoverable errors of a run for diagnostics.
// It never changes pipeline behaviour.
type ErrorHandler struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	columnCounts map[string]map[ErrorCategory]int
	sampleErrors map[string][]ErrorRecord
	currentStage string
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		columnCounts: make(map[string]map[ErrorCategory]int),
		sampleErrors: make(map[string][]ErrorRecord),
		maxSamples:   5, // Store up to 5 sample errors per column
	}
}

// CategorizeError determines the category of an error
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, model.ErrSchemaMismatch):
		return ErrorCategorySchemaMismatch
	case errors.Is(err, model.ErrParseFailure):
		return ErrorCategoryParseFailure
	default:
		return ErrorCategoryInternal
	}
}

// SetStage tags subsequent records with the running stage
func (eh *ErrorHandler) SetStage(stage string) {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.currentStage = stage
}

// RecordParseFailure records a cell that a parser could not interpret
func (eh *ErrorHandler) RecordParseFailure(err *model.ParseError) {
	eh.mu.Lock()
	stage := eh.currentStage
	eh.mu.Unlock()

	record := NewErrorRecord(err, ErrorCategoryParseFailure).
		WithStage(stage).
		WithCell(err.Column, err.Row, err.Value)
	eh.RecordError(record)
}

// RecordGroupUndefined counts cells left unchanged because their group had
// no value. These are expected and not logged individually.
func (eh *ErrorHandler) RecordGroupUndefined(column string, cells int) {
	if cells <= 0 {
		return
	}
	eh.mu.Lock()
	defer eh.mu.Unlock()
	eh.errorCounts[ErrorCategoryGroupUndefined] += cells
	eh.columnCount(column)[ErrorCategoryGroupUndefined] += cells
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++
	if record.ColumnName != "" {
		eh.columnCount(record.ColumnName)[record.Category]++

		samples := eh.sampleErrors[record.ColumnName]
		if len(samples) < eh.maxSamples {
			eh.sampleErrors[record.ColumnName] = append(samples, record)
		}
	}

	if eh.logger != nil {
		level := zap.DebugLevel
		if record.Category.Fatal() {
			level = zap.ErrorLevel
		}
		eh.logger.Log(level, "Cleaning error",
			zap.String("category", record.Category.String()),
			zap.String("stage", record.Stage),
			zap.String("column", record.ColumnName),
			zap.Int("row", record.RowIndex),
			zap.String("error", record.Message))
	}
}

func (eh *ErrorHandler) columnCount(column string) map[ErrorCategory]int {
	counts, ok := eh.columnCounts[column]
	if !ok {
		counts = make(map[ErrorCategory]int)
		eh.columnCounts[column] = counts
	}
	return counts
}

// GetErrorSummary returns error counts by category
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int, len(eh.errorCounts))
	for category, count := range eh.errorCounts {
		summary[category] = count
	}
	return summary
}

// GetColumnErrorCounts returns counts of one category by column
func (eh *ErrorHandler) GetColumnErrorCounts(category ErrorCategory) map[string]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	counts := make(map[string]int)
	for column, byCategory := range eh.columnCounts {
		if n := byCategory[category]; n > 0 {
			counts[column] = n
		}
	}
	return counts
}

// GetErrorSamples returns sample errors for each column
func (eh *ErrorHandler) GetErrorSamples() map[string][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[string][]ErrorRecord, len(eh.sampleErrors))
	for column, records := range eh.sampleErrors {
		columnSamples := make([]ErrorRecord, len(records))
		copy(columnSamples, records)
		samples[column] = columnSamples
	}
	return samples
}

// SampledColumns returns the columns with error samples, sorted by name
func (eh *ErrorHandler) SampledColumns() []string {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	columns := make([]string, 0, len(eh.sampleErrors))
	for column := range eh.sampleErrors {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}
