// pkg/model/cleaning.go
package model

import (
	"time"
)

// CleaningOperation represents a single cell rewrite performed by a stage
type CleaningOperation struct {
	RunID             string    // Pipeline run that performed the change
	DatasetName       string    // Logical dataset name
	ColumnName        string    // Column that was cleaned
	RowIndex          int       // Position of the row in the dataset
	RowIdentifier     string    // Value of the row's ID column, when known
	OriginalValue     Cell      // Value before the change
	NewValue          Cell      // Value after the change
	CleaningOperation string    // Stage that made the change (e.g., "fill_group_mean")
	CleaningReason    string    // Why the value changed (e.g., "missing_value")
	CleanedAt         time.Time // When the change was recorded
}
