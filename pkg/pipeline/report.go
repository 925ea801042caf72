package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// StageReport is the state of the dataset after one stage
type StageReport struct {
	Name     string
	Changed  int            // Cells the stage rewrote
	Missing  map[string]int // Missing cells per column after the stage
	Duration time.Duration
}

// Report is the outcome of a pipeline run
type Report struct {
	RunID         string
	Rows          int
	Columns       []string       // Dataset column order
	Initial       map[string]int // Missing cells per column before the first stage
	Stages        []StageReport
	ParseFailures map[string]int // Parse failures per column
	Unresolved    map[string]int // Cells the last fill of a column left Missing for lack of a group value

	Metrics *RunMetrics
	Errors  *ErrorHandler
}

// Final returns the Missing counts after the last stage
func (r *Report) Final() map[string]int {
	if len(r.Stages) == 0 {
		return r.Initial
	}
	return r.Stages[len(r.Stages)-1].Missing
}

// Stage returns the report of the named stage
func (r *Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Changes returns the number of cells rewritten per stage
func (r *Report) Changes() map[string]int {
	out := make(map[string]int, len(r.Stages))
	for _, s := range r.Stages {
		out[s.Name] = s.Changed
	}
	return out
}

// TotalMissing sums a set of per-column Missing counts
func TotalMissing(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// WriteDiagnostics prints the remaining Missing count of every column in
// dataset column order
func (r *Report) WriteDiagnostics(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	final := r.Final()

	fmt.Fprintf(tw, "column\tmissing\n")
	for _, column := range r.Columns {
		fmt.Fprintf(tw, "%s\t%d\n", column, final[column])
	}
	fmt.Fprintf(tw, "total\t%d\n", TotalMissing(final))
	return tw.Flush()
}
