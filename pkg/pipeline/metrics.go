package pipeline

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StageMetrics tracks metrics for a single stage
type StageMetrics struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Changed   int // Cells the stage rewrote
}

// Duration returns how long the stage ran
func (sm *StageMetrics) Duration() time.Duration {
	if sm.EndTime.IsZero() {
		return time.Since(sm.StartTime)
	}
	return sm.EndTime.Sub(sm.StartTime)
}

// RunMetrics tracks metrics for one cleaning run and mirrors them into a
// Prometheus registry for textfile export
type RunMetrics struct {
	mu              sync.Mutex
	logger          *zap.Logger
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	Rows            int
	Stages          []*StageMetrics
	PeakMemoryUsage int64

	registry      *prometheus.Registry
	stageDuration *prometheus.GaugeVec
	stageChanges  *prometheus.GaugeVec
	missingCells  *prometheus.GaugeVec
	parseFailures *prometheus.GaugeVec
	rowsGauge     prometheus.Gauge
}

// NewRunMetrics creates a new RunMetrics instance
func NewRunMetrics(logger *zap.Logger, runID string) *RunMetrics {
	rm := &RunMetrics{
		logger:    logger,
		RunID:     runID,
		StartTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "creditclean",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		stageChanges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "creditclean",
			Name:      "stage_changed_cells",
			Help:      "Cells rewritten by each pipeline stage in the last run.",
		}, []string{"stage"}),
		missingCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "creditclean",
			Name:      "missing_cells",
			Help:      "Missing cells per column after the last run.",
		}, []string{"column"}),
		parseFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "creditclean",
			Name:      "parse_failures",
			Help:      "Cells per column that failed to parse in the last run.",
		}, []string{"column"}),
		rowsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "creditclean",
			Name:      "rows",
			Help:      "Rows processed by the last run.",
		}),
	}
	rm.registry.MustRegister(rm.stageDuration, rm.stageChanges, rm.missingCells, rm.parseFailures, rm.rowsGauge)
	return rm
}

// StartStage begins tracking a stage
func (rm *RunMetrics) StartStage(name string) *StageMetrics {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sm := &StageMetrics{Name: name, StartTime: time.Now()}
	rm.Stages = append(rm.Stages, sm)
	return sm
}

// EndStage completes tracking a stage
func (rm *RunMetrics) EndStage(sm *StageMetrics, changed int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	sm.EndTime = time.Now()
	sm.Changed = changed
	rm.stageDuration.WithLabelValues(sm.Name).Set(sm.Duration().Seconds())
	rm.stageChanges.WithLabelValues(sm.Name).Set(float64(changed))
	rm.recordResourceUtilization()

	if rm.logger != nil {
		rm.logger.Debug("Stage completed",
			zap.String("stage", sm.Name),
			zap.Int("changed", changed),
			zap.Duration("duration", sm.Duration()))
	}
}

// RecordMissing sets the per-column Missing gauges
func (rm *RunMetrics) RecordMissing(counts map[string]int) {
	for column, n := range counts {
		rm.missingCells.WithLabelValues(column).Set(float64(n))
	}
}

// RecordParseFailures sets the per-column parse failure gauges
func (rm *RunMetrics) RecordParseFailures(counts map[string]int) {
	for column, n := range counts {
		rm.parseFailures.WithLabelValues(column).Set(float64(n))
	}
}

// recordResourceUtilization tracks peak heap usage; caller holds mu
func (rm *RunMetrics) recordResourceUtilization() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	if alloc := int64(memStats.Alloc); alloc > rm.PeakMemoryUsage {
		rm.PeakMemoryUsage = alloc
	}
}

// Complete marks the run as complete
func (rm *RunMetrics) Complete(rows int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.EndTime = time.Now()
	rm.Rows = rows
	rm.rowsGauge.Set(float64(rows))

	if rm.logger != nil {
		rm.logger.Info("Cleaning run completed",
			zap.String("runId", rm.RunID),
			zap.Duration("totalDuration", rm.Duration()),
			zap.Int("rows", rows),
			zap.Int("stages", len(rm.Stages)),
			zap.Float64("rowsPerSecond", rm.calculateThroughput()),
			zap.Int64("peakMemoryBytes", rm.PeakMemoryUsage))
	}
}

// Duration returns the total duration of the run
func (rm *RunMetrics) Duration() time.Duration {
	if rm.EndTime.IsZero() {
		return time.Since(rm.StartTime)
	}
	return rm.EndTime.Sub(rm.StartTime)
}

func (rm *RunMetrics) calculateThroughput() float64 {
	seconds := rm.Duration().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(rm.Rows) / seconds
}

// Gatherer exposes the run's registry
func (rm *RunMetrics) Gatherer() prometheus.Gatherer {
	return rm.registry
}

// WriteTextfile writes the run's metrics in the node-exporter textfile
// format. The file is replaced atomically.
func (rm *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, rm.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
