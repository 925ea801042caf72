// Package pipeline runs the fixed sequence of cleaning stages over a credit
// record dataset and reports the residual missingness after each stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/cleaner"
	"github.com/David-Botos/credit-cleaning/pkg/group"
	"github.com/David-Botos/credit-cleaning/pkg/impute"
	"github.com/David-Botos/credit-cleaning/pkg/model"
	"github.com/David-Botos/credit-cleaning/pkg/outlier"
	"github.com/David-Botos/credit-cleaning/pkg/parser"
)

// Stage names in execution order
const (
	StageNormalizeText        = "normalize_text"
	StageParseFields          = "parse_fields"
	StageCoerceNumeric        = "coerce_numeric"
	StageFillIdentity         = "fill_identity"
	StageFillGroupMean        = "fill_group_mean"
	StageInterpolate          = "interpolate"
	StageScrubNegative        = "scrub_negative"
	StageRemapSentinel        = "remap_sentinel"
	StageFillDirectional      = "fill_directional"
	StageFillConstant         = "fill_constant"
	StageCoerceOutlierColumns = "coerce_outlier_columns"
	StageComputeBounds        = "compute_bounds"
	StageCorrectOutliers      = "correct_outliers"
)

// PaymentSentinel marks an unknown minimum-payment flag
const PaymentSentinel = "NM"

var (
	coercedColumns = []string{
		model.ColAge, model.ColAnnualIncome, model.ColMonthlyInhandSalary, model.ColNumBankAccounts,
	}
	identityColumns  = []string{model.ColName, model.ColOccupation}
	meanFillColumns  = []string{model.ColAge, model.ColAnnualIncome}
	directionalFills = []string{
		model.ColName, model.ColAge, model.ColSSN, model.ColMonthlyInhandSalary, model.ColCreditMix,
		model.ColPaymentOfMinAmount, model.ColChangedCreditLimit, model.ColNumCreditInquiries,
	}
	zeroFillColumns = []string{
		model.ColNumOfDelayedPayment, model.ColAmountInvestedMonthly, model.ColMonthlyBalance,
	}
	outlierColumns = []string{
		model.ColNumBankAccounts, model.ColNumCreditCard, model.ColInterestRate, model.ColNumOfLoan,
		model.ColChangedCreditLimit, model.ColNumCreditInquiries,
	}
	boundedColumns = append(append([]string{}, outlierColumns...), model.ColAnnualIncome)
)

// Options configures a Pipeline
type Options struct {
	DatasetName   string
	RunID         string // Generated when empty
	Workers       int    // Column workers; <= 0 means runtime.NumCPU()
	LowerQuantile float64
	UpperQuantile float64
	SSNPolicy     parser.SSNPolicy
	Recorder      cleaner.OperationRecorder // Receives the cell-level audit trail when set
}

// DefaultOptions returns the options the cleaning run uses unless configured
func DefaultOptions() Options {
	return Options{
		DatasetName:   model.CreditSchema().Name,
		LowerQuantile: 0.05,
		UpperQuantile: 0.95,
		SSNPolicy:     parser.SSNLoose,
	}
}

// Pipeline applies every cleaning stage in a fixed order
type Pipeline struct {
	logger *zap.Logger
	schema *model.Schema
	opts   Options
}

// New creates a Pipeline
func New(logger *zap.Logger, opts Options) (*Pipeline, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.LowerQuantile < 0 || opts.UpperQuantile > 1 || opts.LowerQuantile > opts.UpperQuantile {
		return nil, fmt.Errorf("invalid outlier quantiles [%g, %g]", opts.LowerQuantile, opts.UpperQuantile)
	}
	if opts.DatasetName == "" {
		opts.DatasetName = model.CreditSchema().Name
	}
	return &Pipeline{
		logger: logger.Named("pipeline"),
		schema: model.CreditSchema(),
		opts:   opts,
	}, nil
}

// StageNames returns the stage names in execution order
func StageNames() []string {
	stages := stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

// Run cleans a copy of in and returns it with the run report. The input is
// never modified. A SchemaMismatch stops the run before any stage executes;
// per-cell failures never do.
func (p *Pipeline) Run(ctx context.Context, in *model.Dataset) (*model.Dataset, *Report, error) {
	if err := p.schema.Validate(in); err != nil {
		p.logger.Error("Dataset does not match schema", zap.Error(err))
		return nil, nil, err
	}

	runID := p.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With(zap.String("runId", runID))

	r, err := p.newRun(logger, runID, in.Clone())
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		RunID:      runID,
		Rows:       r.ds.Len(),
		Columns:    r.ds.Columns(),
		Initial:    r.ds.MissingCounts(),
		Unresolved: r.unresolved,
		Metrics:    r.metrics,
		Errors:     r.errors,
	}

	logger.Info("Starting cleaning run",
		zap.String("dataset", p.opts.DatasetName),
		zap.Int("rows", report.Rows),
		zap.Int("columns", len(report.Columns)))

	for _, s := range stages() {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("cleaning run cancelled before %s: %w", s.name, err)
		}

		r.errors.SetStage(s.name)
		sm := r.metrics.StartStage(s.name)
		changed, err := s.apply(r, ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("stage %s failed: %w", s.name, err)
		}
		r.metrics.EndStage(sm, changed)

		report.Stages = append(report.Stages, StageReport{
			Name:     s.name,
			Changed:  changed,
			Missing:  r.ds.MissingCounts(),
			Duration: sm.Duration(),
		})
	}

	report.ParseFailures = r.errors.GetColumnErrorCounts(ErrorCategoryParseFailure)
	r.metrics.RecordMissing(report.Final())
	r.metrics.RecordParseFailures(report.ParseFailures)
	r.metrics.Complete(r.ds.Len())

	if p.opts.Recorder != nil {
		if err := r.cleaner.RecordCleaningOperations(ctx, p.opts.Recorder); err != nil {
			return nil, nil, err
		}
	}

	return r.ds, report, nil
}

// run holds the state shared by the stages of one invocation
type run struct {
	logger    *zap.Logger
	opts      Options
	ds        *model.Dataset
	idx       *group.Index
	bounds    map[string]outlier.Bounds
	cleaner   *cleaner.DataCleaner
	filler    *impute.Filler
	corrector *outlier.Corrector
	errors    *ErrorHandler
	metrics   *RunMetrics

	unresolved map[string]int
}

func (p *Pipeline) newRun(logger *zap.Logger, runID string, ds *model.Dataset) (*run, error) {
	errs := NewErrorHandler(logger.Named("errors"))

	dc, err := cleaner.NewDataCleaner(logger, runID, p.opts.DatasetName,
		cleaner.WithFailureRecorder(errs),
		cleaner.WithOperationTrail(p.opts.Recorder != nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create data cleaner: %w", err)
	}
	filler, err := impute.NewFiller(logger, dc, p.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create filler: %w", err)
	}
	corrector, err := outlier.NewCorrector(logger, dc, p.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create outlier corrector: %w", err)
	}

	return &run{
		logger:     logger,
		opts:       p.opts,
		ds:         ds,
		cleaner:    dc,
		filler:     filler,
		corrector:  corrector,
		errors:     errs,
		metrics:    NewRunMetrics(logger, runID),
		unresolved: make(map[string]int),
	}, nil
}

type stage struct {
	name  string
	apply func(r *run, ctx context.Context) (int, error)
}

func stages() []stage {
	return []stage{
		{StageNormalizeText, (*run).normalizeText},
		{StageParseFields, (*run).parseFields},
		{StageCoerceNumeric, (*run).coerceNumeric},
		{StageFillIdentity, fillStage(StageFillIdentity, directional(identityColumns))},
		{StageFillGroupMean, fillStage(StageFillGroupMean, groupMean(meanFillColumns))},
		{StageInterpolate, (*run).interpolate},
		{StageScrubNegative, (*run).scrubNegative},
		{StageRemapSentinel, (*run).remapSentinel},
		{StageFillDirectional, fillStage(StageFillDirectional, directional(directionalFills))},
		{StageFillConstant, fillStage(StageFillConstant, constantZero(zeroFillColumns))},
		{StageCoerceOutlierColumns, (*run).coerceOutlierColumns},
		{StageComputeBounds, (*run).computeBounds},
		{StageCorrectOutliers, (*run).correctOutliers},
	}
}

func (r *run) normalizeText(_ context.Context) (int, error) {
	return r.cleaner.NormalizeDataset(r.ds), nil
}

func (r *run) parseFields(_ context.Context) (int, error) {
	fields := []struct {
		column string
		fn     parser.Func
	}{
		{model.ColCreditHistoryAge, parser.ParseDuration},
		{model.ColID, parser.DecodeHex},
		{model.ColCustomerID, parser.DecodeCompositeHex},
		{model.ColMonth, parser.MapMonth},
		{model.ColTypeOfLoan, parser.NormalizeLoanType},
		{model.ColSSN, parser.SSNNormalizer(r.opts.SSNPolicy)},
	}

	total := 0
	for _, f := range fields {
		n, err := r.cleaner.ApplyParser(r.ds, f.column, StageParseFields, f.fn)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// coerceNumeric also builds the group index; Customer_ID is final from here on
func (r *run) coerceNumeric(_ context.Context) (int, error) {
	n, err := r.cleaner.CoerceNumeric(r.ds, StageCoerceNumeric, coercedColumns...)
	if err != nil {
		return n, err
	}

	idx, err := group.Build(r.ds, model.ColCustomerID)
	if err != nil {
		return n, fmt.Errorf("failed to build group index: %w", err)
	}
	r.idx = idx
	r.logger.Debug("Built group index",
		zap.Int("groups", idx.Len()),
		zap.Int("ungroupedRows", len(idx.Ungrouped())))
	return n, nil
}

func (r *run) interpolate(_ context.Context) (int, error) {
	return r.cleaner.Interpolate(r.ds, model.ColCreditHistoryAge)
}

func (r *run) scrubNegative(_ context.Context) (int, error) {
	return r.cleaner.ScrubNegative(r.ds, model.ColAge)
}

func (r *run) remapSentinel(_ context.Context) (int, error) {
	return r.cleaner.RemapSentinel(r.ds, model.ColPaymentOfMinAmount, PaymentSentinel)
}

func (r *run) coerceOutlierColumns(_ context.Context) (int, error) {
	return r.cleaner.CoerceNumeric(r.ds, StageCoerceOutlierColumns, outlierColumns...)
}

func (r *run) computeBounds(_ context.Context) (int, error) {
	bounds, err := outlier.ComputeBounds(r.ds, r.opts.LowerQuantile, r.opts.UpperQuantile, boundedColumns...)
	if err != nil {
		return 0, err
	}
	r.bounds = bounds
	for column, b := range bounds {
		r.logger.Debug("Computed outlier bounds",
			zap.String("column", column),
			zap.Float64("lower", b.Lower),
			zap.Float64("upper", b.Upper))
	}
	return 0, nil
}

func (r *run) correctOutliers(ctx context.Context) (int, error) {
	results, err := r.corrector.Correct(ctx, r.ds, r.idx, StageCorrectOutliers, r.bounds)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, res := range results {
		total += res.Corrected
	}
	return total, nil
}

func fillStage(name string, policies []impute.Policy) func(*run, context.Context) (int, error) {
	return func(r *run, ctx context.Context) (int, error) {
		results, err := r.filler.Apply(ctx, r.ds, r.idx, name, policies...)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, res := range results {
			total += res.Filled
			r.unresolved[res.Column] = res.Unresolved
			r.errors.RecordGroupUndefined(res.Column, res.Unresolved)
		}
		return total, nil
	}
}

func directional(columns []string) []impute.Policy {
	policies := make([]impute.Policy, len(columns))
	for i, c := range columns {
		policies[i] = impute.Directional(c)
	}
	return policies
}

func groupMean(columns []string) []impute.Policy {
	policies := make([]impute.Policy, len(columns))
	for i, c := range columns {
		policies[i] = impute.GroupMean(c)
	}
	return policies
}

func constantZero(columns []string) []impute.Policy {
	policies := make([]impute.Policy, len(columns))
	for i, c := range columns {
		policies[i] = impute.Constant(c, model.Number(0))
	}
	return policies
}
