package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// feedRow is one raw credit record; unlisted required columns repeat base
type feedRow map[string]string

var base = feedRow{
	model.ColID:                    "0x1602",
	model.ColCustomerID:            "CUS_0xd40",
	model.ColMonth:                 "January",
	model.ColName:                  "Aaron Maashoh",
	model.ColAge:                   "23",
	model.ColSSN:                   "821-00-0265",
	model.ColOccupation:            "Scientist",
	model.ColAnnualIncome:          "19114.12",
	model.ColMonthlyInhandSalary:   "1824.84",
	model.ColNumBankAccounts:       "3",
	model.ColNumCreditCard:         "4",
	model.ColInterestRate:          "3",
	model.ColNumOfLoan:             "4",
	model.ColTypeOfLoan:            "Auto Loan, Credit-Builder Loan, and Home Equity Loan",
	model.ColNumOfDelayedPayment:   "7",
	model.ColChangedCreditLimit:    "11.27",
	model.ColNumCreditInquiries:    "4",
	model.ColCreditMix:             "Good",
	model.ColCreditHistoryAge:      "22 Years 1 Months",
	model.ColPaymentOfMinAmount:    "No",
	model.ColAmountInvestedMonthly: "80.41",
	model.ColMonthlyBalance:        "312.49",
}

// rawDataset builds a dataset the way the CSV loader does: every field is
// Text and empty fields are Missing
func rawDataset(t *testing.T, rows ...feedRow) *model.Dataset {
	t.Helper()

	columns := model.CreditSchema().RequiredColumns()
	ds, err := model.NewDataset(columns)
	require.NoError(t, err)

	for _, overrides := range rows {
		rec := make(model.Record, len(columns))
		for _, column := range columns {
			v, ok := overrides[column]
			if !ok {
				v = base[column]
			}
			if v == "" {
				rec[column] = model.Missing()
			} else {
				rec[column] = model.Text(v)
			}
		}
		require.NoError(t, ds.AppendRecord(rec))
	}
	return ds
}

func oneCustomer(t *testing.T) *model.Dataset {
	return rawDataset(t,
		feedRow{model.ColID: "0x1602", model.ColAge: "", model.ColCreditMix: "_"},
		feedRow{
			model.ColID:                  "0x1603",
			model.ColMonth:               "February",
			model.ColName:                "",
			model.ColMonthlyInhandSalary: "",
			model.ColPaymentOfMinAmount:  "NM",
			model.ColCreditHistoryAge:    "",
			model.ColNumOfDelayedPayment: "",
			model.ColCreditMix:           "_",
		},
		feedRow{
			model.ColID:                  "0x1604",
			model.ColMonth:               "March",
			model.ColAge:                 "",
			model.ColSSN:                 "#F%$D@*&8",
			model.ColCreditHistoryAge:    "22 Years 3 Months",
			model.ColNumOfDelayedPayment: "8_",
			model.ColCreditMix:           "_",
		},
	)
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(zap.NewNop(), DefaultOptions())
	require.NoError(t, err)
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	in := oneCustomer(t)
	out, report, err := newPipeline(t).Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, report)

	for row := 0; row < out.Len(); row++ {
		assert.Equal(t, model.Text("Aaron Maashoh"), out.Get(row, model.ColName), "row %d name", row)
		assert.Equal(t, model.Number(23), out.Get(row, model.ColAge), "row %d age", row)
		assert.Equal(t, model.Number(3392), out.Get(row, model.ColCustomerID))
		assert.Equal(t, model.Number(float64(row+1)), out.Get(row, model.ColMonth))
		assert.Equal(t, model.Text("821-00-0265"), out.Get(row, model.ColSSN))
		assert.Equal(t, model.Text("No"), out.Get(row, model.ColPaymentOfMinAmount))
		assert.Equal(t, model.Number(1824.84), out.Get(row, model.ColMonthlyInhandSalary))
		assert.Equal(t, model.Text("auto loan, credit-builder loan,  home equity loan"), out.Get(row, model.ColTypeOfLoan))
		assert.True(t, out.Get(row, model.ColCreditMix).IsMissing(), "no group value to fill from")
	}

	assert.Equal(t, model.Number(5635), out.Get(1, model.ColID))
	assert.Equal(t, []model.Cell{model.Number(265), model.Number(266), model.Number(267)},
		[]model.Cell{
			out.Get(0, model.ColCreditHistoryAge),
			out.Get(1, model.ColCreditHistoryAge),
			out.Get(2, model.ColCreditHistoryAge),
		})
	assert.Equal(t, model.Text("7"), out.Get(0, model.ColNumOfDelayedPayment), "constant fill leaves text")
	assert.Equal(t, model.Number(0), out.Get(1, model.ColNumOfDelayedPayment))
	assert.Equal(t, model.Text("8"), out.Get(2, model.ColNumOfDelayedPayment))

	assert.Equal(t, map[string]int{model.ColCreditMix: 3}, nonZero(report.Final()))
	assert.Equal(t, 3, report.Unresolved[model.ColCreditMix])
	assert.Empty(t, report.ParseFailures)
	assert.Equal(t, StageNames(), stageNames(report))
}

func TestRun_MissingNeverIncreasesAcrossFills(t *testing.T) {
	_, report, err := newPipeline(t).Run(context.Background(), oneCustomer(t))
	require.NoError(t, err)

	fills := map[string]bool{
		StageFillIdentity:    true,
		StageFillGroupMean:   true,
		StageInterpolate:     true,
		StageFillDirectional: true,
		StageFillConstant:    true,
		StageCorrectOutliers: true,
	}

	prev := report.Initial
	for _, s := range report.Stages {
		if fills[s.Name] {
			for column, n := range s.Missing {
				assert.LessOrEqual(t, n, prev[column], "%s raised missing count of %s", s.Name, column)
			}
		}
		prev = s.Missing
	}

	name, ok := report.Stage(StageFillIdentity)
	require.True(t, ok)
	assert.Zero(t, name.Missing[model.ColName])

	age, ok := report.Stage(StageFillGroupMean)
	require.True(t, ok)
	assert.Zero(t, age.Missing[model.ColAge])
}

func TestRun_InputUntouched(t *testing.T) {
	in := oneCustomer(t)
	before := in.Clone()

	_, _, err := newPipeline(t).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestRun_Idempotent(t *testing.T) {
	p := newPipeline(t)

	first, _, err := p.Run(context.Background(), oneCustomer(t))
	require.NoError(t, err)

	second, report, err := p.Run(context.Background(), first)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for stage, n := range report.Changes() {
		assert.Zero(t, n, "stage %s changed cells on cleaned input", stage)
	}
}

func TestRun_SchemaMismatchStopsBeforeAnyStage(t *testing.T) {
	ds, err := model.NewDataset([]string{model.ColID, model.ColName})
	require.NoError(t, err)
	require.NoError(t, ds.AppendRow([]model.Cell{model.Text(" 0x1602_"), model.Text("Ann")}))
	before := ds.Clone()

	out, report, err := newPipeline(t).Run(context.Background(), ds)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, model.ErrSchemaMismatch))

	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, model.ColCustomerID)
	assert.Equal(t, before, ds)
}

func TestRun_ParseFailuresDegradeToMissing(t *testing.T) {
	in := rawDataset(t,
		feedRow{model.ColMonth: "Janvier", model.ColID: "0xZZ"},
		feedRow{model.ColID: "0x1603"},
	)
	out, report, err := newPipeline(t).Run(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, out.Get(0, model.ColMonth).IsMissing())
	assert.True(t, out.Get(0, model.ColID).IsMissing())
	assert.Equal(t, 1, report.ParseFailures[model.ColMonth])
	assert.Equal(t, 1, report.ParseFailures[model.ColID])

	samples := report.Errors.GetErrorSamples()[model.ColMonth]
	require.Len(t, samples, 1)
	assert.Equal(t, StageParseFields, samples[0].Stage)
	assert.Equal(t, "Janvier", samples[0].SourceValue)
	assert.Equal(t, 0, samples[0].RowIndex)
}

func TestRun_CorrectsOutliersWithGroupMode(t *testing.T) {
	rows := make([]feedRow, 0, 40)
	for i := 0; i < 40; i++ {
		row := feedRow{model.ColCustomerID: "CUS_0x1"}
		if i >= 20 {
			row[model.ColCustomerID] = "CUS_0x2"
			row[model.ColNumBankAccounts] = "5"
		}
		rows = append(rows, row)
	}
	rows[3][model.ColNumBankAccounts] = "1500"

	out, report, err := newPipeline(t).Run(context.Background(), rawDataset(t, rows...))
	require.NoError(t, err)

	assert.Equal(t, model.Number(3), out.Get(3, model.ColNumBankAccounts))
	assert.Equal(t, model.Number(5), out.Get(25, model.ColNumBankAccounts))
	corrected, ok := report.Stage(StageCorrectOutliers)
	require.True(t, ok)
	assert.Equal(t, 1, corrected.Changed)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _, err := newPipeline(t).Run(ctx, oneCustomer(t))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_RecordsOperations(t *testing.T) {
	rec := &memoryRecorder{}
	opts := DefaultOptions()
	opts.Recorder = rec
	opts.RunID = "run-1"

	p, err := New(zap.NewNop(), opts)
	require.NoError(t, err)

	_, report, err := p.Run(context.Background(), oneCustomer(t))
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)

	total := 0
	for _, n := range report.Changes() {
		total += n
	}
	require.Len(t, rec.ops, total)
	for _, op := range rec.ops {
		assert.Equal(t, "run-1", op.RunID)
		assert.NotEmpty(t, op.CleaningOperation)
	}
}

func TestReport_WriteDiagnostics(t *testing.T) {
	_, report, err := newPipeline(t).Run(context.Background(), oneCustomer(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteDiagnostics(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(report.Columns)+2)
	assert.True(t, strings.HasPrefix(lines[1], model.ColID))
	assert.Regexp(t, `^Credit_Mix\s+3$`, lines[1+indexOf(report.Columns, model.ColCreditMix)])
	assert.Regexp(t, `^total\s+3$`, lines[len(lines)-1])
}

func TestRunMetrics_WriteTextfile(t *testing.T) {
	_, report, err := newPipeline(t).Run(context.Background(), oneCustomer(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "creditclean.prom")
	require.NoError(t, report.Metrics.WriteTextfile(path))

	families, err := report.Metrics.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "creditclean_missing_cells")
	assert.Contains(t, names, "creditclean_stage_changed_cells")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.LowerQuantile, opts.UpperQuantile = 0.9, 0.1
	_, err = New(zap.NewNop(), opts)
	assert.Error(t, err)
}

type memoryRecorder struct {
	ops []model.CleaningOperation
}

func (m *memoryRecorder) RecordCleaningOperations(_ context.Context, ops []model.CleaningOperation) error {
	m.ops = append(m.ops, ops...)
	return nil
}

func nonZero(counts map[string]int) map[string]int {
	out := make(map[string]int)
	for k, v := range counts {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func stageNames(r *Report) []string {
	names := make([]string, len(r.Stages))
	for i, s := range r.Stages {
		names[i] = s.Name
	}
	return names
}

func indexOf(items []string, want string) int {
	for i, s := range items {
		if s == want {
			return i
		}
	}
	return -1
}
