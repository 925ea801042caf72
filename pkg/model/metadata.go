// pkg/model/metadata.go
package model

import "strings"

// Credit record columns as they appear in the source feed
const (
	ColID                    = "ID"
	ColCustomerID            = "Customer_ID"
	ColMonth                 = "Month"
	ColName                  = "Name"
	ColAge                   = "Age"
	ColSSN                   = "SSN"
	ColOccupation            = "Occupation"
	ColAnnualIncome          = "Annual_Income"
	ColMonthlyInhandSalary   = "Monthly_Inhand_Salary"
	ColNumBankAccounts       = "Num_Bank_Accounts"
	ColNumCreditCard         = "Num_Credit_Card"
	ColInterestRate          = "Interest_Rate"
	ColNumOfLoan             = "Num_of_Loan"
	ColTypeOfLoan            = "Type_of_Loan"
	ColDelayFromDueDate      = "Delay_from_due_date"
	ColNumOfDelayedPayment   = "Num_of_Delayed_Payment"
	ColChangedCreditLimit    = "Changed_Credit_Limit"
	ColNumCreditInquiries    = "Num_Credit_Inquiries"
	ColCreditMix             = "Credit_Mix"
	ColOutstandingDebt       = "Outstanding_Debt"
	ColCreditUtilization     = "Credit_Utilization_Ratio"
	ColCreditHistoryAge      = "Credit_History_Age"
	ColPaymentOfMinAmount    = "Payment_of_Min_Amount"
	ColTotalEMIPerMonth      = "Total_EMI_per_month"
	ColAmountInvestedMonthly = "Amount_invested_monthly"
	ColPaymentBehaviour      = "Payment_Behaviour"
	ColMonthlyBalance        = "Monthly_Balance"
)

// Schema describes the column set a dataset is expected to carry
type Schema struct {
	Name    string   // Logical dataset name, used in audit records
	Columns []Column // Column definitions in feed order
}

// Column represents metadata about a dataset column
type Column struct {
	Name     string // Column name
	Kind     Kind   // Kind the column holds after cleaning
	Required bool   // Whether a pipeline stage reads or writes the column
}

// CreditSchema returns the schema of the consumer credit feed
func CreditSchema() *Schema {
	return &Schema{
		Name: "credit_records",
		Columns: []Column{
			{Name: ColID, Kind: KindNumber, Required: true},
			{Name: ColCustomerID, Kind: KindNumber, Required: true},
			{Name: ColMonth, Kind: KindNumber, Required: true},
			{Name: ColName, Kind: KindText, Required: true},
			{Name: ColAge, Kind: KindNumber, Required: true},
			{Name: ColSSN, Kind: KindText, Required: true},
			{Name: ColOccupation, Kind: KindText, Required: true},
			{Name: ColAnnualIncome, Kind: KindNumber, Required: true},
			{Name: ColMonthlyInhandSalary, Kind: KindNumber, Required: true},
			{Name: ColNumBankAccounts, Kind: KindNumber, Required: true},
			{Name: ColNumCreditCard, Kind: KindNumber, Required: true},
			{Name: ColInterestRate, Kind: KindNumber, Required: true},
			{Name: ColNumOfLoan, Kind: KindNumber, Required: true},
			{Name: ColTypeOfLoan, Kind: KindText, Required: true},
			{Name: ColDelayFromDueDate, Kind: KindText},
			{Name: ColNumOfDelayedPayment, Kind: KindText, Required: true},
			{Name: ColChangedCreditLimit, Kind: KindNumber, Required: true},
			{Name: ColNumCreditInquiries, Kind: KindNumber, Required: true},
			{Name: ColCreditMix, Kind: KindText, Required: true},
			{Name: ColOutstandingDebt, Kind: KindText},
			{Name: ColCreditUtilization, Kind: KindText},
			{Name: ColCreditHistoryAge, Kind: KindNumber, Required: true},
			{Name: ColPaymentOfMinAmount, Kind: KindText, Required: true},
			{Name: ColTotalEMIPerMonth, Kind: KindText},
			{Name: ColAmountInvestedMonthly, Kind: KindText, Required: true},
			{Name: ColPaymentBehaviour, Kind: KindText},
			{Name: ColMonthlyBalance, Kind: KindText, Required: true},
		},
	}
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (s *Schema) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range s.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &s.Columns[i]
		}
	}
	return nil
}

// RequiredColumns lists the names of all required columns in schema order
func (s *Schema) RequiredColumns() []string {
	var names []string
	for _, col := range s.Columns {
		if col.Required {
			names = append(names, col.Name)
		}
	}
	return names
}

// Validate checks that the dataset carries every required column.
// Column names are matched exactly; the pipeline addresses them verbatim.
func (s *Schema) Validate(ds *Dataset) error {
	var missing []string
	for _, name := range s.RequiredColumns() {
		if !ds.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Schema: s.Name, Missing: missing}
	}
	return nil
}

func normalizeColumnName(name string) string {
	return strings.ToLower(name)
}
