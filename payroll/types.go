/*
Package payroll provides the payroll computation and temporal consistency engine.

PURPOSE:
  Keeps a multi-year salary ledger consistent when historical values change,
  resolves part-time percentages over time, projects the amount payable for a
  calendar month, synchronizes yearly and monthly concept records, and defers
  concept amounts between payroll periods.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: EmployeeID, CarryOverID
  - YearMonth: a payroll period (calendar month)
  - SalaryDeclaration: one row per (employee, year)
  - FTEEntry: a point on the part-time timeline

DESIGN PRINCIPLES:
  1. Precision: all money and percentages use decimal.Decimal
  2. Explicit inputs: the payout month is passed in, never read from globals
  3. All-or-nothing: multi-row writes run inside TxStore.WithTx

SEE ALSO:
  - fte.go: FTE timeline resolution
  - atrasos.go: retroactive back-pay cascade
  - projection.go: monthly salary projection
  - concepts.go, propagate.go: concept records
  - carryover.go: deferred amounts
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type CarryOverID string

// =============================================================================
// MONEY HELPERS
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// FullTime is the percentage assumed when an employee has no FTE entry.
var FullTime = hundred

// MustParseDecimal parses s or returns zero.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PERIOD
// =============================================================================

// YearMonth identifies a payroll period.
type YearMonth struct {
	Year  int
	Month int
}

func NewYearMonth(year, month int) YearMonth { return YearMonth{Year: year, Month: month} }

func (p YearMonth) Valid() bool { return p.Month >= 1 && p.Month <= 12 }

// Before reports whether p is strictly earlier than other.
func (p YearMonth) Before(other YearMonth) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

func (p YearMonth) After(other YearMonth) bool { return other.Before(p) }
func (p YearMonth) Equal(other YearMonth) bool { return p == other }

// Next returns the following period (December rolls into January).
func (p YearMonth) Next() YearMonth {
	if p.Month >= 12 {
		return YearMonth{Year: p.Year + 1, Month: 1}
	}
	return YearMonth{Year: p.Year, Month: p.Month + 1}
}

func (p YearMonth) String() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }

// =============================================================================
// EMPLOYEE - owned by the outside world, read-only to the engine
// =============================================================================

type Employee struct {
	ID         EmployeeID
	Name       string
	CostCenter string
	Active     bool
}

// =============================================================================
// SALARY DECLARATION
// =============================================================================

// Modality is the number of salary payments per year.
type Modality int

const (
	Modality12 Modality = 12
	Modality14 Modality = 14
)

// Standard reports whether m is one of the supported payment schedules.
func (m Modality) Standard() bool { return m == Modality12 || m == Modality14 }

// Divisor returns the number annual gross is divided by to get a monthly
// figure. Non-standard modalities fall back to 12.
func (m Modality) Divisor() decimal.Decimal {
	if m.Standard() {
		return decimal.NewFromInt(int64(m))
	}
	return twelve
}

// SalaryDeclaration is the salary ledger row for one (employee, year).
// MonthlyGross, Atrasos and MonthlyGrossWithAtrasos are derived and kept
// consistent by AtrasosCascade.
type SalaryDeclaration struct {
	EmployeeID              EmployeeID
	Year                    int
	Modality                Modality
	AnnualGross             decimal.Decimal
	SeniorityBonus          decimal.Decimal
	MonthlyGross            decimal.Decimal
	Atrasos                 decimal.Decimal
	MonthlyGrossWithAtrasos decimal.Decimal
}

// =============================================================================
// FTE TIMELINE
// =============================================================================

// FTEEntry is in effect from (Year, Month) until a later entry supersedes it.
type FTEEntry struct {
	EmployeeID EmployeeID
	Year       int
	Month      int
	Percentage decimal.Decimal
}

func (e FTEEntry) Period() YearMonth { return YearMonth{Year: e.Year, Month: e.Month} }
