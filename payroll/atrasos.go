/*
atrasos.go - Retroactive back-pay (atrasos) cascade over the salary ledger

PURPOSE:
  A raise negotiated for year Y is paid from the payout month onward, and
  the months before it are settled as atrasos. Atrasos for Y depend on the
  stored annual gross of Y and of Y-1, so any change to year Y must ripple
  into every later year's derived fields.

FORMULA (for a year Y with a declaration for Y-1):
  atrasos(Y)                 = (annual(Y) - annual(Y-1)) / modality(Y) * 3
  monthlyGross(Y)            = annual(Y) / modality(Y)
  monthlyGrossWithAtrasos(Y) = monthlyGross(Y) + atrasos(Y)

  Modalities other than 12 or 14 divide by 12 and carry no atrasos.
  Years without a declaration for Y-1 are left untouched.
  annualGross is never written by the cascade.

ATOMICITY:
  The whole pass runs inside one TxStore.WithTx. A failure on any year rolls
  back the years already written and returns a *CascadeError.

SEE ALSO:
  - projection.go: consumes MonthlyGross of the current and previous year
*/
package payroll

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// AtrasosMonths is the number of pre-payout months settled through atrasos.
const AtrasosMonths = 3

var atrasosFactor = decimal.NewFromInt(AtrasosMonths)

// =============================================================================
// CASCADE
// =============================================================================

type AtrasosCascade struct {
	Store  TxStore
	Logger *slog.Logger
}

// SalaryInput is a direct edit of one year's salary terms.
type SalaryInput struct {
	EmployeeID     EmployeeID
	Year           int
	Modality       Modality
	AnnualGross    decimal.Decimal
	SeniorityBonus decimal.Decimal
}

// SalaryChange is returned by UpsertSalary so callers can describe the edit.
type SalaryChange struct {
	Before *SalaryDeclaration
	After  SalaryDeclaration
	// Cascaded lists the later years whose derived fields were rewritten.
	Cascaded []int
}

// RecomputeForward rewrites the derived fields of every year after baseYear.
func (c *AtrasosCascade) RecomputeForward(ctx context.Context, employeeID EmployeeID, baseYear int) ([]int, error) {
	var touched []int
	err := c.Store.WithTx(ctx, func(s Store) error {
		var err error
		touched, err = recomputeForward(ctx, s, employeeID, baseYear)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger().Debug("atrasos cascade applied",
		"employee_id", employeeID, "base_year", baseYear, "years", touched)
	return touched, nil
}

// UpsertSalary writes year's salary terms, derives its own fields from the
// stored previous year, then cascades to later years. One transaction.
func (c *AtrasosCascade) UpsertSalary(ctx context.Context, in SalaryInput) (*SalaryChange, error) {
	if in.Modality <= 0 {
		return nil, invalid("modality", in.Modality, ErrInvalidModality)
	}
	if in.AnnualGross.IsNegative() {
		return nil, invalid("annual_gross", in.AnnualGross, ErrNegativeAmount)
	}
	if in.SeniorityBonus.IsNegative() {
		return nil, invalid("seniority_bonus", in.SeniorityBonus, ErrNegativeAmount)
	}
	if err := requireEmployee(ctx, c.Store, in.EmployeeID); err != nil {
		return nil, err
	}

	change := &SalaryChange{}
	err := c.Store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetSalary(ctx, in.EmployeeID, in.Year)
		if err != nil {
			return err
		}
		prev, err := s.GetSalary(ctx, in.EmployeeID, in.Year-1)
		if err != nil {
			return err
		}

		decl := SalaryDeclaration{
			EmployeeID:     in.EmployeeID,
			Year:           in.Year,
			Modality:       in.Modality,
			AnnualGross:    in.AnnualGross,
			SeniorityBonus: in.SeniorityBonus,
		}
		if existing != nil {
			before := *existing
			change.Before = &before
			decl.Atrasos = existing.Atrasos
		}
		decl = DeriveSalary(decl, prev)
		if err := s.SaveSalary(ctx, decl); err != nil {
			return &CascadeError{Operation: "save salary", EmployeeID: in.EmployeeID, Year: in.Year, Err: err}
		}
		change.After = decl

		change.Cascaded, err = recomputeForward(ctx, s, in.EmployeeID, in.Year)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger().Info("salary declaration saved",
		"employee_id", in.EmployeeID, "year", in.Year, "cascaded", change.Cascaded)
	return change, nil
}

func recomputeForward(ctx context.Context, s Store, employeeID EmployeeID, baseYear int) ([]int, error) {
	decls, err := s.ListSalaries(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Year < decls[j].Year })

	// Stored values as read before this pass; annual gross is never rewritten.
	byYear := make(map[int]SalaryDeclaration, len(decls))
	for _, d := range decls {
		byYear[d.Year] = d
	}

	var touched []int
	for _, decl := range decls {
		if decl.Year <= baseYear {
			continue
		}
		prev, ok := byYear[decl.Year-1]
		if !ok {
			continue
		}
		updated := DeriveSalary(decl, &prev)
		if err := s.SaveSalary(ctx, updated); err != nil {
			return nil, &CascadeError{Operation: "recompute atrasos", EmployeeID: employeeID, Year: decl.Year, Err: err}
		}
		touched = append(touched, decl.Year)
	}
	return touched, nil
}

// DeriveSalary fills MonthlyGross, Atrasos and MonthlyGrossWithAtrasos.
// With prev == nil the existing Atrasos value is kept.
func DeriveSalary(decl SalaryDeclaration, prev *SalaryDeclaration) SalaryDeclaration {
	divisor := decl.Modality.Divisor()
	decl.MonthlyGross = roundMoney(decl.AnnualGross.Div(divisor))
	if prev != nil {
		if decl.Modality.Standard() {
			decl.Atrasos = roundMoney(decl.AnnualGross.Sub(prev.AnnualGross).Div(divisor).Mul(atrasosFactor))
		} else {
			decl.Atrasos = decimal.Zero
		}
	}
	decl.MonthlyGrossWithAtrasos = decl.MonthlyGross.Add(decl.Atrasos)
	return decl
}

func roundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func (c *AtrasosCascade) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
