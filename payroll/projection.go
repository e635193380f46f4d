/*
projection.go - Amount payable for one calendar month

PURPOSE:
  Projects the base salary payable in (year, month) under the payout-month
  rule: a new annual salary takes effect in the payout month, and the months
  before it are settled retroactively in that month. Payslip, general-ledger
  and withholding exports all read this figure.

INPUTS:
  monthsBeforePayout = max(0, payoutMonth - 1)
  fte                = FTE(year, month) / 100
  cur                = monthlyGross(year) + seniorityBonus(year)
  prev               = monthlyGross(year - 1), 0 when absent

REGIMES:
  A  month <= monthsBeforePayout
       prev > 0:  (prev + seniority) * fte
       prev <= 0: (monthlyGross(year) + seniority) * fte
  B  month == payoutMonth
       cur * fte + sum over k in 1..monthsBeforePayout of
       (monthlyGross(year) - prev) * factor(k)
       factor(1) = 1, factor(k > 1) = fte at the payout month
       back-pay is 0 when prev <= 0 or this year has no declaration
  C  month > payoutMonth
       cur * fte

  Without a declaration for the year, monthlyGross(year) and seniority are 0:
  A still pays the prior rate, B and C pay 0.

  January is always settled at the full rate. Later pre-payout months are
  re-rated at the percentage in effect in the payout month.

PURITY:
  ProjectMonth is a pure function of ProjectionInput. Projector.Project only
  loads the inputs; the payout month is always an argument.
*/
package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PURE PROJECTION
// =============================================================================

type Regime string

const (
	RegimePriorRate Regime = "prior_rate" // A
	RegimePayout    Regime = "payout"     // B
	RegimeCurrent   Regime = "current"    // C
)

// ProjectionInput carries every value the projection depends on.
type ProjectionInput struct {
	Month       int
	PayoutMonth int

	HasCurrent       bool            // a declaration exists for this year
	MonthlyGross     decimal.Decimal // this year's monthlyGross
	SeniorityBonus   decimal.Decimal // this year's seniority bonus
	PrevMonthlyGross decimal.Decimal // last year's monthlyGross, zero if absent

	FTE       decimal.Decimal // percentage in effect in Month
	PayoutFTE decimal.Decimal // percentage in effect in PayoutMonth
}

// Projection is the amount payable plus the figures that produced it.
type Projection struct {
	Year        int
	Month       int
	PayoutMonth int
	Regime      Regime
	FTE         decimal.Decimal
	Base        decimal.Decimal
	BackPay     decimal.Decimal
	Amount      decimal.Decimal
}

// ProjectMonth applies the regime rules. Month and PayoutMonth must already
// be validated.
func ProjectMonth(in ProjectionInput) Projection {
	monthsBeforePayout := in.PayoutMonth - 1
	if monthsBeforePayout < 0 {
		monthsBeforePayout = 0
	}
	fte := in.FTE.Div(hundred)
	cur := in.MonthlyGross.Add(in.SeniorityBonus)
	hasPrev := in.PrevMonthlyGross.IsPositive()

	out := Projection{
		Month:       in.Month,
		PayoutMonth: in.PayoutMonth,
		FTE:         in.FTE,
		BackPay:     decimal.Zero,
	}

	switch {
	case in.Month <= monthsBeforePayout:
		out.Regime = RegimePriorRate
		if hasPrev {
			out.Base = in.PrevMonthlyGross.Add(in.SeniorityBonus).Mul(fte)
		} else {
			out.Base = in.MonthlyGross.Add(in.SeniorityBonus).Mul(fte)
		}

	case in.Month == in.PayoutMonth:
		out.Regime = RegimePayout
		out.Base = cur.Mul(fte)
		if in.HasCurrent && hasPrev && monthsBeforePayout > 0 {
			out.BackPay = backPay(in.MonthlyGross.Sub(in.PrevMonthlyGross), in.PayoutFTE.Div(hundred), monthsBeforePayout)
		}

	default:
		out.Regime = RegimeCurrent
		out.Base = cur.Mul(fte)
	}

	out.Base = roundMoney(out.Base)
	out.BackPay = roundMoney(out.BackPay)
	out.Amount = out.Base.Add(out.BackPay)
	return out
}

func backPay(raise, payoutFTE decimal.Decimal, months int) decimal.Decimal {
	total := decimal.Zero
	for k := 1; k <= months; k++ {
		factor := payoutFTE
		if k == 1 {
			factor = decimal.NewFromInt(1)
		}
		total = total.Add(raise.Mul(factor))
	}
	return total
}

// =============================================================================
// PROJECTOR - loads inputs from the store
// =============================================================================

type Projector struct {
	Store Store
	// FTE resolves percentages; nil resolves directly against Store.
	FTE *FTEResolver
}

// Project computes the amount payable for (year, month) given payoutMonth.
func (p *Projector) Project(ctx context.Context, employeeID EmployeeID, year, month, payoutMonth int) (Projection, error) {
	if month < 1 || month > 12 {
		return Projection{}, invalid("month", month, ErrInvalidMonth)
	}
	if payoutMonth < 1 || payoutMonth > 12 {
		return Projection{}, invalid("payout_month", payoutMonth, ErrInvalidPayoutMonth)
	}
	if err := requireEmployee(ctx, p.Store, employeeID); err != nil {
		return Projection{}, err
	}

	in := ProjectionInput{
		Month:            month,
		PayoutMonth:      payoutMonth,
		MonthlyGross:     decimal.Zero,
		SeniorityBonus:   decimal.Zero,
		PrevMonthlyGross: decimal.Zero,
	}

	cur, err := p.Store.GetSalary(ctx, employeeID, year)
	if err != nil {
		return Projection{}, err
	}
	if cur != nil {
		in.HasCurrent = true
		in.MonthlyGross = cur.MonthlyGross
		in.SeniorityBonus = cur.SeniorityBonus
	}
	prev, err := p.Store.GetSalary(ctx, employeeID, year-1)
	if err != nil {
		return Projection{}, err
	}
	if prev != nil {
		in.PrevMonthlyGross = prev.MonthlyGross
	}

	resolver := p.FTE
	if resolver == nil {
		resolver = &FTEResolver{Store: p.Store}
	}
	if in.FTE, err = resolver.Resolve(ctx, employeeID, year, month); err != nil {
		return Projection{}, err
	}
	if in.PayoutFTE, err = resolver.Resolve(ctx, employeeID, year, payoutMonth); err != nil {
		return Projection{}, err
	}

	out := ProjectMonth(in)
	out.Year = year
	return out, nil
}

// ProjectYear returns the twelve monthly projections of a year.
func (p *Projector) ProjectYear(ctx context.Context, employeeID EmployeeID, year, payoutMonth int) ([]Projection, error) {
	out := make([]Projection, 0, 12)
	for month := 1; month <= 12; month++ {
		proj, err := p.Project(ctx, employeeID, year, month, payoutMonth)
		if err != nil {
			return nil, err
		}
		out = append(out, proj)
	}
	return out, nil
}
