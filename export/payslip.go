/*
Package export assembles payslips from the payroll engine.

PURPOSE:
  A payslip for one employee and one month combines three sources:
    1. the projected base salary (and back-pay in the payout month)
    2. the monthly income and deduction concept rows
    3. carry-over movements: amounts deferred into this month are added to
       their concept line, amounts deferred out of it are removed

  Gross = sum of earning lines, Deductions = sum of deduction lines,
  Net = Gross - Deductions.

SEE ALSO:
  - payroll/projection.go: base salary
  - payroll/carryover.go: NetForPeriod
  - pdf.go: PDF rendering
*/
package export

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// Line codes that are not concept fields.
const (
	CodeBaseSalary = "salario_base"
	CodeBackPay    = "atrasos"
)

var labels = map[string]string{
	CodeBaseSalary: "Salario base",
	CodeBackPay:    "Atrasos",

	string(payroll.FieldTicketRestaurant): "Ticket restaurante",
	string(payroll.FieldHealthInsurance):  "Seguro médico",
	string(payroll.FieldTransport):        "Transporte",
	string(payroll.FieldChildcare):        "Guardería",
	string(payroll.FieldTraining):         "Formación",
	string(payroll.FieldAgreementBonus):   "Plus convenio",
	string(payroll.FieldOvertime):         "Horas extra",
	string(payroll.FieldOtherIncome):      "Otros ingresos",

	string(payroll.FieldInKindContribution): "Cotización en especie",
	string(payroll.FieldAdvance):            "Anticipo",
	string(payroll.FieldGarnishment):        "Embargo",
	string(payroll.FieldLoan):               "Préstamo",
	string(payroll.FieldUnionFee):           "Cuota sindical",
	string(payroll.FieldOtherDeduction):     "Otras deducciones",
}

// Label returns the display name of a line code.
func Label(code string) string {
	if l, ok := labels[code]; ok {
		return l
	}
	return code
}

// Line is one row of the payslip.
type Line struct {
	Code       string
	Label      string
	Amount     decimal.Decimal
	CarriedIn  decimal.Decimal
	CarriedOut decimal.Decimal
}

type Payslip struct {
	Employee    payroll.Employee
	Period      payroll.YearMonth
	PayoutMonth int
	Projection  payroll.Projection

	Earnings   []Line
	Deductions []Line

	Gross           decimal.Decimal
	TotalDeductions decimal.Decimal
	Net             decimal.Decimal

	GeneratedAt time.Time
}

// PayslipBuilder reads everything a payslip needs through the engine.
type PayslipBuilder struct {
	Engine *payroll.Engine
	Now    func() time.Time
}

// Build assembles the payslip of (year, month) under payoutMonth.
func (b *PayslipBuilder) Build(ctx context.Context, employeeID payroll.EmployeeID, year, month, payoutMonth int) (*Payslip, error) {
	proj, err := b.Engine.Projector.Project(ctx, employeeID, year, month, payoutMonth)
	if err != nil {
		return nil, err
	}
	emp, err := b.Engine.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	period := payroll.NewYearMonth(year, month)
	carry, err := b.Engine.CarryOvers.NetForPeriod(ctx, employeeID, period)
	if err != nil {
		return nil, err
	}

	slip := &Payslip{
		Employee:    *emp,
		Period:      period,
		PayoutMonth: payoutMonth,
		Projection:  proj,
		GeneratedAt: b.now(),
	}
	slip.Earnings = append(slip.Earnings, plainLine(CodeBaseSalary, proj.Base))
	if !proj.BackPay.IsZero() {
		slip.Earnings = append(slip.Earnings, plainLine(CodeBackPay, proj.BackPay))
	}

	income, err := b.conceptLines(ctx, employeeID, year, month, payroll.FamilyIncome, carry)
	if err != nil {
		return nil, err
	}
	slip.Earnings = append(slip.Earnings, income...)

	slip.Deductions, err = b.conceptLines(ctx, employeeID, year, month, payroll.FamilyDeduction, carry)
	if err != nil {
		return nil, err
	}

	slip.Gross = sum(slip.Earnings)
	slip.TotalDeductions = sum(slip.Deductions)
	slip.Net = slip.Gross.Sub(slip.TotalDeductions)
	return slip, nil
}

func (b *PayslipBuilder) conceptLines(ctx context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily, carry map[payroll.Field]payroll.CarryOverNet) ([]Line, error) {
	row, err := b.Engine.Concepts.MonthlyConcepts(ctx, employeeID, year, month, family)
	if err != nil {
		return nil, err
	}

	var lines []Line
	for _, field := range family.Fields() {
		value, hasValue := row.Values[field]
		net, hasCarry := carry[field]
		if !hasValue && !hasCarry {
			continue
		}
		line := plainLine(string(field), value)
		if hasCarry {
			line.CarriedIn = net.Incoming
			line.CarriedOut = net.Outgoing
			line.Amount = line.Amount.Sub(net.Outgoing).Add(net.Incoming)
		}
		if line.Amount.IsZero() && !hasCarry {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func plainLine(code string, amount decimal.Decimal) Line {
	return Line{
		Code:       code,
		Label:      Label(code),
		Amount:     amount,
		CarriedIn:  decimal.Zero,
		CarriedOut: decimal.Zero,
	}
}

func sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func (b *PayslipBuilder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}
