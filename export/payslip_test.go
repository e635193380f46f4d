package export_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/export"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

const emp payroll.EmployeeID = "emp-1"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

// newBuilder seeds 2024 at 24000 and 2025 at 26400 (2000 -> 2200 a month),
// ticket_restaurant 50 for all of 2025, an advance of 100 in April, and
// 120 of March overtime deferred into April.
func newBuilder(t *testing.T) *export.PayslipBuilder {
	t.Helper()
	ctx := context.Background()
	s := store.NewTxMemory()
	require.NoError(t, s.SaveEmployee(ctx, payroll.Employee{ID: emp, Name: "Ana Ruiz", CostCenter: "CC-100", Active: true}))

	engine := payroll.NewEngine(s, nil)
	for _, in := range []payroll.SalaryInput{
		{EmployeeID: emp, Year: 2024, Modality: payroll.Modality12, AnnualGross: d("24000")},
		{EmployeeID: emp, Year: 2025, Modality: payroll.Modality12, AnnualGross: d("26400")},
	} {
		_, err := engine.Atrasos.UpsertSalary(ctx, in)
		require.NoError(t, err)
	}

	income, err := payroll.NewConceptPatch(payroll.FamilyIncome, map[payroll.Field]decimal.Decimal{
		payroll.FieldTicketRestaurant: d("50"),
	})
	require.NoError(t, err)
	_, err = engine.Concepts.PropagateYearToMonths(ctx, emp, 2025, income)
	require.NoError(t, err)

	advance, err := payroll.NewConceptPatch(payroll.FamilyDeduction, map[payroll.Field]decimal.Decimal{
		payroll.FieldAdvance: d("100"),
	})
	require.NoError(t, err)
	_, err = engine.Concepts.UpsertMonthlyConcept(ctx, emp, 2025, 4, advance)
	require.NoError(t, err)

	overtime, err := payroll.NewConceptPatch(payroll.FamilyIncome, map[payroll.Field]decimal.Decimal{
		payroll.FieldOvertime: d("120"),
	})
	require.NoError(t, err)
	_, err = engine.Concepts.UpsertMonthlyConcept(ctx, emp, 2025, 3, overtime)
	require.NoError(t, err)

	_, err = engine.CarryOvers.CreateBatch(ctx, emp, 2025, 3,
		[]payroll.CarryOverItem{{Concept: payroll.FieldOvertime, Amount: d("120")}},
		[]payroll.Field{payroll.FieldOvertime})
	require.NoError(t, err)

	fixed := time.Date(2025, 4, 28, 9, 0, 0, 0, time.UTC)
	return &export.PayslipBuilder{Engine: engine, Now: func() time.Time { return fixed }}
}

func lineByCode(lines []export.Line, code string) (export.Line, bool) {
	for _, l := range lines {
		if l.Code == code {
			return l, true
		}
	}
	return export.Line{}, false
}

// =============================================================================
// BUILD
// =============================================================================

func TestBuild_PayoutMonth(t *testing.T) {
	// GIVEN: The seeded employee and payout in April
	// WHEN: The April payslip is built
	// THEN: Back-pay, concept lines and the deferred overtime all appear

	slip, err := newBuilder(t).Build(context.Background(), emp, 2025, 4, 4)
	require.NoError(t, err)

	assert.Equal(t, "Ana Ruiz", slip.Employee.Name)
	assert.Equal(t, payroll.NewYearMonth(2025, 4), slip.Period)

	base, ok := lineByCode(slip.Earnings, export.CodeBaseSalary)
	require.True(t, ok)
	assertDecimal(t, "2200", base.Amount)

	backPay, ok := lineByCode(slip.Earnings, export.CodeBackPay)
	require.True(t, ok)
	assertDecimal(t, "600", backPay.Amount)

	ticket, ok := lineByCode(slip.Earnings, string(payroll.FieldTicketRestaurant))
	require.True(t, ok)
	assertDecimal(t, "50", ticket.Amount)
	assert.Equal(t, "Ticket restaurante", ticket.Label)

	overtime, ok := lineByCode(slip.Earnings, string(payroll.FieldOvertime))
	require.True(t, ok)
	assertDecimal(t, "120", overtime.Amount)
	assertDecimal(t, "120", overtime.CarriedIn)

	require.Len(t, slip.Deductions, 1)
	assertDecimal(t, "100", slip.Deductions[0].Amount)

	assertDecimal(t, "2970", slip.Gross)
	assertDecimal(t, "100", slip.TotalDeductions)
	assertDecimal(t, "2870", slip.Net)
}

func TestBuild_SourceMonthLosesDeferredAmount(t *testing.T) {
	// GIVEN: 120 of March overtime deferred into April
	// WHEN: The March payslip is built
	// THEN: The overtime line nets to zero but stays visible

	slip, err := newBuilder(t).Build(context.Background(), emp, 2025, 3, 4)
	require.NoError(t, err)

	assert.Nil(t, lineOrNil(slip.Earnings, export.CodeBackPay))

	overtime, ok := lineByCode(slip.Earnings, string(payroll.FieldOvertime))
	require.True(t, ok)
	assertDecimal(t, "0", overtime.Amount)
	assertDecimal(t, "120", overtime.CarriedOut)

	// 2000 prior rate + 50 ticket
	assertDecimal(t, "2050", slip.Gross)
	assert.Empty(t, slip.Deductions)
	assertDecimal(t, "2050", slip.Net)
}

func TestBuild_UnknownEmployee(t *testing.T) {
	_, err := newBuilder(t).Build(context.Background(), "ghost", 2025, 4, 4)
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)
}

func TestBuild_InvalidMonth(t *testing.T) {
	_, err := newBuilder(t).Build(context.Background(), emp, 2025, 13, 4)
	assert.ErrorIs(t, err, payroll.ErrInvalidMonth)
}

func lineOrNil(lines []export.Line, code string) *export.Line {
	if l, ok := lineByCode(lines, code); ok {
		return &l
	}
	return nil
}

// =============================================================================
// PDF
// =============================================================================

func TestRenderPDF(t *testing.T) {
	slip, err := newBuilder(t).Build(context.Background(), emp, 2025, 4, 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, export.RenderPDF(&buf, slip))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}

func TestLabel_FallsBackToCode(t *testing.T) {
	assert.Equal(t, "Atrasos", export.Label(export.CodeBackPay))
	assert.Equal(t, "bonus_x", export.Label("bonus_x"))
}
