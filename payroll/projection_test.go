package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PURE PROJECTION TESTS
// =============================================================================

func raiseInput(month int) payroll.ProjectionInput {
	return payroll.ProjectionInput{
		Month:            month,
		PayoutMonth:      4,
		HasCurrent:       true,
		MonthlyGross:     dec("2200"),
		SeniorityBonus:   dec("50"),
		PrevMonthlyGross: dec("2000"),
		FTE:              dec("100"),
		PayoutFTE:        dec("100"),
	}
}

func TestProjectMonth_RaiseWithPayoutInApril(t *testing.T) {
	// GIVEN: Last year 2000/month, this year 2200/month, seniority 50, payout April
	// WHEN: Projecting every month
	// THEN: Jan-Mar pay the prior rate, April pays the new rate plus 3 months
	//       of back-pay, May onwards pays the new rate

	cases := []struct {
		month  int
		regime payroll.Regime
		amount string
	}{
		{1, payroll.RegimePriorRate, "2050"},
		{3, payroll.RegimePriorRate, "2050"},
		{4, payroll.RegimePayout, "2850"},
		{5, payroll.RegimeCurrent, "2250"},
		{12, payroll.RegimeCurrent, "2250"},
	}
	for _, tc := range cases {
		p := payroll.ProjectMonth(raiseInput(tc.month))
		assert.Equal(t, tc.regime, p.Regime, "month %d", tc.month)
		assertDecimal(t, tc.amount, p.Amount, "month %d", tc.month)
	}

	payout := payroll.ProjectMonth(raiseInput(4))
	assertDecimal(t, "2250", payout.Base)
	assertDecimal(t, "600", payout.BackPay)
}

func TestProjectMonth_NoPreviousYear_UsesCurrentRate(t *testing.T) {
	in := raiseInput(2)
	in.PrevMonthlyGross = dec("0")
	assertDecimal(t, "2250", payroll.ProjectMonth(in).Amount)

	in.Month = 4
	p := payroll.ProjectMonth(in)
	assertDecimal(t, "0", p.BackPay)
	assertDecimal(t, "2250", p.Amount)
}

func TestProjectMonth_PartTimeBackPay(t *testing.T) {
	// GIVEN: 50% from March, payout in April
	// WHEN: Projecting April
	// THEN: The first back-pay month is settled at full rate, the other two
	//       at the payout-month percentage

	in := raiseInput(4)
	in.FTE = dec("50")
	in.PayoutFTE = dec("50")

	p := payroll.ProjectMonth(in)
	assertDecimal(t, "1125", p.Base)
	assertDecimal(t, "400", p.BackPay)
	assertDecimal(t, "1525", p.Amount)
}

func TestProjectMonth_PayoutInJanuary_NoBackPay(t *testing.T) {
	in := raiseInput(1)
	in.PayoutMonth = 1

	p := payroll.ProjectMonth(in)
	assert.Equal(t, payroll.RegimePayout, p.Regime)
	assertDecimal(t, "0", p.BackPay)
	assertDecimal(t, "2250", p.Amount)
}

func TestProjectMonth_PayoutInJune_FiveMonthsBackPay(t *testing.T) {
	in := raiseInput(6)
	in.PayoutMonth = 6

	p := payroll.ProjectMonth(in)
	assertDecimal(t, "1000", p.BackPay)

	in.Month = 5
	assert.Equal(t, payroll.RegimePriorRate, payroll.ProjectMonth(in).Regime)
}

// =============================================================================
// STORE-BACKED PROJECTION TESTS
// =============================================================================

func TestProjector_ReadsLedgerAndTimeline(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSalaries(t, s, salary(2024, "24000"))
	cur := salary(2025, "26400")
	cur.SeniorityBonus = dec("50")
	seedSalaries(t, s, cur)

	fte := &payroll.FTEResolver{Store: s}
	require.NoError(t, fte.SetFTE(ctx, payroll.FTEEntry{EmployeeID: empID, Year: 2025, Month: 3, Percentage: dec("50")}))

	projector := &payroll.Projector{Store: s, FTE: fte}
	year, err := projector.ProjectYear(ctx, empID, 2025, 4)
	require.NoError(t, err)
	require.Len(t, year, 12)

	assertDecimal(t, "2050", year[0].Amount)
	assertDecimal(t, "1025", year[2].Amount)
	assertDecimal(t, "1525", year[3].Amount)
	assertDecimal(t, "1125", year[4].Amount)
}

func TestProjector_MissingCurrentYear_ProjectsZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	projector := &payroll.Projector{Store: s, FTE: &payroll.FTEResolver{Store: s}}

	p, err := projector.Project(ctx, empID, 2030, 7, 4)
	require.NoError(t, err)
	assertDecimal(t, "0", p.Amount)
}

func TestProjectMonth_NoCurrentDeclaration_NoBackPay(t *testing.T) {
	in := raiseInput(4)
	in.HasCurrent = false
	in.MonthlyGross = dec("0")
	in.SeniorityBonus = dec("0")

	p := payroll.ProjectMonth(in)
	assertDecimal(t, "0", p.Base)
	assertDecimal(t, "0", p.BackPay)
	assertDecimal(t, "0", p.Amount)
}

func TestProjector_OnlyPriorYearDeclared(t *testing.T) {
	// GIVEN: 2024 declared at 24000, nothing yet for 2025
	// WHEN: Projecting 2025 with payout in April
	// THEN: Jan-Mar pay the 2024 rate, April has no back-pay and nothing
	//       goes negative

	ctx := context.Background()
	s := newTestStore(t)
	seedSalaries(t, s, salary(2024, "24000"))
	projector := &payroll.Projector{Store: s}

	year, err := projector.ProjectYear(ctx, empID, 2025, 4)
	require.NoError(t, err)
	assertDecimal(t, "2000", year[2].Amount)
	assert.Equal(t, payroll.RegimePayout, year[3].Regime)
	assertDecimal(t, "0", year[3].BackPay)
	assertDecimal(t, "0", year[3].Amount)
	assertDecimal(t, "0", year[4].Amount)
	for _, p := range year {
		assert.False(t, p.Amount.IsNegative(), "month %d", p.Month)
	}
}

func TestProjector_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	projector := &payroll.Projector{Store: s, FTE: &payroll.FTEResolver{Store: s}}

	_, err := projector.Project(ctx, empID, 2025, 13, 4)
	assert.ErrorIs(t, err, payroll.ErrInvalidMonth)

	_, err = projector.Project(ctx, empID, 2025, 5, 0)
	assert.ErrorIs(t, err, payroll.ErrInvalidPayoutMonth)
}
