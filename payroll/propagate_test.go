package payroll_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

func patch(t *testing.T, family payroll.ConceptFamily, values map[payroll.Field]string) payroll.ConceptPatch {
	t.Helper()
	parsed := make(map[payroll.Field]decimal.Decimal, len(values))
	for f, v := range values {
		parsed[f] = dec(v)
	}
	p, err := payroll.NewConceptPatch(family, parsed)
	require.NoError(t, err)
	return p
}

// =============================================================================
// PATCH VALIDATION
// =============================================================================

func TestConceptPatch_RejectsBadInput(t *testing.T) {
	_, err := payroll.NewConceptPatch("bonus", map[payroll.Field]decimal.Decimal{payroll.FieldOvertime: dec("1")})
	assert.ErrorIs(t, err, payroll.ErrUnknownFamily)

	_, err = payroll.NewConceptPatch(payroll.FamilyIncome, nil)
	assert.ErrorIs(t, err, payroll.ErrEmptyPatch)

	_, err = payroll.NewConceptPatch(payroll.FamilyIncome, map[payroll.Field]decimal.Decimal{payroll.FieldAdvance: dec("1")})
	assert.ErrorIs(t, err, payroll.ErrUnknownField)

	_, err = payroll.NewConceptPatch(payroll.FamilyIncome, map[payroll.Field]decimal.Decimal{"ticket_restaurantt": dec("1")})
	assert.ErrorIs(t, err, payroll.ErrUnknownField)

	_, err = payroll.NewConceptPatch(payroll.FamilyDeduction, map[payroll.Field]decimal.Decimal{payroll.FieldLoan: dec("-5")})
	assert.ErrorIs(t, err, payroll.ErrNegativeAmount)
}

// =============================================================================
// YEARLY -> MONTHLY PROPAGATION
// =============================================================================

func TestPropagate_YearlyValueReachesAllMonths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	prop := &payroll.Propagator{Store: s}

	res, err := prop.PropagateYearToMonths(ctx, empID, 2025, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldTicketRestaurant: "50",
	}))
	require.NoError(t, err)
	assert.Nil(t, res.Before)
	assert.Len(t, res.Monthly, 12)

	for month := 1; month <= 12; month++ {
		row, err := prop.MonthlyConcepts(ctx, empID, 2025, month, payroll.FamilyIncome)
		require.NoError(t, err)
		assertDecimal(t, "50", row.Value(payroll.FieldTicketRestaurant), "month %d", month)
	}

	rows, err := prop.YearConcepts(ctx, empID, 2025, payroll.FamilyIncome)
	require.NoError(t, err)
	require.Len(t, rows, 13)
	assert.True(t, rows[0].IsYearly())
}

func TestPropagate_YearlyOverwritesMonthlyOverride(t *testing.T) {
	// GIVEN: March was individually set to 60
	// WHEN: The yearly template is set to 55
	// THEN: March is 55 and no longer counts as individually set

	ctx := context.Background()
	s := newTestStore(t)
	prop := &payroll.Propagator{Store: s}

	_, err := prop.UpsertMonthlyConcept(ctx, empID, 2025, 3, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldTicketRestaurant: "60",
	}))
	require.NoError(t, err)

	_, err = prop.PropagateYearToMonths(ctx, empID, 2025, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldTicketRestaurant: "55",
	}))
	require.NoError(t, err)

	march, err := prop.MonthlyConcepts(ctx, empID, 2025, 3, payroll.FamilyIncome)
	require.NoError(t, err)
	assertDecimal(t, "55", march.Value(payroll.FieldTicketRestaurant))
	assert.False(t, march.Explicit[payroll.FieldTicketRestaurant])
}

func TestPropagate_LeavesOtherFieldsAlone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	prop := &payroll.Propagator{Store: s}

	_, err := prop.UpsertMonthlyConcept(ctx, empID, 2025, 7, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldOvertime: "120",
	}))
	require.NoError(t, err)
	_, err = prop.PropagateYearToMonths(ctx, empID, 2025, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldTransport: "40",
	}))
	require.NoError(t, err)

	july, err := prop.MonthlyConcepts(ctx, empID, 2025, 7, payroll.FamilyIncome)
	require.NoError(t, err)
	assertDecimal(t, "120", july.Value(payroll.FieldOvertime))
	assertDecimal(t, "40", july.Value(payroll.FieldTransport))
	assert.True(t, july.Explicit[payroll.FieldOvertime])
}

func TestPropagate_FailureRollsBackFanOut(t *testing.T) {
	ctx := context.Background()
	mem := newTestStore(t)
	prop := &payroll.Propagator{Store: &failingStore{TxMemory: mem, failMonth: 9}}

	_, err := prop.PropagateYearToMonths(ctx, empID, 2025, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldTicketRestaurant: "50",
	}))
	require.ErrorIs(t, err, errDiskFull)

	rows, err := mem.ListConcepts(ctx, empID, 2025, payroll.FamilyIncome)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// MONTHLY FORWARD-FILL
// =============================================================================

func TestForwardFill_SkipsIndividuallySetMonths(t *testing.T) {
	// GIVEN: May has cotizacion_especie individually set to 30
	// WHEN: February is set to 20
	// THEN: March, April and June..December get 20, May keeps 30,
	//       January is untouched and the touched months are reported

	ctx := context.Background()
	s := newTestStore(t)
	prop := &payroll.Propagator{Store: s}

	_, err := prop.UpsertMonthlyConcept(ctx, empID, 2025, 5, patch(t, payroll.FamilyDeduction, map[payroll.Field]string{
		payroll.FieldInKindContribution: "30",
	}))
	require.NoError(t, err)

	res, err := prop.UpsertMonthlyConcept(ctx, empID, 2025, 2, patch(t, payroll.FamilyDeduction, map[payroll.Field]string{
		payroll.FieldInKindContribution: "20",
		payroll.FieldAdvance:            "100",
	}))
	require.NoError(t, err)
	require.Len(t, res.Propagation, 1)
	assert.Equal(t, payroll.FieldInKindContribution, res.Propagation[0].Field)
	assert.Equal(t, []int{3, 4, 6, 7, 8, 9, 10, 11, 12}, res.Propagation[0].Months)

	expect := map[int]string{1: "0", 2: "20", 3: "20", 4: "20", 5: "30", 6: "20", 12: "20"}
	for month, want := range expect {
		row, err := prop.MonthlyConcepts(ctx, empID, 2025, month, payroll.FamilyDeduction)
		require.NoError(t, err)
		assertDecimal(t, want, row.Value(payroll.FieldInKindContribution), "month %d", month)
	}

	// anticipo is not forward-filled
	march, err := prop.MonthlyConcepts(ctx, empID, 2025, 3, payroll.FamilyDeduction)
	require.NoError(t, err)
	assertDecimal(t, "0", march.Value(payroll.FieldAdvance))
	assert.False(t, march.Explicit[payroll.FieldInKindContribution])
}

func TestForwardFill_DecemberReportsNothing(t *testing.T) {
	ctx := context.Background()
	prop := &payroll.Propagator{Store: newTestStore(t)}

	res, err := prop.UpsertMonthlyConcept(ctx, empID, 2025, 12, patch(t, payroll.FamilyDeduction, map[payroll.Field]string{
		payroll.FieldInKindContribution: "20",
	}))
	require.NoError(t, err)
	assert.Empty(t, res.Propagation)
}

func TestUpsertMonthly_Validation(t *testing.T) {
	ctx := context.Background()
	prop := &payroll.Propagator{Store: newTestStore(t)}

	_, err := prop.UpsertMonthlyConcept(ctx, empID, 2025, 0, patch(t, payroll.FamilyIncome, map[payroll.Field]string{
		payroll.FieldOvertime: "1",
	}))
	assert.ErrorIs(t, err, payroll.ErrInvalidMonth)

	_, err = prop.UpsertMonthlyConcept(ctx, empID, 2025, 1, payroll.ConceptPatch{})
	assert.True(t, payroll.IsClientError(err))
}
