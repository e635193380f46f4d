package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

func TestPayoutMonth_DefaultsAndUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	month, err := payroll.PayoutMonth(ctx, s, 0)
	require.NoError(t, err)
	assert.Equal(t, payroll.DefaultPayoutMonth, month)

	require.NoError(t, payroll.SetPayoutMonth(ctx, s, 6))
	month, err = payroll.PayoutMonth(ctx, s, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, month)

	assert.ErrorIs(t, payroll.SetPayoutMonth(ctx, s, 13), payroll.ErrInvalidPayoutMonth)
}

func TestEngine_PayoutMonthChangesProjectionNotLedger(t *testing.T) {
	// GIVEN: A raise from 2000 to 2200 a month
	// WHEN: The payout month moves from April to June
	// THEN: May switches from the new rate to the prior rate while the
	//       stored declarations stay the same

	ctx := context.Background()
	s := newTestStore(t)
	engine := payroll.NewEngine(s, nil)
	seedSalaries(t, s, salary(2024, "24000"), salary(2025, "26400"))

	april, err := engine.Projector.Project(ctx, empID, 2025, 5, 4)
	require.NoError(t, err)
	assertDecimal(t, "2200", april.Amount)

	june, err := engine.Projector.Project(ctx, empID, 2025, 5, 6)
	require.NoError(t, err)
	assertDecimal(t, "2000", june.Amount)

	decl, err := s.GetSalary(ctx, empID, 2025)
	require.NoError(t, err)
	assertDecimal(t, "600", decl.Atrasos)
}
