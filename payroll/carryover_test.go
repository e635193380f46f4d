package payroll_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

func newTestLedger(t *testing.T) (*payroll.CarryOverLedger, payroll.TxStore) {
	t.Helper()
	s := newTestStore(t)
	seq := 0
	return &payroll.CarryOverLedger{
		Store: s,
		NewID: func() payroll.CarryOverID {
			seq++
			return payroll.CarryOverID(fmt.Sprintf("co-%d", seq))
		},
		Now: func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) },
	}, s
}

// =============================================================================
// BATCH CREATION
// =============================================================================

func TestCarryOver_EmptyBatchIsNoOp(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	entries, err := ledger.CreateBatch(ctx, empID, 2025, 3, nil, []payroll.Field{payroll.FieldOvertime})
	require.NoError(t, err)
	assert.Empty(t, entries)

	listed, err := ledger.ListBySource(ctx, empID, 2025, 3)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCarryOver_DestinationRules(t *testing.T) {
	// GIVEN: A March batch with overtime deferred and transport not deferred
	// WHEN: The batch is created
	// THEN: Overtime goes to April (default) or to the explicit destination,
	//       transport stays in March

	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	june := payroll.NewYearMonth(2025, 6)

	entries, err := ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: payroll.FieldOvertime, Amount: dec("120")},
		{Concept: payroll.FieldOvertime, Amount: dec("30"), Destination: &june},
		{Concept: payroll.FieldTransport, Amount: dec("40")},
	}, []payroll.Field{payroll.FieldOvertime})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Deferred)
	assert.Equal(t, payroll.NewYearMonth(2025, 4), entries[0].Destination)
	assert.Equal(t, june, entries[1].Destination)
	assert.False(t, entries[2].Deferred)
	assert.Equal(t, payroll.NewYearMonth(2025, 3), entries[2].Destination)
	assert.Equal(t, payroll.CarryOverID("co-1"), entries[0].ID)

	april, err := ledger.ListByDestination(ctx, empID, 2025, 4)
	require.NoError(t, err)
	require.Len(t, april, 1)
	assertDecimal(t, "120", april[0].Amount)
}

func TestCarryOver_DecemberDefersIntoNextYear(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	entries, err := ledger.CreateBatch(ctx, empID, 2025, 12, []payroll.CarryOverItem{
		{Concept: payroll.FieldAdvance, Amount: dec("200")},
	}, []payroll.Field{payroll.FieldAdvance})
	require.NoError(t, err)
	assert.Equal(t, payroll.NewYearMonth(2026, 1), entries[0].Destination)
}

func TestCarryOver_InvalidItemWritesNothing(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	feb := payroll.NewYearMonth(2025, 2)

	_, err := ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: payroll.FieldOvertime, Amount: dec("10")},
		{Concept: payroll.FieldOvertime, Amount: dec("10"), Destination: &feb},
	}, []payroll.Field{payroll.FieldOvertime})
	assert.ErrorIs(t, err, payroll.ErrInvalidDestination)

	// A destination only makes sense for a deferred concept.
	june := payroll.NewYearMonth(2025, 6)
	_, err = ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: payroll.FieldTransport, Amount: dec("40")},
		{Concept: payroll.FieldOvertime, Amount: dec("10"), Destination: &june},
	}, []payroll.Field{payroll.FieldTransport})
	assert.ErrorIs(t, err, payroll.ErrDestinationNotDeferred)
	assert.True(t, payroll.IsClientError(err))

	_, err = ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: "bonus_x", Amount: dec("10")},
	}, nil)
	assert.ErrorIs(t, err, payroll.ErrUnknownField)

	_, err = ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: payroll.FieldOvertime, Amount: dec("-10")},
	}, nil)
	assert.ErrorIs(t, err, payroll.ErrNegativeAmount)

	listed, err := ledger.ListBySource(ctx, empID, 2025, 3)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

// =============================================================================
// DELETION AND NETTING
// =============================================================================

func TestCarryOver_DeleteUnknownID(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.DeleteEntry(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, payroll.ErrCarryOverNotFound)
	assert.True(t, payroll.IsNotFound(err))
}

func TestCarryOver_DeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	entries, err := ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: payroll.FieldOvertime, Amount: dec("10")},
	}, []payroll.Field{payroll.FieldOvertime})
	require.NoError(t, err)

	require.NoError(t, ledger.DeleteEntry(ctx, entries[0].ID))
	assert.ErrorIs(t, ledger.DeleteEntry(ctx, entries[0].ID), payroll.ErrCarryOverNotFound)
}

func TestCarryOver_NetForPeriod(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	_, err := ledger.CreateBatch(ctx, empID, 2025, 3, []payroll.CarryOverItem{
		{Concept: payroll.FieldOvertime, Amount: dec("120")},
		{Concept: payroll.FieldTransport, Amount: dec("40")},
	}, []payroll.Field{payroll.FieldOvertime})
	require.NoError(t, err)
	_, err = ledger.CreateBatch(ctx, empID, 2025, 4, []payroll.CarryOverItem{
		{Concept: payroll.FieldOvertime, Amount: dec("20")},
	}, []payroll.Field{payroll.FieldOvertime})
	require.NoError(t, err)

	march, err := ledger.NetForPeriod(ctx, empID, payroll.NewYearMonth(2025, 3))
	require.NoError(t, err)
	assertDecimal(t, "-120", march[payroll.FieldOvertime].Net())
	_, hasTransport := march[payroll.FieldTransport]
	assert.False(t, hasTransport)

	april, err := ledger.NetForPeriod(ctx, empID, payroll.NewYearMonth(2025, 4))
	require.NoError(t, err)
	assertDecimal(t, "120", april[payroll.FieldOvertime].Incoming)
	assertDecimal(t, "20", april[payroll.FieldOvertime].Outgoing)
	assertDecimal(t, "100", april[payroll.FieldOvertime].Net())
}
