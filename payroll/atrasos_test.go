package payroll_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// DERIVATION TESTS
// =============================================================================

func TestDeriveSalary_Formula(t *testing.T) {
	prev := &payroll.SalaryDeclaration{Year: 2024, Modality: payroll.Modality12, AnnualGross: dec("24000")}
	decl := payroll.DeriveSalary(payroll.SalaryDeclaration{
		Year: 2025, Modality: payroll.Modality12, AnnualGross: dec("26400"),
	}, prev)

	assertDecimal(t, "2200", decl.MonthlyGross)
	assertDecimal(t, "600", decl.Atrasos)
	assertDecimal(t, "2800", decl.MonthlyGrossWithAtrasos)
}

func TestDeriveSalary_Modality14(t *testing.T) {
	prev := &payroll.SalaryDeclaration{Year: 2024, Modality: payroll.Modality14, AnnualGross: dec("28000")}
	decl := payroll.DeriveSalary(payroll.SalaryDeclaration{
		Year: 2025, Modality: payroll.Modality14, AnnualGross: dec("29400"),
	}, prev)

	assertDecimal(t, "2100", decl.MonthlyGross)
	assertDecimal(t, "300", decl.Atrasos)
}

func TestDeriveSalary_NonStandardModality_NoAtrasos(t *testing.T) {
	prev := &payroll.SalaryDeclaration{Year: 2024, Modality: 15, AnnualGross: dec("12000")}
	decl := payroll.DeriveSalary(payroll.SalaryDeclaration{
		Year: 2025, Modality: 15, AnnualGross: dec("24000"),
	}, prev)

	assertDecimal(t, "2000", decl.MonthlyGross)
	assertDecimal(t, "0", decl.Atrasos)
}

func TestDeriveSalary_NoPreviousYear_KeepsAtrasos(t *testing.T) {
	decl := payroll.DeriveSalary(payroll.SalaryDeclaration{
		Year: 2025, Modality: payroll.Modality12, AnnualGross: dec("24000"), Atrasos: dec("150"),
	}, nil)

	assertDecimal(t, "150", decl.Atrasos)
	assertDecimal(t, "2150", decl.MonthlyGrossWithAtrasos)
}

// =============================================================================
// CASCADE TESTS
// =============================================================================

func TestCascade_EditingEarlierYearRipplesForward(t *testing.T) {
	// GIVEN: Declarations for 2023, 2024, 2025
	// WHEN: The 2023 annual gross is lowered
	// THEN: 2024 atrasos are recomputed against the new 2023 value,
	//       2025 is recomputed too and 2024's annual gross is untouched

	ctx := context.Background()
	s := newTestStore(t)
	seedSalaries(t, s, salary(2023, "24000"), salary(2024, "26400"), salary(2025, "28800"))

	cascade := &payroll.AtrasosCascade{Store: s}
	change, err := cascade.UpsertSalary(ctx, salary(2023, "22800"))
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025}, change.Cascaded)
	require.NotNil(t, change.Before)
	assertDecimal(t, "24000", change.Before.AnnualGross)

	y2024, err := s.GetSalary(ctx, empID, 2024)
	require.NoError(t, err)
	assertDecimal(t, "26400", y2024.AnnualGross)
	assertDecimal(t, "2200", y2024.MonthlyGross)
	assertDecimal(t, "900", y2024.Atrasos)
	assertDecimal(t, "3100", y2024.MonthlyGrossWithAtrasos)

	y2025, err := s.GetSalary(ctx, empID, 2025)
	require.NoError(t, err)
	assertDecimal(t, "600", y2025.Atrasos)
}

func TestCascade_SkipsYearsWithoutPredecessor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSalaries(t, s, salary(2022, "20000"), salary(2024, "26400"))

	touched, err := (&payroll.AtrasosCascade{Store: s}).RecomputeForward(ctx, empID, 2022)
	require.NoError(t, err)
	assert.Empty(t, touched)

	y2024, err := s.GetSalary(ctx, empID, 2024)
	require.NoError(t, err)
	assertDecimal(t, "0", y2024.Atrasos)
}

func TestCascade_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedSalaries(t, s, salary(2023, "24000"), salary(2024, "26400"), salary(2025, "28800"))
	cascade := &payroll.AtrasosCascade{Store: s}

	_, err := cascade.RecomputeForward(ctx, empID, 2023)
	require.NoError(t, err)
	first, err := s.ListSalaries(ctx, empID)
	require.NoError(t, err)

	_, err = cascade.RecomputeForward(ctx, empID, 2023)
	require.NoError(t, err)
	second, err := s.ListSalaries(ctx, empID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Atrasos.Equal(second[i].Atrasos))
		assert.True(t, first[i].MonthlyGrossWithAtrasos.Equal(second[i].MonthlyGrossWithAtrasos))
	}
}

func TestCascade_FailureRollsBackEveryYear(t *testing.T) {
	// GIVEN: Three years of declarations and a store that fails writing 2025
	// WHEN: 2023 is edited
	// THEN: The call fails with a CascadeError and neither 2023 nor 2024 changed

	ctx := context.Background()
	mem := newTestStore(t)
	seedSalaries(t, mem, salary(2023, "24000"), salary(2024, "26400"), salary(2025, "28800"))

	flaky := &failingStore{TxMemory: mem, failYear: 2025}
	_, err := (&payroll.AtrasosCascade{Store: flaky}).UpsertSalary(ctx, salary(2023, "22800"))
	require.Error(t, err)

	var cascadeErr *payroll.CascadeError
	require.True(t, errors.As(err, &cascadeErr))
	assert.Equal(t, 2025, cascadeErr.Year)
	assert.ErrorIs(t, err, errDiskFull)

	y2023, _ := mem.GetSalary(ctx, empID, 2023)
	assertDecimal(t, "24000", y2023.AnnualGross)
	y2024, _ := mem.GetSalary(ctx, empID, 2024)
	assertDecimal(t, "600", y2024.Atrasos)
}

func TestCascade_Validation(t *testing.T) {
	ctx := context.Background()
	cascade := &payroll.AtrasosCascade{Store: newTestStore(t)}

	in := salary(2025, "-1")
	_, err := cascade.UpsertSalary(ctx, in)
	assert.ErrorIs(t, err, payroll.ErrNegativeAmount)

	in = salary(2025, "24000")
	in.Modality = 0
	_, err = cascade.UpsertSalary(ctx, in)
	assert.ErrorIs(t, err, payroll.ErrInvalidModality)

	in = salary(2025, "24000")
	in.EmployeeID = "ghost"
	_, err = cascade.UpsertSalary(ctx, in)
	assert.True(t, payroll.IsNotFound(err))
}
