/*
scenarios_test.go - Unit tests for demo scenarios and the consistency sweep

PURPOSE:
	Tests that each scenario correctly sets up the expected state and that
	the sweeper repairs ledgers edited behind the engine's back.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

func loadScenario(t *testing.T, srv http.Handler, id string) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScenario_RaiseWithBackPay(t *testing.T) {
	// GIVEN: The raise-with-backpay scenario
	// WHEN: Projecting March, April and May
	// THEN: 2050, 2850 and 2250

	h, srv := setupTestServer(t)
	loadScenario(t, srv, "raise-with-backpay")
	ctx := context.Background()

	projs, err := h.Engine.Projector.ProjectYear(ctx, "emp-raise", ScenarioYear, payroll.DefaultPayoutMonth)
	require.NoError(t, err)
	assert.Equal(t, "2050.00", projs[2].Amount.StringFixed(2))
	assert.Equal(t, "2850.00", projs[3].Amount.StringFixed(2))
	assert.Equal(t, "2250.00", projs[4].Amount.StringFixed(2))

	rec := do(t, srv, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "raise-with-backpay", decodeBody[ScenarioDTO](t, rec).ID)
}

func TestScenario_PartTimePayout(t *testing.T) {
	h, srv := setupTestServer(t)
	loadScenario(t, srv, "part-time-payout")

	april, err := h.Engine.Projector.Project(context.Background(), "emp-part-time", ScenarioYear, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, "1125.00", april.Base.StringFixed(2))
	assert.Equal(t, "400.00", april.BackPay.StringFixed(2))
}

func TestScenario_SalaryCascade(t *testing.T) {
	h, srv := setupTestServer(t)
	loadScenario(t, srv, "salary-cascade")

	decl, err := h.Store.GetSalary(context.Background(), "emp-cascade", ScenarioYear-1)
	require.NoError(t, err)
	require.NotNil(t, decl)
	assert.Equal(t, "900.00", decl.Atrasos.StringFixed(2))
}

func TestScenario_ConceptsCarryOver(t *testing.T) {
	h, srv := setupTestServer(t)
	loadScenario(t, srv, "concepts-carryover")
	ctx := context.Background()

	may, err := h.Engine.Concepts.MonthlyConcepts(ctx, "emp-concepts", ScenarioYear, 5, payroll.FamilyDeduction)
	require.NoError(t, err)
	assert.Equal(t, "30.00", may.Value(payroll.FieldInKindContribution).StringFixed(2))

	june, err := h.Engine.Concepts.MonthlyConcepts(ctx, "emp-concepts", ScenarioYear, 6, payroll.FamilyDeduction)
	require.NoError(t, err)
	assert.Equal(t, "20.00", june.Value(payroll.FieldInKindContribution).StringFixed(2))

	nets, err := h.Engine.CarryOvers.NetForPeriod(ctx, "emp-concepts", payroll.NewYearMonth(ScenarioYear, 6))
	require.NoError(t, err)
	assert.Equal(t, "120.00", nets[payroll.FieldOvertime].Incoming.StringFixed(2))
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	h, srv := setupTestServer(t)
	loadScenario(t, srv, "raise-with-backpay")
	loadScenario(t, srv, "salary-cascade")

	employees, err := h.Store.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, payroll.EmployeeID("emp-cascade"), employees[0].ID)

	rec := do(t, srv, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/scenarios/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "null\n", rec.Body.String())
}

// =============================================================================
// CONSISTENCY SWEEP
// =============================================================================

func TestSweeper_RepairsDriftedLedger(t *testing.T) {
	// GIVEN: A consistent ledger whose 2025 atrasos is then overwritten directly
	// WHEN: The sweeper runs twice
	// THEN: The first pass repairs 2025, the second finds nothing

	h, srv := setupTestServer(t)
	loadScenario(t, srv, "raise-with-backpay")
	ctx := context.Background()
	sweeper := NewConsistencySweeper(h.Store, h.Engine, 0, nil)

	clean := sweeper.RunNow(ctx)
	assert.Equal(t, 1, clean.Employees)
	assert.Empty(t, clean.Repaired)

	decl, err := h.Store.GetSalary(ctx, "emp-raise", ScenarioYear)
	require.NoError(t, err)
	decl.Atrasos = decimal.NewFromInt(1)
	require.NoError(t, h.Store.SaveSalary(ctx, *decl))

	repaired := sweeper.RunNow(ctx)
	assert.Equal(t, []int{ScenarioYear}, repaired.Repaired["emp-raise"])

	fixed, err := h.Store.GetSalary(ctx, "emp-raise", ScenarioYear)
	require.NoError(t, err)
	assert.Equal(t, "600.00", fixed.Atrasos.StringFixed(2))

	assert.Empty(t, sweeper.RunNow(ctx).Repaired)
}

func TestSweeper_AdminRoute(t *testing.T) {
	h := setupTestHandler(t)
	sweeper := NewConsistencySweeper(h.Store, h.Engine, 0, nil)
	srv := NewRouter(h, RouterOptions{Sweeper: sweeper})

	rec := do(t, srv, http.MethodPost, "/api/admin/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[SweepResult](t, rec).Employees)

	// Disabled interval: Start and Stop are no-ops.
	sweeper.Start()
	sweeper.Stop()
}

func TestDriftedYears_GapYearKeepsItsAtrasos(t *testing.T) {
	gapYear := payroll.SalaryDeclaration{Year: 2022, Modality: payroll.Modality12, AnnualGross: decimal.NewFromInt(24000), Atrasos: decimal.NewFromInt(7)}
	decls := []payroll.SalaryDeclaration{
		payroll.DeriveSalary(payroll.SalaryDeclaration{Year: 2020, Modality: payroll.Modality12, AnnualGross: decimal.NewFromInt(12000)}, nil),
		payroll.DeriveSalary(gapYear, nil),
	}
	assert.Empty(t, DriftedYears(decls))
}

func TestDriftedYears_ChecksFirstYear(t *testing.T) {
	first := payroll.DeriveSalary(payroll.SalaryDeclaration{Year: 2024, Modality: payroll.Modality12, AnnualGross: decimal.NewFromInt(24000)}, nil)
	first.MonthlyGross = decimal.NewFromInt(1)
	decls := []payroll.SalaryDeclaration{first}
	assert.Equal(t, []int{2024}, DriftedYears(decls))
}

func TestSweeper_RepairsFirstYear(t *testing.T) {
	// GIVEN: The raise scenario with 2024's monthly gross overwritten directly
	// WHEN: The sweeper runs
	// THEN: 2024 is re-derived from its annual gross and a second pass is clean

	h, srv := setupTestServer(t)
	loadScenario(t, srv, "raise-with-backpay")
	ctx := context.Background()
	sweeper := NewConsistencySweeper(h.Store, h.Engine, 0, nil)

	decl, err := h.Store.GetSalary(ctx, "emp-raise", ScenarioYear-1)
	require.NoError(t, err)
	decl.MonthlyGross = decimal.NewFromInt(1)
	decl.MonthlyGrossWithAtrasos = decimal.NewFromInt(1)
	require.NoError(t, h.Store.SaveSalary(ctx, *decl))

	result := sweeper.RunNow(ctx)
	assert.Equal(t, []int{ScenarioYear - 1}, result.Repaired["emp-raise"])

	fixed, err := h.Store.GetSalary(ctx, "emp-raise", ScenarioYear-1)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", fixed.MonthlyGross.StringFixed(2))
	assert.Equal(t, "2000.00", fixed.MonthlyGrossWithAtrasos.StringFixed(2))

	next, err := h.Store.GetSalary(ctx, "emp-raise", ScenarioYear)
	require.NoError(t, err)
	assert.Equal(t, "600.00", next.Atrasos.StringFixed(2))

	assert.Empty(t, sweeper.RunNow(ctx).Repaired)
}
