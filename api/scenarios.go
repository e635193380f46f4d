/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	payroll data. Each scenario writes through the engine, so cascades,
	fan-outs and forward-fills happen exactly as they would from the API.

AVAILABLE SCENARIOS:

	raise-with-backpay:    2000 -> 2200 a month, seniority 50, payout in April
	part-time-payout:      same raise, FTE drops to 50% in April
	salary-cascade:        three years, the first one edited afterwards
	concepts-carryover:    yearly concepts, forward-filled in-kind
	                       contribution, overtime deferred to June

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employee
 3. Write salaries, FTE entries, concepts and carry-overs via the engine

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "raise-with-backpay"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to scenarioLoader

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioYear is the year every scenario projects.
const ScenarioYear = 2025

var scenarios = []ScenarioDTO{
	{
		ID:          "raise-with-backpay",
		Name:        "Raise With Back-Pay",
		Description: "Monthly gross 2000 -> 2200 with seniority 50; April pays 2250 + 600 back-pay",
	},
	{
		ID:          "part-time-payout",
		Name:        "Part-Time At Payout",
		Description: "Same raise, FTE drops to 50% in April; back-pay scales with the payout FTE",
	},
	{
		ID:          "salary-cascade",
		Name:        "Salary Cascade",
		Description: "2023-2025 ledger; editing 2023 rewrites 2024 and 2025 atrasos",
	},
	{
		ID:          "concepts-carryover",
		Name:        "Concepts & Carry-Over",
		Description: "Yearly ticket restaurant, forward-filled in-kind contribution, overtime deferred to June",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	load, ok := h.scenarioLoader(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.setCurrentScenario(req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario_id": req.ScenarioID})
}

func (h *Handler) scenarioLoader(id string) (func(context.Context) error, bool) {
	switch id {
	case "raise-with-backpay":
		return h.loadRaiseWithBackPayScenario, true
	case "part-time-payout":
		return h.loadPartTimePayoutScenario, true
	case "salary-cascade":
		return h.loadSalaryCascadeScenario, true
	case "concepts-carryover":
		return h.loadConceptsCarryOverScenario, true
	default:
		return nil, false
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadRaiseWithBackPayScenario: 24000/12 = 2000 in 2024, 26400/12 = 2200 in
// 2025, seniority 50. Jan-Mar pay 2050, April 2250 + 600, May on 2250.
func (h *Handler) loadRaiseWithBackPayScenario(ctx context.Context) error {
	const emp payroll.EmployeeID = "emp-raise"
	if err := h.seedEmployee(ctx, emp, "Lucía Fernández", "CC-100"); err != nil {
		return err
	}
	return h.seedSalaries(ctx, emp, "50",
		salaryYear{ScenarioYear - 1, "24000"},
		salaryYear{ScenarioYear, "26400"},
	)
}

// loadPartTimePayoutScenario: the raise above, FTE 50% from April.
// April base 1125 plus back-pay 200 + 2 x 200 x 0.5 = 400.
func (h *Handler) loadPartTimePayoutScenario(ctx context.Context) error {
	const emp payroll.EmployeeID = "emp-part-time"
	if err := h.seedEmployee(ctx, emp, "Javier Ortega", "CC-200"); err != nil {
		return err
	}
	if err := h.seedSalaries(ctx, emp, "50",
		salaryYear{ScenarioYear - 1, "24000"},
		salaryYear{ScenarioYear, "26400"},
	); err != nil {
		return err
	}
	return h.Engine.FTE.SetFTE(ctx, payroll.FTEEntry{
		EmployeeID: emp, Year: ScenarioYear, Month: 4, Percentage: decimal.NewFromInt(50),
	})
}

// loadSalaryCascadeScenario: 24000, 26400, 28800, then 2023 lowered to
// 22800 so 2024 atrasos becomes (26400-22800)/12*3 = 900.
func (h *Handler) loadSalaryCascadeScenario(ctx context.Context) error {
	const emp payroll.EmployeeID = "emp-cascade"
	if err := h.seedEmployee(ctx, emp, "Marta Gil", "CC-300"); err != nil {
		return err
	}
	if err := h.seedSalaries(ctx, emp, "0",
		salaryYear{ScenarioYear - 2, "24000"},
		salaryYear{ScenarioYear - 1, "26400"},
		salaryYear{ScenarioYear, "28800"},
	); err != nil {
		return err
	}
	return h.seedSalaries(ctx, emp, "0", salaryYear{ScenarioYear - 2, "22800"})
}

// loadConceptsCarryOverScenario: ticket restaurant 50 and health insurance
// 32.40 every month, in-kind contribution 20 from February except May,
// set explicitly to 30 first, and 120 of March overtime deferred to June.
func (h *Handler) loadConceptsCarryOverScenario(ctx context.Context) error {
	const emp payroll.EmployeeID = "emp-concepts"
	if err := h.seedEmployee(ctx, emp, "Pablo Navarro", "CC-400"); err != nil {
		return err
	}
	if err := h.seedSalaries(ctx, emp, "0",
		salaryYear{ScenarioYear - 1, "30000"},
		salaryYear{ScenarioYear, "31200"},
	); err != nil {
		return err
	}

	yearly, err := payroll.NewConceptPatch(payroll.FamilyIncome, map[payroll.Field]decimal.Decimal{
		payroll.FieldTicketRestaurant: decimal.NewFromInt(50),
		payroll.FieldHealthInsurance:  decimal.RequireFromString("32.40"),
	})
	if err != nil {
		return err
	}
	if _, err := h.Engine.Concepts.PropagateYearToMonths(ctx, emp, ScenarioYear, yearly); err != nil {
		return err
	}

	for _, w := range []struct {
		month int
		value int64
	}{{5, 30}, {2, 20}} {
		patch, err := payroll.NewConceptPatch(payroll.FamilyDeduction, map[payroll.Field]decimal.Decimal{
			payroll.FieldInKindContribution: decimal.NewFromInt(w.value),
		})
		if err != nil {
			return err
		}
		if _, err := h.Engine.Concepts.UpsertMonthlyConcept(ctx, emp, ScenarioYear, w.month, patch); err != nil {
			return err
		}
	}

	overtime, err := payroll.NewConceptPatch(payroll.FamilyIncome, map[payroll.Field]decimal.Decimal{
		payroll.FieldOvertime: decimal.NewFromInt(120),
	})
	if err != nil {
		return err
	}
	if _, err := h.Engine.Concepts.UpsertMonthlyConcept(ctx, emp, ScenarioYear, 3, overtime); err != nil {
		return err
	}

	june := payroll.NewYearMonth(ScenarioYear, 6)
	_, err = h.Engine.CarryOvers.CreateBatch(ctx, emp, ScenarioYear, 3,
		[]payroll.CarryOverItem{{Concept: payroll.FieldOvertime, Amount: decimal.NewFromInt(120), Destination: &june}},
		[]payroll.Field{payroll.FieldOvertime})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

type salaryYear struct {
	year   int
	annual string
}

func (h *Handler) seedEmployee(ctx context.Context, id payroll.EmployeeID, name, costCenter string) error {
	return h.Store.SaveEmployee(ctx, payroll.Employee{ID: id, Name: name, CostCenter: costCenter, Active: true})
}

func (h *Handler) seedSalaries(ctx context.Context, emp payroll.EmployeeID, seniority string, years ...salaryYear) error {
	bonus, err := decimal.NewFromString(seniority)
	if err != nil {
		return err
	}
	for _, y := range years {
		annual, err := decimal.NewFromString(y.annual)
		if err != nil {
			return err
		}
		if _, err := h.Engine.Atrasos.UpsertSalary(ctx, payroll.SalaryInput{
			EmployeeID:     emp,
			Year:           y.year,
			Modality:       payroll.Modality12,
			AnnualGross:    annual,
			SeniorityBonus: bonus,
		}); err != nil {
			return fmt.Errorf("seed salary %d: %w", y.year, err)
		}
	}
	return nil
}
