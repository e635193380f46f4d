/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, audit entries, and delegates to the payroll package.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List all employees
    POST   /api/employees                          Create or update employee
    GET    /api/employees/{id}                     Get employee details

  Salaries and FTE:
    GET    /api/employees/{id}/salaries            Salary ledger
    PUT    /api/employees/{id}/salaries            Upsert one year (cascades)
    POST   /api/employees/{id}/salaries/recompute  Recompute after ?from=YEAR
    GET    /api/employees/{id}/fte                 FTE timeline
    PUT    /api/employees/{id}/fte                 Add or replace an entry

  Projection:
    GET    /api/employees/{id}/projection?year=&month=&payout_month=
           month omitted: all twelve months

  Concepts:
    GET    /api/employees/{id}/concepts/{year}?family=           Year rows
    PUT    /api/employees/{id}/concepts/{year}                   Yearly write
    GET    /api/employees/{id}/concepts/{year}/{month}?family=   Month row
    PUT    /api/employees/{id}/concepts/{year}/{month}           Monthly write

  Carry-overs:
    GET    /api/employees/{id}/carry-overs?year=&month=
    POST   /api/employees/{id}/carry-overs         Create a batch
    DELETE /api/carry-overs/{id}

  Payslips:
    GET    /api/employees/{id}/payslips/{year}/{month}?format=pdf

  Settings and audit:
    GET    /api/settings/payout-month
    PUT    /api/settings/payout-month
    GET    /api/audit?employee_id=&action=&limit=

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: employees, settings, audit, and the engine's TxStore
  - Engine: the payroll components over the same store
  - Concepts: JSON to ConceptPatch conversion
  - Payslips: payslip assembly

AUDIT:
  Every successful write appends one AuditEntry with the actor from the
  X-Actor-ID header and the before/after values returned by the engine.
  An audit failure is logged and does not fail the request.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Employee or carry-over not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The actor header is trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/export"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API needs from a backing store. The SQLite,
// Postgres and in-memory stores all satisfy it.
type Store interface {
	payroll.TxStore
	payroll.SettingsStore
	payroll.AuditLog

	SaveEmployee(ctx context.Context, emp payroll.Employee) error
	ListEmployees(ctx context.Context) ([]payroll.Employee, error)
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Engine   *payroll.Engine
	Concepts *factory.ConceptFactory
	Payslips *export.PayslipBuilder
	Logger   *slog.Logger

	// DefaultPayoutMonth applies until the setting is stored.
	DefaultPayoutMonth int

	NewID func() string
	Now   func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	engine := payroll.NewEngine(store, logger)
	return &Handler{
		Store:              store,
		Engine:             engine,
		Concepts:           factory.NewConceptFactory(),
		Payslips:           &export.PayslipBuilder{Engine: engine},
		Logger:             logger,
		DefaultPayoutMonth: payroll.DefaultPayoutMonth,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), employeeParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	emp := payroll.Employee{
		ID:         payroll.EmployeeID(req.ID),
		Name:       req.Name,
		CostCenter: req.CostCenter,
		Active:     true,
	}
	if req.Active != nil {
		emp.Active = *req.Active
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// SALARY HANDLERS
// =============================================================================

// ListSalaries returns the salary ledger ordered by year.
func (h *Handler) ListSalaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	if !h.requireEmployee(ctx, w, id) {
		return
	}

	decls, err := h.Store.ListSalaries(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list salaries", err)
		return
	}
	dtos := make([]SalaryDTO, len(decls))
	for i, d := range decls {
		dtos[i] = toSalaryDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertSalary writes one year and recomputes every later year.
func (h *Handler) UpsertSalary(w http.ResponseWriter, r *http.Request) {
	var req UpsertSalaryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := employeeParam(r)

	change, err := h.Engine.Atrasos.UpsertSalary(ctx, payroll.SalaryInput{
		EmployeeID:     id,
		Year:           req.Year,
		Modality:       payroll.Modality(req.Modality),
		AnnualGross:    req.AnnualGross,
		SeniorityBonus: req.SeniorityBonus,
	})
	if err != nil {
		writeDomainError(w, "Failed to save salary", err)
		return
	}

	var before any
	if change.Before != nil {
		before = toSalaryDTO(*change.Before)
	}
	after := SalaryChangeDTO{Salary: toSalaryDTO(change.After), Cascaded: nonNilInts(change.Cascaded)}
	h.audit(r, payroll.AuditSalaryChanged, id, before, after)

	writeJSON(w, http.StatusOK, after)
}

// RecomputeSalaries reruns the cascade for every year after ?from.
func (h *Handler) RecomputeSalaries(w http.ResponseWriter, r *http.Request) {
	from, ok := queryInt(w, r, "from", true)
	if !ok {
		return
	}
	ctx := r.Context()
	id := employeeParam(r)
	if !h.requireEmployee(ctx, w, id) {
		return
	}

	touched, err := h.Engine.Atrasos.RecomputeForward(ctx, id, from)
	if err != nil {
		writeDomainError(w, "Failed to recompute salaries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recomputed_years": nonNilInts(touched)})
}

// =============================================================================
// FTE HANDLERS
// =============================================================================

func (h *Handler) GetFTETimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	if !h.requireEmployee(ctx, w, id) {
		return
	}

	entries, err := h.Engine.FTE.Timeline(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load FTE timeline", err)
		return
	}
	dtos := make([]FTEEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toFTEEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SetFTE(w http.ResponseWriter, r *http.Request) {
	var req SetFTERequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := employeeParam(r)

	timeline, err := h.Engine.FTE.Timeline(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load FTE timeline", err)
		return
	}
	var before any
	for _, e := range timeline {
		if e.Year == req.Year && e.Month == req.Month {
			before = toFTEEntryDTO(e)
			break
		}
	}

	entry := payroll.FTEEntry{EmployeeID: id, Year: req.Year, Month: req.Month, Percentage: req.Percentage}
	if err := h.Engine.FTE.SetFTE(ctx, entry); err != nil {
		writeDomainError(w, "Failed to save FTE entry", err)
		return
	}
	h.audit(r, payroll.AuditFTEChanged, id, before, toFTEEntryDTO(entry))
	writeJSON(w, http.StatusOK, toFTEEntryDTO(entry))
}

// =============================================================================
// PROJECTION HANDLER
// =============================================================================

// GetProjection returns one month, or the whole year when month is omitted.
func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)

	year, ok := queryInt(w, r, "year", true)
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month", false)
	if !ok {
		return
	}
	payout, ok := h.payoutMonth(w, r)
	if !ok {
		return
	}

	if month != 0 {
		proj, err := h.Engine.Projector.Project(ctx, id, year, month, payout)
		if err != nil {
			writeDomainError(w, "Failed to project month", err)
			return
		}
		writeJSON(w, http.StatusOK, toProjectionDTO(proj))
		return
	}

	projs, err := h.Engine.Projector.ProjectYear(ctx, id, year, payout)
	if err != nil {
		writeDomainError(w, "Failed to project year", err)
		return
	}
	out := YearProjectionDTO{EmployeeID: string(id), Year: year, PayoutMonth: payout}
	total := decimal.Zero
	for _, p := range projs {
		out.Months = append(out.Months, toProjectionDTO(p))
		total = total.Add(p.Amount)
	}
	out.Total = money(total)
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// CONCEPT HANDLERS
// =============================================================================

// GetYearConcepts returns the yearly row and monthly rows of one family.
func (h *Handler) GetYearConcepts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	if !h.requireEmployee(ctx, w, id) {
		return
	}

	rows, err := h.Engine.Concepts.YearConcepts(ctx, id, year, familyParam(r))
	if err != nil {
		writeDomainError(w, "Failed to load concepts", err)
		return
	}
	dtos := make([]factory.ConceptRecordJSON, len(rows))
	for i, row := range rows {
		dtos[i] = h.Concepts.ToJSON(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PutYearlyConcepts writes the yearly row and fans it out to all months.
func (h *Handler) PutYearlyConcepts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	patch, ok := h.readPatch(w, r)
	if !ok {
		return
	}

	res, err := h.Engine.Concepts.PropagateYearToMonths(ctx, id, year, patch)
	if err != nil {
		writeDomainError(w, "Failed to save yearly concepts", err)
		return
	}

	out := YearlyConceptsDTO{Yearly: h.Concepts.ToJSON(res.Yearly)}
	for _, m := range res.Monthly {
		out.Monthly = append(out.Monthly, h.Concepts.ToJSON(m))
	}
	var before any
	if res.Before != nil {
		before = h.Concepts.ToJSON(*res.Before)
	}
	h.audit(r, payroll.AuditYearlyConcepts, id, before, out.Yearly)
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetMonthlyConcepts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := pathInt(w, r, "month")
	if !ok {
		return
	}
	if !h.requireEmployee(ctx, w, id) {
		return
	}

	row, err := h.Engine.Concepts.MonthlyConcepts(ctx, id, year, month, familyParam(r))
	if err != nil {
		writeDomainError(w, "Failed to load concepts", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Concepts.ToJSON(row))
}

// PutMonthlyConcepts overrides one month; cotizacion_especie fills forward.
func (h *Handler) PutMonthlyConcepts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := pathInt(w, r, "month")
	if !ok {
		return
	}
	patch, ok := h.readPatch(w, r)
	if !ok {
		return
	}

	res, err := h.Engine.Concepts.UpsertMonthlyConcept(ctx, id, year, month, patch)
	if err != nil {
		writeDomainError(w, "Failed to save monthly concepts", err)
		return
	}

	out := MonthlyConceptsDTO{Record: h.Concepts.ToJSON(res.Record), Propagation: []PropagationDTO{}}
	for _, p := range res.Propagation {
		out.Propagation = append(out.Propagation, PropagationDTO{
			Field:  string(p.Field),
			Value:  money(p.Value),
			Months: nonNilInts(p.Months),
		})
	}
	var before any
	if res.Before != nil {
		before = h.Concepts.ToJSON(*res.Before)
	}
	h.audit(r, payroll.AuditMonthlyConcepts, id, before, out)
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// CARRY-OVER HANDLERS
// =============================================================================

// ListCarryOvers returns the period's entries by source and by destination
// plus the per-concept net used on the payslip.
func (h *Handler) ListCarryOvers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	year, ok := queryInt(w, r, "year", true)
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month", true)
	if !ok {
		return
	}
	if !h.requireEmployee(ctx, w, id) {
		return
	}

	bySource, err := h.Engine.CarryOvers.ListBySource(ctx, id, year, month)
	if err != nil {
		writeDomainError(w, "Failed to list carry-overs", err)
		return
	}
	byDest, err := h.Engine.CarryOvers.ListByDestination(ctx, id, year, month)
	if err != nil {
		writeDomainError(w, "Failed to list carry-overs", err)
		return
	}
	period := payroll.NewYearMonth(year, month)
	nets, err := h.Engine.CarryOvers.NetForPeriod(ctx, id, period)
	if err != nil {
		writeDomainError(w, "Failed to compute carry-over net", err)
		return
	}

	out := CarryOverPeriodDTO{
		Period:        toPeriodJSON(period),
		BySource:      toCarryOverDTOs(bySource),
		ByDestination: toCarryOverDTOs(byDest),
		Net:           make(map[string]CarryOverNetDTO, len(nets)),
	}
	for field, n := range nets {
		out.Net[string(field)] = CarryOverNetDTO{Incoming: money(n.Incoming), Outgoing: money(n.Outgoing), Net: money(n.Net())}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateCarryOvers writes a batch; an empty batch is accepted and writes nothing.
func (h *Handler) CreateCarryOvers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)

	var body factory.CarryOverBatchJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	batch, err := h.Concepts.CarryOverFromJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid carry-over batch", err)
		return
	}

	entries, err := h.Engine.CarryOvers.CreateBatch(ctx, id, batch.SourceYear, batch.SourceMonth, batch.Items, batch.DeferConcepts)
	if err != nil {
		writeDomainError(w, "Failed to create carry-overs", err)
		return
	}
	dtos := toCarryOverDTOs(entries)
	if len(entries) > 0 {
		h.audit(r, payroll.AuditCarryOverCreated, id, nil, dtos)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

func (h *Handler) DeleteCarryOver(w http.ResponseWriter, r *http.Request) {
	id := payroll.CarryOverID(chi.URLParam(r, "id"))
	if err := h.Engine.CarryOvers.DeleteEntry(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete carry-over", err)
		return
	}
	h.audit(r, payroll.AuditCarryOverDeleted, "", map[string]string{"id": string(id)}, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// =============================================================================
// PAYSLIP HANDLER
// =============================================================================

// GetPayslip returns the payslip as JSON, or as a PDF with ?format=pdf.
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := employeeParam(r)
	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := pathInt(w, r, "month")
	if !ok {
		return
	}
	payout, ok := h.payoutMonth(w, r)
	if !ok {
		return
	}

	slip, err := h.Payslips.Build(ctx, id, year, month, payout)
	if err != nil {
		writeDomainError(w, "Failed to build payslip", err)
		return
	}

	if r.URL.Query().Get("format") != "pdf" {
		writeJSON(w, http.StatusOK, toPayslipDTO(slip))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="nomina-%s-%s.pdf"`, id, slip.Period))
	if err := export.RenderPDF(w, slip); err != nil {
		h.logger().Error("payslip pdf failed", "employee_id", id, "period", slip.Period.String(), "error", err)
	}
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

func (h *Handler) GetPayoutMonth(w http.ResponseWriter, r *http.Request) {
	month, err := payroll.PayoutMonth(r.Context(), h.Store, h.DefaultPayoutMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read payout month", err)
		return
	}
	writeJSON(w, http.StatusOK, PayoutMonthDTO{Month: month})
}

func (h *Handler) SetPayoutMonth(w http.ResponseWriter, r *http.Request) {
	var req SetPayoutMonthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	before, err := payroll.PayoutMonth(ctx, h.Store, h.DefaultPayoutMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read payout month", err)
		return
	}
	if err := payroll.SetPayoutMonth(ctx, h.Store, req.Month); err != nil {
		writeDomainError(w, "Failed to save payout month", err)
		return
	}
	h.audit(r, payroll.AuditPayoutMonthChange, "", PayoutMonthDTO{Month: before}, PayoutMonthDTO{Month: req.Month})
	writeJSON(w, http.StatusOK, PayoutMonthDTO{Month: req.Month})
}

// =============================================================================
// AUDIT HANDLER
// =============================================================================

// ListAudit returns audit entries, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	var filter payroll.AuditFilter
	q := r.URL.Query()
	if v := q.Get("employee_id"); v != "" {
		emp := payroll.EmployeeID(v)
		filter.EmployeeID = &emp
	}
	if v := q.Get("action"); v != "" {
		action := payroll.AuditAction(v)
		filter.Action = &action
	}
	limit, ok := queryInt(w, r, "limit", false)
	if !ok {
		return
	}
	filter.Limit = limit

	entries, err := h.Store.ListAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the payroll error classification.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case payroll.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decodeAndValidate writes a 400 and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validateStruct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) readPatch(w http.ResponseWriter, r *http.Request) (payroll.ConceptPatch, bool) {
	var body factory.ConceptPatchJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return payroll.ConceptPatch{}, false
	}
	patch, err := h.Concepts.FromJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid concept values", err)
		return payroll.ConceptPatch{}, false
	}
	return patch, true
}

func (h *Handler) requireEmployee(ctx context.Context, w http.ResponseWriter, id payroll.EmployeeID) bool {
	emp, err := h.Store.GetEmployee(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return false
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return false
	}
	return true
}

// payoutMonth resolves ?payout_month, falling back to the stored setting.
func (h *Handler) payoutMonth(w http.ResponseWriter, r *http.Request) (int, bool) {
	override, ok := queryInt(w, r, "payout_month", false)
	if !ok {
		return 0, false
	}
	if override != 0 {
		return override, true
	}
	month, err := payroll.PayoutMonth(r.Context(), h.Store, h.DefaultPayoutMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read payout month", err)
		return 0, false
	}
	return month, true
}

func (h *Handler) audit(r *http.Request, action payroll.AuditAction, employeeID payroll.EmployeeID, before, after any) {
	entry := payroll.AuditEntry{
		ID:         h.newID(),
		Timestamp:  h.now(),
		ActorID:    actorID(r),
		Action:     action,
		EmployeeID: employeeID,
		Before:     auditJSON(before),
		After:      auditJSON(after),
	}
	if err := h.Store.AppendAudit(r.Context(), entry); err != nil {
		h.logger().Warn("audit append failed", "action", action, "employee_id", employeeID, "error", err)
	}
}

func auditJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func actorID(r *http.Request) string {
	if actor := r.Header.Get("X-Actor-ID"); actor != "" {
		return actor
	}
	return "anonymous"
}

func employeeParam(r *http.Request) payroll.EmployeeID {
	return payroll.EmployeeID(chi.URLParam(r, "id"))
}

func familyParam(r *http.Request) payroll.ConceptFamily {
	if f := r.URL.Query().Get("family"); f != "" {
		return payroll.ConceptFamily(f)
	}
	return payroll.FamilyIncome
}

func pathInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", key), err)
		return 0, false
	}
	return v, true
}

// queryInt returns 0 for an absent optional parameter.
func queryInt(w http.ResponseWriter, r *http.Request, key string, required bool) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		if required {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing %s", key), nil)
			return 0, false
		}
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", key), err)
		return 0, false
	}
	return v, true
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func (h *Handler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func (h *Handler) scenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}
