/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll model from the external API contract. Money is always sent
  back as a string with two decimals so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employee:     EmployeeDTO, CreateEmployeeRequest
  Salary:       SalaryDTO, SalaryChangeDTO, UpsertSalaryRequest
  FTE:          FTEEntryDTO, SetFTERequest
  Projection:   ProjectionDTO, YearProjectionDTO
  Concepts:     YearlyConceptsDTO, MonthlyConceptsDTO (bodies via factory)
  Carry-overs:  CarryOverDTO, CarryOverPeriodDTO (bodies via factory)
  Payslip:      PayslipDTO, PayslipLineDTO
  Settings:     PayoutMonthDTO
  Audit:        AuditEntryDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags, checked by decodeAndValidate
  before the handler runs. "payrollmonth" accepts 1..12. Domain rules (unknown
  concept names, negative amounts, destination ordering) are still enforced by
  the payroll package.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/concepts.go: Concept and carry-over JSON
*/
package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/export"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// VALIDATION
// =============================================================================

var validate = newValidator()

// newValidator panics if a custom rule fails to register; an unknown tag
// would otherwise only surface as a panic on the first request using it.
func newValidator() *validator.Validate {
	v := validator.New()
	rules := map[string]validator.Func{
		"payrollmonth": func(fl validator.FieldLevel) bool {
			m := fl.Field().Int()
			return m >= 1 && m <= 12
		},
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
	return v
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldErrorToString(e))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "payrollmonth":
		return fmt.Sprintf("%s must be between 1 and 12", e.Field())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID         string `json:"id" validate:"required,notblank"`
	Name       string `json:"name" validate:"required,notblank"`
	CostCenter string `json:"cost_center"`
	Active     *bool  `json:"active,omitempty"`
}

// UpsertSalaryRequest sets the salary terms of one year. Amounts accept
// JSON numbers or decimal strings.
type UpsertSalaryRequest struct {
	Year           int             `json:"year" validate:"required,gte=1900,lte=2999"`
	Modality       int             `json:"modality" validate:"required,gte=1"`
	AnnualGross    decimal.Decimal `json:"annual_gross"`
	SeniorityBonus decimal.Decimal `json:"seniority_bonus"`
}

// SetFTERequest adds or replaces a timeline entry.
type SetFTERequest struct {
	Year       int             `json:"year" validate:"required,gte=1900,lte=2999"`
	Month      int             `json:"month" validate:"payrollmonth"`
	Percentage decimal.Decimal `json:"percentage"`
}

type SetPayoutMonthRequest struct {
	Month int `json:"month" validate:"payrollmonth"`
}

// LoadScenarioRequest loads a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CostCenter string `json:"cost_center,omitempty"`
	Active     bool   `json:"active"`
}

type SalaryDTO struct {
	EmployeeID              string `json:"employee_id"`
	Year                    int    `json:"year"`
	Modality                int    `json:"modality"`
	AnnualGross             string `json:"annual_gross"`
	SeniorityBonus          string `json:"seniority_bonus"`
	MonthlyGross            string `json:"monthly_gross"`
	Atrasos                 string `json:"atrasos"`
	MonthlyGrossWithAtrasos string `json:"monthly_gross_with_atrasos"`
}

// SalaryChangeDTO is returned by the salary upsert.
type SalaryChangeDTO struct {
	Salary   SalaryDTO `json:"salary"`
	Cascaded []int     `json:"cascaded_years"`
}

type FTEEntryDTO struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Percentage string `json:"percentage"`
}

// ProjectionDTO is the amount payable for one month.
type ProjectionDTO struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	PayoutMonth int    `json:"payout_month"`
	Regime      string `json:"regime"`
	FTE         string `json:"fte"`
	Base        string `json:"base"`
	BackPay     string `json:"back_pay"`
	Amount      string `json:"amount"`
}

type YearProjectionDTO struct {
	EmployeeID  string          `json:"employee_id"`
	Year        int             `json:"year"`
	PayoutMonth int             `json:"payout_month"`
	Months      []ProjectionDTO `json:"months"`
	Total       string          `json:"total"`
}

// YearlyConceptsDTO is returned by the yearly concept write.
type YearlyConceptsDTO struct {
	Yearly  factory.ConceptRecordJSON   `json:"yearly"`
	Monthly []factory.ConceptRecordJSON `json:"monthly"`
}

// PropagationDTO describes a forward-fill caused by a monthly write.
type PropagationDTO struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Months []int  `json:"months"`
}

type MonthlyConceptsDTO struct {
	Record      factory.ConceptRecordJSON `json:"record"`
	Propagation []PropagationDTO          `json:"propagation"`
}

type CarryOverDTO struct {
	ID          string             `json:"id"`
	EmployeeID  string             `json:"employee_id"`
	Source      factory.PeriodJSON `json:"source"`
	Destination factory.PeriodJSON `json:"destination"`
	Concept     string             `json:"concept"`
	Amount      string             `json:"amount"`
	Deferred    bool               `json:"deferred"`
	CreatedAt   string             `json:"created_at"`
}

// CarryOverNetDTO is the movement of one concept in the queried period.
type CarryOverNetDTO struct {
	Incoming string `json:"incoming"`
	Outgoing string `json:"outgoing"`
	Net      string `json:"net"`
}

// CarryOverPeriodDTO lists a period's carry-overs from both sides.
type CarryOverPeriodDTO struct {
	Period        factory.PeriodJSON         `json:"period"`
	BySource      []CarryOverDTO             `json:"by_source"`
	ByDestination []CarryOverDTO             `json:"by_destination"`
	Net           map[string]CarryOverNetDTO `json:"net"`
}

type PayslipLineDTO struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	Amount     string `json:"amount"`
	CarriedIn  string `json:"carried_in,omitempty"`
	CarriedOut string `json:"carried_out,omitempty"`
}

type PayslipDTO struct {
	Employee        EmployeeDTO      `json:"employee"`
	Period          string           `json:"period"`
	PayoutMonth     int              `json:"payout_month"`
	Earnings        []PayslipLineDTO `json:"earnings"`
	Deductions      []PayslipLineDTO `json:"deductions"`
	Gross           string           `json:"gross"`
	TotalDeductions string           `json:"total_deductions"`
	Net             string           `json:"net"`
	GeneratedAt     string           `json:"generated_at"`
}

type PayoutMonthDTO struct {
	Month int `json:"month"`
}

type AuditEntryDTO struct {
	ID         string          `json:"id"`
	Timestamp  string          `json:"timestamp"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EmployeeID string          `json:"employee_id,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	return EmployeeDTO{ID: string(e.ID), Name: e.Name, CostCenter: e.CostCenter, Active: e.Active}
}

func toSalaryDTO(s payroll.SalaryDeclaration) SalaryDTO {
	return SalaryDTO{
		EmployeeID:              string(s.EmployeeID),
		Year:                    s.Year,
		Modality:                int(s.Modality),
		AnnualGross:             money(s.AnnualGross),
		SeniorityBonus:          money(s.SeniorityBonus),
		MonthlyGross:            money(s.MonthlyGross),
		Atrasos:                 money(s.Atrasos),
		MonthlyGrossWithAtrasos: money(s.MonthlyGrossWithAtrasos),
	}
}

func toFTEEntryDTO(e payroll.FTEEntry) FTEEntryDTO {
	return FTEEntryDTO{Year: e.Year, Month: e.Month, Percentage: money(e.Percentage)}
}

func toProjectionDTO(p payroll.Projection) ProjectionDTO {
	return ProjectionDTO{
		Year:        p.Year,
		Month:       p.Month,
		PayoutMonth: p.PayoutMonth,
		Regime:      string(p.Regime),
		FTE:         money(p.FTE),
		Base:        money(p.Base),
		BackPay:     money(p.BackPay),
		Amount:      money(p.Amount),
	}
}

func toPeriodJSON(p payroll.YearMonth) factory.PeriodJSON {
	return factory.PeriodJSON{Year: p.Year, Month: p.Month}
}

func toCarryOverDTO(e payroll.CarryOverEntry) CarryOverDTO {
	return CarryOverDTO{
		ID:          string(e.ID),
		EmployeeID:  string(e.EmployeeID),
		Source:      toPeriodJSON(e.Source),
		Destination: toPeriodJSON(e.Destination),
		Concept:     string(e.Concept),
		Amount:      money(e.Amount),
		Deferred:    e.Deferred,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCarryOverDTOs(entries []payroll.CarryOverEntry) []CarryOverDTO {
	dtos := make([]CarryOverDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toCarryOverDTO(e)
	}
	return dtos
}

func toPayslipLineDTOs(lines []export.Line) []PayslipLineDTO {
	dtos := make([]PayslipLineDTO, len(lines))
	for i, l := range lines {
		dto := PayslipLineDTO{Code: l.Code, Label: l.Label, Amount: money(l.Amount)}
		if !l.CarriedIn.IsZero() {
			dto.CarriedIn = money(l.CarriedIn)
		}
		if !l.CarriedOut.IsZero() {
			dto.CarriedOut = money(l.CarriedOut)
		}
		dtos[i] = dto
	}
	return dtos
}

func toPayslipDTO(s *export.Payslip) PayslipDTO {
	return PayslipDTO{
		Employee:        toEmployeeDTO(s.Employee),
		Period:          s.Period.String(),
		PayoutMonth:     s.PayoutMonth,
		Earnings:        toPayslipLineDTOs(s.Earnings),
		Deductions:      toPayslipLineDTOs(s.Deductions),
		Gross:           money(s.Gross),
		TotalDeductions: money(s.TotalDeductions),
		Net:             money(s.Net),
		GeneratedAt:     s.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

func toAuditEntryDTO(e payroll.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		EmployeeID: string(e.EmployeeID),
		Before:     e.Before,
		After:      e.After,
	}
}
