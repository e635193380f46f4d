/*
propagate.go - Yearly to monthly concept synchronization

PURPOSE:
  Monthly concept rows are what exports read, but users usually edit a
  yearly template. This file keeps the two in sync.

CONTRACT A - PropagateYearToMonths:
  Writes the patch into the yearly template row and into all 12 monthly
  rows, creating missing rows. Yearly writes always win for the fields they
  touch, including months that had been individually overridden; those
  fields stop counting as individually set.

CONTRACT B - UpsertMonthlyConcept:
  Writes a single monthly row and marks the written fields as individually
  set. For the in-kind social-security contribution (cotizacion_especie)
  the value is also forward-filled into every later month of the year that
  has not been individually set, and the touched months are reported so the
  caller can tell the user.

Both contracts run inside one TxStore.WithTx.
*/
package payroll

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// forwardFilled lists fields that Contract B propagates to later months.
var forwardFilled = map[Field]bool{
	FieldInKindContribution: true,
}

// PropagationInfo describes a forward-fill performed by UpsertMonthlyConcept.
type PropagationInfo struct {
	Field  Field
	Value  decimal.Decimal
	Months []int
}

// MonthlyResult is the outcome of UpsertMonthlyConcept.
type MonthlyResult struct {
	Before      *ConceptRecord
	Record      ConceptRecord
	Propagation []PropagationInfo
}

// YearlyResult is the outcome of PropagateYearToMonths.
type YearlyResult struct {
	Before  *ConceptRecord
	Yearly  ConceptRecord
	Monthly []ConceptRecord
}

type Propagator struct {
	Store  TxStore
	Logger *slog.Logger
}

// PropagateYearToMonths broadcasts patch to the yearly row and all 12 months.
func (p *Propagator) PropagateYearToMonths(ctx context.Context, employeeID EmployeeID, year int, patch ConceptPatch) (*YearlyResult, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	if err := requireEmployee(ctx, p.Store, employeeID); err != nil {
		return nil, err
	}

	result := &YearlyResult{}
	err := p.Store.WithTx(ctx, func(s Store) error {
		yearly, before, err := loadOrNew(ctx, s, employeeID, year, YearlyTemplateMonth, patch.Family())
		if err != nil {
			return err
		}
		result.Before = before
		applyPatch(&yearly, patch, false)
		if err := s.SaveConcept(ctx, yearly); err != nil {
			return &CascadeError{Operation: "save yearly concepts", EmployeeID: employeeID, Year: year, Err: err}
		}
		result.Yearly = yearly

		for month := 1; month <= 12; month++ {
			row, _, err := loadOrNew(ctx, s, employeeID, year, month, patch.Family())
			if err != nil {
				return err
			}
			applyPatch(&row, patch, false)
			if err := s.SaveConcept(ctx, row); err != nil {
				return &CascadeError{Operation: "propagate concepts", EmployeeID: employeeID, Year: year, Month: month, Err: err}
			}
			result.Monthly = append(result.Monthly, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.logger().Debug("yearly concepts propagated",
		"employee_id", employeeID, "year", year, "family", patch.Family(), "fields", patch.Fields())
	return result, nil
}

// UpsertMonthlyConcept writes one monthly row and forward-fills the fields
// listed in forwardFilled.
func (p *Propagator) UpsertMonthlyConcept(ctx context.Context, employeeID EmployeeID, year, month int, patch ConceptPatch) (*MonthlyResult, error) {
	if month < 1 || month > 12 {
		return nil, invalid("month", month, ErrInvalidMonth)
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}
	if err := requireEmployee(ctx, p.Store, employeeID); err != nil {
		return nil, err
	}

	result := &MonthlyResult{}
	err := p.Store.WithTx(ctx, func(s Store) error {
		row, before, err := loadOrNew(ctx, s, employeeID, year, month, patch.Family())
		if err != nil {
			return err
		}
		result.Before = before
		applyPatch(&row, patch, true)
		if err := s.SaveConcept(ctx, row); err != nil {
			return &CascadeError{Operation: "save monthly concepts", EmployeeID: employeeID, Year: year, Month: month, Err: err}
		}
		result.Record = row

		for _, field := range patch.Fields() {
			if !forwardFilled[field] {
				continue
			}
			value, _ := patch.Get(field)
			info, err := forwardFill(ctx, s, employeeID, year, month, patch.Family(), field, value)
			if err != nil {
				return err
			}
			if len(info.Months) > 0 {
				result.Propagation = append(result.Propagation, info)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, info := range result.Propagation {
		p.logger().Info("monthly concept forward-filled",
			"employee_id", employeeID, "year", year, "from_month", month,
			"field", info.Field, "months", info.Months)
	}
	return result, nil
}

// MonthlyConcepts returns the monthly row, or an empty one if never written.
func (p *Propagator) MonthlyConcepts(ctx context.Context, employeeID EmployeeID, year, month int, family ConceptFamily) (ConceptRecord, error) {
	if month < 1 || month > 12 {
		return ConceptRecord{}, invalid("month", month, ErrInvalidMonth)
	}
	if !family.Valid() {
		return ConceptRecord{}, invalid("family", family, ErrUnknownFamily)
	}
	row, _, err := loadOrNew(ctx, p.Store, employeeID, year, month, family)
	return row, err
}

// YearConcepts returns the yearly row and monthly rows stored for the year.
func (p *Propagator) YearConcepts(ctx context.Context, employeeID EmployeeID, year int, family ConceptFamily) ([]ConceptRecord, error) {
	if !family.Valid() {
		return nil, invalid("family", family, ErrUnknownFamily)
	}
	return p.Store.ListConcepts(ctx, employeeID, year, family)
}

func forwardFill(ctx context.Context, s Store, employeeID EmployeeID, year, fromMonth int, family ConceptFamily, field Field, value decimal.Decimal) (PropagationInfo, error) {
	info := PropagationInfo{Field: field, Value: value}
	for month := fromMonth + 1; month <= 12; month++ {
		row, _, err := loadOrNew(ctx, s, employeeID, year, month, family)
		if err != nil {
			return info, err
		}
		if row.Explicit[field] {
			continue
		}
		row.Values[field] = value
		if err := s.SaveConcept(ctx, row); err != nil {
			return info, &CascadeError{Operation: "forward-fill " + string(field), EmployeeID: employeeID, Year: year, Month: month, Err: err}
		}
		info.Months = append(info.Months, month)
	}
	return info, nil
}

func loadOrNew(ctx context.Context, s Store, employeeID EmployeeID, year, month int, family ConceptFamily) (ConceptRecord, *ConceptRecord, error) {
	existing, err := s.GetConcept(ctx, employeeID, year, month, family)
	if err != nil {
		return ConceptRecord{}, nil, err
	}
	if existing == nil {
		return NewConceptRecord(employeeID, year, month, family), nil, nil
	}
	before := existing.Clone()
	return existing.Clone(), &before, nil
}

func applyPatch(row *ConceptRecord, patch ConceptPatch, explicit bool) {
	for _, field := range patch.Fields() {
		value, _ := patch.Get(field)
		row.Values[field] = value
		if explicit && !row.IsYearly() {
			row.Explicit[field] = true
		} else {
			delete(row.Explicit, field)
		}
	}
}

func (p *Propagator) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
