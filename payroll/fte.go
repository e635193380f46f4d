package payroll

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FTE RESOLVER - effective part-time percentage for a period
// =============================================================================

// FTEResolver answers "what percentage applied to this employee in this month".
//
// An entry is in effect from its (Year, Month) until a later entry supersedes
// it. No entry in effect means full time (100).
type FTEResolver struct {
	Store Store
}

// Resolve returns the percentage in effect for (year, month).
func (r *FTEResolver) Resolve(ctx context.Context, employeeID EmployeeID, year, month int) (decimal.Decimal, error) {
	if month < 1 || month > 12 {
		return decimal.Zero, invalid("month", month, ErrInvalidMonth)
	}
	entries, err := r.Store.ListFTE(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	return ResolveFTE(entries, YearMonth{Year: year, Month: month}), nil
}

// ResolveFTE picks, among entries starting at or before at, the one with the
// latest (Year, Month). Entries need not be sorted.
func ResolveFTE(entries []FTEEntry, at YearMonth) decimal.Decimal {
	var (
		best  *FTEEntry
		found bool
	)
	for i := range entries {
		start := entries[i].Period()
		if start.After(at) {
			continue
		}
		if !found || best.Period().Before(start) {
			best = &entries[i]
			found = true
		}
	}
	if !found {
		return FullTime
	}
	return best.Percentage
}

// SetFTE validates and upserts one timeline entry.
func (r *FTEResolver) SetFTE(ctx context.Context, entry FTEEntry) error {
	if err := validateFTE(entry); err != nil {
		return err
	}
	if err := requireEmployee(ctx, r.Store, entry.EmployeeID); err != nil {
		return err
	}
	return r.Store.SaveFTE(ctx, entry)
}

// Timeline returns the employee's entries in chronological order.
func (r *FTEResolver) Timeline(ctx context.Context, employeeID EmployeeID) ([]FTEEntry, error) {
	entries, err := r.Store.ListFTE(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Period().Before(entries[j].Period())
	})
	return entries, nil
}

func validateFTE(entry FTEEntry) error {
	if entry.Month < 1 || entry.Month > 12 {
		return invalid("month", entry.Month, ErrInvalidMonth)
	}
	if entry.Percentage.IsNegative() || entry.Percentage.GreaterThan(hundred) {
		return invalid("percentage", entry.Percentage, ErrInvalidPercentage)
	}
	return nil
}

func requireEmployee(ctx context.Context, store Store, id EmployeeID) error {
	emp, err := store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if emp == nil {
		return invalid("employee", id, ErrEmployeeNotFound)
	}
	return nil
}
