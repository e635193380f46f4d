/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place. Validation errors are returned before any
  mutation; store failures are wrapped with the operation that hit them.

ERROR CATEGORIES:
  1. Validation errors - bad month, percentage, field name, amount
  2. Lookup errors - missing employee, missing carry-over entry
  3. Cascade errors - a multi-row write failed and was rolled back

USAGE:
    if payroll.IsClientError(err) {
        // 400
    }
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidMonth           = errors.New("month must be between 1 and 12")
	ErrInvalidPayoutMonth     = errors.New("payout month must be between 1 and 12")
	ErrInvalidPercentage      = errors.New("percentage must be between 0 and 100")
	ErrInvalidModality        = errors.New("modality must be positive")
	ErrNegativeAmount         = errors.New("amount must not be negative")
	ErrUnknownField           = errors.New("unknown concept field")
	ErrUnknownFamily          = errors.New("unknown concept family")
	ErrEmptyPatch             = errors.New("no concept fields to write")
	ErrInvalidDestination     = errors.New("carry-over destination must be after its source period")
	ErrDestinationNotDeferred = errors.New("carry-over destination given for a concept that is not deferred")

	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrCarryOverNotFound = errors.New("carry-over entry not found")

	// ErrStoreRequired is returned when an operation needs a store capability
	// the configured store does not provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input.
type ValidationError struct {
	Field  string
	Value  any
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %v", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func invalid(field string, value any, reason error) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// CascadeError reports the step of a multi-row write that failed. The
// surrounding transaction has been rolled back when this is returned.
type CascadeError struct {
	Operation  string
	EmployeeID EmployeeID
	Year       int
	Month      int
	Err        error
}

func (e *CascadeError) Error() string {
	if e.Month > 0 {
		return fmt.Sprintf("%s for %s at %04d-%02d: %v", e.Operation, e.EmployeeID, e.Year, e.Month, e.Err)
	}
	return fmt.Sprintf("%s for %s at %d: %v", e.Operation, e.EmployeeID, e.Year, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidPayoutMonth) ||
		errors.Is(err, ErrInvalidPercentage) ||
		errors.Is(err, ErrInvalidModality) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrUnknownFamily) ||
		errors.Is(err, ErrEmptyPatch) ||
		errors.Is(err, ErrInvalidDestination) ||
		errors.Is(err, ErrDestinationNotDeferred)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrCarryOverNotFound)
}
