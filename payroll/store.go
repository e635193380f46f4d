/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between payroll logic and the relational store.
  The engine only needs row-level reads, upserts keyed by the identifiers
  of the data model, and a transactional wrapper for multi-row writes.

KEY INTERFACES:
  Store:         Row reads and upserts
  TxStore:       Store + WithTx for all-or-nothing multi-row writes
  SettingsStore: Process-wide settings (payout month)
  AuditLog:      Sink for change descriptions produced by callers

ATOMIC WRITES:
  The salary cascade, the yearly fan-out, the monthly forward-fill and the
  carry-over batch each run inside one WithTx call. If fn returns an error
  nothing it wrote is kept.

IMPLEMENTATIONS:
  - payroll/store/memory.go: In-memory, snapshot rollback (tests, demos)
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx
*/
package payroll

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

// Store persists the engine's records. Getters return (nil, nil) when the
// row does not exist.
type Store interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	GetSalary(ctx context.Context, employeeID EmployeeID, year int) (*SalaryDeclaration, error)
	// ListSalaries returns every declaration of the employee ordered by year.
	ListSalaries(ctx context.Context, employeeID EmployeeID) ([]SalaryDeclaration, error)
	// SaveSalary upserts on (EmployeeID, Year).
	SaveSalary(ctx context.Context, decl SalaryDeclaration) error

	// ListFTE returns the employee's FTE timeline ordered by (Year, Month).
	ListFTE(ctx context.Context, employeeID EmployeeID) ([]FTEEntry, error)
	// SaveFTE upserts on (EmployeeID, Year, Month).
	SaveFTE(ctx context.Context, entry FTEEntry) error

	GetConcept(ctx context.Context, employeeID EmployeeID, year, month int, family ConceptFamily) (*ConceptRecord, error)
	// ListConcepts returns the yearly row and monthly rows for the year, ordered by month.
	ListConcepts(ctx context.Context, employeeID EmployeeID, year int, family ConceptFamily) ([]ConceptRecord, error)
	// SaveConcept upserts on (EmployeeID, Year, Month, Family), replacing values.
	SaveConcept(ctx context.Context, record ConceptRecord) error

	AppendCarryOvers(ctx context.Context, entries []CarryOverEntry) error
	ListCarryOversBySource(ctx context.Context, employeeID EmployeeID, period YearMonth) ([]CarryOverEntry, error)
	ListCarryOversByDestination(ctx context.Context, employeeID EmployeeID, period YearMonth) ([]CarryOverEntry, error)
	// DeleteCarryOver reports whether a row was removed.
	DeleteCarryOver(ctx context.Context, id CarryOverID) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// SETTINGS
// =============================================================================

const (
	SettingPayoutMonth = "payout_month"

	// DefaultPayoutMonth applies when the setting has never been written.
	DefaultPayoutMonth = 4
)

// SettingsStore holds process-wide configuration values.
type SettingsStore interface {
	// GetSetting returns ok=false when the key was never written.
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error
}

// =============================================================================
// AUDIT LOG - change descriptions written by callers of the write paths
// =============================================================================

type AuditAction string

const (
	AuditSalaryChanged     AuditAction = "salary_changed"
	AuditFTEChanged        AuditAction = "fte_changed"
	AuditYearlyConcepts    AuditAction = "yearly_concepts_changed"
	AuditMonthlyConcepts   AuditAction = "monthly_concepts_changed"
	AuditCarryOverCreated  AuditAction = "carry_over_created"
	AuditCarryOverDeleted  AuditAction = "carry_over_deleted"
	AuditPayoutMonthChange AuditAction = "payout_month_changed"
)

// AuditEntry records who changed what.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Action     AuditAction
	EmployeeID EmployeeID
	Before     json.RawMessage
	After      json.RawMessage
}

// AuditLog is append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	EmployeeID *EmployeeID
	Action     *AuditAction
	Limit      int
}
