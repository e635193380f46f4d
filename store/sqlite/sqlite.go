/*
Package sqlite provides a SQLite-backed implementation of the payroll storage interfaces.

PURPOSE:
  Implements payroll.TxStore, payroll.SettingsStore and payroll.AuditLog on
  SQLite. store/postgres implements the same interfaces on PostgreSQL; the
  two differ only in SQL dialect.

INTERFACES IMPLEMENTED:
  payroll.Store:         Salary ledger, FTE timeline, concepts, carry-overs
  payroll.TxStore:       All-or-nothing multi-row writes
  payroll.SettingsStore: Payout month and other process-wide values
  payroll.AuditLog:      Append-only change log

KEY TABLES:
  employees:           Read-only to the engine, seeded by demo scenarios
  salary_declarations: One row per (employee, year)
  fte_entries:         One row per (employee, year, month)
  concept_records:     One row per (employee, year, month, family); month 0 is
                       the yearly template. Values are a JSON object of
                       decimal strings.
  carry_overs:         Deferred concept amounts
  settings:            Key/value
  audit_log:           Before/after JSON of every user-facing write

MONEY:
  Decimals are stored as TEXT and parsed with shopspring/decimal so no
  float rounding ever touches a salary.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the view handed to fn runs its queries on the *sql.Tx
  without taking the lock again.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewEngine(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). The PostgreSQL store uses versioned
  goose migrations instead.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cost_center TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS salary_declarations (
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		modality INTEGER NOT NULL,
		annual_gross TEXT NOT NULL,
		seniority_bonus TEXT NOT NULL,
		monthly_gross TEXT NOT NULL,
		atrasos TEXT NOT NULL,
		monthly_gross_with_atrasos TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS fte_entries (
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		percentage TEXT NOT NULL,
		PRIMARY KEY (employee_id, year, month)
	);

	-- month = 0 is the yearly template row
	CREATE TABLE IF NOT EXISTS concept_records (
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 0 AND 12),
		family TEXT NOT NULL,
		values_json TEXT NOT NULL,
		explicit_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year, month, family)
	);

	CREATE TABLE IF NOT EXISTS carry_overs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		source_year INTEGER NOT NULL,
		source_month INTEGER NOT NULL,
		destination_year INTEGER NOT NULL,
		destination_month INTEGER NOT NULL,
		concept TEXT NOT NULL,
		amount TEXT NOT NULL,
		deferred BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_carry_overs_source
		ON carry_overs(employee_id, source_year, source_month);
	CREATE INDEX IF NOT EXISTS idx_carry_overs_destination
		ON carry_overs(employee_id, destination_year, destination_month);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		employee_id TEXT,
		before_json TEXT,
		after_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_employee
		ON audit_log(employee_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rows implements payroll.Store over a querier. It never locks.
type rows struct {
	q querier
}

// =============================================================================
// PAYROLL STORE (payroll.Store interface)
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.GetEmployee(ctx, id)
}

func (s *Store) GetSalary(ctx context.Context, employeeID payroll.EmployeeID, year int) (*payroll.SalaryDeclaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.GetSalary(ctx, employeeID, year)
}

func (s *Store) ListSalaries(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.SalaryDeclaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.ListSalaries(ctx, employeeID)
}

func (s *Store) SaveSalary(ctx context.Context, decl payroll.SalaryDeclaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rows{s.db}.SaveSalary(ctx, decl)
}

func (s *Store) ListFTE(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.FTEEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.ListFTE(ctx, employeeID)
}

func (s *Store) SaveFTE(ctx context.Context, entry payroll.FTEEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rows{s.db}.SaveFTE(ctx, entry)
}

func (s *Store) GetConcept(ctx context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily) (*payroll.ConceptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.GetConcept(ctx, employeeID, year, month, family)
}

func (s *Store) ListConcepts(ctx context.Context, employeeID payroll.EmployeeID, year int, family payroll.ConceptFamily) ([]payroll.ConceptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.ListConcepts(ctx, employeeID, year, family)
}

func (s *Store) SaveConcept(ctx context.Context, record payroll.ConceptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rows{s.db}.SaveConcept(ctx, record)
}

// AppendCarryOvers inserts every entry in one transaction.
func (s *Store) AppendCarryOvers(ctx context.Context, entries []payroll.CarryOverEntry) error {
	return s.WithTx(ctx, func(tx payroll.Store) error {
		return tx.AppendCarryOvers(ctx, entries)
	})
}

func (s *Store) ListCarryOversBySource(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.ListCarryOversBySource(ctx, employeeID, period)
}

func (s *Store) ListCarryOversByDestination(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows{s.db}.ListCarryOversByDestination(ctx, employeeID, period)
}

func (s *Store) DeleteCarryOver(ctx context.Context, id payroll.CarryOverID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rows{s.db}.DeleteCarryOver(ctx, id)
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store payroll.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(rows{sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

func (r rows) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	var emp payroll.Employee
	var costCenter sql.NullString

	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, cost_center, active FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &costCenter, &emp.Active)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	emp.CostCenter = costCenter.String
	return &emp, nil
}

const salaryColumns = `employee_id, year, modality, annual_gross, seniority_bonus,
	monthly_gross, atrasos, monthly_gross_with_atrasos`

func (r rows) GetSalary(ctx context.Context, employeeID payroll.EmployeeID, year int) (*payroll.SalaryDeclaration, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+salaryColumns+" FROM salary_declarations WHERE employee_id = ? AND year = ?",
		employeeID, year,
	)
	decl, err := scanSalary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &decl, nil
}

func (r rows) ListSalaries(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.SalaryDeclaration, error) {
	result, err := r.q.QueryContext(ctx,
		"SELECT "+salaryColumns+" FROM salary_declarations WHERE employee_id = ? ORDER BY year ASC",
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query salaries: %w", err)
	}
	defer result.Close()

	var decls []payroll.SalaryDeclaration
	for result.Next() {
		decl, err := scanSalary(result)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, result.Err()
}

func (r rows) SaveSalary(ctx context.Context, decl payroll.SalaryDeclaration) error {
	query := `
		INSERT INTO salary_declarations
		(employee_id, year, modality, annual_gross, seniority_bonus,
		 monthly_gross, atrasos, monthly_gross_with_atrasos, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			modality = excluded.modality,
			annual_gross = excluded.annual_gross,
			seniority_bonus = excluded.seniority_bonus,
			monthly_gross = excluded.monthly_gross,
			atrasos = excluded.atrasos,
			monthly_gross_with_atrasos = excluded.monthly_gross_with_atrasos,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		decl.EmployeeID, decl.Year, int(decl.Modality),
		decl.AnnualGross.String(), decl.SeniorityBonus.String(),
		decl.MonthlyGross.String(), decl.Atrasos.String(), decl.MonthlyGrossWithAtrasos.String(),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save salary: %w", err)
	}
	return nil
}

func (r rows) ListFTE(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.FTEEntry, error) {
	result, err := r.q.QueryContext(ctx,
		"SELECT employee_id, year, month, percentage FROM fte_entries WHERE employee_id = ? ORDER BY year ASC, month ASC",
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fte entries: %w", err)
	}
	defer result.Close()

	var entries []payroll.FTEEntry
	for result.Next() {
		var e payroll.FTEEntry
		var pct string
		if err := result.Scan(&e.EmployeeID, &e.Year, &e.Month, &pct); err != nil {
			return nil, err
		}
		e.Percentage = payroll.MustParseDecimal(pct)
		entries = append(entries, e)
	}
	return entries, result.Err()
}

func (r rows) SaveFTE(ctx context.Context, entry payroll.FTEEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO fte_entries (employee_id, year, month, percentage)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			percentage = excluded.percentage
	`, entry.EmployeeID, entry.Year, entry.Month, entry.Percentage.String())
	if err != nil {
		return fmt.Errorf("failed to save fte entry: %w", err)
	}
	return nil
}

func (r rows) GetConcept(ctx context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily) (*payroll.ConceptRecord, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT employee_id, year, month, family, values_json, explicit_json
		FROM concept_records
		WHERE employee_id = ? AND year = ? AND month = ? AND family = ?
	`, employeeID, year, month, family)
	rec, err := scanConcept(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r rows) ListConcepts(ctx context.Context, employeeID payroll.EmployeeID, year int, family payroll.ConceptFamily) ([]payroll.ConceptRecord, error) {
	result, err := r.q.QueryContext(ctx, `
		SELECT employee_id, year, month, family, values_json, explicit_json
		FROM concept_records
		WHERE employee_id = ? AND year = ? AND family = ?
		ORDER BY month ASC
	`, employeeID, year, family)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer result.Close()

	var records []payroll.ConceptRecord
	for result.Next() {
		rec, err := scanConcept(result)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, result.Err()
}

func (r rows) SaveConcept(ctx context.Context, record payroll.ConceptRecord) error {
	valuesJSON, explicitJSON, err := payroll.EncodeConceptColumns(record)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO concept_records
		(employee_id, year, month, family, values_json, explicit_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month, family) DO UPDATE SET
			values_json = excluded.values_json,
			explicit_json = excluded.explicit_json,
			updated_at = excluded.updated_at
	`, record.EmployeeID, record.Year, record.Month, record.Family, string(valuesJSON), string(explicitJSON), now())
	if err != nil {
		return fmt.Errorf("failed to save concept record: %w", err)
	}
	return nil
}

func (r rows) AppendCarryOvers(ctx context.Context, entries []payroll.CarryOverEntry) error {
	for _, e := range entries {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO carry_overs
			(id, employee_id, source_year, source_month, destination_year, destination_month,
			 concept, amount, deferred, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID, e.EmployeeID,
			e.Source.Year, e.Source.Month,
			e.Destination.Year, e.Destination.Month,
			e.Concept, e.Amount.String(), e.Deferred,
			e.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to append carry-over %s: %w", e.ID, err)
		}
	}
	return nil
}

const carryOverColumns = `id, employee_id, source_year, source_month, destination_year,
	destination_month, concept, amount, deferred, created_at`

func (r rows) ListCarryOversBySource(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	return r.queryCarryOvers(ctx,
		"SELECT "+carryOverColumns+" FROM carry_overs WHERE employee_id = ? AND source_year = ? AND source_month = ? ORDER BY seq ASC",
		employeeID, period.Year, period.Month)
}

func (r rows) ListCarryOversByDestination(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	return r.queryCarryOvers(ctx,
		"SELECT "+carryOverColumns+" FROM carry_overs WHERE employee_id = ? AND destination_year = ? AND destination_month = ? ORDER BY seq ASC",
		employeeID, period.Year, period.Month)
}

func (r rows) queryCarryOvers(ctx context.Context, query string, args ...any) ([]payroll.CarryOverEntry, error) {
	result, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query carry-overs: %w", err)
	}
	defer result.Close()

	var entries []payroll.CarryOverEntry
	for result.Next() {
		var e payroll.CarryOverEntry
		var amount, createdAt string
		if err := result.Scan(&e.ID, &e.EmployeeID,
			&e.Source.Year, &e.Source.Month,
			&e.Destination.Year, &e.Destination.Month,
			&e.Concept, &amount, &e.Deferred, &createdAt); err != nil {
			return nil, err
		}
		e.Amount = payroll.MustParseDecimal(amount)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, result.Err()
}

func (r rows) DeleteCarryOver(ctx context.Context, id payroll.CarryOverID) (bool, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM carry_overs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete carry-over: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// EMPLOYEES - seeded by scenarios and tests
// =============================================================================

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, cost_center, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			cost_center = excluded.cost_center,
			active = excluded.active
	`
	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, nullString(emp.CostCenter), emp.Active, now(),
	)
	return err
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, err := s.db.QueryContext(ctx,
		"SELECT id, name, cost_center, active FROM employees ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var employees []payroll.Employee
	for result.Next() {
		var emp payroll.Employee
		var costCenter sql.NullString
		if err := result.Scan(&emp.ID, &emp.Name, &costCenter, &emp.Active); err != nil {
			return nil, err
		}
		emp.CostCenter = costCenter.String
		employees = append(employees, emp)
	}
	return employees, result.Err()
}

// =============================================================================
// SETTINGS (payroll.SettingsStore interface)
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now())
	return err
}

// =============================================================================
// AUDIT LOG (payroll.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry payroll.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, employee_id, before_json, after_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		nullString(entry.ActorID),
		entry.Action,
		nullString(string(entry.EmployeeID)),
		nullString(string(entry.Before)),
		nullString(string(entry.After)),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns matching entries, newest first.
func (s *Store) ListAudit(ctx context.Context, filter payroll.AuditFilter) ([]payroll.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, *filter.EmployeeID)
	}
	if filter.Action != nil {
		where = append(where, "action = ?")
		args = append(args, *filter.Action)
	}

	query := "SELECT id, timestamp, actor_id, action, employee_id, before_json, after_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	result, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer result.Close()

	var entries []payroll.AuditEntry
	for result.Next() {
		var e payroll.AuditEntry
		var ts string
		var actor, employee, before, after sql.NullString
		if err := result.Scan(&e.ID, &ts, &actor, &e.Action, &employee, &before, &after); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.ActorID = actor.String
		e.EmployeeID = payroll.EmployeeID(employee.String)
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		entries = append(entries, e)
	}
	return entries, result.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"carry_overs", "concept_records", "fte_entries", "salary_declarations",
		"audit_log", "settings", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSalary(row scanner) (payroll.SalaryDeclaration, error) {
	var d payroll.SalaryDeclaration
	var modality int
	var annual, bonus, monthly, atrasos, withAtrasos string
	if err := row.Scan(&d.EmployeeID, &d.Year, &modality, &annual, &bonus, &monthly, &atrasos, &withAtrasos); err != nil {
		return d, err
	}
	d.Modality = payroll.Modality(modality)
	d.AnnualGross = payroll.MustParseDecimal(annual)
	d.SeniorityBonus = payroll.MustParseDecimal(bonus)
	d.MonthlyGross = payroll.MustParseDecimal(monthly)
	d.Atrasos = payroll.MustParseDecimal(atrasos)
	d.MonthlyGrossWithAtrasos = payroll.MustParseDecimal(withAtrasos)
	return d, nil
}

func scanConcept(row scanner) (payroll.ConceptRecord, error) {
	var rec payroll.ConceptRecord
	var valuesJSON, explicitJSON string
	if err := row.Scan(&rec.EmployeeID, &rec.Year, &rec.Month, &rec.Family, &valuesJSON, &explicitJSON); err != nil {
		return rec, err
	}
	err := payroll.DecodeConceptColumns(&rec, []byte(valuesJSON), []byte(explicitJSON))
	return rec, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

var (
	_ payroll.TxStore       = (*Store)(nil)
	_ payroll.SettingsStore = (*Store)(nil)
	_ payroll.AuditLog      = (*Store)(nil)
	_ payroll.Store         = rows{}
)
