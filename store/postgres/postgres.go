/*
Package postgres provides a PostgreSQL-backed implementation of the payroll storage interfaces.

PURPOSE:
  Same contract as store/sqlite, on a pgx connection pool. Multi-row writes
  run inside a pgx.Tx; PostgreSQL provides the isolation so no in-process
  lock is needed.

MONEY:
  Amounts live in NUMERIC columns. They cross the wire as text
  ($n::text::numeric on write, col::text on read) and are parsed with
  shopspring/decimal, so no float ever touches a salary.

SCHEMA:
  Versioned goose migrations embedded from migrations/. Run them with
  Migrate or the cmd/migrate binary.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation of the same interfaces
  - migrate.go: goose runner
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements all storage interfaces using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool with the same sizing the services use in production.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rows implements payroll.Store over a querier.
type rows struct {
	q querier
}

// =============================================================================
// PAYROLL STORE (payroll.Store interface)
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	return rows{s.pool}.GetEmployee(ctx, id)
}

func (s *Store) GetSalary(ctx context.Context, employeeID payroll.EmployeeID, year int) (*payroll.SalaryDeclaration, error) {
	return rows{s.pool}.GetSalary(ctx, employeeID, year)
}

func (s *Store) ListSalaries(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.SalaryDeclaration, error) {
	return rows{s.pool}.ListSalaries(ctx, employeeID)
}

func (s *Store) SaveSalary(ctx context.Context, decl payroll.SalaryDeclaration) error {
	return rows{s.pool}.SaveSalary(ctx, decl)
}

func (s *Store) ListFTE(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.FTEEntry, error) {
	return rows{s.pool}.ListFTE(ctx, employeeID)
}

func (s *Store) SaveFTE(ctx context.Context, entry payroll.FTEEntry) error {
	return rows{s.pool}.SaveFTE(ctx, entry)
}

func (s *Store) GetConcept(ctx context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily) (*payroll.ConceptRecord, error) {
	return rows{s.pool}.GetConcept(ctx, employeeID, year, month, family)
}

func (s *Store) ListConcepts(ctx context.Context, employeeID payroll.EmployeeID, year int, family payroll.ConceptFamily) ([]payroll.ConceptRecord, error) {
	return rows{s.pool}.ListConcepts(ctx, employeeID, year, family)
}

func (s *Store) SaveConcept(ctx context.Context, record payroll.ConceptRecord) error {
	return rows{s.pool}.SaveConcept(ctx, record)
}

// AppendCarryOvers inserts every entry in one transaction.
func (s *Store) AppendCarryOvers(ctx context.Context, entries []payroll.CarryOverEntry) error {
	return s.WithTx(ctx, func(tx payroll.Store) error {
		return tx.AppendCarryOvers(ctx, entries)
	})
}

func (s *Store) ListCarryOversBySource(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	return rows{s.pool}.ListCarryOversBySource(ctx, employeeID, period)
}

func (s *Store) ListCarryOversByDestination(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	return rows{s.pool}.ListCarryOversByDestination(ctx, employeeID, period)
}

func (s *Store) DeleteCarryOver(ctx context.Context, id payroll.CarryOverID) (bool, error) {
	return rows{s.pool}.DeleteCarryOver(ctx, id)
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store payroll.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(rows{tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

func (r rows) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	var emp payroll.Employee
	var costCenter *string
	err := r.q.QueryRow(ctx,
		"SELECT id, name, cost_center, active FROM employees WHERE id = $1", string(id),
	).Scan(&emp.ID, &emp.Name, &costCenter, &emp.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if costCenter != nil {
		emp.CostCenter = *costCenter
	}
	return &emp, nil
}

const salaryColumns = `employee_id, year, modality, annual_gross::text, seniority_bonus::text,
	monthly_gross::text, atrasos::text, monthly_gross_with_atrasos::text`

func (r rows) GetSalary(ctx context.Context, employeeID payroll.EmployeeID, year int) (*payroll.SalaryDeclaration, error) {
	row := r.q.QueryRow(ctx,
		"SELECT "+salaryColumns+" FROM salary_declarations WHERE employee_id = $1 AND year = $2",
		string(employeeID), year)
	decl, err := scanSalary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get salary: %w", err)
	}
	return &decl, nil
}

func (r rows) ListSalaries(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.SalaryDeclaration, error) {
	result, err := r.q.Query(ctx,
		"SELECT "+salaryColumns+" FROM salary_declarations WHERE employee_id = $1 ORDER BY year ASC",
		string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("list salaries: %w", err)
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
	_, err := r.q.Exec(ctx, `
		INSERT INTO salary_declarations
		(employee_id, year, modality, annual_gross, seniority_bonus,
		 monthly_gross, atrasos, monthly_gross_with_atrasos, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric,
		        $6::text::numeric, $7::text::numeric, $8::text::numeric, now())
		ON CONFLICT (employee_id, year) DO UPDATE SET
			modality = EXCLUDED.modality,
			annual_gross = EXCLUDED.annual_gross,
			seniority_bonus = EXCLUDED.seniority_bonus,
			monthly_gross = EXCLUDED.monthly_gross,
			atrasos = EXCLUDED.atrasos,
			monthly_gross_with_atrasos = EXCLUDED.monthly_gross_with_atrasos,
			updated_at = now()
	`,
		string(decl.EmployeeID), decl.Year, int(decl.Modality),
		decl.AnnualGross.String(), decl.SeniorityBonus.String(),
		decl.MonthlyGross.String(), decl.Atrasos.String(), decl.MonthlyGrossWithAtrasos.String(),
	)
	if err != nil {
		return fmt.Errorf("save salary: %w", err)
	}
	return nil
}

func (r rows) ListFTE(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.FTEEntry, error) {
	result, err := r.q.Query(ctx, `
		SELECT employee_id, year, month, percentage::text
		FROM fte_entries WHERE employee_id = $1
		ORDER BY year ASC, month ASC
	`, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("list fte: %w", err)
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
	_, err := r.q.Exec(ctx, `
		INSERT INTO fte_entries (employee_id, year, month, percentage)
		VALUES ($1, $2, $3, $4::text::numeric)
		ON CONFLICT (employee_id, year, month) DO UPDATE SET percentage = EXCLUDED.percentage
	`, string(entry.EmployeeID), entry.Year, entry.Month, entry.Percentage.String())
	if err != nil {
		return fmt.Errorf("save fte: %w", err)
	}
	return nil
}

func (r rows) GetConcept(ctx context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily) (*payroll.ConceptRecord, error) {
	row := r.q.QueryRow(ctx, `
		SELECT employee_id, year, month, family, values_json, explicit_json
		FROM concept_records
		WHERE employee_id = $1 AND year = $2 AND month = $3 AND family = $4
	`, string(employeeID), year, month, string(family))
	rec, err := scanConcept(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get concept: %w", err)
	}
	return &rec, nil
}

func (r rows) ListConcepts(ctx context.Context, employeeID payroll.EmployeeID, year int, family payroll.ConceptFamily) ([]payroll.ConceptRecord, error) {
	result, err := r.q.Query(ctx, `
		SELECT employee_id, year, month, family, values_json, explicit_json
		FROM concept_records
		WHERE employee_id = $1 AND year = $2 AND family = $3
		ORDER BY month ASC
	`, string(employeeID), year, string(family))
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
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
	values, explicit, err := payroll.EncodeConceptColumns(record)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO concept_records
		(employee_id, year, month, family, values_json, explicit_json, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (employee_id, year, month, family) DO UPDATE SET
			values_json = EXCLUDED.values_json,
			explicit_json = EXCLUDED.explicit_json,
			updated_at = now()
	`, string(record.EmployeeID), record.Year, record.Month, string(record.Family), values, explicit)
	if err != nil {
		return fmt.Errorf("save concept: %w", err)
	}
	return nil
}

func (r rows) AppendCarryOvers(ctx context.Context, entries []payroll.CarryOverEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO carry_overs
			(id, employee_id, source_year, source_month, destination_year, destination_month,
			 concept, amount, deferred, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9, $10)
		`,
			string(e.ID), string(e.EmployeeID),
			e.Source.Year, e.Source.Month,
			e.Destination.Year, e.Destination.Month,
			string(e.Concept), e.Amount.String(), e.Deferred, e.CreatedAt,
		)
	}
	return sendBatch(ctx, r.q, batch)
}

func sendBatch(ctx context.Context, q querier, batch *pgx.Batch) error {
	sender, ok := q.(interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		return fmt.Errorf("append carry-overs: querier cannot send batches")
	}
	results := sender.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("append carry-over %d: %w", i, err)
		}
	}
	return results.Close()
}

const carryOverColumns = `id, employee_id, source_year, source_month, destination_year,
	destination_month, concept, amount::text, deferred, created_at`

func (r rows) ListCarryOversBySource(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	return r.queryCarryOvers(ctx,
		"SELECT "+carryOverColumns+" FROM carry_overs WHERE employee_id = $1 AND source_year = $2 AND source_month = $3 ORDER BY seq ASC",
		string(employeeID), period.Year, period.Month)
}

func (r rows) ListCarryOversByDestination(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	return r.queryCarryOvers(ctx,
		"SELECT "+carryOverColumns+" FROM carry_overs WHERE employee_id = $1 AND destination_year = $2 AND destination_month = $3 ORDER BY seq ASC",
		string(employeeID), period.Year, period.Month)
}

func (r rows) queryCarryOvers(ctx context.Context, query string, args ...any) ([]payroll.CarryOverEntry, error) {
	result, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list carry-overs: %w", err)
	}
	defer result.Close()

	var entries []payroll.CarryOverEntry
	for result.Next() {
		var e payroll.CarryOverEntry
		var amount string
		if err := result.Scan(&e.ID, &e.EmployeeID,
			&e.Source.Year, &e.Source.Month,
			&e.Destination.Year, &e.Destination.Month,
			&e.Concept, &amount, &e.Deferred, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Amount = payroll.MustParseDecimal(amount)
		entries = append(entries, e)
	}
	return entries, result.Err()
}

func (r rows) DeleteCarryOver(ctx context.Context, id payroll.CarryOverID) (bool, error) {
	tag, err := r.q.Exec(ctx, "DELETE FROM carry_overs WHERE id = $1", string(id))
	if err != nil {
		return false, fmt.Errorf("delete carry-over: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// =============================================================================
// EMPLOYEES - seeded by scenarios and tests
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees (id, name, cost_center, active)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cost_center = EXCLUDED.cost_center,
			active = EXCLUDED.active
	`, string(emp.ID), emp.Name, emp.CostCenter, emp.Active)
	return err
}

func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	result, err := s.pool.Query(ctx, "SELECT id, name, COALESCE(cost_center, ''), active FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var employees []payroll.Employee
	for result.Next() {
		var emp payroll.Employee
		if err := result.Scan(&emp.ID, &emp.Name, &emp.CostCenter, &emp.Active); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, result.Err()
}

// =============================================================================
// SETTINGS (payroll.SettingsStore interface)
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

// =============================================================================
// AUDIT LOG (payroll.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry payroll.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, employee_id, before_json, after_json)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7)
	`,
		entry.ID, entry.Timestamp, entry.ActorID, string(entry.Action), string(entry.EmployeeID),
		nullJSON(entry.Before), nullJSON(entry.After),
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns matching entries, newest first.
func (s *Store) ListAudit(ctx context.Context, filter payroll.AuditFilter) ([]payroll.AuditEntry, error) {
	var where []string
	var args []any
	if filter.EmployeeID != nil {
		args = append(args, string(*filter.EmployeeID))
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, string(*filter.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT id, timestamp, COALESCE(actor_id, ''), action, COALESCE(employee_id, ''),
		before_json, after_json FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	result, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer result.Close()

	var entries []payroll.AuditEntry
	for result.Next() {
		var e payroll.AuditEntry
		var before, after []byte
		if err := result.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.Action, &e.EmployeeID, &before, &after); err != nil {
			return nil, err
		}
		if before != nil {
			e.Before = json.RawMessage(before)
		}
		if after != nil {
			e.After = json.RawMessage(after)
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
	_, err := s.pool.Exec(ctx, `TRUNCATE carry_overs, concept_records, fte_entries,
		salary_declarations, audit_log, settings, employees RESTART IDENTITY`)
	return err
}

func scanSalary(row pgx.Row) (payroll.SalaryDeclaration, error) {
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

func scanConcept(row pgx.Row) (payroll.ConceptRecord, error) {
	var rec payroll.ConceptRecord
	var values, explicit []byte
	if err := row.Scan(&rec.EmployeeID, &rec.Year, &rec.Month, &rec.Family, &values, &explicit); err != nil {
		return rec, err
	}
	err := payroll.DecodeConceptColumns(&rec, values, explicit)
	return rec, err
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

var (
	_ payroll.TxStore       = (*Store)(nil)
	_ payroll.SettingsStore = (*Store)(nil)
	_ payroll.AuditLog      = (*Store)(nil)
)
