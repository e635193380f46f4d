// Package store provides in-memory payroll.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	d  *memData
}

type salaryKey struct {
	EmployeeID payroll.EmployeeID
	Year       int
}

type periodKey struct {
	EmployeeID payroll.EmployeeID
	Year       int
	Month      int
}

type conceptKey struct {
	EmployeeID payroll.EmployeeID
	Year       int
	Month      int
	Family     payroll.ConceptFamily
}

// memData holds the tables. Its methods assume the caller holds the lock.
type memData struct {
	employees  map[payroll.EmployeeID]payroll.Employee
	salaries   map[salaryKey]payroll.SalaryDeclaration
	fte        map[periodKey]payroll.FTEEntry
	concepts   map[conceptKey]payroll.ConceptRecord
	carryOvers []payroll.CarryOverEntry
	settings   map[string]string
	audit      []payroll.AuditEntry
}

func newMemData() *memData {
	return &memData{
		employees: make(map[payroll.EmployeeID]payroll.Employee),
		salaries:  make(map[salaryKey]payroll.SalaryDeclaration),
		fte:       make(map[periodKey]payroll.FTEEntry),
		concepts:  make(map[conceptKey]payroll.ConceptRecord),
		settings:  make(map[string]string),
	}
}

func NewMemory() *Memory {
	return &Memory{d: newMemData()}
}

// SaveEmployee upserts an employee. Employees are owned outside the engine;
// this exists for seeding.
func (m *Memory) SaveEmployee(_ context.Context, emp payroll.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.employees[emp.ID] = emp
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.Employee, 0, len(m.d.employees))
	for _, e := range m.d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reset drops every row.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d = newMemData()
	return nil
}

func (m *Memory) GetEmployee(ctx context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetEmployee(ctx, id)
}

func (m *Memory) GetSalary(ctx context.Context, employeeID payroll.EmployeeID, year int) (*payroll.SalaryDeclaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetSalary(ctx, employeeID, year)
}

func (m *Memory) ListSalaries(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.SalaryDeclaration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListSalaries(ctx, employeeID)
}

func (m *Memory) SaveSalary(ctx context.Context, decl payroll.SalaryDeclaration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveSalary(ctx, decl)
}

func (m *Memory) ListFTE(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.FTEEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListFTE(ctx, employeeID)
}

func (m *Memory) SaveFTE(ctx context.Context, entry payroll.FTEEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveFTE(ctx, entry)
}

func (m *Memory) GetConcept(ctx context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily) (*payroll.ConceptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetConcept(ctx, employeeID, year, month, family)
}

func (m *Memory) ListConcepts(ctx context.Context, employeeID payroll.EmployeeID, year int, family payroll.ConceptFamily) ([]payroll.ConceptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListConcepts(ctx, employeeID, year, family)
}

func (m *Memory) SaveConcept(ctx context.Context, record payroll.ConceptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveConcept(ctx, record)
}

func (m *Memory) AppendCarryOvers(ctx context.Context, entries []payroll.CarryOverEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.AppendCarryOvers(ctx, entries)
}

func (m *Memory) ListCarryOversBySource(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListCarryOversBySource(ctx, employeeID, period)
}

func (m *Memory) ListCarryOversByDestination(ctx context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListCarryOversByDestination(ctx, employeeID, period)
}

func (m *Memory) DeleteCarryOver(ctx context.Context, id payroll.CarryOverID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.DeleteCarryOver(ctx, id)
}

// =============================================================================
// SETTINGS AND AUDIT
// =============================================================================

func (m *Memory) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.d.settings[key]
	return v, ok, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.settings[key] = value
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, entry payroll.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d.audit = append(m.d.audit, entry)
	return nil
}

// ListAudit returns matching entries, newest first.
func (m *Memory) ListAudit(_ context.Context, filter payroll.AuditFilter) ([]payroll.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.AuditEntry
	for i := len(m.d.audit) - 1; i >= 0; i-- {
		e := m.d.audit[i]
		if filter.EmployeeID != nil && e.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// TABLE OPERATIONS (caller holds the lock)
// =============================================================================

func (d *memData) GetEmployee(_ context.Context, id payroll.EmployeeID) (*payroll.Employee, error) {
	e, ok := d.employees[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (d *memData) GetSalary(_ context.Context, employeeID payroll.EmployeeID, year int) (*payroll.SalaryDeclaration, error) {
	decl, ok := d.salaries[salaryKey{EmployeeID: employeeID, Year: year}]
	if !ok {
		return nil, nil
	}
	return &decl, nil
}

func (d *memData) ListSalaries(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.SalaryDeclaration, error) {
	var out []payroll.SalaryDeclaration
	for k, v := range d.salaries {
		if k.EmployeeID == employeeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (d *memData) SaveSalary(_ context.Context, decl payroll.SalaryDeclaration) error {
	d.salaries[salaryKey{EmployeeID: decl.EmployeeID, Year: decl.Year}] = decl
	return nil
}

func (d *memData) ListFTE(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.FTEEntry, error) {
	var out []payroll.FTEEntry
	for k, v := range d.fte {
		if k.EmployeeID == employeeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period().Before(out[j].Period()) })
	return out, nil
}

func (d *memData) SaveFTE(_ context.Context, entry payroll.FTEEntry) error {
	d.fte[periodKey{EmployeeID: entry.EmployeeID, Year: entry.Year, Month: entry.Month}] = entry
	return nil
}

func (d *memData) GetConcept(_ context.Context, employeeID payroll.EmployeeID, year, month int, family payroll.ConceptFamily) (*payroll.ConceptRecord, error) {
	r, ok := d.concepts[conceptKey{EmployeeID: employeeID, Year: year, Month: month, Family: family}]
	if !ok {
		return nil, nil
	}
	out := r.Clone()
	return &out, nil
}

func (d *memData) ListConcepts(_ context.Context, employeeID payroll.EmployeeID, year int, family payroll.ConceptFamily) ([]payroll.ConceptRecord, error) {
	var out []payroll.ConceptRecord
	for k, v := range d.concepts {
		if k.EmployeeID == employeeID && k.Year == year && k.Family == family {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (d *memData) SaveConcept(_ context.Context, record payroll.ConceptRecord) error {
	k := conceptKey{EmployeeID: record.EmployeeID, Year: record.Year, Month: record.Month, Family: record.Family}
	d.concepts[k] = record.Clone()
	return nil
}

func (d *memData) AppendCarryOvers(_ context.Context, entries []payroll.CarryOverEntry) error {
	d.carryOvers = append(d.carryOvers, entries...)
	return nil
}

func (d *memData) ListCarryOversBySource(_ context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	var out []payroll.CarryOverEntry
	for _, e := range d.carryOvers {
		if e.EmployeeID == employeeID && e.Source == period {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *memData) ListCarryOversByDestination(_ context.Context, employeeID payroll.EmployeeID, period payroll.YearMonth) ([]payroll.CarryOverEntry, error) {
	var out []payroll.CarryOverEntry
	for _, e := range d.carryOvers {
		if e.EmployeeID == employeeID && e.Destination == period {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *memData) DeleteCarryOver(_ context.Context, id payroll.CarryOverID) (bool, error) {
	for i, e := range d.carryOvers {
		if e.ID == id {
			d.carryOvers = append(d.carryOvers[:i], d.carryOvers[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.salaries {
		c.salaries[k] = v
	}
	for k, v := range d.fte {
		c.fte[k] = v
	}
	for k, v := range d.concepts {
		c.concepts[k] = v.Clone()
	}
	c.carryOvers = append([]payroll.CarryOverEntry(nil), d.carryOvers...)
	for k, v := range d.settings {
		c.settings[k] = v
	}
	c.audit = append([]payroll.AuditEntry(nil), d.audit...)
	return c
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.d.clone()

	// The view writes straight into tm.d without taking the lock again.
	if err := fn(tm.d); err != nil {
		tm.d = snapshot
		return err
	}
	return nil
}

var (
	_ payroll.TxStore       = (*TxMemory)(nil)
	_ payroll.SettingsStore = (*Memory)(nil)
	_ payroll.AuditLog      = (*Memory)(nil)
	_ payroll.Store         = (*memData)(nil)
)
