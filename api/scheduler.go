/*
scheduler.go - Periodic salary ledger consistency sweep

PURPOSE:
  Salary rows can be edited outside the engine (imports, manual SQL). The
  sweeper periodically checks every employee's ledger and, where a year's
  derived fields no longer match, rewrites it: years without a stored
  predecessor are re-derived from their own inputs, the others through the
  atrasos cascade from the first year. Consistent ledgers are left untouched, so a
  sweep over a clean database performs no writes.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Detects drift with payroll.DeriveSalary, repairs with RecomputeForward
  - Each repair is one transaction per employee

CONFIGURATION:
  - Interval: How often to check (cmd/server reads PAYROLL_SWEEP_INTERVAL;
    zero disables the background loop, the admin route still works)

USAGE:
  sweeper := NewConsistencySweeper(store, engine, time.Hour, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - payroll/atrasos.go: DeriveSalary, RecomputeForward
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// SweepResult summarizes one pass.
type SweepResult struct {
	Employees int               `json:"employees"`
	Repaired  map[string][]int  `json:"repaired"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// ConsistencySweeper handles automated ledger repair.
type ConsistencySweeper struct {
	Store    Store
	Engine   *payroll.Engine
	Interval time.Duration
	Logger   *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewConsistencySweeper creates a new sweeper.
func NewConsistencySweeper(store Store, engine *payroll.Engine, interval time.Duration, logger *slog.Logger) *ConsistencySweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencySweeper{
		Store:    store,
		Engine:   engine,
		Interval: interval,
		Logger:   logger,
	}
}

// Start begins the background loop. A non-positive interval is a no-op.
func (s *ConsistencySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Interval <= 0 {
		s.Logger.Info("consistency sweep disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Logger.Info("consistency sweep started", "interval", s.Interval.String())
}

// Stop stops the loop and waits for a running pass to finish.
func (s *ConsistencySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("consistency sweep stopped")
}

func (s *ConsistencySweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	s.RunNow(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one pass over every employee.
func (s *ConsistencySweeper) RunNow(ctx context.Context) SweepResult {
	result := SweepResult{Repaired: map[string][]int{}}

	employees, err := s.Store.ListEmployees(ctx)
	if err != nil {
		s.Logger.Error("consistency sweep: list employees", "error", err)
		result.Failed = map[string]string{"*": err.Error()}
		return result
	}
	result.Employees = len(employees)

	for _, emp := range employees {
		if ctx.Err() != nil {
			break
		}
		years, err := s.repair(ctx, emp.ID)
		if err != nil {
			s.Logger.Error("consistency sweep: repair failed", "employee_id", emp.ID, "error", err)
			if result.Failed == nil {
				result.Failed = map[string]string{}
			}
			result.Failed[string(emp.ID)] = err.Error()
			continue
		}
		if len(years) > 0 {
			result.Repaired[string(emp.ID)] = years
		}
	}

	if len(result.Repaired) > 0 || len(result.Failed) > 0 {
		s.Logger.Info("consistency sweep completed",
			"employees", result.Employees, "repaired", len(result.Repaired), "failed", len(result.Failed))
	}
	return result
}

// repair returns the drifted years it rewrote, or nil if the ledger is clean.
func (s *ConsistencySweeper) repair(ctx context.Context, employeeID payroll.EmployeeID) ([]int, error) {
	decls, err := s.Store.ListSalaries(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	drifted := DriftedYears(decls)
	if len(drifted) == 0 {
		return nil, nil
	}

	byYear := make(map[int]payroll.SalaryDeclaration, len(decls))
	first := decls[0].Year
	for _, d := range decls {
		byYear[d.Year] = d
		if d.Year < first {
			first = d.Year
		}
	}

	// A year without a predecessor is rewritten from its own stored inputs;
	// UpsertSalary cascades over the years that follow it.
	cascadeNeeded := false
	for _, year := range drifted {
		if _, ok := byYear[year-1]; ok {
			cascadeNeeded = true
			continue
		}
		d := byYear[year]
		if _, err := s.Engine.Atrasos.UpsertSalary(ctx, payroll.SalaryInput{
			EmployeeID:     employeeID,
			Year:           d.Year,
			Modality:       d.Modality,
			AnnualGross:    d.AnnualGross,
			SeniorityBonus: d.SeniorityBonus,
		}); err != nil {
			return nil, err
		}
	}
	if cascadeNeeded {
		if _, err := s.Engine.Atrasos.RecomputeForward(ctx, employeeID, first); err != nil {
			return nil, err
		}
	}
	return drifted, nil
}

// DriftedYears lists the years whose derived fields differ from what the
// engine would write. A year with a stored predecessor is checked against
// the cascade; a year without one keeps its stored atrasos, so only its
// monthly gross and the sum with atrasos are checked.
func DriftedYears(decls []payroll.SalaryDeclaration) []int {
	sorted := append([]payroll.SalaryDeclaration(nil), decls...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	var drifted []int
	for i, cur := range sorted {
		var prev *payroll.SalaryDeclaration
		if i > 0 && sorted[i-1].Year == cur.Year-1 {
			prev = &sorted[i-1]
		}
		want := payroll.DeriveSalary(cur, prev)
		if !want.MonthlyGross.Equal(cur.MonthlyGross) ||
			!want.Atrasos.Equal(cur.Atrasos) ||
			!want.MonthlyGrossWithAtrasos.Equal(cur.MonthlyGrossWithAtrasos) {
			drifted = append(drifted, cur.Year)
		}
	}
	return drifted
}

// HandleRunNow runs a pass synchronously.
// POST /api/admin/sweep
func (s *ConsistencySweeper) HandleRunNow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.RunNow(r.Context()))
}
