package payroll_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const empID payroll.EmployeeID = "emp-1"

func newTestStore(t *testing.T) *store.TxMemory {
	t.Helper()
	s := store.NewTxMemory()
	require.NoError(t, s.SaveEmployee(context.Background(), payroll.Employee{
		ID: empID, Name: "Ana Ruiz", CostCenter: "CC-100", Active: true,
	}))
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func salary(year int, annual string) payroll.SalaryInput {
	return payroll.SalaryInput{
		EmployeeID:     empID,
		Year:           year,
		Modality:       payroll.Modality12,
		AnnualGross:    dec(annual),
		SeniorityBonus: decimal.Zero,
	}
}

func seedSalaries(t *testing.T, s payroll.TxStore, inputs ...payroll.SalaryInput) {
	t.Helper()
	cascade := &payroll.AtrasosCascade{Store: s}
	for _, in := range inputs {
		_, err := cascade.UpsertSalary(context.Background(), in)
		require.NoError(t, err)
	}
}

// failingStore fails writes for one salary year or one concept month while
// inside a transaction. Zero disables the corresponding failure.
type failingStore struct {
	*store.TxMemory
	failYear  int
	failMonth int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	return f.TxMemory.WithTx(ctx, func(s payroll.Store) error {
		return fn(&failingView{Store: s, failYear: f.failYear, failMonth: f.failMonth})
	})
}

type failingView struct {
	payroll.Store
	failYear  int
	failMonth int
}

func (v *failingView) SaveSalary(ctx context.Context, decl payroll.SalaryDeclaration) error {
	if v.failYear != 0 && decl.Year == v.failYear {
		return errDiskFull
	}
	return v.Store.SaveSalary(ctx, decl)
}

func (v *failingView) SaveConcept(ctx context.Context, record payroll.ConceptRecord) error {
	if v.failMonth != 0 && record.Month == v.failMonth {
		return errDiskFull
	}
	return v.Store.SaveConcept(ctx, record)
}
