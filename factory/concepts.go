/*
Package factory provides JSON to Go conversion for concept writes.

PURPOSE:
  Converts JSON concept payloads into validated payroll.ConceptPatch values
  and carry-over batches, and stored records back to JSON. Amounts are read
  as decimals straight from the JSON text so 0.1 stays 0.1.

JSON SCHEMA (concept patch):
  {
    "family": "ingresos",
    "values": {
      "ticket_restaurant": 50,
      "seguro_medico": "32.40"
    }
  }

  Amounts may be JSON numbers or decimal strings. Unknown field names,
  fields of another family and negative amounts are rejected before
  anything is written.

JSON SCHEMA (carry-over batch):
  {
    "source_year": 2025,
    "source_month": 3,
    "defer_concepts": ["horas_extra"],
    "items": [
      {"concept": "horas_extra", "amount": 120, "destination": {"year": 2025, "month": 6}},
      {"concept": "transporte", "amount": "40"}
    ]
  }

USAGE:
  f := factory.NewConceptFactory()
  patch, err := f.ParsePatch(body)
  engine.Concepts.PropagateYearToMonths(ctx, emp, 2025, patch)

SEE ALSO:
  - payroll/concepts.go: ConceptPatch and field allow-lists
  - payroll/carryover.go: CarryOverItem
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConceptPatchJSON is the JSON representation of a concept write.
type ConceptPatchJSON struct {
	Family string                     `json:"family"`
	Values map[string]json.RawMessage `json:"values"`
}

// ConceptRecordJSON is the JSON representation of a stored concept row.
type ConceptRecordJSON struct {
	EmployeeID string            `json:"employee_id"`
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	Family     string            `json:"family"`
	Values     map[string]string `json:"values"`
	Explicit   []string          `json:"explicit,omitempty"`
	Total      string            `json:"total"`
}

// CarryOverBatchJSON is the JSON representation of a carry-over batch.
type CarryOverBatchJSON struct {
	SourceYear    int                 `json:"source_year"`
	SourceMonth   int                 `json:"source_month"`
	DeferConcepts []string            `json:"defer_concepts"`
	Items         []CarryOverItemJSON `json:"items"`
}

// CarryOverItemJSON is one item of a batch.
type CarryOverItemJSON struct {
	Concept     string          `json:"concept"`
	Amount      json.RawMessage `json:"amount"`
	Destination *PeriodJSON     `json:"destination,omitempty"`
}

type PeriodJSON struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// CarryOverBatch is a decoded batch ready for CarryOverLedger.CreateBatch.
type CarryOverBatch struct {
	SourceYear    int
	SourceMonth   int
	Items         []payroll.CarryOverItem
	DeferConcepts []payroll.Field
}

// =============================================================================
// CONCEPT FACTORY
// =============================================================================

// ConceptFactory converts JSON concept payloads to payroll types.
type ConceptFactory struct{}

// NewConceptFactory creates a new concept factory.
func NewConceptFactory() *ConceptFactory {
	return &ConceptFactory{}
}

// ParsePatch parses a JSON document into a validated ConceptPatch.
func (f *ConceptFactory) ParsePatch(data []byte) (payroll.ConceptPatch, error) {
	var pj ConceptPatchJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return payroll.ConceptPatch{}, fmt.Errorf("failed to parse concept JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ConceptPatchJSON to a ConceptPatch.
func (f *ConceptFactory) FromJSON(pj ConceptPatchJSON) (payroll.ConceptPatch, error) {
	values := make(map[payroll.Field]decimal.Decimal, len(pj.Values))
	for name, raw := range pj.Values {
		amount, err := ParseAmount(raw)
		if err != nil {
			return payroll.ConceptPatch{}, fmt.Errorf("field %s: %w", name, err)
		}
		values[payroll.Field(name)] = amount
	}
	return payroll.NewConceptPatch(payroll.ConceptFamily(pj.Family), values)
}

// ToJSON converts a stored record for API responses.
func (f *ConceptFactory) ToJSON(rec payroll.ConceptRecord) ConceptRecordJSON {
	out := ConceptRecordJSON{
		EmployeeID: string(rec.EmployeeID),
		Year:       rec.Year,
		Month:      rec.Month,
		Family:     string(rec.Family),
		Values:     make(map[string]string, len(rec.Values)),
		Total:      rec.Total().StringFixed(2),
	}
	for _, field := range rec.SortedFields() {
		out.Values[string(field)] = rec.Values[field].StringFixed(2)
		if rec.Explicit[field] {
			out.Explicit = append(out.Explicit, string(field))
		}
	}
	sort.Strings(out.Explicit)
	return out
}

// ParseCarryOverBatch parses a JSON carry-over batch. Concept names are
// checked by the ledger, not here.
func (f *ConceptFactory) ParseCarryOverBatch(data []byte) (CarryOverBatch, error) {
	var bj CarryOverBatchJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return CarryOverBatch{}, fmt.Errorf("failed to parse carry-over JSON: %w", err)
	}
	return f.CarryOverFromJSON(bj)
}

// CarryOverFromJSON converts CarryOverBatchJSON to a CarryOverBatch.
func (f *ConceptFactory) CarryOverFromJSON(bj CarryOverBatchJSON) (CarryOverBatch, error) {
	batch := CarryOverBatch{SourceYear: bj.SourceYear, SourceMonth: bj.SourceMonth}
	for _, c := range bj.DeferConcepts {
		batch.DeferConcepts = append(batch.DeferConcepts, payroll.Field(c))
	}
	for i, item := range bj.Items {
		amount, err := ParseAmount(item.Amount)
		if err != nil {
			return CarryOverBatch{}, fmt.Errorf("item %d: %w", i, err)
		}
		ci := payroll.CarryOverItem{Concept: payroll.Field(item.Concept), Amount: amount}
		if item.Destination != nil {
			dest := payroll.NewYearMonth(item.Destination.Year, item.Destination.Month)
			ci.Destination = &dest
		}
		batch.Items = append(batch.Items, ci)
	}
	return batch, nil
}

// ParseAmount accepts a JSON number or a JSON string holding a decimal.
func ParseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("amount is required")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %s: %w", raw, err)
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	return d, nil
}
