/*
concepts.go - Typed income and deduction concept records

PURPOSE:
  Concept records hold the per-employee income and deduction amounts that
  sit on top of base salary (meal vouchers, health insurance, in-kind social
  security contribution, ...). Each record belongs to one concept family.

ROWS:
  Month == 0     yearly template row for (employee, year, family)
  Month in 1..12 monthly row, the one read at projection/export time

TYPED FIELDS:
  Field names are constants with a per-family allow-list. The only way to
  build a write is NewConceptPatch, which rejects unknown names, fields of
  the wrong family and negative amounts before anything touches the store.

SEE ALSO:
  - propagate.go: yearly fan-out and monthly forward-fill
  - factory/concepts.go: JSON decoding into ConceptPatch
*/
package payroll

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FAMILIES AND FIELDS
// =============================================================================

type ConceptFamily string

const (
	FamilyIncome    ConceptFamily = "ingresos"
	FamilyDeduction ConceptFamily = "deducciones"
)

type Field string

// Income fields.
const (
	FieldTicketRestaurant Field = "ticket_restaurant"
	FieldHealthInsurance  Field = "seguro_medico"
	FieldTransport        Field = "transporte"
	FieldChildcare        Field = "guarderia"
	FieldTraining         Field = "formacion"
	FieldAgreementBonus   Field = "plus_convenio"
	FieldOvertime         Field = "horas_extra"
	FieldOtherIncome      Field = "otros_ingresos"
)

// Deduction fields.
const (
	FieldInKindContribution Field = "cotizacion_especie"
	FieldAdvance            Field = "anticipo"
	FieldGarnishment        Field = "embargo"
	FieldLoan               Field = "prestamo"
	FieldUnionFee           Field = "cuota_sindical"
	FieldOtherDeduction     Field = "otras_deducciones"
)

var familyFields = map[ConceptFamily][]Field{
	FamilyIncome: {
		FieldTicketRestaurant, FieldHealthInsurance, FieldTransport, FieldChildcare,
		FieldTraining, FieldAgreementBonus, FieldOvertime, FieldOtherIncome,
	},
	FamilyDeduction: {
		FieldInKindContribution, FieldAdvance, FieldGarnishment, FieldLoan,
		FieldUnionFee, FieldOtherDeduction,
	},
}

// Families returns the known concept families.
func Families() []ConceptFamily { return []ConceptFamily{FamilyIncome, FamilyDeduction} }

func (f ConceptFamily) Valid() bool {
	_, ok := familyFields[f]
	return ok
}

// Fields returns the allow-list for the family in display order.
func (f ConceptFamily) Fields() []Field {
	return append([]Field(nil), familyFields[f]...)
}

// Allows reports whether field belongs to the family.
func (f ConceptFamily) Allows(field Field) bool {
	for _, candidate := range familyFields[f] {
		if candidate == field {
			return true
		}
	}
	return false
}

// FamilyOf returns the family a field belongs to.
func FamilyOf(field Field) (ConceptFamily, bool) {
	for _, family := range Families() {
		if family.Allows(field) {
			return family, true
		}
	}
	return "", false
}

// =============================================================================
// CONCEPT PATCH - validated set of field writes
// =============================================================================

// ConceptPatch is a validated, family-tagged set of field values.
// The zero value is an empty patch with no family.
type ConceptPatch struct {
	family ConceptFamily
	values map[Field]decimal.Decimal
}

// NewConceptPatch validates values against the family's allow-list.
func NewConceptPatch(family ConceptFamily, values map[Field]decimal.Decimal) (ConceptPatch, error) {
	if !family.Valid() {
		return ConceptPatch{}, invalid("family", family, ErrUnknownFamily)
	}
	if len(values) == 0 {
		return ConceptPatch{}, invalid("fields", family, ErrEmptyPatch)
	}
	copied := make(map[Field]decimal.Decimal, len(values))
	for field, value := range values {
		if !family.Allows(field) {
			return ConceptPatch{}, invalid("field", field, ErrUnknownField)
		}
		if value.IsNegative() {
			return ConceptPatch{}, invalid(string(field), value, ErrNegativeAmount)
		}
		copied[field] = value
	}
	return ConceptPatch{family: family, values: copied}, nil
}

func (p ConceptPatch) Family() ConceptFamily { return p.family }
func (p ConceptPatch) Len() int             { return len(p.values) }

// Get returns the value written for field, if any.
func (p ConceptPatch) Get(field Field) (decimal.Decimal, bool) {
	v, ok := p.values[field]
	return v, ok
}

// Fields returns the written fields in family display order.
func (p ConceptPatch) Fields() []Field {
	var out []Field
	for _, field := range familyFields[p.family] {
		if _, ok := p.values[field]; ok {
			out = append(out, field)
		}
	}
	return out
}

func (p ConceptPatch) validate() error {
	if !p.family.Valid() {
		return invalid("family", p.family, ErrUnknownFamily)
	}
	if len(p.values) == 0 {
		return invalid("fields", p.family, ErrEmptyPatch)
	}
	return nil
}

// =============================================================================
// CONCEPT RECORD - stored row
// =============================================================================

// YearlyTemplateMonth is the Month value of yearly template rows.
const YearlyTemplateMonth = 0

// ConceptRecord is one stored concept row.
type ConceptRecord struct {
	EmployeeID EmployeeID
	Year       int
	Month      int
	Family     ConceptFamily
	Values     map[Field]decimal.Decimal
	// Explicit holds the fields individually set on this monthly row.
	Explicit map[Field]bool
}

// NewConceptRecord returns an empty row ready to be filled.
func NewConceptRecord(employeeID EmployeeID, year, month int, family ConceptFamily) ConceptRecord {
	return ConceptRecord{
		EmployeeID: employeeID,
		Year:       year,
		Month:      month,
		Family:     family,
		Values:     map[Field]decimal.Decimal{},
		Explicit:   map[Field]bool{},
	}
}

func (r ConceptRecord) IsYearly() bool { return r.Month == YearlyTemplateMonth }

// Value returns the field's amount, zero when unset.
func (r ConceptRecord) Value(field Field) decimal.Decimal {
	if v, ok := r.Values[field]; ok {
		return v
	}
	return decimal.Zero
}

// Total sums every field of the row.
func (r ConceptRecord) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.Values {
		total = total.Add(v)
	}
	return total
}

// SortedFields returns the fields present on the row in family display order,
// followed by any unknown legacy fields in lexical order.
func (r ConceptRecord) SortedFields() []Field {
	var out []Field
	seen := map[Field]bool{}
	for _, field := range familyFields[r.Family] {
		if _, ok := r.Values[field]; ok {
			out = append(out, field)
			seen[field] = true
		}
	}
	var rest []Field
	for field := range r.Values {
		if !seen[field] {
			rest = append(rest, field)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// Clone returns a deep copy so stores never share maps with callers.
func (r ConceptRecord) Clone() ConceptRecord {
	out := r
	out.Values = make(map[Field]decimal.Decimal, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	out.Explicit = make(map[Field]bool, len(r.Explicit))
	for k, v := range r.Explicit {
		if v {
			out.Explicit[k] = true
		}
	}
	return out
}

// =============================================================================
// COLUMN ENCODING - shared by the SQL stores
// =============================================================================

// EncodeConceptColumns serializes values as {"field": "decimal"} and the
// explicit set as a list of field names in display order.
func EncodeConceptColumns(rec ConceptRecord) (values, explicit []byte, err error) {
	raw := make(map[Field]string, len(rec.Values))
	for f, v := range rec.Values {
		raw[f] = v.String()
	}
	flags := make([]Field, 0, len(rec.Explicit))
	for _, f := range rec.SortedFields() {
		if rec.Explicit[f] {
			flags = append(flags, f)
		}
	}
	if values, err = json.Marshal(raw); err != nil {
		return nil, nil, err
	}
	if explicit, err = json.Marshal(flags); err != nil {
		return nil, nil, err
	}
	return values, explicit, nil
}

// DecodeConceptColumns is the inverse of EncodeConceptColumns. An empty
// explicit column means no field was individually set.
func DecodeConceptColumns(rec *ConceptRecord, values, explicit []byte) error {
	var raw map[Field]string
	if err := json.Unmarshal(values, &raw); err != nil {
		return fmt.Errorf("corrupt concept values: %w", err)
	}
	var flags []Field
	if len(explicit) > 0 {
		if err := json.Unmarshal(explicit, &flags); err != nil {
			return fmt.Errorf("corrupt concept flags: %w", err)
		}
	}
	rec.Values = make(map[Field]decimal.Decimal, len(raw))
	for f, v := range raw {
		rec.Values[f] = MustParseDecimal(v)
	}
	rec.Explicit = make(map[Field]bool, len(flags))
	for _, f := range flags {
		rec.Explicit[f] = true
	}
	return nil
}
