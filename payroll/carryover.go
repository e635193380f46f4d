/*
carryover.go - Deferral of concept amounts between payroll periods

PURPOSE:
  When a payroll period is closed, some concept amounts (an overtime payment
  that arrived late, an advance to be recovered next month) are not settled
  in that period but moved to a later one. A batch records, for one source
  period, which amounts are deferred and which are settled immediately.

DESTINATION RULES:
  - Items whose concept is listed in deferConcepts are deferred. Their
    destination is the item's explicit destination, which must be strictly
    after the source period, or else the month after the source.
  - Other items are settled immediately: destination == source.

CONSUMPTION:
  NetForPeriod reports, per concept, what a period receives from earlier
  periods (incoming) and what it hands on to later ones (outgoing). The
  payslip builder applies  value - outgoing + incoming  to each concept
  line. The salary projection itself never reads carry-overs.

EDGE CASES:
  - Empty item list: success, nothing written
  - Deleting an unknown id: ErrCarryOverNotFound, never a panic
*/
package payroll

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CarryOverEntry is one scheduled amount.
type CarryOverEntry struct {
	ID          CarryOverID
	EmployeeID  EmployeeID
	Source      YearMonth
	Destination YearMonth
	Concept     Field
	Amount      decimal.Decimal
	Deferred    bool
	CreatedAt   time.Time
}

// CarryOverItem is one line of a batch request.
type CarryOverItem struct {
	Concept     Field
	Amount      decimal.Decimal
	Destination *YearMonth
}

// CarryOverNet is the carry-over movement of one concept in one period.
type CarryOverNet struct {
	Incoming decimal.Decimal
	Outgoing decimal.Decimal
}

// Net is incoming minus outgoing.
func (n CarryOverNet) Net() decimal.Decimal { return n.Incoming.Sub(n.Outgoing) }

type CarryOverLedger struct {
	Store  TxStore
	Logger *slog.Logger

	NewID func() CarryOverID
	Now   func() time.Time
}

// CreateBatch validates every item, then writes the batch atomically.
func (l *CarryOverLedger) CreateBatch(ctx context.Context, employeeID EmployeeID, sourceYear, sourceMonth int, items []CarryOverItem, deferConcepts []Field) ([]CarryOverEntry, error) {
	source := YearMonth{Year: sourceYear, Month: sourceMonth}
	if !source.Valid() {
		return nil, invalid("source_month", sourceMonth, ErrInvalidMonth)
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := requireEmployee(ctx, l.Store, employeeID); err != nil {
		return nil, err
	}

	deferred := make(map[Field]bool, len(deferConcepts))
	for _, concept := range deferConcepts {
		if _, ok := FamilyOf(concept); !ok {
			return nil, invalid("defer_concept", concept, ErrUnknownField)
		}
		deferred[concept] = true
	}

	now := l.now()
	entries := make([]CarryOverEntry, 0, len(items))
	for _, item := range items {
		if _, ok := FamilyOf(item.Concept); !ok {
			return nil, invalid("concept", item.Concept, ErrUnknownField)
		}
		if item.Amount.IsNegative() {
			return nil, invalid("amount", item.Amount, ErrNegativeAmount)
		}
		entry := CarryOverEntry{
			ID:          l.newID(),
			EmployeeID:  employeeID,
			Source:      source,
			Destination: source,
			Concept:     item.Concept,
			Amount:      item.Amount,
			Deferred:    deferred[item.Concept],
			CreatedAt:   now,
		}
		if !entry.Deferred && item.Destination != nil {
			return nil, invalid("destination", *item.Destination, ErrDestinationNotDeferred)
		}
		if entry.Deferred {
			entry.Destination = source.Next()
			if item.Destination != nil {
				if !item.Destination.Valid() {
					return nil, invalid("destination_month", item.Destination.Month, ErrInvalidMonth)
				}
				if !item.Destination.After(source) {
					return nil, invalid("destination", *item.Destination, ErrInvalidDestination)
				}
				entry.Destination = *item.Destination
			}
		}
		entries = append(entries, entry)
	}

	err := l.Store.WithTx(ctx, func(s Store) error {
		return s.AppendCarryOvers(ctx, entries)
	})
	if err != nil {
		return nil, err
	}
	l.logger().Info("carry-over batch created",
		"employee_id", employeeID, "source", source.String(), "entries", len(entries))
	return entries, nil
}

// ListBySource returns the entries created for a source period.
func (l *CarryOverLedger) ListBySource(ctx context.Context, employeeID EmployeeID, year, month int) ([]CarryOverEntry, error) {
	period := YearMonth{Year: year, Month: month}
	if !period.Valid() {
		return nil, invalid("month", month, ErrInvalidMonth)
	}
	return l.Store.ListCarryOversBySource(ctx, employeeID, period)
}

// ListByDestination returns the entries landing in a period.
func (l *CarryOverLedger) ListByDestination(ctx context.Context, employeeID EmployeeID, year, month int) ([]CarryOverEntry, error) {
	period := YearMonth{Year: year, Month: month}
	if !period.Valid() {
		return nil, invalid("month", month, ErrInvalidMonth)
	}
	return l.Store.ListCarryOversByDestination(ctx, employeeID, period)
}

// DeleteEntry removes one entry. Unknown ids yield ErrCarryOverNotFound.
func (l *CarryOverLedger) DeleteEntry(ctx context.Context, id CarryOverID) error {
	removed, err := l.Store.DeleteCarryOver(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrCarryOverNotFound
	}
	return nil
}

// NetForPeriod groups deferred movements touching period by concept.
func (l *CarryOverLedger) NetForPeriod(ctx context.Context, employeeID EmployeeID, period YearMonth) (map[Field]CarryOverNet, error) {
	if !period.Valid() {
		return nil, invalid("month", period.Month, ErrInvalidMonth)
	}
	out := map[Field]CarryOverNet{}

	incoming, err := l.Store.ListCarryOversByDestination(ctx, employeeID, period)
	if err != nil {
		return nil, err
	}
	for _, e := range incoming {
		if !e.Deferred || e.Source == period {
			continue
		}
		n := netFor(out, e.Concept)
		n.Incoming = n.Incoming.Add(e.Amount)
		out[e.Concept] = n
	}

	outgoing, err := l.Store.ListCarryOversBySource(ctx, employeeID, period)
	if err != nil {
		return nil, err
	}
	for _, e := range outgoing {
		if !e.Deferred || e.Destination == period {
			continue
		}
		n := netFor(out, e.Concept)
		n.Outgoing = n.Outgoing.Add(e.Amount)
		out[e.Concept] = n
	}
	return out, nil
}

func netFor(m map[Field]CarryOverNet, f Field) CarryOverNet {
	if n, ok := m[f]; ok {
		return n
	}
	return CarryOverNet{Incoming: decimal.Zero, Outgoing: decimal.Zero}
}

func (l *CarryOverLedger) newID() CarryOverID {
	if l.NewID != nil {
		return l.NewID()
	}
	return CarryOverID(uuid.NewString())
}

func (l *CarryOverLedger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

func (l *CarryOverLedger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
