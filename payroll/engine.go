package payroll

import (
	"context"
	"log/slog"
	"strconv"
)

// =============================================================================
// ENGINE - the five components over one store
// =============================================================================

// Engine wires every component to the same transactional store.
type Engine struct {
	Store      TxStore
	FTE        *FTEResolver
	Atrasos    *AtrasosCascade
	Projector  *Projector
	Concepts   *Propagator
	CarryOvers *CarryOverLedger
}

// NewEngine builds an Engine. A nil logger falls back to slog.Default().
func NewEngine(store TxStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	fte := &FTEResolver{Store: store}
	return &Engine{
		Store:      store,
		FTE:        fte,
		Atrasos:    &AtrasosCascade{Store: store, Logger: logger},
		Projector:  &Projector{Store: store, FTE: fte},
		Concepts:   &Propagator{Store: store, Logger: logger},
		CarryOvers: &CarryOverLedger{Store: store, Logger: logger},
	}
}

// =============================================================================
// PAYOUT MONTH SETTING
// =============================================================================

// PayoutMonth reads the stored setting, falling back to fallback (or
// DefaultPayoutMonth when fallback is out of range) if unset or unreadable.
func PayoutMonth(ctx context.Context, settings SettingsStore, fallback int) (int, error) {
	if fallback < 1 || fallback > 12 {
		fallback = DefaultPayoutMonth
	}
	raw, ok, err := settings.GetSetting(ctx, SettingPayoutMonth)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}
	month, err := strconv.Atoi(raw)
	if err != nil || month < 1 || month > 12 {
		return fallback, nil
	}
	return month, nil
}

// SetPayoutMonth validates and stores the setting.
func SetPayoutMonth(ctx context.Context, settings SettingsStore, month int) error {
	if month < 1 || month > 12 {
		return invalid("payout_month", month, ErrInvalidPayoutMonth)
	}
	return settings.SetSetting(ctx, SettingPayoutMonth, strconv.Itoa(month))
}
