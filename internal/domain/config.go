package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Configuration validation errors. These are the fatal, run-aborting class:
// a simulation never starts with an invalid config.
var (
	ErrNoSymbols          = errors.New("sim config: at least one symbol is required")
	ErrInvalidDateRange   = errors.New("sim config: end date must be after start date")
	ErrNonPositiveCapital = errors.New("sim config: initial capital must be positive")
)

// ExitPolicy defines the unrealized-P&L thresholds that force a position
// closed during simulation. Percentages are fractions (0.10 = 10%).
type ExitPolicy struct {
	TakeProfitPct float64
	StopLossPct   float64
}

// DefaultExitPolicy matches the fixed live-trading thresholds:
// take profit at +10%, stop loss at -5%.
var DefaultExitPolicy = ExitPolicy{
	TakeProfitPct: 0.10,
	StopLossPct:   0.05,
}

// IsZero reports whether the policy is unset.
func (p ExitPolicy) IsZero() bool {
	return p.TakeProfitPct == 0 && p.StopLossPct == 0
}

// SimConfig represents one backtest run request.
type SimConfig struct {
	RunID          string // optional caller-supplied identifier
	StrategyID     string
	Symbols        []string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital decimal.Decimal
	Commission     decimal.Decimal // flat per-trade fee
	ExitPolicy     ExitPolicy      // zero value falls back to DefaultExitPolicy
}

// Validate checks the fatal invariants of the config.
func (c *SimConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return ErrNoSymbols
	}
	if !c.EndDate.After(c.StartDate) {
		return ErrInvalidDateRange
	}
	if !c.InitialCapital.IsPositive() {
		return ErrNonPositiveCapital
	}
	return nil
}
