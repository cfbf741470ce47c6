package domain

import (
	"encoding/json"
	"math"
	"time"
)

// EquityPoint represents total equity at one simulation time step.
// The equity curve is ordered by date with no duplicate dates.
type EquityPoint struct {
	Date   time.Time
	Equity float64
}

// MonthlyReturn represents the percentage change of equity over one
// calendar month, computed from the first and last observed values.
type MonthlyReturn struct {
	Month  string // "2024-01"
	Return float64
}

// SimResult holds the aggregated output of one simulation run.
// All ratios derive solely from EquityCurve and Trades; callers must
// not recompute them elsewhere.
type SimResult struct {
	RunID       string
	StrategyID  string
	TotalReturn float64 // fractional, (final - initial) / initial
	SharpeRatio float64
	MaxDrawdown float64 // fraction of peak, in [0,1]
	WinRate     float64
	ProfitFactor float64 // +Inf when gross loss is zero and gross profit > 0
	TotalTrades int

	Trades         []*SimTrade
	EquityCurve    []EquityPoint
	DailyReturns   []float64
	MonthlyReturns []MonthlyReturn
}

// MarshalJSON renders the unbounded profit-factor sentinel as the
// string "unbounded". encoding/json rejects +Inf, so a zero-loss run
// would otherwise fail to encode at all.
func (r *SimResult) MarshalJSON() ([]byte, error) {
	type alias SimResult
	out := struct {
		*alias
		ProfitFactor any `json:"ProfitFactor"`
	}{alias: (*alias)(r), ProfitFactor: r.ProfitFactor}
	if math.IsInf(r.ProfitFactor, 1) {
		out.ProfitFactor = "unbounded"
	}
	return json.Marshal(out)
}
