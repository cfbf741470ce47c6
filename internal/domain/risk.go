package domain

import "github.com/shopspring/decimal"

// PositionSizePlan represents one sizing decision for a candidate trade.
type PositionSizePlan struct {
	Quantity   int64
	Notional   decimal.Decimal // quantity * price
	StopLoss   float64
	TakeProfit float64
	RiskAmount decimal.Decimal // capital at risk, <= risk pct * account value
}

// RiskCheckResult represents the outcome of one named pre-trade check.
// Severity is only meaningful when Passed is false.
type RiskCheckResult struct {
	Name     string
	Passed   bool
	Reason   string
	Severity AlertSeverity
}
