package domain

import "github.com/shopspring/decimal"

// FillResult represents the outcome of one simulated order.
// When Filled is false every numeric field is zero.
type FillResult struct {
	Filled       bool
	FillPrice    float64
	FillQuantity int64
	Commission   decimal.Decimal
	Slippage     float64 // per-share price adjustment applied to the fill
}
