// Package risk implements position sizing, pre-trade validation, the
// daily-loss circuit breaker, trailing stop updates, and historical VaR.
package risk

// Limits defines static configuration for risk controls.
// Percentages are fractions (0.02 = 2%).
type Limits struct {
	RiskPerTradePct  float64 // capital risked per trade as fraction of account value
	MaxPositionPct   float64 // notional cap per position as fraction of account value
	MaxExposurePct   float64 // hard ceiling on aggregate open exposure
	MaxOpenPositions int     // hard cap on concurrent open positions
	MinConfidence    float64 // minimum signal confidence for approval
	DailyLossLimitPct float64 // daily kill-switch loss threshold

	ATRMultiplier   float64 // stop distance = ATR * multiplier
	FallbackStopPct float64 // stop distance fraction of price when ATR unavailable
	RewardRiskRatio float64 // take-profit distance = stop distance * ratio
}

// DefaultLimits carries the fixed platform rules.
var DefaultLimits = Limits{
	RiskPerTradePct:   0.01,
	MaxPositionPct:    0.10,
	MaxExposurePct:    0.50,
	MaxOpenPositions:  10,
	MinConfidence:     0.60,
	DailyLossLimitPct: 0.03,
	ATRMultiplier:     2.0,
	FallbackStopPct:   0.02,
	RewardRiskRatio:   2.0,
}
