package risk

import (
	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

// PositionSize computes a sizing plan for a candidate entry at price.
// atr is the average true range; pass 0 when unavailable, in which case
// the stop distance falls back to price * FallbackStopPct.
//
// riskAmount = accountValue * RiskPerTradePct
// stopDistance = ATR * ATRMultiplier, else price * FallbackStopPct
// notional = riskAmount / (stopDistance / price), capped at
// MaxPositionPct * accountValue
// quantity = floor(notional / price)
//
// Stop-loss and take-profit are placed around entry at the configured
// reward-to-risk ratio.
func PositionSize(accountValue decimal.Decimal, price, atr float64, limits Limits) domain.PositionSizePlan {
	if price <= 0 || !accountValue.IsPositive() {
		return domain.PositionSizePlan{}
	}

	riskAmount := accountValue.Mul(decimal.NewFromFloat(limits.RiskPerTradePct))

	stopDistance := price * limits.FallbackStopPct
	if atr > 0 {
		stopDistance = atr * limits.ATRMultiplier
	}
	if stopDistance <= 0 {
		return domain.PositionSizePlan{}
	}

	notional := riskAmount.Div(decimal.NewFromFloat(stopDistance / price))
	maxNotional := accountValue.Mul(decimal.NewFromFloat(limits.MaxPositionPct))
	if notional.GreaterThan(maxNotional) {
		notional = maxNotional
	}

	quantity := notional.Div(decimal.NewFromFloat(price)).IntPart()
	if quantity <= 0 {
		return domain.PositionSizePlan{}
	}

	actualNotional := decimal.NewFromInt(quantity).Mul(decimal.NewFromFloat(price))

	return domain.PositionSizePlan{
		Quantity:   quantity,
		Notional:   actualNotional,
		StopLoss:   price - stopDistance,
		TakeProfit: price + stopDistance*limits.RewardRiskRatio,
		RiskAmount: decimal.NewFromInt(quantity).Mul(decimal.NewFromFloat(stopDistance)),
	}
}
