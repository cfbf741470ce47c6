// Package fill simulates order execution: fill decision, slippage and
// commission, as a pure function of market conditions.
package fill

import (
	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

// Config holds the slippage and commission model parameters.
// Percentages are fractions (0.02 = 2%).
type Config struct {
	BaseSlippagePct    float64 // flat slippage applied to every fill
	VolumeImpactFactor float64 // per 1% of average volume consumed
	MarketImpactFactor float64 // multiplied by volatility
	MaxSlippagePct     float64 // hard cap on total slippage

	CommissionPerTrade decimal.Decimal // flat per-trade fee
	CommissionPerShare decimal.Decimal // optional per-share fee
}

// DefaultConfig models a liquid equity venue.
var DefaultConfig = Config{
	BaseSlippagePct:    0.0005,
	VolumeImpactFactor: 0.0001,
	MarketImpactFactor: 0.1,
	MaxSlippagePct:     0.02,
	CommissionPerTrade: decimal.NewFromInt(1),
	CommissionPerShare: decimal.Zero,
}

// ZeroCostConfig fills at the raw market price with no commission.
// Used by tests and idealized runs.
var ZeroCostConfig = Config{MaxSlippagePct: 0.02}

// Request describes one hypothetical order against current market
// conditions.
type Request struct {
	Side       domain.OrderSide
	Type       domain.OrderType
	Quantity   int64
	LimitPrice float64 // 0 means no limit
	MarketPrice float64
	AvgVolume  float64 // average bar volume, 0 disables volume impact
	Volatility float64 // recent return stddev, 0 disables market impact

	// AvailableLiquidity caps the fill quantity when positive.
	// Zero means full liquidity (the default path).
	AvailableLiquidity int64
}

// Simulate computes the execution outcome for req. It never returns an
// error: orders that cannot execute come back with Filled=false and all
// numeric fields zero. Market orders always fill; limit orders fill
// only when the market price satisfies the limit (buy: market <= limit,
// sell: market >= limit).
func Simulate(req Request, cfg Config) domain.FillResult {
	if req.Quantity <= 0 || req.MarketPrice <= 0 {
		return domain.FillResult{}
	}

	if req.Type == domain.TypeLimit && req.LimitPrice > 0 {
		if req.Side == domain.SideBuy && req.MarketPrice > req.LimitPrice {
			return domain.FillResult{}
		}
		if req.Side == domain.SideSell && req.MarketPrice < req.LimitPrice {
			return domain.FillResult{}
		}
	}

	fillQty := req.Quantity
	partial := false
	if req.AvailableLiquidity > 0 && req.AvailableLiquidity < req.Quantity {
		fillQty = req.AvailableLiquidity
		partial = true
	}

	slipPct := slippagePct(fillQty, req.AvgVolume, req.Volatility, cfg)
	if partial {
		// Liquidity-capped fills take half the proportional impact:
		// the unfilled remainder never touches the book.
		slipPct /= 2
	}

	slip := req.MarketPrice * slipPct
	price := req.MarketPrice
	if req.Side == domain.SideBuy {
		price += slip
	} else {
		price -= slip
	}

	commission := cfg.CommissionPerTrade.Add(
		cfg.CommissionPerShare.Mul(decimal.NewFromInt(fillQty)))

	return domain.FillResult{
		Filled:       true,
		FillPrice:    price,
		FillQuantity: fillQty,
		Commission:   commission,
		Slippage:     slip,
	}
}

// slippagePct computes the total slippage fraction:
// base + (quantity / (avgVolume/100)) * volumeImpact + volatility * marketImpact,
// capped at MaxSlippagePct.
func slippagePct(quantity int64, avgVolume, volatility float64, cfg Config) float64 {
	pct := cfg.BaseSlippagePct

	if avgVolume > 0 {
		pct += float64(quantity) / (avgVolume / 100) * cfg.VolumeImpactFactor
	}
	pct += volatility * cfg.MarketImpactFactor

	if cfg.MaxSlippagePct > 0 && pct > cfg.MaxSlippagePct {
		pct = cfg.MaxSlippagePct
	}
	return pct
}
