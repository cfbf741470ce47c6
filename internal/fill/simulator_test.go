package fill

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

func TestSimulate_MarketBuyPenalizedUpward(t *testing.T) {
	res := Simulate(Request{
		Side:        domain.SideBuy,
		Type:        domain.TypeMarket,
		Quantity:    100,
		MarketPrice: 50.0,
		AvgVolume:   1_000_000,
		Volatility:  0.01,
	}, DefaultConfig)

	if !res.Filled {
		t.Fatal("market order must fill")
	}
	if res.FillPrice <= 50.0 {
		t.Errorf("buy fill must be penalized upward, got %f", res.FillPrice)
	}
	if res.FillQuantity != 100 {
		t.Errorf("expected full quantity, got %d", res.FillQuantity)
	}
}

func TestSimulate_MarketSellPenalizedDownward(t *testing.T) {
	res := Simulate(Request{
		Side:        domain.SideSell,
		Type:        domain.TypeMarket,
		Quantity:    100,
		MarketPrice: 50.0,
		AvgVolume:   1_000_000,
	}, DefaultConfig)

	if !res.Filled {
		t.Fatal("market order must fill")
	}
	if res.FillPrice >= 50.0 {
		t.Errorf("sell fill must be penalized downward, got %f", res.FillPrice)
	}
}

func TestSimulate_LimitBuyNotMet(t *testing.T) {
	res := Simulate(Request{
		Side:        domain.SideBuy,
		Type:        domain.TypeLimit,
		Quantity:    100,
		LimitPrice:  49.0,
		MarketPrice: 50.0,
	}, DefaultConfig)

	if res.Filled {
		t.Error("buy limit below market must not fill")
	}
	if res.FillPrice != 0 || res.FillQuantity != 0 || !res.Commission.IsZero() || res.Slippage != 0 {
		t.Errorf("unfilled result must be all zero: %+v", res)
	}
}

func TestSimulate_LimitSellMet(t *testing.T) {
	res := Simulate(Request{
		Side:        domain.SideSell,
		Type:        domain.TypeLimit,
		Quantity:    10,
		LimitPrice:  49.0,
		MarketPrice: 50.0,
	}, ZeroCostConfig)

	if !res.Filled {
		t.Fatal("sell limit at or below market must fill")
	}
	if res.FillPrice != 50.0 {
		t.Errorf("zero-cost fill must execute at market, got %f", res.FillPrice)
	}
}

func TestSimulate_ZeroQuantityRejected(t *testing.T) {
	for _, qty := range []int64{0, -5} {
		res := Simulate(Request{
			Side:        domain.SideBuy,
			Type:        domain.TypeMarket,
			Quantity:    qty,
			MarketPrice: 50.0,
		}, DefaultConfig)
		if res.Filled {
			t.Errorf("quantity %d must not fill", qty)
		}
	}
}

func TestSimulate_SlippageCappedAtTwoPercent(t *testing.T) {
	// Huge order against thin volume would blow past the cap.
	res := Simulate(Request{
		Side:        domain.SideBuy,
		Type:        domain.TypeMarket,
		Quantity:    1_000_000,
		MarketPrice: 100.0,
		AvgVolume:   1000,
		Volatility:  0.5,
	}, DefaultConfig)

	if !res.Filled {
		t.Fatal("market order must fill")
	}
	maxPrice := 100.0 * 1.02
	if res.FillPrice > maxPrice+1e-9 {
		t.Errorf("slippage must cap at 2%%: fill %f > %f", res.FillPrice, maxPrice)
	}
}

func TestSimulate_PartialFillHalvesImpact(t *testing.T) {
	cfg := Config{
		BaseSlippagePct:    0.001,
		MaxSlippagePct:     0.02,
		CommissionPerTrade: decimal.Zero,
	}

	full := Simulate(Request{
		Side:        domain.SideBuy,
		Type:        domain.TypeMarket,
		Quantity:    500,
		MarketPrice: 100.0,
	}, cfg)

	partial := Simulate(Request{
		Side:               domain.SideBuy,
		Type:               domain.TypeMarket,
		Quantity:           1000,
		MarketPrice:        100.0,
		AvailableLiquidity: 500,
	}, cfg)

	if partial.FillQuantity != 500 {
		t.Fatalf("expected fill capped at liquidity 500, got %d", partial.FillQuantity)
	}
	if math.Abs(partial.Slippage-full.Slippage/2) > 1e-12 {
		t.Errorf("partial fill must apply half impact: got %f, full %f", partial.Slippage, full.Slippage)
	}
}

func TestSimulate_PerShareCommission(t *testing.T) {
	cfg := Config{
		MaxSlippagePct:     0.02,
		CommissionPerTrade: decimal.NewFromInt(1),
		CommissionPerShare: decimal.NewFromFloat(0.01),
	}

	res := Simulate(Request{
		Side:        domain.SideBuy,
		Type:        domain.TypeMarket,
		Quantity:    200,
		MarketPrice: 10.0,
	}, cfg)

	want := decimal.NewFromInt(3) // 1 flat + 200 * 0.01
	if !res.Commission.Equal(want) {
		t.Errorf("expected commission %s, got %s", want, res.Commission)
	}
}
