package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

func TestPositionSize_FallbackStopDistance(t *testing.T) {
	// account 100,000, risk 1% = 1,000; no ATR so stop = 2% of price.
	// notional = 1000 / 0.02 = 50,000, capped at 10% = 10,000.
	// quantity = floor(10,000 / 100) = 100.
	plan := PositionSize(decimal.NewFromInt(100_000), 100.0, 0, DefaultLimits)

	if plan.Quantity != 100 {
		t.Errorf("expected quantity 100, got %d", plan.Quantity)
	}
	if !plan.Notional.Equal(decimal.NewFromInt(10_000)) {
		t.Errorf("expected notional 10000, got %s", plan.Notional)
	}
	// stop distance 2 → stop 98, take profit 100 + 2*2 = 104.
	if math.Abs(plan.StopLoss-98.0) > 1e-9 {
		t.Errorf("expected stop 98, got %f", plan.StopLoss)
	}
	if math.Abs(plan.TakeProfit-104.0) > 1e-9 {
		t.Errorf("expected take profit 104, got %f", plan.TakeProfit)
	}
}

func TestPositionSize_RiskAmountBounded(t *testing.T) {
	account := decimal.NewFromInt(50_000)
	plan := PositionSize(account, 25.0, 1.5, DefaultLimits)

	maxRisk := account.Mul(decimal.NewFromFloat(DefaultLimits.RiskPerTradePct))
	if plan.RiskAmount.GreaterThan(maxRisk) {
		t.Errorf("risk amount %s exceeds bound %s", plan.RiskAmount, maxRisk)
	}
}

func TestPositionSize_ZeroPrice(t *testing.T) {
	plan := PositionSize(decimal.NewFromInt(100_000), 0, 0, DefaultLimits)
	if plan.Quantity != 0 {
		t.Errorf("zero price must yield empty plan, got %+v", plan)
	}
}

func baseRequest() TradeRequest {
	return TradeRequest{
		StrategyID:   "strat-1",
		Symbol:       "AAPL",
		Quantity:     50,
		Price:        100,
		Confidence:   0.80,
		AccountValue: decimal.NewFromInt(100_000),
		OpenExposure: decimal.Zero,
	}
}

func TestValidateTrade_AllChecksPass(t *testing.T) {
	engine := NewEngine(DefaultLimits, nil, nil, nil)

	approved, results := engine.ValidateTrade(context.Background(), baseRequest())
	if !approved {
		t.Fatalf("expected approval, results: %+v", results)
	}
	if len(results) != 5 {
		t.Errorf("expected 5 checks to run, got %d", len(results))
	}
}

func TestValidateTrade_SizeBoundary(t *testing.T) {
	engine := NewEngine(DefaultLimits, nil, nil, nil)

	// Exactly at the 10% limit: 100 * 100 = 10,000 on 100,000 account.
	atLimit := baseRequest()
	atLimit.Quantity = 100
	approved, _ := engine.ValidateTrade(context.Background(), atLimit)
	if !approved {
		t.Error("notional exactly at limit must pass")
	}

	// One basis point over the limit fails.
	over := baseRequest()
	over.Quantity = 100
	over.Price = 100.01
	approved, results := engine.ValidateTrade(context.Background(), over)
	if approved {
		t.Error("notional over limit must fail")
	}
	if results[0].Name != CheckPositionSize || results[0].Passed {
		t.Errorf("expected position size check to fail first: %+v", results[0])
	}
}

func TestValidateTrade_ExposureCeiling(t *testing.T) {
	engine := NewEngine(DefaultLimits, nil, nil, nil)

	req := baseRequest()
	req.OpenExposure = decimal.NewFromInt(48_000)
	req.Quantity = 30 // 3,000 notional pushes total past 50,000

	approved, results := engine.ValidateTrade(context.Background(), req)
	if approved {
		t.Error("exposure past 50% ceiling must fail")
	}
	var exposure domain.RiskCheckResult
	for _, r := range results {
		if r.Name == CheckExposure {
			exposure = r
		}
	}
	if exposure.Passed || exposure.Severity != domain.SeverityCritical {
		t.Errorf("expected critical exposure failure, got %+v", exposure)
	}
}

func TestValidateTrade_PositionCountCap(t *testing.T) {
	engine := NewEngine(DefaultLimits, nil, nil, nil)

	req := baseRequest()
	req.OpenPositions = 10

	approved, _ := engine.ValidateTrade(context.Background(), req)
	if approved {
		t.Error("position count at cap must fail")
	}
}

func TestValidateTrade_PriceSanity(t *testing.T) {
	engine := NewEngine(DefaultLimits, nil, nil, nil)

	for _, price := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		req := baseRequest()
		req.Price = price
		if approved, _ := engine.ValidateTrade(context.Background(), req); approved {
			t.Errorf("price %f must fail sanity check", price)
		}
	}
}

func TestValidateTrade_ConfidenceThreshold(t *testing.T) {
	engine := NewEngine(DefaultLimits, nil, nil, nil)

	req := baseRequest()
	req.Confidence = 0.59
	if approved, _ := engine.ValidateTrade(context.Background(), req); approved {
		t.Error("confidence below 60% must fail")
	}

	req.Confidence = 0.60
	if approved, _ := engine.ValidateTrade(context.Background(), req); !approved {
		t.Error("confidence at 60% must pass")
	}
}

func TestValidateTrade_CountsFailedChecks(t *testing.T) {
	metrics, _ := observability.NewMetrics()
	engine := NewEngine(DefaultLimits, nil, nil, metrics)

	req := baseRequest()
	req.Confidence = 0.10
	if approved, _ := engine.ValidateTrade(context.Background(), req); approved {
		t.Fatal("low confidence must fail")
	}

	got := testutil.ToFloat64(metrics.RiskChecksFailed.WithLabelValues(CheckConfidence))
	if got != 1 {
		t.Errorf("expected 1 counted %s failure, got %v", CheckConfidence, got)
	}
	if passed := testutil.ToFloat64(metrics.RiskChecksFailed.WithLabelValues(CheckPriceSanity)); passed != 0 {
		t.Errorf("passing check must not be counted, got %v", passed)
	}
}

func TestDailyLossBreached_CountsHaltOnce(t *testing.T) {
	metrics, _ := observability.NewMetrics()
	engine := NewEngine(DefaultLimits, nil, nil, metrics)
	state := NewDayState(decimal.NewFromInt(100_000), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	state.UpdateEquity(decimal.NewFromInt(96_000)) // 4% loss past the 3% limit
	if !engine.DailyLossBreached(state) {
		t.Fatal("4% loss must trip the breaker")
	}
	// The latched state does not re-count.
	engine.DailyLossBreached(state)

	if got := testutil.ToFloat64(metrics.CircuitBreakerHits); got != 1 {
		t.Errorf("expected the halt counted once, got %v", got)
	}
}

func TestDayState_Breach(t *testing.T) {
	state := NewDayState(decimal.NewFromInt(100_000), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))

	state.UpdateEquity(decimal.NewFromInt(97_500))
	if state.BreachedDailyLoss(0.03) {
		t.Error("2.5% loss must not breach 3% limit")
	}

	state.UpdateEquity(decimal.NewFromInt(97_000))
	if !state.BreachedDailyLoss(0.03) {
		t.Error("3% loss must breach 3% limit")
	}

	// Recovery does not un-halt the day.
	state.UpdateEquity(decimal.NewFromInt(99_000))
	if !state.BreachedDailyLoss(0.03) {
		t.Error("breach must latch for the rest of the day")
	}

	state.ResetDay(decimal.NewFromInt(99_000), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if state.Halted() {
		t.Error("reset must clear the halt")
	}
}

func TestUpdateTrailingStopLong_NeverLoosens(t *testing.T) {
	// Entry 100, price 110, ATR 2, mult 2 → candidate 106.
	stop := UpdateTrailingStopLong(110, 2, 2, 98, 100)
	if stop != 106 {
		t.Errorf("expected stop 106, got %f", stop)
	}

	// Price falls back: candidate 96 is below existing 106, keep 106.
	stop = UpdateTrailingStopLong(100, 2, 2, stop, 100)
	if stop != 106 {
		t.Errorf("stop must not loosen, got %f", stop)
	}
}

func TestUpdateTrailingStopLong_EntryFloor(t *testing.T) {
	// Fresh position, no existing stop: floor at entry * 0.98.
	stop := UpdateTrailingStopLong(100, 5, 2, 0, 100)
	if stop != 98 {
		t.Errorf("expected entry floor 98, got %f", stop)
	}
}

func TestUpdateTrailingStopShort_OnlyMovesDown(t *testing.T) {
	stop := UpdateTrailingStopShort(90, 2, 2, 0, 100)
	if stop != 94 {
		t.Errorf("expected stop 94, got %f", stop)
	}

	// Price bounces: candidate 99+4=103 above existing 94, keep 94.
	stop = UpdateTrailingStopShort(99, 2, 2, stop, 100)
	if stop != 94 {
		t.Errorf("short stop must not loosen, got %f", stop)
	}
}

func TestHistoricalVaR(t *testing.T) {
	// 20 returns, 95% confidence → index floor(20*0.05) = 1.
	returns := make([]float64, 20)
	for i := range returns {
		returns[i] = float64(i-10) / 100 // -0.10 .. 0.09
	}

	got := HistoricalVaR(returns, 0.95)
	if math.Abs(got-(-0.09)) > 1e-12 {
		t.Errorf("expected VaR -0.09, got %f", got)
	}

	if HistoricalVaR(nil, 0.95) != 0 {
		t.Error("empty sample must yield 0")
	}
}
