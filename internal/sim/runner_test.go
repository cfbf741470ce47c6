package sim

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/fill"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/signal"
	"strategy-lab/internal/storage/memory"
)

// seedBars loads a close-price series for one symbol starting on a
// Tuesday so every bar lands on a business day.
func seedBars(t *testing.T, store *memory.BarStore, symbol string, closes []float64) (time.Time, time.Time) {
	t.Helper()

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) // Tuesday
	date := start
	var bars []*domain.Bar
	for _, c := range closes {
		for !domain.IsBusinessDay(date) {
			date = date.AddDate(0, 0, 1)
		}
		bars = append(bars, &domain.Bar{
			Symbol: symbol,
			Date:   date,
			Open:   c, High: c, Low: c, Close: c,
			Volume: 1_000_000,
		})
		date = date.AddDate(0, 0, 1)
	}
	if err := store.InsertBulk(context.Background(), bars); err != nil {
		t.Fatalf("seed bars: %v", err)
	}
	return start, bars[len(bars)-1].Date
}

// buyOnFirstCall buys once with high confidence, then holds.
type buyOnFirstCall struct {
	bought bool
}

func (s *buyOnFirstCall) GetSignal(_ context.Context, _ string, _ domain.Bar) (domain.TradeSignal, error) {
	if s.bought {
		return domain.HoldSignal, nil
	}
	s.bought = true
	return domain.TradeSignal{Action: domain.SignalBuy, Confidence: 0.9}, nil
}

func (s *buyOnFirstCall) Name() string { return "buy-once" }

func newTestRunner(store *memory.BarStore, src signal.Source) *Runner {
	return NewRunner(RunnerOptions{
		Provider:   marketdata.NewStoreProvider(store),
		Signals:    src,
		FillConfig: fill.ZeroCostConfig,
	})
}

func TestRun_TakeProfitScenario(t *testing.T) {
	// 3-bar series [100,110,95]: buy at bar 1, +10% take-profit fires
	// at bar 2, run ends flat.
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 110, 95})

	runner := newTestRunner(store, &buyOnFirstCall{})
	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
		Commission:     decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("expected exactly one closed trade, got %d", result.TotalTrades)
	}
	trade := result.Trades[0]
	if trade.Quantity != 100 {
		t.Errorf("expected quantity floor(10000/100)=100, got %d", trade.Quantity)
	}
	if trade.EntryPrice != 100 || trade.ExitPrice != 110 {
		t.Errorf("expected entry 100 exit 110, got %f/%f", trade.EntryPrice, trade.ExitPrice)
	}
	if trade.ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("expected take-profit exit, got %s", trade.ExitReason)
	}
	// P&L = 100*(110-100) - 2 commissions = 998.
	want := decimal.NewFromInt(998)
	if !trade.RealizedPnL.Equal(want) {
		t.Errorf("expected realized P&L %s, got %s", want, trade.RealizedPnL)
	}

	// Equity curve: one point per bar, dates strictly increasing.
	if len(result.EquityCurve) != 3 {
		t.Fatalf("expected 3 equity points, got %d", len(result.EquityCurve))
	}
	for i := 1; i < len(result.EquityCurve); i++ {
		if !result.EquityCurve[i].Date.After(result.EquityCurve[i-1].Date) {
			t.Error("equity curve dates must be strictly increasing")
		}
	}
}

func TestRun_StopLossExit(t *testing.T) {
	// Buy at 100, bar 2 drops to 94 (-6% <= -5%): stop-loss exit.
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 94, 94})

	runner := newTestRunner(store, &buyOnFirstCall{})
	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("expected one trade, got %d", result.TotalTrades)
	}
	if result.Trades[0].ExitReason != domain.ExitReasonStopLoss {
		t.Errorf("expected stop-loss exit, got %s", result.Trades[0].ExitReason)
	}
}

func TestRun_ForceCloseAtFinalBar(t *testing.T) {
	// Price drifts +4%: neither policy threshold fires, so the final
	// bar force-closes the position.
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 102, 104})

	runner := newTestRunner(store, &buyOnFirstCall{})
	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("expected one force-closed trade, got %d", result.TotalTrades)
	}
	if result.Trades[0].ExitReason != domain.ExitReasonEndOfRun {
		t.Errorf("expected end-of-run exit, got %s", result.Trades[0].ExitReason)
	}
}

func TestRun_ZeroCostRoundTripPnLIsZero(t *testing.T) {
	// Flat price, zero commission, zero slippage: realized P&L = 0.
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 100, 100})

	runner := newTestRunner(store, &buyOnFirstCall{})
	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("expected one trade, got %d", result.TotalTrades)
	}
	if !result.Trades[0].RealizedPnL.IsZero() {
		t.Errorf("expected zero P&L, got %s", result.Trades[0].RealizedPnL)
	}
	if result.SharpeRatio != 0 {
		t.Errorf("constant equity must yield Sharpe 0, got %f", result.SharpeRatio)
	}
	if result.MaxDrawdown != 0 {
		t.Errorf("constant equity must yield drawdown 0, got %f", result.MaxDrawdown)
	}
}

func TestRun_Deterministic(t *testing.T) {
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "A", []float64{100, 112, 95, 101, 108})
	seedBars(t, store, "B", []float64{50, 51, 47, 55, 56})

	cfg := domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"A", "B"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
		Commission:     decimal.NewFromInt(1),
	}

	run := func() *domain.SimResult {
		src := &signal.StaticSource{Signal: domain.TradeSignal{Action: domain.SignalBuy, Confidence: 0.9}}
		result, err := newTestRunner(store, src).Run(context.Background(), cfg)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	first := run()
	second := run()

	if !reflect.DeepEqual(first, second) {
		t.Error("identical config and data must yield identical results")
	}
}

func TestRun_FatalErrors(t *testing.T) {
	store := memory.NewBarStore()
	runner := newTestRunner(store, &buyOnFirstCall{})
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		cfg  domain.SimConfig
		want error
	}{
		{
			name: "end before start",
			cfg: domain.SimConfig{
				Symbols: []string{"X"}, StartDate: start, EndDate: start,
				InitialCapital: decimal.NewFromInt(1000),
			},
			want: domain.ErrInvalidDateRange,
		},
		{
			name: "non-positive capital",
			cfg: domain.SimConfig{
				Symbols: []string{"X"}, StartDate: start, EndDate: start.AddDate(0, 0, 5),
				InitialCapital: decimal.Zero,
			},
			want: domain.ErrNonPositiveCapital,
		},
		{
			name: "no bars",
			cfg: domain.SimConfig{
				Symbols: []string{"X"}, StartDate: start, EndDate: start.AddDate(0, 0, 5),
				InitialCapital: decimal.NewFromInt(1000),
			},
			want: ErrNoBars,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.Run(context.Background(), tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// failingSource errors for one symbol and buys the rest.
type failingSource struct {
	failSymbol string
}

func (s *failingSource) GetSignal(_ context.Context, symbol string, _ domain.Bar) (domain.TradeSignal, error) {
	if symbol == s.failSymbol {
		return domain.TradeSignal{}, errors.New("advisor unavailable")
	}
	return domain.TradeSignal{Action: domain.SignalBuy, Confidence: 0.9}, nil
}

func (s *failingSource) Name() string { return "failing" }

func TestRun_SignalErrorSkipsSymbolOnly(t *testing.T) {
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "GOOD", []float64{100, 100, 100})
	seedBars(t, store, "BAD", []float64{100, 100, 100})

	runner := newTestRunner(store, &failingSource{failSymbol: "BAD"})
	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"GOOD", "BAD"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("signal error must not abort the run: %v", err)
	}

	for _, trade := range result.Trades {
		if trade.Symbol == "BAD" {
			t.Error("failing symbol must have no trades")
		}
	}
	if result.TotalTrades == 0 {
		t.Error("healthy symbol must still trade")
	}
}

// failingProvider errors the bar fetch for one symbol and delegates
// the rest.
type failingProvider struct {
	failSymbol string
	inner      marketdata.Provider
}

func (p *failingProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if symbol == p.failSymbol {
		return nil, errors.New("feed down")
	}
	return p.inner.GetBars(ctx, symbol, start, end)
}

func TestRun_FetchFailureSkipsSymbolOnly(t *testing.T) {
	// A bar-fetch failure is recoverable: the symbol is dropped and the
	// run completes on the rest. Only zero usable bars aborts the run.
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "GOOD", []float64{100, 110, 95})

	runner := NewRunner(RunnerOptions{
		Provider:   &failingProvider{failSymbol: "BAD", inner: marketdata.NewStoreProvider(store)},
		Signals:    &buyOnFirstCall{},
		FillConfig: fill.ZeroCostConfig,
	})
	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"BAD", "GOOD"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("fetch failure for one symbol must not abort the run: %v", err)
	}

	if result.TotalTrades != 1 {
		t.Fatalf("expected the healthy symbol to trade, got %d trades", result.TotalTrades)
	}
	if result.Trades[0].Symbol != "GOOD" {
		t.Errorf("expected trade on GOOD, got %s", result.Trades[0].Symbol)
	}
}

func TestRun_ProgressCallback(t *testing.T) {
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 101, 102})

	var calls []Progress
	runner := NewRunner(RunnerOptions{
		Provider:   marketdata.NewStoreProvider(store),
		Signals:    &signal.StaticSource{Signal: domain.HoldSignal},
		FillConfig: fill.ZeroCostConfig,
		Progress:   func(p Progress) { calls = append(calls, p) },
	})

	_, err := runner.Run(context.Background(), domain.SimConfig{
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("expected one callback per bar, got %d", len(calls))
	}
	if calls[2].TotalBars != 3 || calls[2].BarIndex != 2 {
		t.Errorf("unexpected final progress: %+v", calls[2])
	}
	if math.Abs(calls[2].Equity-1000) > 1e-9 {
		t.Errorf("hold-only run must keep equity at 1000, got %f", calls[2].Equity)
	}
}

func TestRun_InsufficientCashSkipsEntry(t *testing.T) {
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 100, 100})

	runner := newTestRunner(store, &signal.StaticSource{
		Signal: domain.TradeSignal{Action: domain.SignalBuy, Confidence: 0.9},
	})
	// 10% of 500 = 50 < price 100: quantity floors to zero, no entry.
	result, err := runner.Run(context.Background(), domain.SimConfig{
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalTrades != 0 {
		t.Errorf("expected no trades, got %d", result.TotalTrades)
	}
}

func TestRun_PersistsTrades(t *testing.T) {
	store := memory.NewBarStore()
	start, end := seedBars(t, store, "X", []float64{100, 110, 95})
	tradeStore := memory.NewSimTradeStore()

	runner := NewRunner(RunnerOptions{
		Provider:   marketdata.NewStoreProvider(store),
		Signals:    &buyOnFirstCall{},
		FillConfig: fill.ZeroCostConfig,
		TradeStore: tradeStore,
	})

	result, err := runner.Run(context.Background(), domain.SimConfig{
		StrategyID:     "strat-1",
		Symbols:        []string{"X"},
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromInt(100_000),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	persisted, err := tradeStore.GetByRunID(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("get persisted: %v", err)
	}
	if len(persisted) != result.TotalTrades {
		t.Errorf("expected %d persisted trades, got %d", result.TotalTrades, len(persisted))
	}
}
