// Package sim implements the time-stepped simulation engine: a
// strictly sequential bar replay with mark-to-market, exit, and entry
// phases per bar. Ordering is load-bearing and must not be
// parallelized across bars.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/analytics"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/fill"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/signal"
	"strategy-lab/internal/storage"
)

// Runner errors. These are the fatal, run-aborting class.
var (
	ErrNoBars = errors.New("simulation: no usable historical bars in range")
)

// entryFraction is the share of current equity committed to each new
// position.
const entryFraction = 0.10

// volatilityLookback is the number of trailing closes used for the
// realized-volatility input to the fill simulator.
const volatilityLookback = 20

// Progress reports cumulative state after one bar. It is the only
// interaction point during a run; the engine itself runs each bar to
// completion atomically.
type Progress struct {
	BarIndex   int
	TotalBars  int
	Date       time.Time
	TradeCount int
	Equity     float64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Provider   marketdata.Provider
	Signals    signal.Source
	FillConfig fill.Config           // slippage model; commission comes from SimConfig
	TradeStore storage.SimTradeStore // optional, persists the trade list
	Logger     *log.Logger           // optional
	Metrics    *observability.Metrics // optional
	Progress   func(Progress)         // optional callback after each bar
}

// Runner executes simulation runs. One run at a time per Runner; the
// portfolio state of a run is owned exclusively by that run.
type Runner struct {
	provider   marketdata.Provider
	signals    signal.Source
	fillCfg    fill.Config
	tradeStore storage.SimTradeStore
	logger     *log.Logger
	metrics    *observability.Metrics
	progress   func(Progress)
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		provider:   opts.Provider,
		signals:    opts.Signals,
		fillCfg:    opts.FillConfig,
		tradeStore: opts.TradeStore,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		progress:   opts.Progress,
	}
}

// run holds the path-dependent state of one simulation.
type run struct {
	cfg       domain.SimConfig
	runID     string
	exit      domain.ExitPolicy
	fillCfg   fill.Config
	portfolio *Portfolio

	symbols      []string                        // sorted, canonical iteration order
	barsBySymbol map[string]map[int64]domain.Bar // date unix -> bar
	dates        []time.Time
	closes       map[string][]float64 // trailing closes per symbol

	trades []*domain.SimTrade
	curve  []domain.EquityPoint
}

// Run executes a simulation for cfg. Steps:
//  1. Validate config (fatal class: bad date range, non-positive capital)
//  2. Load bars for every symbol concurrently, merge deterministically;
//     zero usable bars is fatal
//  3. For each bar date in order: mark to market, exit phase, entry
//     phase, progress callback
//  4. Force-close remaining positions at the final bar
//  5. Compute SimResult from the equity curve and trade list
//
// Cancellation is honored between bars only, never mid-bar.
func (r *Runner) Run(ctx context.Context, cfg domain.SimConfig) (*domain.SimResult, error) {
	start := time.Now()
	result, err := r.execute(ctx, cfg)
	if r.metrics != nil {
		r.metrics.SimulationDuration.Observe(time.Since(start).Seconds())
		outcome := "completed"
		if err != nil {
			outcome = "failed"
		}
		r.metrics.SimulationRuns.WithLabelValues(outcome).Inc()
	}
	return result, err
}

func (r *Runner) execute(ctx context.Context, cfg domain.SimConfig) (*domain.SimResult, error) {
	// 1. Validate config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 2. Load historical bars (concurrent per symbol, deterministic
	// merge). A fetch failure drops that symbol from the run; only zero
	// usable bars overall is fatal.
	loaded, failed := marketdata.LoadAll(ctx, r.provider, cfg.Symbols, cfg.StartDate, cfg.EndDate)
	for _, symbol := range sortedKeys(failed) {
		if r.logger != nil {
			r.logger.Printf("bar fetch failed for %s, symbol skipped: %v", symbol, failed[symbol])
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := r.newRun(cfg, loaded)
	if len(st.dates) == 0 {
		return nil, ErrNoBars
	}

	// 3. Bar loop: strictly sequential, ordering is load-bearing
	for i, date := range st.dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.markToMarket(st, date)
		r.exitPhase(st, date)
		r.entryPhase(ctx, st, date)

		if r.metrics != nil {
			r.metrics.BarsProcessed.Inc()
		}
		if r.progress != nil {
			r.progress(Progress{
				BarIndex:   i,
				TotalBars:  len(st.dates),
				Date:       date,
				TradeCount: len(st.trades),
				Equity:     st.portfolio.Equity().InexactFloat64(),
			})
		}
	}

	// 4. Force-close remaining positions at the final bar
	r.forceCloseAll(st, st.dates[len(st.dates)-1])

	// 5. Assemble result
	result := r.buildResult(st)

	if r.tradeStore != nil {
		if err := r.tradeStore.InsertBulk(ctx, st.trades); err != nil {
			return nil, fmt.Errorf("persist trades: %w", err)
		}
	}
	return result, nil
}

// newRun indexes loaded bars by symbol and date and builds the sorted
// date axis shared by all symbols.
func (r *Runner) newRun(cfg domain.SimConfig, loaded map[string][]domain.Bar) *run {
	runID := cfg.RunID
	if runID == "" {
		runID = idhash.ComputeRunID(cfg.StrategyID, cfg.Symbols, cfg.StartDate.Unix(), cfg.EndDate.Unix())
	}

	exit := cfg.ExitPolicy
	if exit.IsZero() {
		exit = domain.DefaultExitPolicy
	}

	fillCfg := r.fillCfg
	fillCfg.CommissionPerTrade = cfg.Commission

	symbols := marketdata.SortedSymbols(loaded)
	barsBySymbol := make(map[string]map[int64]domain.Bar)
	dateSet := make(map[int64]time.Time)
	for _, symbol := range symbols {
		index := make(map[int64]domain.Bar)
		for _, b := range loaded[symbol] {
			if !domain.IsBusinessDay(b.Date) {
				continue
			}
			key := domain.DateOnly(b.Date).Unix()
			index[key] = b
			dateSet[key] = domain.DateOnly(b.Date)
		}
		barsBySymbol[symbol] = index
	}

	keys := make([]int64, 0, len(dateSet))
	for k := range dateSet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	dates := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		dates = append(dates, dateSet[k])
	}

	return &run{
		cfg:          cfg,
		runID:        runID,
		exit:         exit,
		fillCfg:      fillCfg,
		portfolio:    NewPortfolio(cfg.InitialCapital),
		symbols:      symbols,
		barsBySymbol: barsBySymbol,
		dates:        dates,
		closes:       make(map[string][]float64),
	}
}

// markToMarket revalues every open position at the bar's close,
// records trailing closes for volatility, and appends one equity
// point. Positions without a bar on this date keep their prior mark;
// missing data is tolerated by omission.
func (r *Runner) markToMarket(st *run, date time.Time) {
	key := date.Unix()
	for _, symbol := range st.symbols {
		bar, ok := st.barsBySymbol[symbol][key]
		if !ok {
			continue
		}
		window := append(st.closes[symbol], bar.Close)
		if len(window) > volatilityLookback {
			window = window[1:]
		}
		st.closes[symbol] = window

		if pos, open := st.portfolio.Positions[symbol]; open {
			pos.MarkToMarket(bar.Close)
		}
	}

	st.curve = append(st.curve, domain.EquityPoint{
		Date:   date,
		Equity: st.portfolio.Equity().InexactFloat64(),
	})
}

// exitPhase closes every open position whose unrealized P&L crosses
// the exit policy, selling through the fill simulator.
func (r *Runner) exitPhase(st *run, date time.Time) {
	key := date.Unix()
	for _, symbol := range st.portfolio.OpenSymbols() {
		bar, ok := st.barsBySymbol[symbol][key]
		if !ok {
			continue
		}
		pos := st.portfolio.Positions[symbol]
		pnlPct := pos.UnrealizedPnLPct()

		var reason string
		switch {
		case pnlPct >= st.exit.TakeProfitPct:
			reason = domain.ExitReasonTakeProfit
		case pnlPct <= -st.exit.StopLossPct:
			reason = domain.ExitReasonStopLoss
		default:
			continue
		}

		r.closePosition(st, symbol, bar, date, reason)
	}
}

// entryPhase asks the signal source for a decision on every symbol
// without an open position. A signal error aborts that symbol's
// evaluation for this bar only.
func (r *Runner) entryPhase(ctx context.Context, st *run, date time.Time) {
	key := date.Unix()
	for _, symbol := range st.symbols {
		if _, open := st.portfolio.Positions[symbol]; open {
			continue
		}
		bar, ok := st.barsBySymbol[symbol][key]
		if !ok {
			continue
		}

		sig, err := r.signals.GetSignal(ctx, symbol, bar)
		if err != nil {
			if r.logger != nil {
				r.logger.Printf("signal source failed for %s on %s: %v", symbol, date.Format("2006-01-02"), err)
			}
			continue
		}
		if sig.Action != domain.SignalBuy {
			// Long-only engine: there is nothing to sell without an
			// open position, and hold is a no-op.
			continue
		}

		equity := st.portfolio.Equity().InexactFloat64()
		quantity := int64(math.Floor(equity * entryFraction / bar.Close))
		if quantity <= 0 {
			continue
		}

		res := fill.Simulate(fill.Request{
			Side:        domain.SideBuy,
			Type:        domain.TypeMarket,
			Quantity:    quantity,
			MarketPrice: bar.Close,
			AvgVolume:   float64(bar.Volume),
			Volatility:  realizedVol(st.closes[symbol]),
		}, st.fillCfg)
		if !res.Filled {
			if r.metrics != nil {
				r.metrics.FillsRejected.Inc()
			}
			continue
		}

		cost := decimal.NewFromFloat(res.FillPrice).
			Mul(decimal.NewFromInt(res.FillQuantity)).
			Add(res.Commission)
		if cost.GreaterThan(st.portfolio.Cash) {
			// Insufficient cash: reject the entry, not an error.
			continue
		}

		st.portfolio.OpenBuy(symbol, res, date)
	}
}

// closePosition sells the full position through the fill simulator and
// records the completed trade.
func (r *Runner) closePosition(st *run, symbol string, bar domain.Bar, date time.Time, reason string) {
	pos := st.portfolio.Positions[symbol]

	res := fill.Simulate(fill.Request{
		Side:        domain.SideSell,
		Type:        domain.TypeMarket,
		Quantity:    pos.Quantity,
		MarketPrice: bar.Close,
		AvgVolume:   float64(bar.Volume),
		Volatility:  realizedVol(st.closes[symbol]),
	}, st.fillCfg)
	if !res.Filled {
		return
	}

	trade := st.portfolio.CloseSell(symbol, res, date, reason)
	if trade == nil {
		return
	}
	trade.RunID = st.runID
	trade.TradeID = idhash.ComputeTradeID(st.runID, st.cfg.StrategyID, symbol, date.Unix(), trade.Quantity)
	st.trades = append(st.trades, trade)

	if r.metrics != nil {
		r.metrics.TradesSimulated.Inc()
	}
}

// forceCloseAll closes every remaining position at its last mark so
// the trade list reflects only closed, P&L-attributed trades.
func (r *Runner) forceCloseAll(st *run, date time.Time) {
	key := date.Unix()
	for _, symbol := range st.portfolio.OpenSymbols() {
		bar, ok := st.barsBySymbol[symbol][key]
		if !ok {
			// No bar at the final date; synthesize one at the last mark.
			pos := st.portfolio.Positions[symbol]
			bar = domain.Bar{Symbol: symbol, Date: date, Close: pos.MarkPrice}
		}
		r.closePosition(st, symbol, bar, date, domain.ExitReasonEndOfRun)
	}
}

// buildResult computes all aggregate statistics from the accumulated
// equity curve and trade list. Ratios are derived here and nowhere else.
func (r *Runner) buildResult(st *run) *domain.SimResult {
	finalEquity := st.portfolio.Equity()
	totalReturn, _ := finalEquity.Sub(st.cfg.InitialCapital).Div(st.cfg.InitialCapital).Float64()

	daily := analytics.DailyReturns(st.curve)

	return &domain.SimResult{
		RunID:          st.runID,
		StrategyID:     st.cfg.StrategyID,
		TotalReturn:    totalReturn,
		SharpeRatio:    analytics.SharpeRatio(daily),
		MaxDrawdown:    analytics.MaxDrawdown(st.curve),
		WinRate:        analytics.WinRate(st.trades),
		ProfitFactor:   analytics.ProfitFactor(st.trades),
		TotalTrades:    len(st.trades),
		Trades:         st.trades,
		EquityCurve:    st.curve,
		DailyReturns:   daily,
		MonthlyReturns: analytics.MonthlyReturns(st.curve),
	}
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// realizedVol computes the standard deviation of simple returns over
// the trailing close window. Fewer than three closes yields 0.
func realizedVol(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range rets {
		mean += v
	}
	mean /= float64(len(rets))
	sumSq := 0.0
	for _, v := range rets {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(rets)-1))
}
