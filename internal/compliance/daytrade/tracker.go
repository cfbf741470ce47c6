// Package daytrade implements pattern-day-trader compliance checks.
// The tracker keeps no state of its own: every check recomputes from
// the durable order history, so concurrent checks for different
// strategies are safe and a process restart loses nothing.
package daytrade

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/audit"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// Regulatory constants.
const (
	// WindowBusinessDays is the rolling lookback for day-trade counting.
	WindowBusinessDays = 5

	// PatternThreshold is the day-trade count at which the PDT flag sets.
	PatternThreshold = 4
)

// MinEquity is the account value below which a pattern day trader may
// not open new day trades.
var MinEquity = decimal.NewFromInt(25_000)

// Status summarizes a strategy's day-trade standing over the rolling
// window.
type Status struct {
	StrategyID    string
	WindowStart   time.Time
	WindowEnd     time.Time
	DayTradeCount int
	IsDayTrader   bool // count >= PatternThreshold
	Eligible      bool // account value >= MinEquity
	Records       []domain.DayTradeRecord
}

// ValidationResult is the outcome of a pre-sell day-trade check.
// A rejection is a normal negative result, not an error.
type ValidationResult struct {
	Approved bool
	Reason   string
	Status   Status
}

// Tracker recomputes day-trade status from persisted orders.
type Tracker struct {
	orders  storage.OrderStore
	sink    audit.Sink
	logger  *log.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// TrackerOptions configures a Tracker. Sink, Logger, and Metrics are
// optional.
type TrackerOptions struct {
	Orders  storage.OrderStore
	Sink    audit.Sink
	Logger  *log.Logger
	Metrics *observability.Metrics
	Now     func() time.Time // test hook, defaults to time.Now
}

// NewTracker creates a day-trade compliance tracker.
func NewTracker(opts TrackerOptions) *Tracker {
	sink := opts.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		orders:  opts.Orders,
		sink:    sink,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     now,
	}
}

// windowStart walks back WindowBusinessDays business days from the
// reference date, skipping weekends.
func windowStart(ref time.Time) time.Time {
	day := domain.DateOnly(ref)
	remaining := WindowBusinessDays - 1
	for remaining > 0 {
		day = day.AddDate(0, 0, -1)
		if domain.IsBusinessDay(day) {
			remaining--
		}
	}
	return day
}

// GetStatus computes the day-trade status of a strategy over the
// rolling window ending today.
func (t *Tracker) GetStatus(ctx context.Context, strategyID string, accountValue decimal.Decimal) (Status, error) {
	end := domain.DateOnly(t.now()).Add(24*time.Hour - time.Nanosecond)
	start := windowStart(t.now())

	orders, err := t.orders.GetByTimeRange(ctx, strategyID, start, end)
	if err != nil {
		return Status{}, fmt.Errorf("load orders: %w", err)
	}

	records := pairDayTrades(strategyID, orders)
	count := len(records)

	// Detected records are append-only audit artifacts. Every status
	// check recomputes the same records from durable history, so the
	// sink must tolerate replays; a sink failure degrades the audit
	// trail but never the status read.
	for i := range records {
		if err := t.sink.RecordDayTrade(ctx, &records[i]); err != nil && t.logger != nil {
			t.logger.Printf("record day trade: %v", err)
		}
	}

	return Status{
		StrategyID:    strategyID,
		WindowStart:   start,
		WindowEnd:     domain.DateOnly(t.now()),
		DayTradeCount: count,
		IsDayTrader:   count >= PatternThreshold,
		Eligible:      accountValue.GreaterThanOrEqual(MinEquity),
		Records:       records,
	}, nil
}

// ValidateDayTrade gates a sell order before submission. If the symbol
// has a filled buy today, selling now completes a day trade; an
// ineligible account whose count would reach the pattern threshold is
// rejected and a compliance alert is emitted.
func (t *Tracker) ValidateDayTrade(ctx context.Context, strategyID, symbol string, accountValue decimal.Decimal) (ValidationResult, error) {
	status, err := t.GetStatus(ctx, strategyID, accountValue)
	if err != nil {
		return ValidationResult{}, err
	}

	today := t.now()
	boughtToday, err := t.hasFilledBuyToday(ctx, strategyID, symbol, today)
	if err != nil {
		return ValidationResult{}, err
	}
	if !boughtToday {
		return ValidationResult{Approved: true, Status: status}, nil
	}

	// Selling now completes a same-day round trip.
	wouldBe := status.DayTradeCount + 1
	if status.Eligible || wouldBe < PatternThreshold {
		if t.metrics != nil {
			t.metrics.DayTradesDetected.Inc()
		}
		return ValidationResult{Approved: true, Status: status}, nil
	}

	reason := fmt.Sprintf(
		"day trade limit: selling %s today would be day trade %d of %d in %d business days; account value below $25,000 minimum",
		symbol, wouldBe, PatternThreshold, WindowBusinessDays,
	)

	alert := &domain.SurveillanceAlert{
		StrategyID:  strategyID,
		Type:        domain.AlertDayTradeLimit,
		Severity:    domain.SeverityHigh,
		Description: reason,
		Timestamp:   today,
	}
	alert.AlertID = idhash.ComputeAlertID(string(alert.Type), strategyID, domain.DateOnly(today).Unix(), []string{symbol})
	if err := t.sink.RecordAlert(ctx, alert); err != nil && t.logger != nil {
		t.logger.Printf("record day-trade alert: %v", err)
	}
	if t.metrics != nil {
		t.metrics.DayTradesRejected.Inc()
	}
	if t.logger != nil {
		t.logger.Printf("rejected day trade strategy=%s symbol=%s count=%d", strategyID, symbol, status.DayTradeCount)
	}

	return ValidationResult{Approved: false, Reason: reason, Status: status}, nil
}

func (t *Tracker) hasFilledBuyToday(ctx context.Context, strategyID, symbol string, today time.Time) (bool, error) {
	start := domain.DateOnly(today)
	end := start.Add(24*time.Hour - time.Nanosecond)
	orders, err := t.orders.GetByTimeRange(ctx, strategyID, start, end)
	if err != nil {
		return false, fmt.Errorf("load today's orders: %w", err)
	}
	for _, o := range orders {
		if o.Symbol == symbol && o.Side == domain.SideBuy && o.Status == domain.StatusFilled {
			return true, nil
		}
	}
	return false, nil
}

// pairDayTrades counts same-day round trips: for each (date, symbol),
// the number of day trades is min(filled buys, filled sells). Pairing
// is FIFO within the day so record order stays deterministic.
func pairDayTrades(strategyID string, orders []*domain.Order) []domain.DayTradeRecord {
	type dayKey struct {
		date   time.Time
		symbol string
	}
	buys := make(map[dayKey][]*domain.Order)
	sells := make(map[dayKey][]*domain.Order)

	for _, o := range orders {
		if o.Status != domain.StatusFilled || o.FilledAt == nil {
			continue
		}
		key := dayKey{date: domain.DateOnly(*o.FilledAt), symbol: o.Symbol}
		switch o.Side {
		case domain.SideBuy:
			buys[key] = append(buys[key], o)
		case domain.SideSell:
			sells[key] = append(sells[key], o)
		}
	}

	keys := make([]dayKey, 0, len(buys))
	for key := range buys {
		if len(sells[key]) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].date.Equal(keys[j].date) {
			return keys[i].date.Before(keys[j].date)
		}
		return keys[i].symbol < keys[j].symbol
	})

	var records []domain.DayTradeRecord
	for _, key := range keys {
		n := len(buys[key])
		if len(sells[key]) < n {
			n = len(sells[key])
		}
		for i := 0; i < n; i++ {
			records = append(records, domain.DayTradeRecord{
				Date:        key.date,
				StrategyID:  strategyID,
				Symbol:      key.symbol,
				BuyOrderID:  buys[key][i].OrderID,
				SellOrderID: sells[key][i].OrderID,
			})
		}
	}
	return records
}
