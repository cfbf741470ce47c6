package storage

import (
	"context"
	"time"

	"strategy-lab/internal/domain"
)

// OrderStore provides access to durable order history. Orders are the
// input to the compliance detectors; detectors only ever read.
type OrderStore interface {
	// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
	Insert(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByStrategy retrieves all orders for a strategy,
	// ordered by created_at ASC, order_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Order, error)

	// GetByTimeRange retrieves orders for a strategy created within
	// [start, end] (inclusive), ordered by created_at ASC, order_id ASC.
	GetByTimeRange(ctx context.Context, strategyID string, start, end time.Time) ([]*domain.Order, error)
}

// SimTradeStore provides access to persisted simulation trades.
type SimTradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.SimTrade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.SimTrade) error

	// GetByRunID retrieves all trades for a run, ordered by date ASC, trade_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.SimTrade, error)
}

// AlertStore provides access to surveillance alert storage (append-only).
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.SurveillanceAlert) error

	// GetByStrategy retrieves all alerts for a strategy,
	// ordered by timestamp ASC, alert_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.SurveillanceAlert, error)
}

// DayTradeStore provides access to detected day-trade records (append-only).
type DayTradeStore interface {
	// Insert adds a new record.
	Insert(ctx context.Context, r *domain.DayTradeRecord) error

	// GetByStrategy retrieves all records for a strategy, ordered by date ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.DayTradeRecord, error)
}

// BarStore provides access to historical OHLCV bars.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, date).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error)

	// GetByDateRange retrieves bars for a symbol within [start, end]
	// (inclusive), ordered by date ASC. Missing dates are simply absent.
	GetByDateRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error)
}
