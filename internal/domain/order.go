package domain

import "time"

// OrderSide represents the direction of an order.
type OrderSide string

// Order side constants.
const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType represents the execution type of an order.
type OrderType string

// Order type constants.
const (
	TypeMarket OrderType = "market"
	TypeLimit  OrderType = "limit"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

// Order status constants.
const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
)

// Order represents one persisted order record. Orders are the durable
// input to the compliance detectors; the engine never mutates them.
type Order struct {
	OrderID    string
	StrategyID string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Quantity   int64
	Price      float64
	Status     OrderStatus

	CreatedAt   time.Time
	FilledAt    *time.Time // nil unless Status is filled
	CancelledAt *time.Time // nil unless Status is cancelled
}
