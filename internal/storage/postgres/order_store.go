package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	order_id, strategy_id, symbol, side, order_type,
	quantity, price, status, created_at, filled_at, cancelled_at
`

// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		o.OrderID, o.StrategyID, o.Symbol, string(o.Side), string(o.Type),
		o.Quantity, o.Price, string(o.Status), o.CreatedAt, o.FilledAt, o.CancelledAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	row := s.pool.QueryRow(ctx, query, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

// GetByStrategy retrieves all orders for a strategy,
// ordered by created_at ASC, order_id ASC.
func (s *OrderStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE strategy_id = $1
		ORDER BY created_at ASC, order_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get orders by strategy: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetByTimeRange retrieves orders for a strategy created within
// [start, end] (inclusive), ordered by created_at ASC, order_id ASC.
func (s *OrderStore) GetByTimeRange(ctx context.Context, strategyID string, start, end time.Time) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE strategy_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC, order_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get orders by time range: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// scanOrder scans a single row into an Order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var side, orderType, status string

	err := row.Scan(
		&o.OrderID, &o.StrategyID, &o.Symbol, &side, &orderType,
		&o.Quantity, &o.Price, &status, &o.CreatedAt, &o.FilledAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// scanOrders scans multiple rows into a slice of Order.
func scanOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}
