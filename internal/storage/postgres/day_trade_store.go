package postgres

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// DayTradeStore implements storage.DayTradeStore using PostgreSQL.
type DayTradeStore struct {
	pool *Pool
}

// NewDayTradeStore creates a new DayTradeStore.
func NewDayTradeStore(pool *Pool) *DayTradeStore {
	return &DayTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DayTradeStore = (*DayTradeStore)(nil)

// Insert adds a new record.
func (s *DayTradeStore) Insert(ctx context.Context, r *domain.DayTradeRecord) error {
	query := `
		INSERT INTO day_trades (trade_date, strategy_id, symbol, buy_order_id, sell_order_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Date, r.StrategyID, r.Symbol, r.BuyOrderID, r.SellOrderID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert day trade: %w", err)
	}
	return nil
}

// GetByStrategy retrieves all records for a strategy, ordered by date ASC.
func (s *DayTradeStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.DayTradeRecord, error) {
	query := `
		SELECT trade_date, strategy_id, symbol, buy_order_id, sell_order_id
		FROM day_trades
		WHERE strategy_id = $1
		ORDER BY trade_date ASC, symbol ASC, buy_order_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("get day trades by strategy: %w", err)
	}
	defer rows.Close()

	var records []*domain.DayTradeRecord
	for rows.Next() {
		var r domain.DayTradeRecord
		if err := rows.Scan(&r.Date, &r.StrategyID, &r.Symbol, &r.BuyOrderID, &r.SellOrderID); err != nil {
			return nil, fmt.Errorf("scan day trade row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day trade rows: %w", err)
	}

	return records, nil
}
