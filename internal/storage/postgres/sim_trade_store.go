package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// SimTradeStore implements storage.SimTradeStore using PostgreSQL.
type SimTradeStore struct {
	pool *Pool
}

// NewSimTradeStore creates a new SimTradeStore.
func NewSimTradeStore(pool *Pool) *SimTradeStore {
	return &SimTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimTradeStore = (*SimTradeStore)(nil)

const simTradeColumns = `
	trade_id, run_id, trade_date, symbol, action,
	quantity, price, commission, realized_pnl,
	entry_price, exit_price, exit_reason
`

const simTradeInsert = `
	INSERT INTO sim_trades (` + simTradeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *SimTradeStore) Insert(ctx context.Context, t *domain.SimTrade) error {
	_, err := s.pool.Exec(ctx, simTradeInsert, simTradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert sim trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *SimTradeStore) InsertBulk(ctx context.Context, trades []*domain.SimTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if _, err := tx.Exec(ctx, simTradeInsert, simTradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert sim trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all trades for a run, ordered by date ASC, trade_id ASC.
func (s *SimTradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.SimTrade, error) {
	query := `
		SELECT ` + simTradeColumns + `
		FROM sim_trades
		WHERE run_id = $1
		ORDER BY trade_date ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get sim trades by run id: %w", err)
	}
	defer rows.Close()

	return scanSimTrades(rows)
}

func simTradeArgs(t *domain.SimTrade) []any {
	return []any{
		t.TradeID, t.RunID, t.Date, t.Symbol, string(t.Action),
		t.Quantity, t.Price, t.Commission, t.RealizedPnL,
		t.EntryPrice, t.ExitPrice, t.ExitReason,
	}
}

// scanSimTrades scans multiple rows into a slice of SimTrade.
func scanSimTrades(rows pgx.Rows) ([]*domain.SimTrade, error) {
	var trades []*domain.SimTrade

	for rows.Next() {
		var t domain.SimTrade
		var action string

		err := rows.Scan(
			&t.TradeID, &t.RunID, &t.Date, &t.Symbol, &action,
			&t.Quantity, &t.Price, &t.Commission, &t.RealizedPnL,
			&t.EntryPrice, &t.ExitPrice, &t.ExitReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sim trade row: %w", err)
		}

		t.Action = domain.TradeAction(action)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sim trade rows: %w", err)
	}

	return trades, nil
}
