package clickhouse

import (
	"context"
	"fmt"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse. Bars are the
// high-volume analytics table; simulations read whole date ranges per
// symbol.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, date).
// MergeTree does not enforce uniqueness, so duplicates are rejected by
// explicit checks before the batch is sent.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		date   time.Time
	}
	seen := make(map[key]struct{})
	for _, b := range bars {
		k := key{b.Symbol, domain.DateOnly(b.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, domain.DateOnly(b.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, bar_date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, domain.DateOnly(b.Date),
			b.Open, b.High, b.Low, b.Close, uint64(b.Volume),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
func (s *BarStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, bar_date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ?
		ORDER BY bar_date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByDateRange retrieves bars for a symbol within [start, end]
// (inclusive), ordered by date ASC.
func (s *BarStore) GetByDateRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, bar_date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND bar_date >= ? AND bar_date <= ?
		ORDER BY bar_date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, domain.DateOnly(start), domain.DateOnly(end))
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// exists checks if a bar with the given key exists.
func (s *BarStore) exists(ctx context.Context, symbol string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM bars
		WHERE symbol = ? AND bar_date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		var volume uint64

		err := rows.Scan(
			&b.Symbol, &b.Date,
			&b.Open, &b.High, &b.Low, &b.Close, &volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Volume = int64(volume)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
