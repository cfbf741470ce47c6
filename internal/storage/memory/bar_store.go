package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Bar // keyed by symbol, kept sorted by date
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string][]*domain.Bar),
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, date).
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		symbol string
		date   time.Time
	}
	batchKeys := make(map[key]struct{}, len(bars))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, domain.DateOnly(b.Date)}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}

		for _, existing := range s.data[b.Symbol] {
			if existing.Date.Equal(k.date) {
				return storage.ErrDuplicateKey
			}
		}
	}

	// Second pass: insert and re-sort per symbol
	touched := make(map[string]struct{})
	for _, b := range bars {
		c := *b
		c.Date = domain.DateOnly(b.Date)
		s.data[b.Symbol] = append(s.data[b.Symbol], &c)
		touched[b.Symbol] = struct{}{}
	}
	for symbol := range touched {
		series := s.data[symbol]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})
	}

	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[symbol]
	result := make([]*domain.Bar, 0, len(series))
	for _, b := range series {
		c := *b
		result = append(result, &c)
	}
	return result, nil
}

// GetByDateRange retrieves bars for a symbol within [start, end]
// (inclusive), ordered by date ASC.
func (s *BarStore) GetByDateRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start = domain.DateOnly(start)
	end = domain.DateOnly(end)

	var result []*domain.Bar
	for _, b := range s.data[symbol] {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		c := *b
		result = append(result, &c)
	}
	return result, nil
}
