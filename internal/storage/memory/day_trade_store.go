package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// DayTradeStore is an in-memory implementation of storage.DayTradeStore.
type DayTradeStore struct {
	mu   sync.RWMutex
	data []*domain.DayTradeRecord
	keys map[string]struct{}
}

// NewDayTradeStore creates a new in-memory day-trade record store.
func NewDayTradeStore() *DayTradeStore {
	return &DayTradeStore{keys: make(map[string]struct{})}
}

// Compile-time interface check.
var _ storage.DayTradeStore = (*DayTradeStore)(nil)

// Insert adds a new record. The key matches the durable store:
// (strategy, buy order, sell order) identifies one round trip.
func (s *DayTradeStore) Insert(_ context.Context, r *domain.DayTradeRecord) error {
	if r == nil || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.StrategyID + "|" + r.BuyOrderID + "|" + r.SellOrderID
	if _, exists := s.keys[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.keys[key] = struct{}{}

	c := *r
	s.data = append(s.data, &c)
	return nil
}

// GetByStrategy retrieves all records for a strategy, ordered by date ASC.
func (s *DayTradeStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.DayTradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DayTradeRecord
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			c := *r
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}
