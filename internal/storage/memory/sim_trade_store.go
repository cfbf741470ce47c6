package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// SimTradeStore is an in-memory implementation of storage.SimTradeStore.
type SimTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimTrade // keyed by trade_id
}

// NewSimTradeStore creates a new in-memory simulation trade store.
func NewSimTradeStore() *SimTradeStore {
	return &SimTradeStore{
		data: make(map[string]*domain.SimTrade),
	}
}

// Compile-time interface check.
var _ storage.SimTradeStore = (*SimTradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *SimTradeStore) Insert(_ context.Context, t *domain.SimTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	c := *t
	s.data[t.TradeID] = &c
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *SimTradeStore) InsertBulk(_ context.Context, trades []*domain.SimTrade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(trades))

	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		c := *t
		s.data[t.TradeID] = &c
	}

	return nil
}

// GetByRunID retrieves all trades for a run, ordered by date ASC, trade_id ASC.
func (s *SimTradeStore) GetByRunID(_ context.Context, runID string) ([]*domain.SimTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimTrade
	for _, t := range s.data {
		if t.RunID == runID {
			c := *t
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}
