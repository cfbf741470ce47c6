package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Order // keyed by order_id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data: make(map[string]*domain.Order),
	}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(_ context.Context, o *domain.Order) error {
	if o == nil || o.OrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.OrderID]; exists {
		return storage.ErrDuplicateKey
	}

	c := *o
	s.data[o.OrderID] = &c
	return nil
}

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	c := *o
	return &c, nil
}

// GetByStrategy retrieves all orders for a strategy,
// ordered by created_at ASC, order_id ASC.
func (s *OrderStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if o.StrategyID == strategyID {
			c := *o
			result = append(result, &c)
		}
	}

	sortOrders(result)
	return result, nil
}

// GetByTimeRange retrieves orders for a strategy created within
// [start, end] (inclusive), ordered by created_at ASC, order_id ASC.
func (s *OrderStore) GetByTimeRange(_ context.Context, strategyID string, start, end time.Time) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if o.StrategyID != strategyID {
			continue
		}
		if o.CreatedAt.Before(start) || o.CreatedAt.After(end) {
			continue
		}
		c := *o
		result = append(result, &c)
	}

	sortOrders(result)
	return result, nil
}

// sortOrders sorts deterministically by created_at ASC, order_id ASC.
func sortOrders(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].OrderID < orders[j].OrderID
	})
}
