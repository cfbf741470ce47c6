package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SurveillanceAlert // keyed by alert_id
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[string]*domain.SurveillanceAlert),
	}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.SurveillanceAlert) error {
	if a == nil || a.AlertID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	c := *a
	c.OrderIDs = append([]string(nil), a.OrderIDs...)
	s.data[a.AlertID] = &c
	return nil
}

// GetByStrategy retrieves all alerts for a strategy,
// ordered by timestamp ASC, alert_id ASC.
func (s *AlertStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.SurveillanceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SurveillanceAlert
	for _, a := range s.data {
		if a.StrategyID == strategyID {
			c := *a
			c.OrderIDs = append([]string(nil), a.OrderIDs...)
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].AlertID < result[j].AlertID
	})
	return result, nil
}
