// Package trading enforces the single-writer discipline: at most one
// simulation or live trading cycle mutates a strategy's position state
// at a time. Risk checks and compliance scans are read-only and may
// run concurrently; anything that writes acquires the strategy slot
// first.
package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCycleActive is returned when a strategy already has a running
// simulation or trading cycle.
var ErrCycleActive = errors.New("trading: cycle already active for strategy")

// Manager tracks which strategies currently have an active writer.
type Manager struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{active: make(map[string]struct{})}
}

// Acquire claims the writer slot for a strategy. The returned release
// function must be called exactly once when the cycle finishes.
func (m *Manager) Acquire(strategyID string) (release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[strategyID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrCycleActive, strategyID)
	}
	m.active[strategyID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.active, strategyID)
			m.mu.Unlock()
		})
	}, nil
}

// IsActive reports whether a strategy currently holds the writer slot.
func (m *Manager) IsActive(strategyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.active[strategyID]
	return busy
}

// ActiveCount returns the number of strategies with a running cycle.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Run executes fn while holding the strategy's writer slot. If the
// slot is taken, Run returns ErrCycleActive without invoking fn.
func (m *Manager) Run(ctx context.Context, strategyID string, fn func(ctx context.Context) error) error {
	release, err := m.Acquire(strategyID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
