// Package signal defines the external trade-decision boundary. Signal
// sources are opaque synchronous collaborators; their loosely-typed
// payloads are validated here before they reach the engine.
package signal

import (
	"context"

	"strategy-lab/internal/domain"
)

// Source produces trade decisions for a symbol given the current bar.
// The engine does not retry on failure: an error aborts that symbol's
// entry evaluation for the bar only, not the whole run.
type Source interface {
	// GetSignal returns a buy/sell/hold decision for symbol at bar.
	GetSignal(ctx context.Context, symbol string, bar domain.Bar) (domain.TradeSignal, error)

	// Name returns the source identifier.
	Name() string
}

// StaticSource returns a fixed decision for every call. Used in tests
// and dry runs.
type StaticSource struct {
	Signal domain.TradeSignal
}

// Compile-time interface check.
var _ Source = (*StaticSource)(nil)

// GetSignal returns the fixed decision.
func (s *StaticSource) GetSignal(_ context.Context, _ string, _ domain.Bar) (domain.TradeSignal, error) {
	return s.Signal, nil
}

// Name returns the source identifier.
func (s *StaticSource) Name() string { return "static" }

// FuncSource adapts a plain function into a Source.
type FuncSource struct {
	ID string
	Fn func(ctx context.Context, symbol string, bar domain.Bar) (domain.TradeSignal, error)
}

// Compile-time interface check.
var _ Source = (*FuncSource)(nil)

// GetSignal delegates to the wrapped function.
func (s *FuncSource) GetSignal(ctx context.Context, symbol string, bar domain.Bar) (domain.TradeSignal, error) {
	return s.Fn(ctx, symbol, bar)
}

// Name returns the source identifier.
func (s *FuncSource) Name() string {
	if s.ID == "" {
		return "func"
	}
	return s.ID
}
