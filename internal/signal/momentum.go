package signal

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
)

// MomentumSource buys when the close rises by more than Threshold over
// the previous observed close. It keeps the last close per symbol, so
// one instance serves one run at a time.
type MomentumSource struct {
	Threshold float64 // fractional rise required, e.g. 0.02

	lastClose map[string]float64
}

// Compile-time interface check.
var _ Source = (*MomentumSource)(nil)

// NewMomentumSource creates a momentum source with the given rise
// threshold.
func NewMomentumSource(threshold float64) *MomentumSource {
	return &MomentumSource{
		Threshold: threshold,
		lastClose: make(map[string]float64),
	}
}

// GetSignal compares the bar's close against the previously observed
// close for the symbol. The first bar for a symbol always holds.
func (s *MomentumSource) GetSignal(_ context.Context, symbol string, bar domain.Bar) (domain.TradeSignal, error) {
	prev, seen := s.lastClose[symbol]
	s.lastClose[symbol] = bar.Close

	if !seen || prev <= 0 {
		return domain.HoldSignal, nil
	}

	rise := (bar.Close - prev) / prev
	if rise <= s.Threshold {
		return domain.HoldSignal, nil
	}

	confidence := 0.6 + rise
	if confidence > 1 {
		confidence = 1
	}
	return domain.TradeSignal{
		Action:     domain.SignalBuy,
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("close rose %.2f%% over previous bar", rise*100),
	}, nil
}

// Name returns the source identifier.
func (s *MomentumSource) Name() string { return "momentum" }
