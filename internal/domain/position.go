package domain

import "time"

// OpenPosition represents a held simulated position.
// Quantity stays positive while the position is open; a fully closed
// position is removed from the portfolio map rather than zeroed.
type OpenPosition struct {
	Symbol        string
	Quantity      int64
	EntryPrice    float64
	EntryDate     time.Time
	MarkPrice     float64
	UnrealizedPnL float64
	StopPrice     float64 // trailing stop level, 0 when not set
}

// MarkToMarket revalues the position at price and updates unrealized P&L.
func (p *OpenPosition) MarkToMarket(price float64) {
	p.MarkPrice = price
	p.UnrealizedPnL = (price - p.EntryPrice) * float64(p.Quantity)
}

// UnrealizedPnLPct returns unrealized P&L as a fraction of entry value.
func (p *OpenPosition) UnrealizedPnLPct() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.MarkPrice - p.EntryPrice) / p.EntryPrice
}
