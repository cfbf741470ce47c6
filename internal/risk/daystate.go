package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayState tracks intraday equity against the daily loss limit.
// One instance per strategy per trading day; single-writer.
type DayState struct {
	EquityAtOpen decimal.Decimal
	EquityNow    decimal.Decimal
	DayOpen      time.Time
	halted       bool
}

// NewDayState snapshots equity at day open.
func NewDayState(equityAtOpen decimal.Decimal, dayOpen time.Time) *DayState {
	return &DayState{
		EquityAtOpen: equityAtOpen,
		EquityNow:    equityAtOpen,
		DayOpen:      dayOpen,
	}
}

// UpdateEquity records current equity including unrealized P&L.
func (s *DayState) UpdateEquity(current decimal.Decimal) {
	s.EquityNow = current
}

// BreachedDailyLoss reports whether the day's loss fraction has reached
// limitPct. Once breached the state stays halted until ResetDay.
func (s *DayState) BreachedDailyLoss(limitPct float64) bool {
	if s.halted {
		return true
	}
	if !s.EquityAtOpen.IsPositive() {
		return false
	}
	loss := s.EquityAtOpen.Sub(s.EquityNow)
	lossPct, _ := loss.Div(s.EquityAtOpen).Float64()
	if lossPct >= limitPct {
		s.halted = true
	}
	return s.halted
}

// Halted reports whether trading is halted for the day.
func (s *DayState) Halted() bool { return s.halted }

// ResetDay re-anchors the state at a new day open.
func (s *DayState) ResetDay(equity decimal.Decimal, dayOpen time.Time) {
	s.EquityAtOpen = equity
	s.EquityNow = equity
	s.DayOpen = dayOpen
	s.halted = false
}
