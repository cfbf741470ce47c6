package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction represents the closing action of a simulated trade.
type TradeAction string

// Trade action constants.
const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// SimTrade represents one completed round-trip leg of a simulation.
// Realized P&L is computed only on the closing leg; the trade list of a
// finished run contains closed trades exclusively.
type SimTrade struct {
	TradeID     string // deterministic hash, see idhash
	RunID       string
	Date        time.Time // exit date
	Symbol      string
	Action      TradeAction
	Quantity    int64
	Price       float64 // exit fill price
	Commission  decimal.Decimal // total commission across both legs
	RealizedPnL decimal.Decimal
	EntryPrice  float64
	ExitPrice   float64
	ExitReason  string
}

// Exit reason codes.
const (
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonEndOfRun   = "END_OF_RUN"
)

// IsWin reports whether the trade closed with positive realized P&L.
func (t *SimTrade) IsWin() bool {
	return t.RealizedPnL.IsPositive()
}
