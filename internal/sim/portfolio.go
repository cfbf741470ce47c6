package sim

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
)

// Portfolio is the mutable state of one simulation run: cash plus the
// open position set. It is owned exclusively by the Runner executing
// the run and must not be shared across concurrent runs.
type Portfolio struct {
	Cash      decimal.Decimal
	Positions map[string]*domain.OpenPosition

	// entryCommissions accumulates the entry-leg commission per symbol
	// so the closing leg can attribute total round-trip costs.
	entryCommissions map[string]decimal.Decimal
}

// NewPortfolio creates a fresh portfolio with the given starting cash.
func NewPortfolio(initialCash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:             initialCash,
		Positions:        make(map[string]*domain.OpenPosition),
		entryCommissions: make(map[string]decimal.Decimal),
	}
}

// Equity returns cash plus the marked value of every open position.
func (p *Portfolio) Equity() decimal.Decimal {
	equity := p.Cash
	for _, pos := range p.Positions {
		equity = equity.Add(positionValue(pos))
	}
	return equity
}

// OpenExposure returns the total marked notional of open positions.
func (p *Portfolio) OpenExposure() decimal.Decimal {
	exposure := decimal.Zero
	for _, pos := range p.Positions {
		exposure = exposure.Add(positionValue(pos))
	}
	return exposure
}

// OpenSymbols returns the symbols with open positions in sorted order.
func (p *Portfolio) OpenSymbols() []string {
	symbols := make([]string, 0, len(p.Positions))
	for s := range p.Positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// OpenBuy deducts cash and records a new position. The caller must
// have verified sufficient cash; cash never goes negative after a
// validated fill.
func (p *Portfolio) OpenBuy(symbol string, fill domain.FillResult, date time.Time) {
	cost := decimal.NewFromFloat(fill.FillPrice).
		Mul(decimal.NewFromInt(fill.FillQuantity)).
		Add(fill.Commission)
	p.Cash = p.Cash.Sub(cost)

	p.Positions[symbol] = &domain.OpenPosition{
		Symbol:     symbol,
		Quantity:   fill.FillQuantity,
		EntryPrice: fill.FillPrice,
		EntryDate:  date,
		MarkPrice:  fill.FillPrice,
	}
	p.entryCommissions[symbol] = fill.Commission
}

// CloseSell removes the position, credits cash with the sale proceeds,
// and returns the completed trade with realized P&L attributed across
// both legs.
func (p *Portfolio) CloseSell(symbol string, fill domain.FillResult, date time.Time, reason string) *domain.SimTrade {
	pos := p.Positions[symbol]
	if pos == nil {
		return nil
	}

	proceeds := decimal.NewFromFloat(fill.FillPrice).
		Mul(decimal.NewFromInt(pos.Quantity)).
		Sub(fill.Commission)
	p.Cash = p.Cash.Add(proceeds)

	entryCommission := p.entryCommissions[symbol]
	totalCommission := entryCommission.Add(fill.Commission)

	gross := decimal.NewFromFloat(fill.FillPrice - pos.EntryPrice).
		Mul(decimal.NewFromInt(pos.Quantity))
	realized := gross.Sub(totalCommission)

	trade := &domain.SimTrade{
		Date:        date,
		Symbol:      symbol,
		Action:      domain.ActionSell,
		Quantity:    pos.Quantity,
		Price:       fill.FillPrice,
		Commission:  totalCommission,
		RealizedPnL: realized,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   fill.FillPrice,
		ExitReason:  reason,
	}

	delete(p.Positions, symbol)
	delete(p.entryCommissions, symbol)
	return trade
}

// positionValue returns quantity * mark price as a decimal.
func positionValue(pos *domain.OpenPosition) decimal.Decimal {
	return decimal.NewFromFloat(pos.MarkPrice).Mul(decimal.NewFromInt(pos.Quantity))
}
