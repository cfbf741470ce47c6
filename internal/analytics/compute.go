// Package analytics computes risk/return statistics from equity curves
// and trade lists. Every function is pure and resolves degenerate
// inputs (zero stddev, zero trades, zero gross loss) to defined
// sentinels rather than NaN.
package analytics

import (
	"math"

	"strategy-lab/internal/domain"
)

// tradingDaysPerYear is the annualization base for daily returns.
const tradingDaysPerYear = 252

// DailyReturns computes per-bar fractional returns from an equity curve.
// A curve with fewer than two points yields an empty slice.
func DailyReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// SharpeRatio annualizes mean/stddev of daily returns by sqrt(252).
// Returns 0 when the sample standard deviation is 0, keeping the
// metric total-orderable.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)
	if stddev == 0 {
		return 0
	}
	return mean / stddev * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown tracks the running equity peak left-to-right and returns
// the largest (peak - value) / peak encountered, as a value in [0,1].
func MaxDrawdown(curve []domain.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0].Equity
	maxDrawdown := 0.0

	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - p.Equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// WinRate returns the fraction of trades with positive realized P&L,
// 0 when there are no trades.
func WinRate(trades []*domain.SimTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// ProfitFactor returns gross profit / gross loss. When gross loss is 0
// and gross profit > 0 the factor is unbounded and reported as +Inf;
// when both are 0 it is 0.
func ProfitFactor(trades []*domain.SimTrade) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, t := range trades {
		pnl := t.RealizedPnL.InexactFloat64()
		if pnl > 0 {
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
	}

	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

// IsUnbounded reports whether a profit factor carries the unbounded
// sentinel.
func IsUnbounded(profitFactor float64) bool {
	return math.IsInf(profitFactor, 1)
}

// MonthlyReturns groups equity points by calendar month and returns the
// percentage change from the first to the last observed value in each
// month. The curve must be date-ordered; output preserves month order.
func MonthlyReturns(curve []domain.EquityPoint) []domain.MonthlyReturn {
	if len(curve) == 0 {
		return nil
	}

	type span struct {
		first float64
		last  float64
	}

	var months []string
	spans := make(map[string]*span)

	for _, p := range curve {
		key := p.Date.UTC().Format("2006-01")
		s, ok := spans[key]
		if !ok {
			s = &span{first: p.Equity}
			spans[key] = s
			months = append(months, key)
		}
		s.last = p.Equity
	}

	out := make([]domain.MonthlyReturn, 0, len(months))
	for _, m := range months {
		s := spans[m]
		ret := 0.0
		if s.first != 0 {
			ret = (s.last - s.first) / s.first
		}
		out = append(out, domain.MonthlyReturn{Month: m, Return: ret})
	}
	return out
}

// LongestWinStreak scans the trade list once and returns the longest
// run of winning trades.
func LongestWinStreak(trades []*domain.SimTrade) int {
	return longestStreak(trades, true)
}

// LongestLossStreak scans the trade list once and returns the longest
// run of non-winning trades.
func LongestLossStreak(trades []*domain.SimTrade) int {
	return longestStreak(trades, false)
}

func longestStreak(trades []*domain.SimTrade, wins bool) int {
	maxStreak := 0
	current := 0
	for _, t := range trades {
		if t.IsWin() == wins {
			current++
			if current > maxStreak {
				maxStreak = current
			}
		} else {
			current = 0
		}
	}
	return maxStreak
}

// computeMean calculates the arithmetic mean of a sample.
func computeMean(sample []float64) float64 {
	if len(sample) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range sample {
		sum += v
	}
	return sum / float64(len(sample))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(sample []float64, mean float64) float64 {
	n := len(sample)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range sample {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
