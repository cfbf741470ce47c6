package risk

import "sort"

// HistoricalVaR computes value-at-risk from a return sample at the
// given confidence level (e.g. 0.95). The sample is sorted ascending
// and VaR is the return at percentile (1 - confidence). An empty
// sample yields 0.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(float64(n) * (1 - confidence))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
