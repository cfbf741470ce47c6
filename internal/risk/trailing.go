package risk

// entryStopFloorPct anchors a long stop at 98% of entry so a fresh
// position never starts with a looser stop than 2% below entry.
const entryStopFloorPct = 0.98

// UpdateTrailingStopLong ratchets a long position's stop upward:
// max(currentPrice - ATR*mult, existingStop, entryPrice*0.98).
// A stop is never loosened.
func UpdateTrailingStopLong(currentPrice, atr, mult, existingStop, entryPrice float64) float64 {
	candidate := currentPrice - atr*mult
	stop := existingStop
	if candidate > stop {
		stop = candidate
	}
	if floor := entryPrice * entryStopFloorPct; floor > stop {
		stop = floor
	}
	return stop
}

// UpdateTrailingStopShort ratchets a short position's stop downward:
// min(currentPrice + ATR*mult, existingStop, entryPrice*1.02).
// A stop is never loosened.
func UpdateTrailingStopShort(currentPrice, atr, mult, existingStop, entryPrice float64) float64 {
	candidate := currentPrice + atr*mult
	stop := existingStop
	if existingStop == 0 || candidate < stop {
		stop = candidate
	}
	if ceil := entryPrice * (2 - entryStopFloorPct); ceil < stop {
		stop = ceil
	}
	return stop
}
