// Package marketdata provides historical bars to the simulation engine.
// The provider boundary tolerates missing data by omission: a symbol
// with no bar for a date simply has no entry, never a default value.
package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// Provider supplies ordered OHLCV bars for a symbol and date range.
type Provider interface {
	// GetBars returns business-day bars for symbol within [start, end],
	// ordered by date ASC.
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// StoreProvider serves bars from a storage.BarStore, filtering out
// anything that falls on a weekend.
type StoreProvider struct {
	store storage.BarStore
}

// NewStoreProvider creates a store-backed bar provider.
func NewStoreProvider(store storage.BarStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Compile-time interface check.
var _ Provider = (*StoreProvider)(nil)

// GetBars returns business-day bars for symbol within [start, end].
func (p *StoreProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := p.store.GetByDateRange(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, b := range rows {
		if !domain.IsBusinessDay(b.Date) {
			continue
		}
		bars = append(bars, *b)
	}
	return bars, nil
}

// LoadAll fetches bars for every symbol concurrently (independent I/O)
// and merges the results deterministically: the returned map is keyed
// by symbol and SortedSymbols gives the canonical iteration order.
// A fetch failure is recoverable: the failing symbol is omitted from
// the result and reported in the second return value so the caller can
// log it. The run aborts only when no symbol yields usable bars, which
// the caller detects from an empty result.
func LoadAll(ctx context.Context, provider Provider, symbols []string, start, end time.Time) (map[string][]domain.Bar, map[string]error) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	result := make(map[string][]domain.Bar, len(symbols))
	failed := make(map[string]error)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			bars, err := provider.GetBars(ctx, symbol, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[symbol] = err
				return
			}
			result[symbol] = bars
		}(symbol)
	}
	wg.Wait()

	return result, failed
}

// SortedSymbols returns the map keys in ascending order. Bar
// processing iterates symbols in this order so runs stay reproducible.
func SortedSymbols(bars map[string][]domain.Bar) []string {
	symbols := make([]string, 0, len(bars))
	for s := range bars {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
