// Package surveil implements market-abuse surveillance: four stateless
// detectors over a time-windowed slice of order history. Detectors
// only ever read persisted orders, so scans are safe to run
// concurrently for different strategies and to repeat over the same
// window (alert ids are deterministic).
package surveil

import (
	"fmt"
	"math"
	"sort"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
)

// Config holds the detection thresholds. Zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// Wash trading: buy/sell pair on the same symbol with matching
	// quantity, price difference below WashMaxPriceDiffPct, and time
	// gap below WashMaxGap.
	WashMaxPriceDiffPct float64
	WashMaxGap          time.Duration

	// Layering: cancellation rate above LayeringCancelRate within a
	// LayeringWindow while at least one order also filled.
	LayeringCancelRate float64
	LayeringWindow     time.Duration

	// Velocity: more than VelocityMaxFills filled orders within
	// VelocityWindow.
	VelocityMaxFills int
	VelocityWindow   time.Duration

	// Spoofing: a cancelled order at least SpoofSizeRatio times the
	// size of an opposite-side fill that follows within SpoofMaxGap.
	SpoofSizeRatio float64
	SpoofMaxGap    time.Duration
}

// DefaultConfig carries the regulatory-review thresholds.
var DefaultConfig = Config{
	WashMaxPriceDiffPct: 0.01,
	WashMaxGap:          time.Hour,
	LayeringCancelRate:  0.70,
	LayeringWindow:      5 * time.Minute,
	VelocityMaxFills:    50,
	VelocityWindow:      time.Minute,
	SpoofSizeRatio:      2.0,
	SpoofMaxGap:         2 * time.Minute,
}

// DetectWashTrading flags buy/sell pairs on the same symbol with
// matching quantity, near-identical prices, and a short time gap.
// One alert per offending pair.
func DetectWashTrading(strategyID string, orders []*domain.Order, cfg Config) []*domain.SurveillanceAlert {
	filled := filterFilled(orders)

	var alerts []*domain.SurveillanceAlert
	for i, a := range filled {
		for _, b := range filled[i+1:] {
			if a.Symbol != b.Symbol || a.Side == b.Side || a.Quantity != b.Quantity {
				continue
			}
			if a.Price <= 0 {
				continue
			}
			gap := b.FilledAt.Sub(*a.FilledAt)
			if gap < 0 {
				gap = -gap
			}
			if gap >= cfg.WashMaxGap {
				continue
			}
			diff := math.Abs(b.Price-a.Price) / a.Price
			if diff >= cfg.WashMaxPriceDiffPct {
				continue
			}

			ids := []string{a.OrderID, b.OrderID}
			alerts = append(alerts, newAlert(
				strategyID, domain.AlertWashTrading, domain.SeverityHigh, *b.FilledAt, ids,
				fmt.Sprintf("offsetting %s trades of %d shares %.1f minutes apart (price diff %.2f%%)",
					a.Symbol, a.Quantity, gap.Minutes(), diff*100),
			))
		}
	}
	return alerts
}

// DetectLayering flags windows where the cancellation rate exceeds the
// threshold while at least one order also filled. Windows slide from
// each order's creation time; at most one alert per window start.
func DetectLayering(strategyID string, orders []*domain.Order, cfg Config) []*domain.SurveillanceAlert {
	sorted := sortByCreatedAt(orders)

	var alerts []*domain.SurveillanceAlert
	for i := 0; i < len(sorted); {
		anchor := sorted[i]
		windowEnd := anchor.CreatedAt.Add(cfg.LayeringWindow)

		var cancelled, filled int
		var ids []string
		for _, o := range sorted[i:] {
			if o.CreatedAt.After(windowEnd) {
				break
			}
			switch o.Status {
			case domain.StatusCancelled:
				cancelled++
				ids = append(ids, o.OrderID)
			case domain.StatusFilled:
				filled++
				ids = append(ids, o.OrderID)
			}
		}

		total := cancelled + filled
		if total == 0 || filled == 0 {
			i++
			continue
		}
		rate := float64(cancelled) / float64(total)
		if rate <= cfg.LayeringCancelRate {
			i++
			continue
		}

		alerts = append(alerts, newAlert(
			strategyID, domain.AlertLayering, domain.SeverityMedium, anchor.CreatedAt, ids,
			fmt.Sprintf("%.0f%% of %d orders cancelled within %.0f minutes with %d filled",
				rate*100, total, cfg.LayeringWindow.Minutes(), filled),
		))
		// One alert covers the whole burst. Resume past its window so a
		// later, separate burst gets its own alert without emitting a
		// near-duplicate per order inside this one.
		for i < len(sorted) && !sorted[i].CreatedAt.After(windowEnd) {
			i++
		}
	}
	return alerts
}

// DetectVelocity flags any rolling window containing more filled
// orders than the threshold.
func DetectVelocity(strategyID string, orders []*domain.Order, cfg Config) []*domain.SurveillanceAlert {
	fills := filterFilled(orders)

	var alerts []*domain.SurveillanceAlert
	lo := 0
	for hi := range fills {
		for fills[hi].FilledAt.Sub(*fills[lo].FilledAt) > cfg.VelocityWindow {
			lo++
		}
		count := hi - lo + 1
		if count <= cfg.VelocityMaxFills {
			continue
		}

		ids := make([]string, 0, count)
		for _, o := range fills[lo : hi+1] {
			ids = append(ids, o.OrderID)
		}
		alerts = append(alerts, newAlert(
			strategyID, domain.AlertExcessiveVelocity, domain.SeverityMedium, *fills[hi].FilledAt, ids,
			fmt.Sprintf("%d orders filled within %.0f seconds", count, cfg.VelocityWindow.Seconds()),
		))
		// Counting restarts after the flagged window so every later
		// fill in the same burst does not re-trigger, while a separate
		// burst of fresh fills still does.
		lo = hi + 1
	}
	return alerts
}

// DetectSpoofing flags a cancelled order that dwarfs an immediately
// following opposite-side fill.
func DetectSpoofing(strategyID string, orders []*domain.Order, cfg Config) []*domain.SurveillanceAlert {
	var alerts []*domain.SurveillanceAlert
	for _, c := range orders {
		if c.Status != domain.StatusCancelled || c.CancelledAt == nil {
			continue
		}
		for _, f := range orders {
			if f.Status != domain.StatusFilled || f.FilledAt == nil {
				continue
			}
			if f.Symbol != c.Symbol || f.Side != c.Side.Opposite() {
				continue
			}
			gap := f.FilledAt.Sub(*c.CancelledAt)
			if gap < 0 || gap >= cfg.SpoofMaxGap {
				continue
			}
			if f.Quantity <= 0 || float64(c.Quantity) < cfg.SpoofSizeRatio*float64(f.Quantity) {
				continue
			}

			ids := []string{c.OrderID, f.OrderID}
			alerts = append(alerts, newAlert(
				strategyID, domain.AlertSpoofing, domain.SeverityHigh, *f.FilledAt, ids,
				fmt.Sprintf("cancelled %s order of %d shares followed by opposite-side fill of %d within %.0f seconds",
					c.Symbol, c.Quantity, f.Quantity, gap.Seconds()),
			))
		}
	}
	return alerts
}

func newAlert(strategyID string, typ domain.AlertType, sev domain.AlertSeverity, ts time.Time, orderIDs []string, description string) *domain.SurveillanceAlert {
	return &domain.SurveillanceAlert{
		AlertID:     idhash.ComputeAlertID(string(typ), strategyID, ts.Unix(), orderIDs),
		StrategyID:  strategyID,
		Type:        typ,
		Severity:    sev,
		Description: description,
		Timestamp:   ts,
		OrderIDs:    orderIDs,
	}
}

// filterFilled returns the filled orders sorted by fill time, then
// order id for a stable tiebreak.
func filterFilled(orders []*domain.Order) []*domain.Order {
	var filled []*domain.Order
	for _, o := range orders {
		if o.Status == domain.StatusFilled && o.FilledAt != nil {
			filled = append(filled, o)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool {
		if !filled[i].FilledAt.Equal(*filled[j].FilledAt) {
			return filled[i].FilledAt.Before(*filled[j].FilledAt)
		}
		return filled[i].OrderID < filled[j].OrderID
	})
	return filled
}

func sortByCreatedAt(orders []*domain.Order) []*domain.Order {
	sorted := make([]*domain.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].OrderID < sorted[j].OrderID
	})
	return sorted
}
