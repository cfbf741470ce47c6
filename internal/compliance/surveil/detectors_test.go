package surveil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"strategy-lab/internal/audit"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage/memory"
)

var base = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func filledOrder(id, symbol string, side domain.OrderSide, qty int64, price float64, at time.Time) *domain.Order {
	return &domain.Order{
		OrderID: id, StrategyID: "strat-1", Symbol: symbol,
		Side: side, Type: domain.TypeMarket, Quantity: qty, Price: price,
		Status: domain.StatusFilled, CreatedAt: at, FilledAt: &at,
	}
}

func cancelledOrder(id, symbol string, side domain.OrderSide, qty int64, price float64, createdAt, cancelledAt time.Time) *domain.Order {
	return &domain.Order{
		OrderID: id, StrategyID: "strat-1", Symbol: symbol,
		Side: side, Type: domain.TypeLimit, Quantity: qty, Price: price,
		Status: domain.StatusCancelled, CreatedAt: createdAt, CancelledAt: &cancelledAt,
	}
}

func TestDetectWashTrading_Scenario(t *testing.T) {
	// Buy and sell 50 shares of "Y" 10 minutes apart at $10.00/$10.05:
	// exactly one high-severity wash_trading alert.
	orders := []*domain.Order{
		filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
		filledOrder("o2", "Y", domain.SideSell, 50, 10.05, base.Add(10*time.Minute)),
	}

	alerts := DetectWashTrading("strat-1", orders, DefaultConfig)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Type != domain.AlertWashTrading {
		t.Errorf("expected wash_trading, got %s", a.Type)
	}
	if a.Severity != domain.SeverityHigh {
		t.Errorf("expected high severity, got %s", a.Severity)
	}
	if len(a.OrderIDs) != 2 {
		t.Errorf("alert must reference both legs, got %v", a.OrderIDs)
	}
	if a.AlertID == "" {
		t.Error("alert id must be set")
	}
}

func TestDetectWashTrading_Negatives(t *testing.T) {
	cases := []struct {
		name   string
		orders []*domain.Order
	}{
		{
			name: "quantity mismatch",
			orders: []*domain.Order{
				filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
				filledOrder("o2", "Y", domain.SideSell, 60, 10.00, base.Add(10*time.Minute)),
			},
		},
		{
			name: "price diff too wide",
			orders: []*domain.Order{
				filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
				filledOrder("o2", "Y", domain.SideSell, 50, 10.25, base.Add(10*time.Minute)),
			},
		},
		{
			name: "gap of one hour",
			orders: []*domain.Order{
				filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
				filledOrder("o2", "Y", domain.SideSell, 50, 10.00, base.Add(time.Hour)),
			},
		},
		{
			name: "different symbols",
			orders: []*domain.Order{
				filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
				filledOrder("o2", "Z", domain.SideSell, 50, 10.00, base.Add(10*time.Minute)),
			},
		},
		{
			name: "same side",
			orders: []*domain.Order{
				filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
				filledOrder("o2", "Y", domain.SideBuy, 50, 10.00, base.Add(10*time.Minute)),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if alerts := DetectWashTrading("strat-1", tc.orders, DefaultConfig); len(alerts) != 0 {
				t.Errorf("expected no alerts, got %d", len(alerts))
			}
		})
	}
}

func TestDetectLayering(t *testing.T) {
	// 8 cancels and 2 fills inside 5 minutes: 80% cancel rate.
	var orders []*domain.Order
	for i := 0; i < 8; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Second)
		orders = append(orders, cancelledOrder(fmt.Sprintf("c%d", i), "Y", domain.SideBuy, 100, 10, at, at.Add(5*time.Second)))
	}
	orders = append(orders,
		filledOrder("f1", "Y", domain.SideSell, 10, 10, base.Add(90*time.Second)),
		filledOrder("f2", "Y", domain.SideSell, 10, 10, base.Add(100*time.Second)),
	)

	alerts := DetectLayering("strat-1", orders, DefaultConfig)
	if len(alerts) != 1 {
		t.Fatalf("expected one layering alert, got %d", len(alerts))
	}
	if alerts[0].Severity != domain.SeverityMedium {
		t.Errorf("expected medium severity, got %s", alerts[0].Severity)
	}
}

func TestDetectLayering_SeparateBurstsSeparateAlerts(t *testing.T) {
	// Two >70%-cancel bursts two hours apart: one alert each, not one
	// for the whole window.
	mkBurst := func(prefix string, at time.Time) []*domain.Order {
		var orders []*domain.Order
		for i := 0; i < 8; i++ {
			created := at.Add(time.Duration(i) * 10 * time.Second)
			orders = append(orders, cancelledOrder(fmt.Sprintf("%s-c%d", prefix, i), "Y", domain.SideBuy, 100, 10, created, created.Add(5*time.Second)))
		}
		return append(orders,
			filledOrder(prefix+"-f1", "Y", domain.SideSell, 10, 10, at.Add(90*time.Second)),
			filledOrder(prefix+"-f2", "Y", domain.SideSell, 10, 10, at.Add(100*time.Second)),
		)
	}
	orders := append(mkBurst("a", base), mkBurst("b", base.Add(2*time.Hour))...)

	alerts := DetectLayering("strat-1", orders, DefaultConfig)
	if len(alerts) != 2 {
		t.Fatalf("expected one alert per burst, got %d", len(alerts))
	}
	if !alerts[1].Timestamp.After(alerts[0].Timestamp) {
		t.Error("second alert must anchor on the later burst")
	}
}

func TestDetectLayering_NoFillNoAlert(t *testing.T) {
	// All cancels, zero fills: high cancel rate alone does not trigger.
	var orders []*domain.Order
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Second)
		orders = append(orders, cancelledOrder(fmt.Sprintf("c%d", i), "Y", domain.SideBuy, 100, 10, at, at.Add(5*time.Second)))
	}

	if alerts := DetectLayering("strat-1", orders, DefaultConfig); len(alerts) != 0 {
		t.Errorf("expected no alerts without a fill, got %d", len(alerts))
	}
}

func TestDetectVelocity(t *testing.T) {
	// 51 fills inside one minute trips the detector; 50 does not.
	mkFills := func(n int) []*domain.Order {
		var orders []*domain.Order
		for i := 0; i < n; i++ {
			at := base.Add(time.Duration(i) * time.Second)
			orders = append(orders, filledOrder(fmt.Sprintf("f%03d", i), "Y", domain.SideBuy, 1, 10, at))
		}
		return orders
	}

	if alerts := DetectVelocity("strat-1", mkFills(50), DefaultConfig); len(alerts) != 0 {
		t.Errorf("50 fills must not trigger, got %d alerts", len(alerts))
	}
	alerts := DetectVelocity("strat-1", mkFills(51), DefaultConfig)
	if len(alerts) != 1 {
		t.Fatalf("51 fills must trigger exactly once, got %d", len(alerts))
	}
	if alerts[0].Type != domain.AlertExcessiveVelocity || alerts[0].Severity != domain.SeverityMedium {
		t.Errorf("unexpected alert: type=%s severity=%s", alerts[0].Type, alerts[0].Severity)
	}
}

func TestDetectVelocity_SeparateBurstsSeparateAlerts(t *testing.T) {
	// Two 51-fill bursts two hours apart: the counter restarts after
	// the first flagged window, so each burst gets its own alert.
	mkBurst := func(prefix string, at time.Time) []*domain.Order {
		var orders []*domain.Order
		for i := 0; i < 51; i++ {
			orders = append(orders, filledOrder(fmt.Sprintf("%s-f%03d", prefix, i), "Y", domain.SideBuy, 1, 10, at.Add(time.Duration(i)*time.Second)))
		}
		return orders
	}
	orders := append(mkBurst("a", base), mkBurst("b", base.Add(2*time.Hour))...)

	alerts := DetectVelocity("strat-1", orders, DefaultConfig)
	if len(alerts) != 2 {
		t.Fatalf("expected one alert per burst, got %d", len(alerts))
	}
	if alerts[0].AlertID == alerts[1].AlertID {
		t.Error("distinct bursts must produce distinct alert ids")
	}
}

func TestDetectSpoofing(t *testing.T) {
	// A cancelled 1000-share buy followed 30s later by a filled
	// 100-share sell: 10x the fill size, flagged high.
	orders := []*domain.Order{
		cancelledOrder("c1", "Y", domain.SideBuy, 1000, 10, base, base.Add(time.Minute)),
		filledOrder("f1", "Y", domain.SideSell, 100, 10, base.Add(90*time.Second)),
	}

	alerts := DetectSpoofing("strat-1", orders, DefaultConfig)
	if len(alerts) != 1 {
		t.Fatalf("expected one spoofing alert, got %d", len(alerts))
	}
	if alerts[0].Severity != domain.SeverityHigh {
		t.Errorf("expected high severity, got %s", alerts[0].Severity)
	}
}

func TestDetectSpoofing_Negatives(t *testing.T) {
	cases := []struct {
		name   string
		orders []*domain.Order
	}{
		{
			name: "fill too far after cancel",
			orders: []*domain.Order{
				cancelledOrder("c1", "Y", domain.SideBuy, 1000, 10, base, base.Add(time.Minute)),
				filledOrder("f1", "Y", domain.SideSell, 100, 10, base.Add(4*time.Minute)),
			},
		},
		{
			name: "cancel under 2x fill size",
			orders: []*domain.Order{
				cancelledOrder("c1", "Y", domain.SideBuy, 150, 10, base, base.Add(time.Minute)),
				filledOrder("f1", "Y", domain.SideSell, 100, 10, base.Add(90*time.Second)),
			},
		},
		{
			name: "same side fill",
			orders: []*domain.Order{
				cancelledOrder("c1", "Y", domain.SideBuy, 1000, 10, base, base.Add(time.Minute)),
				filledOrder("f1", "Y", domain.SideBuy, 100, 10, base.Add(90*time.Second)),
			},
		},
		{
			name: "fill precedes cancel",
			orders: []*domain.Order{
				filledOrder("f1", "Y", domain.SideSell, 100, 10, base),
				cancelledOrder("c1", "Y", domain.SideBuy, 1000, 10, base.Add(30*time.Second), base.Add(time.Minute)),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if alerts := DetectSpoofing("strat-1", tc.orders, DefaultConfig); len(alerts) != 0 {
				t.Errorf("expected no alerts, got %d", len(alerts))
			}
		})
	}
}

// capturingSink records forwarded alerts.
type capturingSink struct {
	audit.NopSink
	alerts []*domain.SurveillanceAlert
}

func (s *capturingSink) RecordAlert(_ context.Context, a *domain.SurveillanceAlert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func TestScan_AggregatesAndForwards(t *testing.T) {
	store := memory.NewOrderStore()
	ctx := context.Background()

	// One wash pair (high, forwarded) plus a layering burst (medium,
	// held back).
	seed := []*domain.Order{
		filledOrder("w1", "Y", domain.SideBuy, 50, 10.00, base),
		filledOrder("w2", "Y", domain.SideSell, 50, 10.05, base.Add(10*time.Minute)),
	}
	for i := 0; i < 8; i++ {
		at := base.Add(time.Hour + time.Duration(i)*10*time.Second)
		seed = append(seed, cancelledOrder(fmt.Sprintf("l%d", i), "Z", domain.SideBuy, 100, 20, at, at.Add(5*time.Second)))
	}
	// Fills share the cancels' side so only the layering detector sees
	// this burst.
	seed = append(seed,
		filledOrder("l8", "Z", domain.SideBuy, 10, 20, base.Add(time.Hour+90*time.Second)),
		filledOrder("l9", "Z", domain.SideBuy, 10, 20, base.Add(time.Hour+100*time.Second)),
	)
	for _, o := range seed {
		if err := store.Insert(ctx, o); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sink := &capturingSink{}
	scanner := NewScanner(ScannerOptions{Orders: store, Sink: sink})

	report, err := scanner.Scan(ctx, "strat-1", base.Add(-time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if report.CountByType[domain.AlertWashTrading] != 1 {
		t.Errorf("expected 1 wash alert, got %d", report.CountByType[domain.AlertWashTrading])
	}
	if report.CountByType[domain.AlertLayering] != 1 {
		t.Errorf("expected 1 layering alert, got %d", report.CountByType[domain.AlertLayering])
	}
	if report.CountBySev[domain.SeverityHigh] != 1 {
		t.Errorf("expected 1 high alert, got %d", report.CountBySev[domain.SeverityHigh])
	}

	// Only the high-severity wash alert crosses the reporting threshold.
	if report.AutoReported != 1 || len(sink.alerts) != 1 {
		t.Fatalf("expected 1 forwarded alert, got reported=%d sunk=%d", report.AutoReported, len(sink.alerts))
	}
	if sink.alerts[0].Type != domain.AlertWashTrading {
		t.Errorf("forwarded alert must be the wash alert, got %s", sink.alerts[0].Type)
	}
}

func TestScan_Deterministic(t *testing.T) {
	store := memory.NewOrderStore()
	ctx := context.Background()
	orders := []*domain.Order{
		filledOrder("o1", "Y", domain.SideBuy, 50, 10.00, base),
		filledOrder("o2", "Y", domain.SideSell, 50, 10.05, base.Add(10*time.Minute)),
	}
	for _, o := range orders {
		if err := store.Insert(ctx, o); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	scanner := NewScanner(ScannerOptions{Orders: store})
	first, err := scanner.Scan(ctx, "strat-1", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := scanner.Scan(ctx, "strat-1", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(first.Alerts) != len(second.Alerts) {
		t.Fatalf("alert counts differ: %d vs %d", len(first.Alerts), len(second.Alerts))
	}
	for i := range first.Alerts {
		if first.Alerts[i].AlertID != second.Alerts[i].AlertID {
			t.Errorf("alert %d id differs across identical scans", i)
		}
	}
}
