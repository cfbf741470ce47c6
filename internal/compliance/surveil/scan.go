package surveil

import (
	"context"
	"fmt"
	"log"
	"time"

	"strategy-lab/internal/audit"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// Report aggregates one surveillance scan.
type Report struct {
	StrategyID   string
	WindowStart  time.Time
	WindowEnd    time.Time
	OrdersRead   int
	Alerts       []*domain.SurveillanceAlert
	CountByType  map[domain.AlertType]int
	CountBySev   map[domain.AlertSeverity]int
	AutoReported int
}

// Scanner runs all four detectors over persisted order history and
// auto-forwards high and critical alerts to the audit sink.
type Scanner struct {
	orders  storage.OrderStore
	sink    audit.Sink
	cfg     Config
	logger  *log.Logger
	metrics *observability.Metrics
}

// ScannerOptions configures a Scanner. Sink, Logger, and Metrics are
// optional; a zero Config falls back to DefaultConfig.
type ScannerOptions struct {
	Orders  storage.OrderStore
	Sink    audit.Sink
	Config  Config
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewScanner creates a surveillance scanner.
func NewScanner(opts ScannerOptions) *Scanner {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig
	}
	sink := opts.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Scanner{
		orders:  opts.Orders,
		sink:    sink,
		cfg:     cfg,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Scan loads the strategy's orders in [start, end] and runs every
// detector over them. Detectors are pure; only the audit forwarding
// writes.
func (s *Scanner) Scan(ctx context.Context, strategyID string, start, end time.Time) (*Report, error) {
	orders, err := s.orders.GetByTimeRange(ctx, strategyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	report := &Report{
		StrategyID:  strategyID,
		WindowStart: start,
		WindowEnd:   end,
		OrdersRead:  len(orders),
		CountByType: make(map[domain.AlertType]int),
		CountBySev:  make(map[domain.AlertSeverity]int),
	}

	report.Alerts = append(report.Alerts, DetectWashTrading(strategyID, orders, s.cfg)...)
	report.Alerts = append(report.Alerts, DetectLayering(strategyID, orders, s.cfg)...)
	report.Alerts = append(report.Alerts, DetectVelocity(strategyID, orders, s.cfg)...)
	report.Alerts = append(report.Alerts, DetectSpoofing(strategyID, orders, s.cfg)...)

	for _, a := range report.Alerts {
		report.CountByType[a.Type]++
		report.CountBySev[a.Severity]++

		if s.metrics != nil {
			s.metrics.SurveillanceAlerts.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
		}
		if !a.Severity.AutoReport() {
			continue
		}
		if err := s.sink.RecordAlert(ctx, a); err != nil {
			return nil, fmt.Errorf("forward alert %s: %w", a.AlertID, err)
		}
		report.AutoReported++
	}

	if s.logger != nil {
		s.logger.Printf("scan strategy=%s orders=%d alerts=%d forwarded=%d",
			strategyID, report.OrdersRead, len(report.Alerts), report.AutoReported)
	}
	return report, nil
}
