// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationRuns     *prometheus.CounterVec
	SimulationDuration prometheus.Histogram
	BarsProcessed      prometheus.Counter
	TradesSimulated    prometheus.Counter
	FillsRejected      prometheus.Counter

	// Risk metrics
	RiskChecksFailed   *prometheus.CounterVec
	CircuitBreakerHits prometheus.Counter

	// Compliance metrics
	SurveillanceAlerts *prometheus.CounterVec
	DayTradesDetected  prometheus.Counter
	DayTradesRejected  prometheus.Counter

	// Live trading metrics
	CyclesExecuted prometheus.Counter
	CycleErrors    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with a new registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		SimulationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "strategylab_simulation_runs_total",
			Help: "Total simulation runs by outcome (completed, failed).",
		}, []string{"outcome"}),
		SimulationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "strategylab_simulation_duration_seconds",
			Help:    "Wall-clock duration of simulation runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BarsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_bars_processed_total",
			Help: "Total price bars processed by the simulation engine.",
		}),
		TradesSimulated: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_trades_simulated_total",
			Help: "Total round-trip trades recorded by simulations.",
		}),
		FillsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_fills_rejected_total",
			Help: "Orders that did not execute (limit not met, zero quantity).",
		}),

		RiskChecksFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "strategylab_risk_checks_failed_total",
			Help: "Failed pre-trade risk checks by check name.",
		}, []string{"check"}),
		CircuitBreakerHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_circuit_breaker_hits_total",
			Help: "Times the daily loss circuit breaker halted trading.",
		}),

		SurveillanceAlerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "strategylab_surveillance_alerts_total",
			Help: "Surveillance alerts by type and severity.",
		}, []string{"type", "severity"}),
		DayTradesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_day_trades_detected_total",
			Help: "Same-day round trips detected in order history.",
		}),
		DayTradesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_day_trades_rejected_total",
			Help: "Day trades rejected by the PDT validator.",
		}),

		CyclesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_trading_cycles_total",
			Help: "Live trading cycles executed by the scheduler.",
		}),
		CycleErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "strategylab_trading_cycle_errors_total",
			Help: "Live trading cycles that returned an error.",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strategylab_db_query_duration_seconds",
			Help:    "Duration of storage queries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"store", "op"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "strategylab_db_query_errors_total",
			Help: "Storage query errors.",
		}, []string{"store", "op"}),
	}

	return m, registry
}

// Handler returns an HTTP handler serving the registry in Prometheus
// exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
