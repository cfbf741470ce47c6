// Package main runs the long-lived service: continuous bar ingestion
// from a websocket feed, scheduled compliance scans per strategy, and
// an HTTP surface for health, status, and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"strategy-lab/internal/audit"
	"strategy-lab/internal/compliance/surveil"
	"strategy-lab/internal/config"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
	"strategy-lab/internal/trading"
)

// Server holds all components of the service.
type Server struct {
	feedURL    string
	symbols    []string
	strategies []string

	barStore  storage.BarStore
	scheduler *trading.Scheduler
	logger    *log.Logger

	mu          sync.Mutex
	feedStarted time.Time
	lastScanErr string
}

func main() {
	config.LoadDotenv()
	env := config.FromEnv()

	feedURL := flag.String("feed-url", env.FeedURL, "Websocket bar feed URL")
	symbols := flag.String("symbols", "", "Comma-separated symbols to ingest")
	strategies := flag.String("strategies", "", "Comma-separated strategy ids to scan")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	scanInterval := flag.Duration("scan-interval", env.CycleInterval, "Compliance scan interval")
	scanWindow := flag.Duration("scan-window", 24*time.Hour, "Order window each scan covers")
	metricsAddr := flag.String("metrics-addr", env.MetricsAddr, "HTTP address for health/metrics/status")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	strategyList := splitList(*strategies)
	symbolList := splitList(*symbols)
	if len(strategyList) == 0 {
		logger.Fatal("--strategies is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	metrics, registry := observability.NewMetrics()

	server, cleanup, err := newServer(ctx, serverOptions{
		feedURL:       *feedURL,
		symbols:       symbolList,
		strategies:    strategyList,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		useMemory:     *useMemory,
		scanInterval:  *scanInterval,
		scanWindow:    *scanWindow,
		metrics:       metrics,
		logger:        logger,
	})
	if err != nil {
		logger.Fatalf("setup failed: %v", err)
	}
	defer cleanup()

	go server.startHTTPServer(*metricsAddr, registry)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

type serverOptions struct {
	feedURL       string
	symbols       []string
	strategies    []string
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool
	scanInterval  time.Duration
	scanWindow    time.Duration
	metrics       *observability.Metrics
	logger        *log.Logger
}

// newServer wires stores, the audit sink, and the scan scheduler.
func newServer(ctx context.Context, opts serverOptions) (*Server, func(), error) {
	var (
		barStore   storage.BarStore      = memory.NewBarStore()
		orderStore storage.OrderStore    = memory.NewOrderStore()
		alertStore storage.AlertStore    = memory.NewAlertStore()
		dtStore    storage.DayTradeStore = memory.NewDayTradeStore()

		cleanup = func() {}
	)

	if !opts.useMemory {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pool = pool.WithMetrics(opts.metrics)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, opts.clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		conn = conn.WithMetrics(opts.metrics)

		barStore = chstore.NewBarStore(conn)
		orderStore = pgstore.NewOrderStore(pool)
		alertStore = pgstore.NewAlertStore(pool)
		dtStore = pgstore.NewDayTradeStore(pool)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	sink := audit.NewStoreSink(alertStore, dtStore, opts.logger)

	scanner := surveil.NewScanner(surveil.ScannerOptions{
		Orders:  orderStore,
		Sink:    sink,
		Logger:  opts.logger,
		Metrics: opts.metrics,
	})

	scheduler := trading.NewScheduler(trading.SchedulerOptions{
		Interval: opts.scanInterval,
		Logger:   opts.logger,
		Metrics:  opts.metrics,
	})

	server := &Server{
		feedURL:    opts.feedURL,
		symbols:    opts.symbols,
		strategies: opts.strategies,
		barStore:   barStore,
		scheduler:  scheduler,
		logger:     opts.logger,
	}

	for _, strategyID := range opts.strategies {
		strategyID := strategyID
		scheduler.Register(strategyID, func(cycleCtx context.Context) error {
			end := time.Now().UTC()
			_, err := scanner.Scan(cycleCtx, strategyID, end.Add(-opts.scanWindow), end)
			server.recordScanErr(err)
			return err
		})
	}

	return server, cleanup, nil
}

// Run starts ingestion and the scan scheduler, blocking until ctx is
// cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting server...")
	errCh := make(chan error, 2)

	if s.feedURL != "" && len(s.symbols) > 0 {
		go func() {
			if err := s.runFeed(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("feed: %w", err)
			}
		}()
	} else {
		s.logger.Println("Feed disabled (no --feed-url or --symbols)")
	}

	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeed consumes the bar feed, reconnecting with a fixed backoff
// when the connection drops.
func (s *Server) runFeed(ctx context.Context) error {
	const backoff = 5 * time.Second

	s.mu.Lock()
	s.feedStarted = time.Now()
	s.mu.Unlock()

	for {
		client := marketdata.NewFeedClient(s.feedURL, s.barStore, marketdata.DefaultFeedConfig(), s.logger)
		if err := client.Connect(ctx, s.symbols); err != nil {
			s.logger.Printf("feed connect failed, retrying in %v: %v", backoff, err)
		} else {
			s.logger.Printf("feed connected, %d symbols", len(s.symbols))
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Printf("feed dropped, reconnecting in %v: %v", backoff, err)
			}
		}
		client.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (s *Server) recordScanErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastScanErr = err.Error()
	} else {
		s.lastScanErr = ""
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler(registry))
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Strategies  []string  `json:"strategies"`
	Symbols     []string  `json:"symbols,omitempty"`
	FeedStarted time.Time `json:"feed_started,omitempty"`
	Uptime      string    `json:"uptime,omitempty"`
	LastScanErr string    `json:"last_scan_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:      "running",
		Strategies:  s.strategies,
		Symbols:     s.symbols,
		FeedStarted: s.feedStarted,
		LastScanErr: s.lastScanErr,
	}
	if !s.feedStarted.IsZero() {
		resp.Uptime = time.Since(s.feedStarted).String()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
