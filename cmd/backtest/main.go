// Package main runs one simulation over stored historical bars and
// prints the performance summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/analytics"
	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/fill"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/sim"
	sigsrc "strategy-lab/internal/signal"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

func main() {
	config.LoadDotenv()
	env := config.FromEnv()

	// Parse flags (env vars as defaults)
	symbols := flag.String("symbols", "", "Comma-separated symbols to simulate (required)")
	strategyID := flag.String("strategy-id", "default", "Strategy identifier for the run")
	startDate := flag.String("start", "", "Start date, YYYY-MM-DD (required)")
	endDate := flag.String("end", "", "End date, YYYY-MM-DD (required)")
	capital := flag.String("capital", "100000", "Initial capital")
	commission := flag.String("commission", "1", "Flat commission per trade")
	takeProfitPct := flag.Float64("take-profit-pct", 0.10, "Take-profit threshold (fraction)")
	stopLossPct := flag.Float64("stop-loss-pct", 0.05, "Stop-loss threshold (fraction)")
	signalName := flag.String("signal", "momentum", "Signal source: momentum, buy-and-hold")
	momentumThreshold := flag.Float64("momentum-threshold", 0.02, "Momentum rise threshold")

	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	outputJSON := flag.Bool("json", false, "Output as JSON")
	persistResult := flag.Bool("persist", false, "Persist simulated trades to storage")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *symbols == "" {
		logger.Fatal("--symbols is required")
	}
	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		logger.Fatalf("--start must be YYYY-MM-DD: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		logger.Fatalf("--end must be YYYY-MM-DD: %v", err)
	}
	initialCapital, err := decimal.NewFromString(*capital)
	if err != nil {
		logger.Fatalf("--capital must be a decimal: %v", err)
	}
	commissionDec, err := decimal.NewFromString(*commission)
	if err != nil {
		logger.Fatalf("--commission must be a decimal: %v", err)
	}

	src := buildSignalSource(*signalName, *momentumThreshold)
	if src == nil {
		logger.Fatalf("Invalid signal source: %s. Must be momentum or buy-and-hold", *signalName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Printf("Received signal %v, shutting down...", s)
		cancel()
	}()

	// Create stores
	var barStore storage.BarStore = memory.NewBarStore()
	var tradeStore storage.SimTradeStore = memory.NewSimTradeStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required when not using --use-memory (sim trades)")
		}
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory (bars)")
		}

		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewSimTradeStore(pool)

		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
	}

	var persistStore storage.SimTradeStore
	if *persistResult {
		persistStore = tradeStore
	}

	runner := sim.NewRunner(sim.RunnerOptions{
		Provider:   marketdata.NewStoreProvider(barStore),
		Signals:    src,
		FillConfig: fill.DefaultConfig,
		TradeStore: persistStore,
		Logger:     logger,
	})

	cfg := domain.SimConfig{
		StrategyID:     *strategyID,
		Symbols:        splitSymbols(*symbols),
		StartDate:      start,
		EndDate:        end,
		InitialCapital: initialCapital,
		Commission:     commissionDec,
		ExitPolicy: domain.ExitPolicy{
			TakeProfitPct: *takeProfitPct,
			StopLossPct:   *stopLossPct,
		},
	}

	logger.Printf("Running simulation: symbols=%v start=%s end=%s signal=%s",
		cfg.Symbols, *startDate, *endDate, src.Name())

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}

	if *outputJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Fatalf("encode result: %v", err)
		}
		fmt.Println(string(output))
	} else {
		printResult(result)
	}
}

// buildSignalSource maps the CLI signal name to a source.
func buildSignalSource(name string, momentumThreshold float64) sigsrc.Source {
	switch strings.ToLower(name) {
	case "momentum":
		return sigsrc.NewMomentumSource(momentumThreshold)
	case "buy-and-hold":
		return &sigsrc.StaticSource{Signal: domain.TradeSignal{
			Action:     domain.SignalBuy,
			Confidence: 1,
			Reasoning:  "always buy",
		}}
	default:
		return nil
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, sym := range strings.Split(s, ",") {
		sym = strings.TrimSpace(sym)
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// printResult outputs a human-readable run summary.
func printResult(r *domain.SimResult) {
	fmt.Println()
	fmt.Println("=== Simulation Result ===")
	fmt.Printf("Run ID:          %s\n", r.RunID)
	fmt.Printf("Strategy:        %s\n", r.StrategyID)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Total Return:  %.2f%%\n", r.TotalReturn*100)
	fmt.Printf("  Sharpe Ratio:  %.3f\n", r.SharpeRatio)
	fmt.Printf("  Max Drawdown:  %.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  Win Rate:      %.2f%%\n", r.WinRate*100)
	fmt.Printf("  Profit Factor: %s\n", formatProfitFactor(r.ProfitFactor))
	fmt.Printf("  Total Trades:  %d\n", r.TotalTrades)
	fmt.Println()

	if len(r.MonthlyReturns) > 0 {
		fmt.Println("Monthly Returns:")
		for _, m := range r.MonthlyReturns {
			fmt.Printf("  %s  %+.2f%%\n", m.Month, m.Return*100)
		}
		fmt.Println()
	}

	if len(r.Trades) > 0 {
		fmt.Println("Trades:")
		for _, t := range r.Trades {
			fmt.Printf("  %s  %-6s %-4s qty=%-6d entry=%.2f exit=%.2f pnl=%s reason=%s\n",
				t.Date.Format("2006-01-02"), t.Symbol, t.Action, t.Quantity,
				t.EntryPrice, t.ExitPrice, t.RealizedPnL.StringFixed(2), t.ExitReason)
		}
	}
}

func formatProfitFactor(pf float64) string {
	if analytics.IsUnbounded(pf) {
		return "unbounded"
	}
	return fmt.Sprintf("%.3f", pf)
}
