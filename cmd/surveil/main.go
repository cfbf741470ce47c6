// Package main runs a one-shot compliance scan over stored order
// history: the four market-abuse detectors plus the day-trade status.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"strategy-lab/internal/audit"
	"strategy-lab/internal/compliance/daytrade"
	"strategy-lab/internal/compliance/surveil"
	"strategy-lab/internal/config"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

func main() {
	config.LoadDotenv()
	env := config.FromEnv()

	strategyID := flag.String("strategy-id", "", "Strategy to scan (required)")
	windowHours := flag.Int("window-hours", 24, "Scan window ending now, in hours")
	accountValue := flag.String("account-value", "0", "Account value for day-trade eligibility")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	persistAlerts := flag.Bool("persist", false, "Persist forwarded alerts to storage")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[surveil] ", log.LstdFlags)

	if *strategyID == "" {
		logger.Fatal("--strategy-id is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	account, err := decimal.NewFromString(*accountValue)
	if err != nil {
		logger.Fatalf("--account-value must be a decimal: %v", err)
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("postgres migrations: %v", err)
	}

	orders := pgstore.NewOrderStore(pool)

	var sink audit.Sink = audit.NewLogSink(logger)
	if *persistAlerts {
		sink = audit.NewStoreSink(pgstore.NewAlertStore(pool), pgstore.NewDayTradeStore(pool), logger)
	}

	scanner := surveil.NewScanner(surveil.ScannerOptions{
		Orders: orders,
		Sink:   sink,
		Logger: logger,
	})
	tracker := daytrade.NewTracker(daytrade.TrackerOptions{
		Orders: orders,
		Sink:   sink,
		Logger: logger,
	})

	end := time.Now().UTC()
	start := end.Add(-time.Duration(*windowHours) * time.Hour)

	report, err := scanner.Scan(ctx, *strategyID, start, end)
	if err != nil {
		logger.Fatalf("scan failed: %v", err)
	}

	status, err := tracker.GetStatus(ctx, *strategyID, account)
	if err != nil {
		logger.Fatalf("day-trade status failed: %v", err)
	}

	if *outputJSON {
		out := struct {
			Report   *surveil.Report `json:"report"`
			DayTrade daytrade.Status `json:"day_trade_status"`
		}{report, status}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	printReport(report, status)
}

func printReport(r *surveil.Report, status daytrade.Status) {
	fmt.Println()
	fmt.Println("=== Surveillance Scan ===")
	fmt.Printf("Strategy:     %s\n", r.StrategyID)
	fmt.Printf("Window:       %s .. %s\n",
		r.WindowStart.Format(time.RFC3339), r.WindowEnd.Format(time.RFC3339))
	fmt.Printf("Orders read:  %d\n", r.OrdersRead)
	fmt.Printf("Alerts:       %d (%d auto-reported)\n", len(r.Alerts), r.AutoReported)
	fmt.Println()

	if len(r.Alerts) > 0 {
		fmt.Println("Alerts by type:")
		for typ, count := range r.CountByType {
			fmt.Printf("  %-20s %d\n", typ, count)
		}
		fmt.Println()
		for _, a := range r.Alerts {
			fmt.Printf("  [%s] %s: %s\n", a.Severity, a.Type, a.Description)
		}
		fmt.Println()
	}

	fmt.Println("Day-trade status:")
	fmt.Printf("  Window:        %s .. %s\n",
		status.WindowStart.Format("2006-01-02"), status.WindowEnd.Format("2006-01-02"))
	fmt.Printf("  Count:         %d\n", status.DayTradeCount)
	fmt.Printf("  Pattern flag:  %v\n", status.IsDayTrader)
	fmt.Printf("  Eligible:      %v\n", status.Eligible)
}
