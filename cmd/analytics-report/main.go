// Command analytics-report runs one batch analytics pass: load the record
// snapshot from MySQL, compute every result table, and export them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ecomcli/internal/config"
	"ecomcli/internal/exporter"
	"ecomcli/internal/infrastructure"
	"ecomcli/internal/pipeline"
	"ecomcli/internal/store"
)

func main() {
	dsn := flag.String("dsn", "", "database DSN (overrides configuration)")
	outputDir := flag.String("out", "", "output directory for result tables (overrides configuration)")
	noWorkbook := flag.Bool("no-workbook", false, "skip the xlsx workbook output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *noWorkbook {
		cfg.Output.Workbook = false
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("Analytics run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	providers, err := infrastructure.InitializeTracing(ctx, logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	snap, err := store.LoadMySQL(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	runner, err := pipeline.New(cfg.Analytics, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	result, err := runner.Run(ctx, snap)
	if err != nil {
		return err
	}

	exp := exporter.New(cfg.Output, logger)
	if err := exp.Export(ctx, result); err != nil {
		return err
	}

	printSummary(result, cfg.Output.Dir)
	return nil
}

// printSummary writes the run summary to stdout for the operator; the
// structured log carries the same numbers for machines.
func printSummary(result *pipeline.Result, dir string) {
	p := message.NewPrinter(language.English)

	p.Printf("Analytics run %s completed in %v\n",
		result.RunID, result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond))
	p.Printf("  Revenue:        %.2f over %d months\n",
		result.Revenue.TotalRevenue, len(result.Revenue.Months))
	p.Printf("  Cohorts:        %d\n", len(result.Cohort.Matrix))
	p.Printf("  Customers:      %d across %d segments\n",
		len(result.RFM.Customers), len(result.RFM.SegmentCounts))
	p.Printf("  Sellers:        %d tiered, %d below sample\n",
		len(result.Sellers.Tiered), len(result.Sellers.BelowSample))
	p.Printf("  Output:         %s\n", dir)
}
