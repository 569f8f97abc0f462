package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskibarqy/match-feature-store/internal/app"
	"github.com/riskibarqy/match-feature-store/internal/config"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/csvsource"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
)

func main() {
	file := flag.String("file", "data/matches.csv", "match CSV with a header row")
	recompute := flag.Bool("recompute", false, "rebuild the team statistics snapshot after importing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewConsole(cfg.LogLevel).Named("importcsv")
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *file, *recompute); err != nil {
		logger.Error("csv import failed", "file", *file, "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.Logger, file string, recompute bool) error {
	if cfg.DBDriver == config.DBDriverMemory {
		return fmt.Errorf("DB_DRIVER=%s would discard the import; use %s or %s", cfg.DBDriver, config.DBDriverSQLite, config.DBDriverPostgres)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close app", "error", err)
		}
	}()

	rows, err := csvsource.ReadFile(ctx, file)
	if err != nil {
		return err
	}

	result, err := a.CSVImport.Import(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Printf("imported %s: received=%d inserted=%d backfilled=%d unchanged=%d rejected=%d\n",
		file, result.Received, result.Inserted, result.Backfilled, result.Unchanged, result.Rejected)

	if !recompute {
		return nil
	}
	build, err := a.Features.Build(ctx)
	if err != nil {
		return err
	}
	if err := a.Snapshots.Write(ctx, build.Snapshot); err != nil {
		return fmt.Errorf("write team stats snapshot: %w", err)
	}
	fmt.Printf("recomputed features: rows=%d teams=%d\n", len(build.Rows), len(build.Snapshot.Teams))
	return nil
}
