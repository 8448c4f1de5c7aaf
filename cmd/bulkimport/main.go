// One-shot bulk dump import. Runs the same code path as ingestd's scheduled
// import and prints the run report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cardledger/price-data/internal/bulkimport"
	"github.com/cardledger/price-data/internal/catalog"
	"github.com/cardledger/price-data/internal/config"
	"github.com/cardledger/price-data/internal/database"
	"github.com/cardledger/price-data/internal/sources/factory"
	"github.com/cardledger/price-data/internal/store"
	"github.com/cardledger/price-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestd.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	godotenv.Load()

	logger.Info("bulk import", "version", version.Version, "config", *configPath)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupted, stopping")
		cancel()
	}()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)

	cat := catalog.New(catalog.DefaultConfig(), st, logger)
	if err := cat.Refresh(ctx); err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	_, dump := factory.BuildRegistry(cfg, logger)
	if dump == nil {
		logger.Error("bulk dump source is disabled in config")
		os.Exit(1)
	}

	importer := bulkimport.New(bulkimport.Config{
		BatchSize:        cfg.BulkImport.BatchSize,
		ProgressInterval: cfg.BulkImport.ProgressInterval,
	}, dump, cat, st, cat, logger)

	report, err := importer.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(report)

	if err != nil {
		logger.Error("bulk import failed", "error", err)
		os.Exit(1)
	}
}
