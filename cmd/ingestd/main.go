package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/cardledger/price-data/internal/bulkimport"
	"github.com/cardledger/price-data/internal/catalog"
	"github.com/cardledger/price-data/internal/config"
	"github.com/cardledger/price-data/internal/database"
	"github.com/cardledger/price-data/internal/ingest"
	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/sources"
	"github.com/cardledger/price-data/internal/sources/factory"
	"github.com/cardledger/price-data/internal/store"
	"github.com/cardledger/price-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestd.local.yaml", "path to config file")
	healthPort := flag.Int("health-port", 8080, "health endpoint port")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger.Info("starting ingestd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"sweep_cron", cfg.Ingest.SweepCron,
		"import_cron", cfg.BulkImport.Cron,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(pool, logger)

	// Card/marketplace catalog (initial load is blocking)
	cat := catalog.New(catalog.DefaultConfig(), st, logger)
	if err := cat.Start(ctx); err != nil {
		logger.Error("failed to start catalog", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		cat.Stop(stopCtx)
	}()

	// Source adapters
	registry, dump := factory.BuildRegistry(cfg, logger)
	logger.Info("sources configured", "count", len(registry.All()))

	orchCfg := ingest.DefaultConfig()
	orchCfg.SourceConcurrency = cfg.Ingest.SourceConcurrency
	if !cfg.Ingest.ConditionMultipliers {
		orchCfg.ConditionMultipliers = map[model.Condition]float64{}
	}
	orch := ingest.NewOrchestrator(orchCfg, registry, st, cat, logger)

	// Scheduled jobs
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Ingest.SweepCron, func() {
		orch.SweepAll(ctx, cat)
	})
	if err != nil {
		logger.Error("invalid sweep cron", "cron", cfg.Ingest.SweepCron, "error", err)
		os.Exit(1)
	}

	if dump != nil {
		importer := bulkimport.New(bulkimport.Config{
			BatchSize:        cfg.BulkImport.BatchSize,
			ProgressInterval: cfg.BulkImport.ProgressInterval,
		}, dump, cat, st, cat, logger)

		_, err = scheduler.AddFunc(cfg.BulkImport.Cron, func() {
			if _, err := importer.Run(ctx); err != nil {
				logger.Error("scheduled bulk import failed", "error", err)
			}
		})
		if err != nil {
			logger.Error("invalid import cron", "cron", cfg.BulkImport.Cron, "error", err)
			os.Exit(1)
		}
	}

	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *healthPort),
		Handler: createHealthHandler(pool, cat, registry),
	}
	go func() {
		logger.Info("starting health server", "port", *healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("ingestd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", *healthPort),
	)

	<-ctx.Done()

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("ingestd stopped")
}

// createHealthHandler reports database, catalog, and per-source breaker
// state.
func createHealthHandler(pool interface {
	Ping(ctx context.Context) error
}, cat *catalog.Catalog, registry *sources.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		cards := cat.TrackedCards()
		health.Components["catalog"] = map[string]any{
			"cards": len(cards),
		}
		if len(cards) == 0 {
			health.Status = "degraded"
		}

		srcs := make(map[string]string)
		for _, src := range registry.All() {
			state := "closed"
			if src.CircuitOpen() {
				state = "open"
				health.Status = "degraded"
			}
			srcs[src.Name()] = state
		}
		health.Components["sources"] = srcs

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
