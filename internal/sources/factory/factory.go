// Package factory builds the source registry from configuration. It lives
// apart from package sources so the adapter subpackages can import their
// parent without a cycle.
package factory

import (
	"log/slog"

	"github.com/cardledger/price-data/internal/config"
	"github.com/cardledger/price-data/internal/resilience"
	"github.com/cardledger/price-data/internal/sources"
	"github.com/cardledger/price-data/internal/sources/cardtrader"
	"github.com/cardledger/price-data/internal/sources/mtgjson"
	"github.com/cardledger/price-data/internal/sources/scryfall"
)

// ExecutorConfig maps a source's configuration onto a resilience envelope.
func ExecutorConfig(sc config.SourceConfig) resilience.Config {
	return resilience.Config{
		RateLimit:        sc.RateLimit,
		RateWindow:       sc.RateWindow,
		MinInterval:      sc.MinInterval,
		FailureThreshold: sc.FailureThreshold,
		RecoveryTimeout:  sc.RecoveryTimeout,
		HalfOpenProbes:   sc.HalfOpenProbes,
		MaxRetries:       sc.MaxRetries,
		BackoffFactor:    sc.BackoffFactor,
		Timeout:          sc.Timeout,
	}
}

// BuildRegistry creates the enabled source adapters, each behind its own
// executor, registered in configuration order. The MTGJSON client is also
// returned separately because the bulk importer streams from it directly;
// it is nil when that source is disabled.
func BuildRegistry(cfg *config.Config, logger *slog.Logger) (*sources.Registry, *mtgjson.Client) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := sources.NewRegistry()

	if sc := cfg.Sources.Scryfall; sc.Enabled {
		exec := resilience.NewExecutor(scryfall.SourceName, ExecutorConfig(sc), logger)
		registry.Register(scryfall.New(sc.BaseURL, exec, scryfall.WithLogger(logger)))
	}

	if sc := cfg.Sources.CardTrader; sc.Enabled {
		exec := resilience.NewExecutor(cardtrader.SourceName, ExecutorConfig(sc), logger)
		registry.Register(cardtrader.New(sc.BaseURL, sc.Token, exec, cardtrader.WithLogger(logger)))
	}

	var dump *mtgjson.Client
	if sc := cfg.Sources.MTGJSON; sc.Enabled {
		exec := resilience.NewExecutor(mtgjson.SourceName, ExecutorConfig(sc), logger)
		dump = mtgjson.New(sc.BaseURL, cfg.BulkImport.CacheDir, cfg.BulkImport.MaxCacheAge, exec, mtgjson.WithLogger(logger))
		registry.Register(dump)
	}

	return registry, dump
}
