package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultScryfallURL   = "https://api.scryfall.com"
	DefaultCardTraderURL = "https://api.cardtrader.com/api/v2"
	DefaultMTGJSONURL    = "https://mtgjson.com/api/v5"

	DefaultSourceTimeout    = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultBackoffFactor    = 2.0
	DefaultRateWindow       = 10 * time.Second
	DefaultRateLimit        = 100
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultHalfOpenProbes   = 1

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultSweepCron         = "0 */6 * * *" // every 6 hours
	DefaultSourceConcurrency = 5

	DefaultImportCron       = "30 4 * * 1" // Mondays 04:30 UTC, after the weekly publish
	DefaultCacheDir         = ".cache/pricedata"
	DefaultMaxCacheAge      = 7 * 24 * time.Hour
	DefaultBatchSize        = 2000
	DefaultProgressInterval = 1000

	DefaultChartCurrency = "USD"
)

func (c *Config) applyDefaults() {
	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Source defaults
	applySourceDefaults(&c.Sources.Scryfall, DefaultScryfallURL)
	applySourceDefaults(&c.Sources.CardTrader, DefaultCardTraderURL)
	applySourceDefaults(&c.Sources.MTGJSON, DefaultMTGJSONURL)

	// CardTrader documents 200 requests per rolling minute.
	if c.Sources.CardTrader.RateWindow == DefaultRateWindow && c.Sources.CardTrader.RateLimit == DefaultRateLimit {
		c.Sources.CardTrader.RateWindow = time.Minute
		c.Sources.CardTrader.RateLimit = 200
	}

	// Ingest defaults
	if c.Ingest.SweepCron == "" {
		c.Ingest.SweepCron = DefaultSweepCron
	}
	if c.Ingest.SourceConcurrency == 0 {
		c.Ingest.SourceConcurrency = DefaultSourceConcurrency
	}

	// Bulk import defaults
	if c.BulkImport.Cron == "" {
		c.BulkImport.Cron = DefaultImportCron
	}
	if c.BulkImport.CacheDir == "" {
		c.BulkImport.CacheDir = DefaultCacheDir
	}
	if c.BulkImport.MaxCacheAge == 0 {
		c.BulkImport.MaxCacheAge = DefaultMaxCacheAge
	}
	if c.BulkImport.BatchSize == 0 {
		c.BulkImport.BatchSize = DefaultBatchSize
	}
	if c.BulkImport.ProgressInterval == 0 {
		c.BulkImport.ProgressInterval = DefaultProgressInterval
	}

	// Chart defaults
	if c.Chart.DefaultCurrency == "" {
		c.Chart.DefaultCurrency = DefaultChartCurrency
	}
}

func applySourceDefaults(s *SourceConfig, baseURL string) {
	if s.BaseURL == "" {
		s.BaseURL = baseURL
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultSourceTimeout
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.BackoffFactor == 0 {
		s.BackoffFactor = DefaultBackoffFactor
	}
	if s.RateWindow == 0 {
		s.RateWindow = DefaultRateWindow
	}
	if s.RateLimit == 0 {
		s.RateLimit = DefaultRateLimit
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.RecoveryTimeout == 0 {
		s.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if s.HalfOpenProbes == 0 {
		s.HalfOpenProbes = DefaultHalfOpenProbes
	}
}
