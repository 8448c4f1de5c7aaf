package config

import "time"

// Config is the root configuration for the price data engine.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Database   DBConfig         `yaml:"database"`
	Sources    SourcesConfig    `yaml:"sources"`
	Ingest     IngestConfig     `yaml:"ingest"`
	BulkImport BulkImportConfig `yaml:"bulk_import"`
	Chart      ChartConfig      `yaml:"chart"`
}

// InstanceConfig identifies this daemon instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// DBConfig holds the PostgreSQL connection. The pool is shared by live
// ingestion and the bulk importer; max_conns must leave headroom for the
// importer's batch transactions next to concurrent live writes.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SourcesConfig holds per-source adapter settings.
type SourcesConfig struct {
	Scryfall   SourceConfig `yaml:"scryfall"`
	CardTrader SourceConfig `yaml:"cardtrader"`
	MTGJSON    SourceConfig `yaml:"mtgjson"`
}

// SourceConfig configures one external source: its endpoint plus the
// resilience envelope (rate window, circuit breaker, retry) every call to
// that source goes through.
type SourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffFactor float64       `yaml:"backoff_factor"`

	// Rolling-window rate limit: at most RateLimit calls per RateWindow,
	// plus an optional minimum spacing between consecutive calls.
	RateWindow  time.Duration `yaml:"rate_window"`
	RateLimit   int           `yaml:"rate_limit"`
	MinInterval time.Duration `yaml:"min_interval"`

	// Circuit breaker.
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	HalfOpenProbes   int           `yaml:"half_open_probes"`
}

// IngestConfig holds per-card sweep settings.
type IngestConfig struct {
	SweepCron            string `yaml:"sweep_cron"`
	SourceConcurrency    int    `yaml:"source_concurrency"`
	ConditionMultipliers bool   `yaml:"condition_multipliers"`
}

// BulkImportConfig holds streaming bulk importer settings.
type BulkImportConfig struct {
	Cron             string        `yaml:"cron"`
	CacheDir         string        `yaml:"cache_dir"`
	MaxCacheAge      time.Duration `yaml:"max_cache_age"`
	BatchSize        int           `yaml:"batch_size"`
	ProgressInterval int           `yaml:"progress_interval"`
}

// ChartConfig holds aggregation engine settings.
type ChartConfig struct {
	DefaultCurrency string `yaml:"default_currency"`
}
