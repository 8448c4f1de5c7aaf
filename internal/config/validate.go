package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if !c.Sources.Scryfall.Enabled && !c.Sources.CardTrader.Enabled && !c.Sources.MTGJSON.Enabled {
		return errors.New("at least one source must be enabled")
	}

	if err := c.Sources.Scryfall.validate("sources.scryfall"); err != nil {
		return err
	}
	if err := c.Sources.CardTrader.validate("sources.cardtrader"); err != nil {
		return err
	}
	if err := c.Sources.MTGJSON.validate("sources.mtgjson"); err != nil {
		return err
	}

	if c.Ingest.SourceConcurrency < 1 {
		return errors.New("ingest.source_concurrency must be >= 1")
	}

	if c.BulkImport.BatchSize < 1 {
		return errors.New("bulk_import.batch_size must be >= 1")
	}
	if c.BulkImport.ProgressInterval < 1 {
		return errors.New("bulk_import.progress_interval must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}

func (s *SourceConfig) validate(prefix string) error {
	if !s.Enabled {
		return nil
	}
	if s.BaseURL == "" {
		return fmt.Errorf("%s.base_url is required", prefix)
	}
	if s.RateLimit < 1 {
		return fmt.Errorf("%s.rate_limit must be >= 1", prefix)
	}
	if s.RateWindow <= 0 {
		return fmt.Errorf("%s.rate_window must be positive", prefix)
	}
	if s.FailureThreshold < 1 {
		return fmt.Errorf("%s.failure_threshold must be >= 1", prefix)
	}
	if s.HalfOpenProbes < 1 {
		return fmt.Errorf("%s.half_open_probes must be >= 1", prefix)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	return nil
}
