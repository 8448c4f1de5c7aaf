package chart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

// ErrInsufficientData is returned when too few snapshots exist in the
// requested range to produce a meaningful index.
var ErrInsufficientData = errors.New("not enough snapshots in range")

// Config holds engine configuration.
type Config struct {
	// DefaultCurrency is used when a request does not name one.
	DefaultCurrency string

	// MinSnapshots is the data sufficiency gate: ranges holding fewer
	// snapshots are rejected instead of charted.
	MinSnapshots int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCurrency: "USD",
		MinSnapshots:    2,
	}
}

// SnapshotSource is the store surface the engine reads.
type SnapshotSource interface {
	MarketSnapshots(ctx context.Context, from, to time.Time, currency string, foil *bool) ([]model.PriceSnapshot, error)
	CountMarketSnapshotsSince(ctx context.Context, since time.Time) (int64, error)
}

// IndexSeries is the chart-ready output of MarketIndex.
type IndexSeries struct {
	Points               []Point
	DataFreshnessMinutes int
}

// Engine computes normalized market index series from stored snapshots.
type Engine struct {
	cfg    Config
	src    SnapshotSource
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, src SnapshotSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultConfig().DefaultCurrency
	}
	if cfg.MinSnapshots <= 0 {
		cfg.MinSnapshots = DefaultConfig().MinSnapshots
	}
	return &Engine{cfg: cfg, src: src, logger: logger}
}

// MarketIndex buckets, normalizes, and gap-fills the snapshots of the
// trailing rng window into an index series. foil selects foil or non-foil
// prices; nil means both.
func (e *Engine) MarketIndex(ctx context.Context, rng time.Duration, currency string, foil *bool) (IndexSeries, error) {
	if currency == "" {
		currency = e.cfg.DefaultCurrency
	}
	now := time.Now().UTC()
	from := now.Add(-rng)

	count, err := e.src.CountMarketSnapshotsSince(ctx, from)
	if err != nil {
		return IndexSeries{}, fmt.Errorf("check data sufficiency: %w", err)
	}
	if count < e.cfg.MinSnapshots {
		return IndexSeries{}, fmt.Errorf("%w: %d snapshots since %s", ErrInsufficientData, count, from.Format(time.RFC3339))
	}

	snaps, err := e.src.MarketSnapshots(ctx, from, now, currency, foil)
	if err != nil {
		return IndexSeries{}, fmt.Errorf("load snapshots: %w", err)
	}

	width := Width(rng)
	averaged := bucketAverages(snaps, currency, foil, width)
	indexed := indexSeries(averaged)
	if len(indexed) == 0 {
		return IndexSeries{}, ErrInsufficientData
	}
	filled := fillGaps(indexed, width, from, now)

	series := IndexSeries{
		Points:               filled,
		DataFreshnessMinutes: freshnessMinutes(snaps, now),
	}

	e.logger.Debug("market index computed",
		"range", rng,
		"currency", currency,
		"bucket_width", width,
		"real_points", len(indexed),
		"points", len(filled),
		"freshness_minutes", series.DataFreshnessMinutes,
	)
	return series, nil
}

// freshnessMinutes reports how stale the newest in-range snapshot is.
func freshnessMinutes(snaps []model.PriceSnapshot, now time.Time) int {
	var newest time.Time
	for _, s := range snaps {
		if s.Time.After(newest) {
			newest = s.Time
		}
	}
	if newest.IsZero() {
		return 0
	}
	return int(now.Sub(newest) / time.Minute)
}
