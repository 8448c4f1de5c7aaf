// Package bulkimport loads the provider bulk dump into the snapshot store.
//
// The importer runs a two-stage pipeline: a decoder streams card records
// from the dump, matches them against the tracked catalog, and batches the
// resulting snapshots; a loader merges batches into the database. A bounded
// channel between the stages keeps the decoder from outrunning the database.
// Unmatched and price-less records are counted and skipped; only a database
// failure aborts the run. Re-running an import is idempotent because the
// store merges on the snapshot composite key.
package bulkimport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/sources/mtgjson"
	"github.com/cardledger/price-data/internal/store"
)

// Config holds importer configuration.
type Config struct {
	// BatchSize is the number of snapshots per database merge.
	BatchSize int

	// ProgressInterval is how many records to process between progress
	// log lines.
	ProgressInterval int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        2000,
		ProgressInterval: 1000,
	}
}

// Streamer feeds dump records to the importer, reporting how many
// structurally malformed records it skipped.
type Streamer interface {
	StreamPrices(ctx context.Context, fn func(mtgjson.Record) error) (malformed int, err error)
}

// CardResolver matches dump records to tracked cards.
type CardResolver interface {
	CardByMTGJSONID(uuid string) (model.Card, bool)
}

// Loader is the store surface the importer writes through.
type Loader interface {
	BulkLoad(ctx context.Context, snaps []model.PriceSnapshot) (store.BulkResult, error)
	GetOrCreateMarketplace(ctx context.Context, slug, name, currency string) (model.Marketplace, error)
}

// MarketplaceView caches venue rows across records.
type MarketplaceView interface {
	Marketplace(slug string) (model.Marketplace, bool)
	PutMarketplace(m model.Marketplace)
}

// Report summarizes one import run.
type Report struct {
	RunID            uuid.UUID
	Processed        int // dump records seen
	Matched          int // records matched to a tracked card
	Unmatched        int // records with no tracked card
	Empty            int // matched records with no usable prices
	Malformed        int // structurally broken records skipped by the stream
	CardsUpdated     int
	SnapshotsCreated int64
	SnapshotsUpdated int64
	Batches          int
	Duration         time.Duration
}

// Importer runs bulk dump imports.
type Importer struct {
	cfg      Config
	streamer Streamer
	resolver CardResolver
	loader   Loader
	view     MarketplaceView
	logger   *slog.Logger
}

// New creates an Importer.
func New(cfg Config, streamer Streamer, resolver CardResolver, loader Loader, view MarketplaceView, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultConfig().ProgressInterval
	}
	return &Importer{
		cfg:      cfg,
		streamer: streamer,
		resolver: resolver,
		loader:   loader,
		view:     view,
		logger:   logger,
	}
}

// Run streams the dump once and merges every matched record's prices into
// the store. The returned report is valid even when err is non-nil; it
// covers the work done up to the failure.
func (im *Importer) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New()}
	start := time.Now()

	im.logger.Info("bulk import started",
		"run_id", report.RunID,
		"batch_size", im.cfg.BatchSize,
	)

	var mu sync.Mutex // guards report counters shared across stages
	cardsSeen := make(map[int64]struct{})

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan []model.PriceSnapshot, 2)

	// Decoder: stream records, match, batch.
	g.Go(func() error {
		defer close(batches)

		batch := make([]model.PriceSnapshot, 0, im.cfg.BatchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			out := batch
			batch = make([]model.PriceSnapshot, 0, im.cfg.BatchSize)
			select {
			case batches <- out:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		malformed, err := im.streamer.StreamPrices(ctx, func(rec mtgjson.Record) error {
			mu.Lock()
			report.Processed++
			processed := report.Processed
			mu.Unlock()

			if processed%im.cfg.ProgressInterval == 0 {
				im.logger.Info("import progress",
					"run_id", report.RunID,
					"records", processed,
				)
			}

			card, ok := im.resolver.CardByMTGJSONID(rec.UUID)
			if !ok {
				mu.Lock()
				report.Unmatched++
				mu.Unlock()
				return nil
			}

			snaps, err := im.snapshotsFromRecord(ctx, card, rec)
			if err != nil {
				return err
			}

			mu.Lock()
			report.Matched++
			if len(snaps) == 0 {
				report.Empty++
			} else {
				cardsSeen[card.ID] = struct{}{}
			}
			mu.Unlock()

			for _, snap := range snaps {
				batch = append(batch, snap)
				if len(batch) >= im.cfg.BatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			return nil
		})
		mu.Lock()
		report.Malformed = malformed
		mu.Unlock()
		if err != nil {
			return fmt.Errorf("stream dump: %w", err)
		}
		return flush()
	})

	// Loader: merge batches into the store.
	g.Go(func() error {
		for batch := range batches {
			res, err := im.loader.BulkLoad(ctx, batch)
			if err != nil {
				return fmt.Errorf("load batch: %w", err)
			}
			mu.Lock()
			report.Batches++
			report.SnapshotsCreated += res.Inserted
			report.SnapshotsUpdated += res.Updated
			mu.Unlock()
		}
		return nil
	})

	err := g.Wait()

	report.CardsUpdated = len(cardsSeen)
	report.Duration = time.Since(start)

	if err != nil {
		im.logger.Error("bulk import failed",
			"run_id", report.RunID,
			"records", report.Processed,
			"error", err,
		)
		return report, err
	}

	im.logger.Info("bulk import finished",
		"run_id", report.RunID,
		"records", report.Processed,
		"matched", report.Matched,
		"unmatched", report.Unmatched,
		"malformed", report.Malformed,
		"cards_updated", report.CardsUpdated,
		"snapshots_created", report.SnapshotsCreated,
		"snapshots_updated", report.SnapshotsUpdated,
		"batches", report.Batches,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// snapshotsFromRecord flattens a matched record into storable snapshots.
// Invalid quotes are dropped.
func (im *Importer) snapshotsFromRecord(ctx context.Context, card model.Card, rec mtgjson.Record) ([]model.PriceSnapshot, error) {
	quotes := rec.Quotes()
	snaps := make([]model.PriceSnapshot, 0, len(quotes))
	for _, q := range quotes {
		if q.Validate() != nil {
			continue
		}
		mp, err := im.resolveMarketplace(ctx, q.MarketplaceSlug, q.Currency)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, model.PriceSnapshot{
			Time:          q.AsOf,
			CardID:        card.ID,
			MarketplaceID: mp.ID,
			Condition:     q.Condition,
			IsFoil:        q.IsFoil,
			Language:      q.Language,
			Price:         q.Price,
			Currency:      q.Currency,
			Source:        q.Source,
		})
	}
	return snaps, nil
}

func (im *Importer) resolveMarketplace(ctx context.Context, slug, currency string) (model.Marketplace, error) {
	if mp, ok := im.view.Marketplace(slug); ok {
		return mp, nil
	}
	mp, err := im.loader.GetOrCreateMarketplace(ctx, slug, slug, currency)
	if err != nil {
		return model.Marketplace{}, fmt.Errorf("resolve marketplace %q: %w", slug, err)
	}
	im.view.PutMarketplace(mp)
	return mp, nil
}
