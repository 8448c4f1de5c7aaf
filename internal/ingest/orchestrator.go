package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/sources"
)

// Config holds orchestrator configuration.
type Config struct {
	// SourceConcurrency bounds how many requests may be in flight to any
	// one source, across all cards refreshing concurrently.
	SourceConcurrency int

	// CardConcurrency bounds how many cards a sweep refreshes in parallel.
	CardConcurrency int

	// ConditionMultipliers derive played-condition prices from a near-mint
	// price for sources that only report near-mint.
	ConditionMultipliers map[model.Condition]float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SourceConcurrency:    5,
		CardConcurrency:      4,
		ConditionMultipliers: DefaultMultipliers(),
	}
}

// DefaultMultipliers returns the standard near-mint discount ladder.
func DefaultMultipliers() map[model.Condition]float64 {
	return map[model.Condition]float64{
		model.ConditionLightlyPlayed:    0.85,
		model.ConditionModeratelyPlayed: 0.70,
		model.ConditionHeavilyPlayed:    0.55,
		model.ConditionDamaged:          0.40,
	}
}

// SnapshotWriter is the store surface the orchestrator writes through.
type SnapshotWriter interface {
	UpsertSnapshots(ctx context.Context, snaps []model.PriceSnapshot) (inserted, updated int, err error)
	GetOrCreateMarketplace(ctx context.Context, slug, name, currency string) (model.Marketplace, error)
}

// MarketplaceView is the catalog surface used to resolve venue rows.
type MarketplaceView interface {
	Marketplace(slug string) (model.Marketplace, bool)
	PutMarketplace(m model.Marketplace)
}

// Orchestrator runs per-card refreshes against the source registry.
type Orchestrator struct {
	cfg      Config
	registry *sources.Registry
	writer   SnapshotWriter
	view     MarketplaceView
	logger   *slog.Logger

	semMu sync.Mutex
	sems  map[string]chan struct{} // per-source in-flight bound
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config, registry *sources.Registry, writer SnapshotWriter, view MarketplaceView, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = DefaultConfig().SourceConcurrency
	}
	if cfg.CardConcurrency <= 0 {
		cfg.CardConcurrency = DefaultConfig().CardConcurrency
	}
	if cfg.ConditionMultipliers == nil {
		cfg.ConditionMultipliers = DefaultMultipliers()
	}
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		writer:   writer,
		view:     view,
		logger:   logger,
		sems:     make(map[string]chan struct{}),
	}
}

// sourceSem returns the shared semaphore bounding in-flight requests to one
// source. Every card refresh acquires from the same channel, so the bound
// holds across a whole sweep, not per card.
func (o *Orchestrator) sourceSem(name string) chan struct{} {
	o.semMu.Lock()
	defer o.semMu.Unlock()
	sem, ok := o.sems[name]
	if !ok {
		sem = make(chan struct{}, o.cfg.SourceConcurrency)
		o.sems[name] = sem
	}
	return sem
}

// SourceError records a failure from one source during a refresh.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// Result summarizes one card refresh.
type Result struct {
	CardID           int64
	SourcesQueried   int
	SourcesSkipped   int // circuit open
	QuotesCollected  int
	SnapshotsWritten int
	SnapshotsUpdated int
	Errors           []SourceError
}

// RefreshCard queries every registered source for the card in parallel,
// each source gated by its shared in-flight bound, and upserts the resulting
// snapshots. Source failures are collected per source; a refresh only
// returns an error when the final database write fails.
func (o *Orchestrator) RefreshCard(ctx context.Context, card model.Card) (Result, error) {
	res := Result{CardID: card.ID}
	identity := card.Identity()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		quotes []model.PriceQuote
	)

	for _, src := range o.registry.All() {
		if src.CircuitOpen() {
			res.SourcesSkipped++
			o.logger.Warn("skipping source with open circuit",
				"source", src.Name(),
				"card_id", card.ID,
			)
			continue
		}
		res.SourcesQueried++

		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			sem := o.sourceSem(src.Name())
			sem <- struct{}{}
			defer func() { <-sem }()

			got, err := src.FetchPrice(ctx, identity)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, sources.ErrNotSupported):
				// Not a live source; nothing to record.
			case errors.Is(err, sources.ErrNotFound):
				o.logger.Debug("card not found at source",
					"source", src.Name(),
					"card_id", card.ID,
				)
			case err != nil:
				res.Errors = append(res.Errors, SourceError{Source: src.Name(), Err: err})
			default:
				quotes = append(quotes, got...)
			}
		}(src)
	}
	wg.Wait()

	res.QuotesCollected = len(quotes)
	if len(quotes) == 0 {
		return res, nil
	}

	snaps, err := o.snapshotsFromQuotes(ctx, card, quotes)
	if err != nil {
		return res, err
	}

	inserted, updated, err := o.writer.UpsertSnapshots(ctx, snaps)
	if err != nil {
		return res, fmt.Errorf("write snapshots for card %d: %w", card.ID, err)
	}
	res.SnapshotsWritten = inserted
	res.SnapshotsUpdated = updated
	return res, nil
}

// snapshotsFromQuotes resolves marketplaces, stamps times, and expands
// derived condition prices.
func (o *Orchestrator) snapshotsFromQuotes(ctx context.Context, card model.Card, quotes []model.PriceQuote) ([]model.PriceSnapshot, error) {
	now := time.Now().UTC().Truncate(time.Minute)

	// Track which (marketplace, foil, condition) combos have a directly
	// observed price, so derived prices never shadow real ones.
	type variant struct {
		slug string
		foil bool
		cond model.Condition
	}
	observed := make(map[variant]bool, len(quotes))
	for _, q := range quotes {
		observed[variant{q.MarketplaceSlug, q.IsFoil, q.Condition}] = true
	}

	// When a source reports both foil variants in one response, the non-foil
	// snapshot carries the paired foil price.
	type pair struct {
		slug string
		cond model.Condition
		lang model.Language
	}
	foilPrice := make(map[pair]float64)
	for _, q := range quotes {
		if q.IsFoil && q.Validate() == nil {
			foilPrice[pair{q.MarketplaceSlug, q.Condition, q.Language}] = q.Price
		}
	}

	var snaps []model.PriceSnapshot
	for _, q := range quotes {
		if q.Validate() != nil {
			continue
		}

		mp, err := o.resolveMarketplace(ctx, q.MarketplaceSlug, q.Currency)
		if err != nil {
			return nil, err
		}

		ts := q.AsOf
		if ts.IsZero() {
			ts = now
		}

		var pf float64
		if !q.IsFoil {
			pf = foilPrice[pair{q.MarketplaceSlug, q.Condition, q.Language}]
		}

		snaps = append(snaps, model.PriceSnapshot{
			Time:          ts,
			CardID:        card.ID,
			MarketplaceID: mp.ID,
			Condition:     q.Condition,
			IsFoil:        q.IsFoil,
			Language:      q.Language,
			Price:         q.Price,
			PriceFoil:     pf,
			Currency:      q.Currency,
			MinPrice:      q.MinPrice,
			MaxPrice:      q.MaxPrice,
			MedianPrice:   q.MedianPrice,
			NumListings:   q.NumListings,
			Source:        q.Source,
		})

		// Derive played-condition prices from live near-mint quotes when
		// the source reported no direct price for that condition.
		if q.Source != model.SourceAPI || q.Condition != model.ConditionNearMint {
			continue
		}
		derived := make([]model.Condition, 0, len(o.cfg.ConditionMultipliers))
		for cond := range o.cfg.ConditionMultipliers {
			derived = append(derived, cond)
		}
		sort.Slice(derived, func(i, j int) bool { return derived[i] < derived[j] })

		for _, cond := range derived {
			if observed[variant{q.MarketplaceSlug, q.IsFoil, cond}] {
				continue
			}
			snaps = append(snaps, model.PriceSnapshot{
				Time:          ts,
				CardID:        card.ID,
				MarketplaceID: mp.ID,
				Condition:     cond,
				IsFoil:        q.IsFoil,
				Language:      q.Language,
				Price:         round2(q.Price * o.cfg.ConditionMultipliers[cond]),
				Currency:      q.Currency,
				Source:        model.SourceConditionMultiplier,
			})
		}
	}
	return snaps, nil
}

func (o *Orchestrator) resolveMarketplace(ctx context.Context, slug, currency string) (model.Marketplace, error) {
	if mp, ok := o.view.Marketplace(slug); ok {
		return mp, nil
	}
	mp, err := o.writer.GetOrCreateMarketplace(ctx, slug, slug, currency)
	if err != nil {
		return model.Marketplace{}, fmt.Errorf("resolve marketplace %q: %w", slug, err)
	}
	o.view.PutMarketplace(mp)
	return mp, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
