// Package catalog keeps an in-memory view of the tracked cards and known
// marketplaces, refreshed from the database on an interval. The ingestion
// layer reads from it instead of hitting the cards table on every sweep.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

// Config holds catalog configuration.
type Config struct {
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 15 * time.Minute,
	}
}

// Reader is the store surface the catalog depends on.
type Reader interface {
	ListTrackedCards(ctx context.Context) ([]model.Card, error)
	ListMarketplaces(ctx context.Context) ([]model.Marketplace, error)
}

// Catalog is the in-memory card and marketplace view.
type Catalog struct {
	cfg    Config
	reader Reader
	logger *slog.Logger

	mu           sync.RWMutex
	cards        []model.Card
	byMTGJSONID  map[string]model.Card
	marketplaces map[string]model.Marketplace

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Catalog. Call Start to load it and begin refreshing.
func New(cfg Config, reader Reader, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		cfg:          cfg,
		reader:       reader,
		logger:       logger,
		byMTGJSONID:  make(map[string]model.Card),
		marketplaces: make(map[string]model.Marketplace),
	}
}

// Start performs the initial load (blocking) and begins background refresh.
func (c *Catalog) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.Refresh(c.ctx); err != nil {
		c.cancel()
		return fmt.Errorf("initial catalog load: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.refreshLoop(c.ctx)
	}()

	c.mu.RLock()
	c.logger.Info("catalog started",
		"cards", len(c.cards),
		"marketplaces", len(c.marketplaces),
	)
	c.mu.RUnlock()
	return nil
}

// Stop gracefully shuts down the refresh loop.
func (c *Catalog) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("catalog stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Catalog) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}

// Refresh reloads cards and marketplaces from the database. The previous
// view stays visible until the reload succeeds.
func (c *Catalog) Refresh(ctx context.Context) error {
	cards, err := c.reader.ListTrackedCards(ctx)
	if err != nil {
		return fmt.Errorf("list tracked cards: %w", err)
	}
	marketplaces, err := c.reader.ListMarketplaces(ctx)
	if err != nil {
		return fmt.Errorf("list marketplaces: %w", err)
	}

	byUUID := make(map[string]model.Card, len(cards))
	for _, card := range cards {
		if card.MTGJSONID != "" {
			byUUID[card.MTGJSONID] = card
		}
	}
	bySlug := make(map[string]model.Marketplace, len(marketplaces))
	for _, m := range marketplaces {
		bySlug[m.Slug] = m
	}

	c.mu.Lock()
	c.cards = cards
	c.byMTGJSONID = byUUID
	c.marketplaces = bySlug
	c.mu.Unlock()

	c.logger.Debug("catalog refreshed",
		"cards", len(cards),
		"marketplaces", len(marketplaces),
	)
	return nil
}

// TrackedCards returns a copy of the tracked card list.
func (c *Catalog) TrackedCards() []model.Card {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Card, len(c.cards))
	copy(out, c.cards)
	return out
}

// CardByMTGJSONID resolves a card by its bulk dump UUID. The bulk importer
// uses this to match dump records to tracked cards.
func (c *Catalog) CardByMTGJSONID(uuid string) (model.Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.byMTGJSONID[uuid]
	return card, ok
}

// Marketplace resolves a marketplace by slug.
func (c *Catalog) Marketplace(slug string) (model.Marketplace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.marketplaces[slug]
	return m, ok
}

// PutMarketplace records a marketplace in the view without waiting for the
// next refresh. Called after GetOrCreateMarketplace creates a new venue row.
func (c *Catalog) PutMarketplace(m model.Marketplace) {
	c.mu.Lock()
	c.marketplaces[m.Slug] = m
	c.mu.Unlock()
}
