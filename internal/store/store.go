package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardledger/price-data/internal/model"
)

// Store wraps the database pool with snapshot and marketplace operations.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store.
func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const upsertSnapshotSQL = `
	INSERT INTO price_snapshots (
		time, card_id, marketplace_id, condition, is_foil, language,
		price, currency, price_foil,
		min_price, max_price, median_price, num_listings, source
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (time, card_id, marketplace_id, condition, is_foil, language)
	DO UPDATE SET
		price = EXCLUDED.price,
		currency = EXCLUDED.currency,
		price_foil = EXCLUDED.price_foil,
		min_price = EXCLUDED.min_price,
		max_price = EXCLUDED.max_price,
		median_price = EXCLUDED.median_price,
		num_listings = EXCLUDED.num_listings,
		source = EXCLUDED.source
	RETURNING (xmax = 0) AS inserted
`

func snapshotArgs(s model.PriceSnapshot) []any {
	return []any{
		s.Time, s.CardID, s.MarketplaceID, string(s.Condition), s.IsFoil, string(s.Language),
		s.Price, s.Currency, s.PriceFoil,
		s.MinPrice, s.MaxPrice, s.MedianPrice, s.NumListings, string(s.Source),
	}
}

// UpsertSnapshot writes a single snapshot. Returns whether a new row was
// created (false means an existing row was replaced).
func (s *Store) UpsertSnapshot(ctx context.Context, snap model.PriceSnapshot) (inserted bool, err error) {
	if err := snap.Validate(); err != nil {
		return false, err
	}
	err = s.db.QueryRow(ctx, upsertSnapshotSQL, snapshotArgs(snap)...).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert snapshot: %w", err)
	}
	return inserted, nil
}

// UpsertSnapshots writes a batch of snapshots in one round trip. Invalid rows
// are rejected up front; duplicated composite keys within the batch collapse
// to the last occurrence so a single statement never touches a row twice.
func (s *Store) UpsertSnapshots(ctx context.Context, snaps []model.PriceSnapshot) (inserted, updated int, err error) {
	for i, snap := range snaps {
		if err := snap.Validate(); err != nil {
			return 0, 0, fmt.Errorf("snapshot %d: %w", i, err)
		}
	}
	snaps = DedupeSnapshots(snaps)
	if len(snaps) == 0 {
		return 0, 0, nil
	}

	start := time.Now()

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(upsertSnapshotSQL, snapshotArgs(snap)...)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range snaps {
		var wasInsert bool
		if err := results.QueryRow().Scan(&wasInsert); err != nil {
			return 0, 0, fmt.Errorf("upsert batch: %w", err)
		}
		if wasInsert {
			inserted++
		} else {
			updated++
		}
	}

	s.logger.Debug("snapshots upserted",
		"count", len(snaps),
		"inserted", inserted,
		"updated", updated,
		"duration", time.Since(start),
	)
	return inserted, updated, nil
}

// DedupeSnapshots collapses rows sharing a composite key, keeping the last
// occurrence. Order of surviving rows is preserved.
func DedupeSnapshots(snaps []model.PriceSnapshot) []model.PriceSnapshot {
	if len(snaps) < 2 {
		return snaps
	}
	byKey := make(map[model.SnapshotKey]int, len(snaps))
	out := snaps[:0:0]
	for _, snap := range snaps {
		key := snap.Key()
		if i, ok := byKey[key]; ok {
			out[i] = snap
			continue
		}
		byKey[key] = len(out)
		out = append(out, snap)
	}
	return out
}

// LatestPrices returns the most recent snapshot per distinct
// (marketplace, condition, foil, language) combination for a card.
func (s *Store) LatestPrices(ctx context.Context, cardID int64) ([]model.PriceSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (marketplace_id, condition, is_foil, language)
			time, card_id, marketplace_id, condition, is_foil, language,
			price, currency, price_foil,
			min_price, max_price, median_price, num_listings, source
		FROM price_snapshots
		WHERE card_id = $1
		ORDER BY marketplace_id, condition, is_foil, language, time DESC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// RangeFilter narrows a SnapshotsInRange query. Zero values mean no filter.
type RangeFilter struct {
	Currency   string
	Foil       *bool
	Conditions []model.Condition
}

// BuildRangeQuery assembles the snapshot range query for a card and filter.
// Exposed for tests; callers use SnapshotsInRange.
func BuildRangeQuery(cardID int64, from, to time.Time, f RangeFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT time, card_id, marketplace_id, condition, is_foil, language,
		price, currency, price_foil,
		min_price, max_price, median_price, num_listings, source
	FROM price_snapshots
	WHERE card_id = $1 AND time >= $2 AND time <= $3`)
	args := []any{cardID, from, to}

	if f.Currency != "" {
		args = append(args, f.Currency)
		fmt.Fprintf(&sb, " AND currency = $%d", len(args))
	}
	if f.Foil != nil {
		args = append(args, *f.Foil)
		fmt.Fprintf(&sb, " AND is_foil = $%d", len(args))
	}
	if len(f.Conditions) > 0 {
		conds := make([]string, len(f.Conditions))
		for i, c := range f.Conditions {
			conds[i] = string(c)
		}
		args = append(args, conds)
		fmt.Fprintf(&sb, " AND condition = ANY($%d)", len(args))
	}

	sb.WriteString(" ORDER BY time ASC")
	return sb.String(), args
}

// SnapshotsInRange returns a card's snapshots within [from, to], oldest
// first, optionally filtered.
func (s *Store) SnapshotsInRange(ctx context.Context, cardID int64, from, to time.Time, f RangeFilter) ([]model.PriceSnapshot, error) {
	sql, args := BuildRangeQuery(cardID, from, to, f)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshot range: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// CountSnapshotsSince reports how many snapshots a card has at or after the
// given time. Used as a data sufficiency gate before charting.
func (s *Store) CountSnapshotsSince(ctx context.Context, cardID int64, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM price_snapshots WHERE card_id = $1 AND time >= $2
	`, cardID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func scanSnapshots(rows pgx.Rows) ([]model.PriceSnapshot, error) {
	var out []model.PriceSnapshot
	for rows.Next() {
		var snap model.PriceSnapshot
		var condition, language, source string
		err := rows.Scan(
			&snap.Time, &snap.CardID, &snap.MarketplaceID, &condition, &snap.IsFoil, &language,
			&snap.Price, &snap.Currency, &snap.PriceFoil,
			&snap.MinPrice, &snap.MaxPrice, &snap.MedianPrice, &snap.NumListings, &source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Condition = model.Condition(condition)
		snap.Language = model.Language(language)
		snap.Source = model.SnapshotSource(source)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListMarketplaces returns all marketplace reference rows.
func (s *Store) ListMarketplaces(ctx context.Context) ([]model.Marketplace, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, slug, default_currency, enabled
		FROM marketplaces
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query marketplaces: %w", err)
	}
	defer rows.Close()

	var out []model.Marketplace
	for rows.Next() {
		var m model.Marketplace
		if err := rows.Scan(&m.ID, &m.Name, &m.Slug, &m.DefaultCurrency, &m.Enabled); err != nil {
			return nil, fmt.Errorf("scan marketplace: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetOrCreateMarketplace resolves a marketplace by slug, creating the
// reference row on first sight of a new venue.
func (s *Store) GetOrCreateMarketplace(ctx context.Context, slug, name, currency string) (model.Marketplace, error) {
	var m model.Marketplace
	err := s.db.QueryRow(ctx, `
		INSERT INTO marketplaces (name, slug, default_currency, enabled)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id, name, slug, default_currency, enabled
	`, name, slug, currency).Scan(&m.ID, &m.Name, &m.Slug, &m.DefaultCurrency, &m.Enabled)
	if err != nil {
		return model.Marketplace{}, fmt.Errorf("get or create marketplace %q: %w", slug, err)
	}
	return m, nil
}
