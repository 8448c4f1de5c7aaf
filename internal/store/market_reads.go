package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

// MarketSnapshots returns all cards' snapshots within [from, to], oldest
// first, optionally filtered by currency and foil. Feeds the index engine.
func (s *Store) MarketSnapshots(ctx context.Context, from, to time.Time, currency string, foil *bool) ([]model.PriceSnapshot, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT time, card_id, marketplace_id, condition, is_foil, language,
		price, currency, price_foil,
		min_price, max_price, median_price, num_listings, source
	FROM price_snapshots
	WHERE time >= $1 AND time <= $2`)
	args := []any{from, to}

	if currency != "" {
		args = append(args, currency)
		fmt.Fprintf(&sb, " AND currency = $%d", len(args))
	}
	if foil != nil {
		args = append(args, *foil)
		fmt.Fprintf(&sb, " AND is_foil = $%d", len(args))
	}
	sb.WriteString(" ORDER BY time ASC")

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query market snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// CountMarketSnapshotsSince counts snapshots across all cards at or after
// the given time.
func (s *Store) CountMarketSnapshotsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM price_snapshots WHERE time >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count market snapshots: %w", err)
	}
	return n, nil
}
