package store

import (
	"context"
	"fmt"

	"github.com/cardledger/price-data/internal/model"
)

// ListTrackedCards returns the cards the ingestion layer should price.
// The card catalog itself is maintained elsewhere; this is a read-only view.
func (s *Store) ListTrackedCards(ctx context.Context) ([]model.Card, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, set_code, collector_number,
			COALESCE(scryfall_id, ''), COALESCE(mtgjson_id, '')
		FROM cards
		WHERE tracked
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query tracked cards: %w", err)
	}
	defer rows.Close()

	var out []model.Card
	for rows.Next() {
		var c model.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.SetCode, &c.CollectorNumber, &c.ScryfallID, &c.MTGJSONID); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
