package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cardledger/price-data/internal/model"
)

// BulkResult reports the outcome of one BulkLoad call.
type BulkResult struct {
	Inserted int64
	Updated  int64
}

var snapshotColumns = []string{
	"time", "card_id", "marketplace_id", "condition", "is_foil", "language",
	"price", "currency", "price_foil",
	"min_price", "max_price", "median_price", "num_listings", "source",
}

// BulkLoad writes a large batch of snapshots by staging them with COPY into a
// temp table and merging in a single upsert statement. Rows must already be
// validated; duplicated composite keys within the batch collapse to the last
// occurrence.
func (s *Store) BulkLoad(ctx context.Context, snaps []model.PriceSnapshot) (BulkResult, error) {
	snaps = DedupeSnapshots(snaps)
	if len(snaps) == 0 {
		return BulkResult{}, nil
	}

	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return BulkResult{}, fmt.Errorf("begin bulk load: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE bulk_snapshots
		(LIKE price_snapshots INCLUDING DEFAULTS)
		ON COMMIT DROP
	`)
	if err != nil {
		return BulkResult{}, fmt.Errorf("create staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"bulk_snapshots"},
		snapshotColumns,
		pgx.CopyFromSlice(len(snaps), func(i int) ([]any, error) {
			return snapshotArgs(snaps[i]), nil
		}),
	)
	if err != nil {
		return BulkResult{}, fmt.Errorf("copy into staging table: %w", err)
	}

	var res BulkResult
	err = tx.QueryRow(ctx, `
		WITH merged AS (
			INSERT INTO price_snapshots
			SELECT * FROM bulk_snapshots
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
		)
		SELECT
			count(*) FILTER (WHERE inserted),
			count(*) FILTER (WHERE NOT inserted)
		FROM merged
	`).Scan(&res.Inserted, &res.Updated)
	if err != nil {
		return BulkResult{}, fmt.Errorf("merge staging table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return BulkResult{}, fmt.Errorf("commit bulk load: %w", err)
	}

	s.logger.Debug("bulk load committed",
		"rows", len(snaps),
		"inserted", res.Inserted,
		"updated", res.Updated,
		"duration", time.Since(start),
	)
	return res, nil
}
