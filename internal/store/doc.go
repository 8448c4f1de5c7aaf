// Package store persists price snapshots and marketplace reference rows.
//
// Tables:
//   - price_snapshots (TimescaleDB hypertable): one row per observed price,
//     keyed by (time, card_id, marketplace_id, condition, is_foil, language).
//     Writes are upserts; a colliding row replaces the price and provenance
//     columns, so re-running an ingestion pass is idempotent.
//   - marketplaces (PostgreSQL): slug-keyed venue reference rows.
//
// Two write paths share the same conflict target: per-card batches go through
// pgx batches, bulk dump loads stage rows with COPY into a temp table and
// merge in one statement.
package store
