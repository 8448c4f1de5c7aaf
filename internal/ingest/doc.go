// Package ingest orchestrates per-card price collection.
//
// A refresh queries every enabled source adapter for one card, normalizes
// the returned quotes into snapshots, derives per-condition prices where a
// source only reports near-mint, and upserts the batch. A sweep runs a
// refresh across the whole tracked catalog with bounded concurrency,
// skipping sources whose circuit breaker is open.
package ingest
