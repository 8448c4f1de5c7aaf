// Package database provides connection pool management for PostgreSQL.
//
// A single pgx pool is shared by the ingestion orchestrator, the bulk
// importer, and chart reads. Pool sizing comes from config; the bulk
// importer's batch transactions must not starve concurrent live writes.
package database
