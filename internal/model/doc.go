// Package model defines shared data types used across the price data engine.
//
// Conventions:
//   - Prices: float64 in the row's currency; zero or negative prices are
//     rejected at the adapter boundary and never reach storage
//   - Timestamps: time.Time in UTC
//   - IDs: int64 for cards and marketplaces, string slugs for external systems
package model
