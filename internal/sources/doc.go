// Package sources defines the common fetch contract implemented by every
// external price source, plus the explicit registry the orchestrator uses.
//
// Adapters translate a card identity into normalized quotes and listings,
// hiding per-source quirks. Every adapter composes a resilience.Executor
// rather than talking to the network directly.
package sources
