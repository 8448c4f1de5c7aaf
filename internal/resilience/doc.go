// Package resilience wraps outbound calls to external sources with rate
// limiting, circuit breaking, retry with backoff, and per-call deadlines.
//
// Each source constructs its own Executor; limiter and breaker state is
// owned by that instance and never shared across differently-configured
// sources. State is process-local and resets on restart.
package resilience
