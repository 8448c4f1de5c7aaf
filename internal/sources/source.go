package sources

import (
	"context"
	"errors"
	"sync"

	"github.com/cardledger/price-data/internal/model"
)

var (
	// ErrNotFound means the card could not be resolved at this source.
	// Expected for catalog gaps; sweeps record it as "no data", not a failure.
	ErrNotFound = errors.New("card not found at source")

	// ErrNotSupported means the source does not implement this operation.
	ErrNotSupported = errors.New("operation not supported by source")
)

// Source is the common contract for external price sources.
//
// Any of the three fetch operations may legitimately return ErrNotSupported
// for a given source.
type Source interface {
	Name() string

	// FetchPrice returns current quotes for the card. A source may emit
	// several quotes per call (one per marketplace/currency/foil variant).
	FetchPrice(ctx context.Context, id model.CardIdentity) ([]model.PriceQuote, error)

	// FetchPriceHistory returns quotes covering the trailing number of days,
	// for sources that expose historical series.
	FetchPriceHistory(ctx context.Context, id model.CardIdentity, days int) ([]model.PriceQuote, error)

	// FetchListings returns up to limit individual marketplace offers, for
	// sources that expose listings.
	FetchListings(ctx context.Context, id model.CardIdentity, limit int) ([]model.Listing, error)

	// CircuitOpen reports whether the source's breaker currently rejects
	// calls; sweeps skip an open source rather than probing card by card.
	CircuitOpen() bool
}

// Registry holds the constructed sources for this process, keyed by name.
// Registration order is preserved for deterministic sweeps.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Source)}
}

// Register adds a source. Re-registering a name replaces the entry.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.byName[s.Name()] = s
}

// Get returns the source with the given name.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// All returns sources in registration order.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
