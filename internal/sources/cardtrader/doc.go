// Package cardtrader implements the marketplace adapter backed by the
// CardTrader API.
//
// Price lookup is a two-step resolution: the card's set is mapped to a
// CardTrader expansion, then the card is matched against the expansion's
// blueprint catalog by name and collector number. Below-threshold matches
// are treated as not-found (a catalog gap), not as an error.
//
// The expansion list is reference data that rarely changes; it is cached in
// memory for an hour so a sweep does not refetch it per card.
package cardtrader
