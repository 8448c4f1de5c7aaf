package cardtrader

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/resilience"
	"github.com/cardledger/price-data/internal/sources"
)

// SourceName identifies this adapter in the registry and in logs.
const SourceName = "cardtrader"

// MarketplaceSlug is the marketplace all CardTrader quotes belong to.
const MarketplaceSlug = "cardtrader"

// defaultCacheTTL is the freshness window for the cached expansion list.
const defaultCacheTTL = time.Hour

// Client is the CardTrader source adapter.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	exec       *resilience.Executor
	logger     *slog.Logger

	cacheTTL     time.Duration
	mu           sync.Mutex
	expansions   []apiExpansion
	expansionsAt time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithCacheTTL overrides the expansion cache freshness window.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cacheTTL = d }
}

// New creates a CardTrader adapter. All network calls go through exec.
func New(baseURL, token string, exec *resilience.Executor, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		exec:       exec,
		logger:     slog.Default(),
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements sources.Source.
func (c *Client) Name() string { return SourceName }

// CircuitOpen implements sources.Source.
func (c *Client) CircuitOpen() bool { return c.exec.CircuitOpen() }

// FetchPrice resolves the card to a blueprint, fetches its marketplace
// products, and aggregates them into quotes: one headline quote per foil
// variant plus per-condition quotes reported directly from listings.
func (c *Client) FetchPrice(ctx context.Context, id model.CardIdentity) ([]model.PriceQuote, error) {
	listings, err := c.fetchAllListings(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, sources.ErrNotFound
	}
	return aggregateListings(listings, time.Now().UTC()), nil
}

// FetchPriceHistory implements sources.Source. CardTrader exposes no
// historical series.
func (c *Client) FetchPriceHistory(ctx context.Context, id model.CardIdentity, days int) ([]model.PriceQuote, error) {
	return nil, sources.ErrNotSupported
}

// FetchListings returns up to limit normalized marketplace offers.
func (c *Client) FetchListings(ctx context.Context, id model.CardIdentity, limit int) ([]model.Listing, error) {
	listings, err := c.fetchAllListings(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}
	return listings, nil
}

func (c *Client) fetchAllListings(ctx context.Context, id model.CardIdentity) ([]model.Listing, error) {
	bp, err := c.resolveBlueprint(ctx, id)
	if err != nil {
		return nil, err
	}

	var byBlueprint map[string][]apiProduct
	err = c.exec.Do(ctx, func(ctx context.Context) error {
		query := url.Values{"blueprint_id": {strconv.Itoa(bp.ID)}}
		u := sources.BuildURL(c.baseURL, "/marketplace/products", query)
		return sources.GetJSON(ctx, c.httpClient, u, c.authHeader(), &byBlueprint)
	})
	if err != nil {
		return nil, err
	}

	products := byBlueprint[strconv.Itoa(bp.ID)]
	listings := make([]model.Listing, 0, len(products))
	for _, p := range products {
		price := float64(p.Price.Cents) / 100
		if price <= 0 {
			continue
		}
		cond, condOK := model.ParseCondition(p.PropertiesHash.Condition)
		lang, langOK := model.ParseLanguage(p.PropertiesHash.Language)
		if !condOK || !langOK {
			c.logger.Debug("unnormalizable listing properties, using defaults",
				"source", SourceName,
				"condition", p.PropertiesHash.Condition,
				"language", p.PropertiesHash.Language,
			)
		}
		currency := p.Price.Currency
		if currency == "" {
			currency = "EUR"
		}
		listings = append(listings, model.Listing{
			Price:     price,
			Currency:  currency,
			Condition: cond,
			Language:  lang,
			IsFoil:    p.PropertiesHash.Foil,
			Quantity:  p.Quantity,
		})
	}

	// Cheapest first, the order consumers expect from a marketplace view.
	sort.Slice(listings, func(i, j int) bool { return listings[i].Price < listings[j].Price })
	return listings, nil
}

// resolveBlueprint maps set code -> expansion, then matches the card against
// the expansion's blueprints.
func (c *Client) resolveBlueprint(ctx context.Context, id model.CardIdentity) (apiBlueprint, error) {
	exp, ok, err := c.findExpansion(ctx, id.SetCode)
	if err != nil {
		return apiBlueprint{}, err
	}
	if !ok {
		return apiBlueprint{}, sources.ErrNotFound
	}

	var bps []apiBlueprint
	err = c.exec.Do(ctx, func(ctx context.Context) error {
		query := url.Values{"expansion_id": {strconv.Itoa(exp.ID)}}
		u := sources.BuildURL(c.baseURL, "/blueprints/export", query)
		return sources.GetJSON(ctx, c.httpClient, u, c.authHeader(), &bps)
	})
	if err != nil {
		return apiBlueprint{}, err
	}

	bp, ok := bestMatch(bps, id)
	if !ok {
		return apiBlueprint{}, sources.ErrNotFound
	}
	return bp, nil
}

// findExpansion returns the expansion whose code matches the set code,
// refreshing the cached list when it is stale.
func (c *Client) findExpansion(ctx context.Context, setCode string) (apiExpansion, bool, error) {
	exps, err := c.getExpansions(ctx)
	if err != nil {
		return apiExpansion{}, false, err
	}

	want := strings.ToLower(strings.TrimSpace(setCode))
	if want == "" {
		return apiExpansion{}, false, nil
	}
	for _, e := range exps {
		if strings.ToLower(e.Code) == want {
			return e, true, nil
		}
	}
	return apiExpansion{}, false, nil
}

func (c *Client) getExpansions(ctx context.Context) ([]apiExpansion, error) {
	c.mu.Lock()
	if c.expansions != nil && time.Since(c.expansionsAt) < c.cacheTTL {
		exps := c.expansions
		c.mu.Unlock()
		return exps, nil
	}
	c.mu.Unlock()

	var exps []apiExpansion
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		u := sources.BuildURL(c.baseURL, "/expansions", nil)
		return sources.GetJSON(ctx, c.httpClient, u, c.authHeader(), &exps)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.expansions = exps
	c.expansionsAt = time.Now()
	c.mu.Unlock()

	return exps, nil
}

func (c *Client) authHeader() http.Header {
	if c.token == "" {
		return nil
	}
	return http.Header{"Authorization": []string{"Bearer " + c.token}}
}

// aggregateListings turns listings into quotes. Per foil variant: a headline
// quote priced at the cheapest near-mint offer (cheapest overall when no
// near-mint offer exists) carrying min/max/median over the variant, plus one
// quote per other condition priced at that condition's cheapest offer.
func aggregateListings(listings []model.Listing, asOf time.Time) []model.PriceQuote {
	var quotes []model.PriceQuote

	for _, foil := range []bool{false, true} {
		var variant []model.Listing
		for _, l := range listings {
			if l.IsFoil == foil {
				variant = append(variant, l)
			}
		}
		if len(variant) == 0 {
			continue
		}

		prices := make([]float64, 0, len(variant))
		byCondition := make(map[model.Condition]float64)
		for _, l := range variant {
			prices = append(prices, l.Price)
			if cur, ok := byCondition[l.Condition]; !ok || l.Price < cur {
				byCondition[l.Condition] = l.Price
			}
		}
		sort.Float64s(prices)

		headline, ok := byCondition[model.ConditionNearMint]
		if !ok {
			headline = prices[0]
		}

		quotes = append(quotes, model.PriceQuote{
			MarketplaceSlug: MarketplaceSlug,
			Price:           headline,
			Currency:        variant[0].Currency,
			Condition:       model.ConditionNearMint,
			IsFoil:          foil,
			Language:        model.DefaultLanguage,
			MinPrice:        prices[0],
			MaxPrice:        prices[len(prices)-1],
			MedianPrice:     median(prices),
			NumListings:     len(variant),
			Source:          model.SourceAPI,
			AsOf:            asOf,
		})

		for cond, price := range byCondition {
			if cond == model.ConditionNearMint {
				continue
			}
			quotes = append(quotes, model.PriceQuote{
				MarketplaceSlug: MarketplaceSlug,
				Price:           price,
				Currency:        variant[0].Currency,
				Condition:       cond,
				IsFoil:          foil,
				Language:        model.DefaultLanguage,
				Source:          model.SourceConditionAPI,
				AsOf:            asOf,
			})
		}
	}

	// Deterministic order for tests and logs.
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].IsFoil != quotes[j].IsFoil {
			return !quotes[i].IsFoil
		}
		return quotes[i].Condition < quotes[j].Condition
	})
	return quotes
}

// median of a sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
