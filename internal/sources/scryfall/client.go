// Package scryfall implements the live per-card pricing adapter backed by
// the Scryfall card API.
//
// Scryfall reports prices as a JSON object of string-typed per-currency
// fields (usd, usd_foil, eur, eur_foil), any of which may be null. Each
// present positive price becomes one quote; USD prices are attributed to
// the tcgplayer marketplace and EUR prices to cardmarket.
package scryfall

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/resilience"
	"github.com/cardledger/price-data/internal/sources"
)

// SourceName identifies this adapter in the registry and in logs.
const SourceName = "scryfall"

// priceFields maps Scryfall price fields to marketplace attribution.
var priceFields = []struct {
	path     string
	slug     string
	currency string
	foil     bool
}{
	{"prices.usd", "tcgplayer", "USD", false},
	{"prices.usd_foil", "tcgplayer", "USD", true},
	{"prices.eur", "cardmarket", "EUR", false},
	{"prices.eur_foil", "cardmarket", "EUR", true},
}

// Client is the Scryfall source adapter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
	logger     *slog.Logger
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

// New creates a Scryfall adapter. All network calls go through exec.
func New(baseURL string, exec *resilience.Executor, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		exec:       exec,
		logger:     slog.Default(),
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

// FetchPrice resolves the card and returns one quote per present
// marketplace/currency/foil price field.
func (c *Client) FetchPrice(ctx context.Context, id model.CardIdentity) ([]model.PriceQuote, error) {
	body, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.quotesFromCard(body), nil
}

// FetchPriceHistory implements sources.Source. Scryfall exposes no
// historical series.
func (c *Client) FetchPriceHistory(ctx context.Context, id model.CardIdentity, days int) ([]model.PriceQuote, error) {
	return nil, sources.ErrNotSupported
}

// FetchListings implements sources.Source. Scryfall has no listings.
func (c *Client) FetchListings(ctx context.Context, id model.CardIdentity, limit int) ([]model.Listing, error) {
	return nil, sources.ErrNotSupported
}

// lookup fetches the raw card JSON, preferring exact identifiers over the
// fuzzy name search.
func (c *Client) lookup(ctx context.Context, id model.CardIdentity) ([]byte, error) {
	var path string
	var query url.Values

	switch {
	case id.ScryfallID != "":
		path = "/cards/" + id.ScryfallID
	case id.SetCode != "" && id.CollectorNumber != "":
		path = "/cards/" + strings.ToLower(id.SetCode) + "/" + url.PathEscape(id.CollectorNumber)
	case id.Name != "":
		path = "/cards/named"
		query = url.Values{"fuzzy": {id.Name}}
	default:
		return nil, sources.ErrNotFound
	}

	var body []byte
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		b, err := sources.GetBody(ctx, c.httpClient, sources.BuildURL(c.baseURL, path, query), nil)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, sources.ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

// quotesFromCard extracts quotes from the card JSON. Missing, null, or
// non-positive prices yield no quote for that field rather than an error.
func (c *Client) quotesFromCard(body []byte) []model.PriceQuote {
	lang, ok := model.ParseLanguage(gjson.GetBytes(body, "lang").String())
	if !ok {
		c.logger.Debug("unrecognized card language, using default",
			"source", SourceName,
			"lang", gjson.GetBytes(body, "lang").String(),
		)
	}
	now := time.Now().UTC()

	var quotes []model.PriceQuote
	for _, f := range priceFields {
		v := gjson.GetBytes(body, f.path)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		price, err := strconv.ParseFloat(v.String(), 64)
		if err != nil || price <= 0 {
			continue
		}
		quotes = append(quotes, model.PriceQuote{
			MarketplaceSlug: f.slug,
			Price:           price,
			Currency:        f.currency,
			Condition:       model.DefaultCondition,
			IsFoil:          f.foil,
			Language:        lang,
			Source:          model.SourceAPI,
			AsOf:            now,
		})
	}
	return quotes
}
