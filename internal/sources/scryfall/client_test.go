package scryfall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cardledger/price-data/internal/model"
	"github.com/cardledger/price-data/internal/resilience"
	"github.com/cardledger/price-data/internal/sources"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return resilience.NewExecutor(SourceName, cfg, nil)
}

const cardJSON = `{
	"name": "Lightning Bolt",
	"set": "lea",
	"collector_number": "161",
	"lang": "en",
	"prices": {
		"usd": "349.99",
		"usd_foil": null,
		"eur": "299.00",
		"eur_foil": "0.00",
		"tix": "12.41"
	}
}`

func TestFetchPrice_BySetAndNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/lea/161" {
			t.Errorf("path = %q, want /cards/lea/161", r.URL.Path)
		}
		w.Write([]byte(cardJSON))
	}))
	defer server.Close()

	c := New(server.URL, testExecutor(), WithHTTPClient(server.Client()))

	quotes, err := c.FetchPrice(context.Background(), model.CardIdentity{
		Name:            "Lightning Bolt",
		SetCode:         "LEA",
		CollectorNumber: "161",
	})
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}

	// usd and eur only: usd_foil is null, eur_foil is non-positive.
	if len(quotes) != 2 {
		t.Fatalf("len(quotes) = %d, want 2", len(quotes))
	}

	usd := quotes[0]
	if usd.MarketplaceSlug != "tcgplayer" || usd.Currency != "USD" || usd.IsFoil {
		t.Errorf("first quote = %+v, want non-foil tcgplayer USD", usd)
	}
	if usd.Price != 349.99 {
		t.Errorf("usd price = %v, want 349.99", usd.Price)
	}
	if usd.Condition != model.ConditionNearMint {
		t.Errorf("condition = %v, want NEAR_MINT default", usd.Condition)
	}
	if usd.Source != model.SourceAPI {
		t.Errorf("source = %v, want api", usd.Source)
	}

	eur := quotes[1]
	if eur.MarketplaceSlug != "cardmarket" || eur.Currency != "EUR" || eur.Price != 299.00 {
		t.Errorf("second quote = %+v, want cardmarket EUR 299.00", eur)
	}
}

func TestFetchPrice_FuzzyNameFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cards/named" {
			t.Errorf("path = %q, want /cards/named", r.URL.Path)
		}
		if got := r.URL.Query().Get("fuzzy"); got != "Lightning Bolt" {
			t.Errorf("fuzzy = %q, want Lightning Bolt", got)
		}
		w.Write([]byte(cardJSON))
	}))
	defer server.Close()

	c := New(server.URL, testExecutor(), WithHTTPClient(server.Client()))

	quotes, err := c.FetchPrice(context.Background(), model.CardIdentity{Name: "Lightning Bolt"})
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if len(quotes) != 2 {
		t.Errorf("len(quotes) = %d, want 2", len(quotes))
	}
}

func TestFetchPrice_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"object":"error","code":"not_found"}`))
	}))
	defer server.Close()

	c := New(server.URL, testExecutor(), WithHTTPClient(server.Client()))

	_, err := c.FetchPrice(context.Background(), model.CardIdentity{Name: "No Such Card"})
	if !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("FetchPrice() error = %v, want ErrNotFound", err)
	}
}

func TestFetchPrice_EmptyIdentity(t *testing.T) {
	c := New("http://unused", testExecutor())

	_, err := c.FetchPrice(context.Background(), model.CardIdentity{})
	if !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("FetchPrice() error = %v, want ErrNotFound", err)
	}
}

func TestFetchPrice_MalformedPricesSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lang":"en","prices":{"usd":"not-a-number","eur":"4.20"}}`))
	}))
	defer server.Close()

	c := New(server.URL, testExecutor(), WithHTTPClient(server.Client()))

	quotes, err := c.FetchPrice(context.Background(), model.CardIdentity{Name: "X"})
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("len(quotes) = %d, want 1 (malformed usd skipped)", len(quotes))
	}
	if quotes[0].Currency != "EUR" {
		t.Errorf("surviving quote currency = %q, want EUR", quotes[0].Currency)
	}
}

func TestHistoryAndListingsUnsupported(t *testing.T) {
	c := New("http://unused", testExecutor())

	if _, err := c.FetchPriceHistory(context.Background(), model.CardIdentity{}, 30); !errors.Is(err, sources.ErrNotSupported) {
		t.Errorf("FetchPriceHistory() error = %v, want ErrNotSupported", err)
	}
	if _, err := c.FetchListings(context.Background(), model.CardIdentity{}, 10); !errors.Is(err, sources.ErrNotSupported) {
		t.Errorf("FetchListings() error = %v, want ErrNotSupported", err)
	}
}
