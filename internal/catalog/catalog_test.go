package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

type fakeReader struct {
	cards        []model.Card
	marketplaces []model.Marketplace
	cardErr      error
	loads        atomic.Int32
}

func (f *fakeReader) ListTrackedCards(ctx context.Context) ([]model.Card, error) {
	f.loads.Add(1)
	return f.cards, f.cardErr
}

func (f *fakeReader) ListMarketplaces(ctx context.Context) ([]model.Marketplace, error) {
	return f.marketplaces, nil
}

func testReader() *fakeReader {
	return &fakeReader{
		cards: []model.Card{
			{ID: 1, Name: "Lightning Bolt", SetCode: "lea", CollectorNumber: "161", MTGJSONID: "uuid-bolt"},
			{ID: 2, Name: "Shivan Dragon", SetCode: "lea", CollectorNumber: "174"},
		},
		marketplaces: []model.Marketplace{
			{ID: 1, Name: "TCGplayer", Slug: "tcgplayer", DefaultCurrency: "USD", Enabled: true},
		},
	}
}

func TestRefreshAndLookups(t *testing.T) {
	reader := testReader()
	c := New(DefaultConfig(), reader, nil)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	cards := c.TrackedCards()
	if len(cards) != 2 {
		t.Fatalf("len(TrackedCards()) = %d, want 2", len(cards))
	}

	card, ok := c.CardByMTGJSONID("uuid-bolt")
	if !ok || card.ID != 1 {
		t.Errorf("CardByMTGJSONID(uuid-bolt) = %+v, %v", card, ok)
	}
	// Cards without a dump UUID are not indexed.
	if _, ok := c.CardByMTGJSONID(""); ok {
		t.Error("empty uuid resolved to a card")
	}

	m, ok := c.Marketplace("tcgplayer")
	if !ok || m.ID != 1 {
		t.Errorf("Marketplace(tcgplayer) = %+v, %v", m, ok)
	}
	if _, ok := c.Marketplace("nope"); ok {
		t.Error("unknown slug resolved to a marketplace")
	}
}

func TestRefreshFailureKeepsOldView(t *testing.T) {
	reader := testReader()
	c := New(DefaultConfig(), reader, nil)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	reader.cardErr = errors.New("db down")
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() with failing reader returned nil error")
	}

	if got := len(c.TrackedCards()); got != 2 {
		t.Errorf("cards after failed refresh = %d, want 2 (old view kept)", got)
	}
}

func TestPutMarketplace(t *testing.T) {
	c := New(DefaultConfig(), testReader(), nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	c.PutMarketplace(model.Marketplace{ID: 9, Slug: "cardmarket", DefaultCurrency: "EUR", Enabled: true})

	m, ok := c.Marketplace("cardmarket")
	if !ok || m.ID != 9 {
		t.Errorf("Marketplace(cardmarket) = %+v, %v", m, ok)
	}
}

func TestStartStop(t *testing.T) {
	reader := testReader()
	cfg := Config{RefreshInterval: 20 * time.Millisecond}
	c := New(cfg, reader, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Initial load plus at least one background refresh.
	time.Sleep(50 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := reader.loads.Load(); got < 2 {
		t.Errorf("loads = %d, want >= 2", got)
	}
}

func TestStartFailsOnInitialLoadError(t *testing.T) {
	reader := testReader()
	reader.cardErr = errors.New("db down")
	c := New(DefaultConfig(), reader, nil)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("Start() with failing reader returned nil error")
	}
}
