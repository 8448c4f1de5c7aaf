package chart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

type fakeSource struct {
	snaps []model.PriceSnapshot
	count int64
	err   error
}

func (f *fakeSource) MarketSnapshots(ctx context.Context, from, to time.Time, currency string, foil *bool) ([]model.PriceSnapshot, error) {
	return f.snaps, f.err
}

func (f *fakeSource) CountMarketSnapshotsSince(ctx context.Context, since time.Time) (int64, error) {
	return f.count, f.err
}

func TestMarketIndex(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		snaps: []model.PriceSnapshot{
			snapAt(now.Add(-3*time.Hour), 100.00, "USD", false),
			snapAt(now.Add(-2*time.Hour), 110.00, "USD", false),
			snapAt(now.Add(-1*time.Hour), 120.00, "USD", false),
		},
		count: 3,
	}
	e := NewEngine(DefaultConfig(), src, nil)

	series, err := e.MarketIndex(context.Background(), 24*time.Hour, "USD", nil)
	if err != nil {
		t.Fatalf("MarketIndex() error = %v", err)
	}
	if len(series.Points) == 0 {
		t.Fatal("no points returned")
	}

	// 24h range uses 30m buckets; the first real bucket normalizes to 100.
	var first *Point
	for i := range series.Points {
		if series.Points[i].Value != 0 {
			first = &series.Points[i]
			break
		}
	}
	if first == nil || first.Value != 100.00 {
		t.Errorf("first index value = %+v, want 100.00", first)
	}

	// Newest snapshot is an hour old.
	if series.DataFreshnessMinutes < 59 || series.DataFreshnessMinutes > 61 {
		t.Errorf("DataFreshnessMinutes = %d, want ~60", series.DataFreshnessMinutes)
	}
}

func TestMarketIndex_InsufficientData(t *testing.T) {
	src := &fakeSource{count: 1}
	e := NewEngine(DefaultConfig(), src, nil)

	_, err := e.MarketIndex(context.Background(), 24*time.Hour, "USD", nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("MarketIndex() error = %v, want ErrInsufficientData", err)
	}
}

func TestMarketIndex_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	e := NewEngine(DefaultConfig(), src, nil)

	if _, err := e.MarketIndex(context.Background(), 24*time.Hour, "USD", nil); err == nil {
		t.Fatal("MarketIndex() with failing source returned nil error")
	}
}

func TestMarketIndex_DefaultCurrencyApplied(t *testing.T) {
	now := time.Now().UTC()
	src := &fakeSource{
		snaps: []model.PriceSnapshot{
			snapAt(now.Add(-2*time.Hour), 50.00, "USD", false),
			snapAt(now.Add(-1*time.Hour), 55.00, "USD", false),
		},
		count: 2,
	}
	e := NewEngine(Config{DefaultCurrency: "USD", MinSnapshots: 2}, src, nil)

	series, err := e.MarketIndex(context.Background(), 24*time.Hour, "", nil)
	if err != nil {
		t.Fatalf("MarketIndex() error = %v", err)
	}
	if len(series.Points) == 0 {
		t.Error("no points returned")
	}
}
