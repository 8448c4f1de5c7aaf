package chart

import (
	"testing"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		rng  time.Duration
		want time.Duration
	}{
		{24 * time.Hour, 30 * time.Minute},
		{7 * 24 * time.Hour, 30 * time.Minute},
		{14 * 24 * time.Hour, time.Hour},
		{30 * 24 * time.Hour, time.Hour},
		{60 * 24 * time.Hour, 4 * time.Hour},
		{90 * 24 * time.Hour, 4 * time.Hour},
		{365 * 24 * time.Hour, 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := Width(tt.rng); got != tt.want {
			t.Errorf("Width(%v) = %v, want %v", tt.rng, got, tt.want)
		}
	}
}

func TestAlign(t *testing.T) {
	ts := time.Date(2026, 8, 17, 12, 47, 33, 0, time.UTC)

	if got := Align(ts, 30*time.Minute); !got.Equal(time.Date(2026, 8, 17, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("Align(30m) = %v", got)
	}
	if got := Align(ts, 24*time.Hour); !got.Equal(time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Align(24h) = %v", got)
	}
}

func snapAt(ts time.Time, price float64, currency string, foil bool) model.PriceSnapshot {
	return model.PriceSnapshot{
		Time:          ts,
		CardID:        1,
		MarketplaceID: 1,
		Condition:     model.ConditionNearMint,
		IsFoil:        foil,
		Language:      model.LangEnglish,
		Price:         price,
		Currency:      currency,
		Source:        model.SourceAPI,
	}
}

func TestBucketAverages(t *testing.T) {
	base := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	width := time.Hour
	nonFoil := false

	snaps := []model.PriceSnapshot{
		snapAt(base.Add(5*time.Minute), 10.00, "USD", false),
		snapAt(base.Add(20*time.Minute), 20.00, "USD", false), // same bucket
		snapAt(base.Add(90*time.Minute), 30.00, "USD", false), // next bucket
		snapAt(base.Add(10*time.Minute), 99.00, "EUR", false), // wrong currency
		snapAt(base.Add(10*time.Minute), 88.00, "USD", true),  // foil filtered
		snapAt(base.Add(10*time.Minute), -5.00, "USD", false), // non-positive
	}

	points := bucketAverages(snaps, "USD", &nonFoil, width)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].Value != 15.00 {
		t.Errorf("first bucket avg = %v, want 15.00", points[0].Value)
	}
	if points[1].Value != 30.00 {
		t.Errorf("second bucket avg = %v, want 30.00", points[1].Value)
	}
	if !points[0].Time.Before(points[1].Time) {
		t.Error("points not sorted by time")
	}
}

func TestIndexNormalization(t *testing.T) {
	// First-quartile baseline: averages [100,100,100,100,200] normalize to
	// [100,100,100,100,200].
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := make([]Point, 5)
	for i, v := range []float64{100, 100, 100, 100, 200} {
		points[i] = Point{Time: base.Add(time.Duration(i) * time.Hour), Value: v}
	}

	indexed := indexSeries(points)
	want := []float64{100, 100, 100, 100, 200}
	for i, p := range indexed {
		if p.Value != want[i] {
			t.Errorf("indexed[%d] = %v, want %v", i, p.Value, want[i])
		}
	}
}

func TestBaselineOutlierGuard(t *testing.T) {
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)

	// Quartile median far above the first point: fall back to first point.
	points := []Point{
		{Time: base, Value: 1.00},
		{Time: base.Add(time.Hour), Value: 50.00},
		{Time: base.Add(2 * time.Hour), Value: 50.00},
		{Time: base.Add(3 * time.Hour), Value: 50.00},
	}
	if got := baseline(points); got != 1.00 {
		t.Errorf("baseline = %v, want 1.00 (outlier guard)", got)
	}
}

func TestBaselineFewPoints(t *testing.T) {
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base, Value: 10.00},
		{Time: base.Add(time.Hour), Value: 20.00},
	}
	// Fewer than 4 points: median of all.
	if got := baseline(points); got != 15.00 {
		t.Errorf("baseline = %v, want 15.00", got)
	}
}

func TestFillGaps_LinearInterpolation(t *testing.T) {
	// Real points 4 buckets apart interpolate linearly in between.
	width := time.Hour
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base, Value: 10},
		{Time: base.Add(4 * time.Hour), Value: 20},
	}

	filled := fillGaps(points, width, base, base.Add(4*time.Hour))
	if len(filled) != 5 {
		t.Fatalf("len(filled) = %d, want 5", len(filled))
	}

	want := []float64{10, 12.5, 15, 17.5, 20}
	for i, p := range filled {
		if p.Value != want[i] {
			t.Errorf("filled[%d] = %v, want %v", i, p.Value, want[i])
		}
	}
}

func TestFillGaps_ShortGapForwardFills(t *testing.T) {
	// A 3-bucket distance (2 missing buckets) repeats the last value.
	width := time.Hour
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base, Value: 10},
		{Time: base.Add(3 * time.Hour), Value: 20},
	}

	filled := fillGaps(points, width, base, base.Add(3*time.Hour))
	if len(filled) != 4 {
		t.Fatalf("len(filled) = %d, want 4", len(filled))
	}
	if filled[1].Value != 10 || filled[2].Value != 10 {
		t.Errorf("gap values = %v/%v, want 10/10 (forward fill)", filled[1].Value, filled[2].Value)
	}
}

func TestFillGaps_LeadingGapBackFills(t *testing.T) {
	width := time.Hour
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base.Add(2 * time.Hour), Value: 42},
	}

	filled := fillGaps(points, width, base, base.Add(2*time.Hour))
	if len(filled) != 3 {
		t.Fatalf("len(filled) = %d, want 3", len(filled))
	}
	if filled[0].Value != 42 || filled[1].Value != 42 {
		t.Errorf("leading gap values = %v/%v, want 42/42 (back fill)", filled[0].Value, filled[1].Value)
	}
}

func TestFillGaps_TrailingGapForwardFills(t *testing.T) {
	width := time.Hour
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base, Value: 7},
	}

	filled := fillGaps(points, width, base, base.Add(2*time.Hour))
	if len(filled) != 3 {
		t.Fatalf("len(filled) = %d, want 3", len(filled))
	}
	for i, p := range filled {
		if p.Value != 7 {
			t.Errorf("filled[%d] = %v, want 7", i, p.Value)
		}
	}
}

func TestFillGaps_GapBeyondCapLeftEmpty(t *testing.T) {
	// Two real points with 18 empty buckets between them in a 20-bucket
	// series: the gap exceeds 90% of the series and is not filled.
	width := time.Hour
	base := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base, Value: 10},
		{Time: base.Add(19 * time.Hour), Value: 20},
	}

	filled := fillGaps(points, width, base, base.Add(19*time.Hour))
	if len(filled) != 2 {
		t.Errorf("len(filled) = %d, want 2 (no synthetic points)", len(filled))
	}
}
