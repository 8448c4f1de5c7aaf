package chart

import (
	"math"
	"sort"
	"time"

	"github.com/cardledger/price-data/internal/model"
)

// Point is one value in a bucketed series.
type Point struct {
	Time  time.Time
	Value float64
}

// bucketAverages filters snapshots by currency, foil selection, and price
// positivity, then averages prices per bucket. The result is sorted by time.
func bucketAverages(snaps []model.PriceSnapshot, currency string, foil *bool, width time.Duration) []Point {
	type acc struct {
		sum float64
		n   int
	}
	buckets := make(map[time.Time]*acc)

	for _, s := range snaps {
		if s.Price <= 0 {
			continue
		}
		if currency != "" && s.Currency != currency {
			continue
		}
		if foil != nil && s.IsFoil != *foil {
			continue
		}
		key := Align(s.Time, width)
		a := buckets[key]
		if a == nil {
			a = &acc{}
			buckets[key] = a
		}
		a.sum += s.Price
		a.n++
	}

	points := make([]Point, 0, len(buckets))
	for ts, a := range buckets {
		points = append(points, Point{Time: ts, Value: a.sum / float64(a.n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points
}

// baseline computes the normalization base: the median of the first quartile
// of bucket averages (all points if fewer than 4). A baseline more than 10x
// away from the first point is treated as an outlier artifact and the first
// point is used instead.
func baseline(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}

	n := len(points) / 4
	if len(points) < 4 {
		n = len(points)
	}
	if n < 1 {
		n = 1
	}

	head := make([]float64, n)
	for i := 0; i < n; i++ {
		head[i] = points[i].Value
	}
	base := median(head)

	first := points[0].Value
	if base > first*10 || base*10 < first {
		return first
	}
	return base
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// indexSeries normalizes bucket averages against the baseline, scaled to
// 100 and rounded to 2 decimals.
func indexSeries(points []Point) []Point {
	base := baseline(points)
	if base <= 0 {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Time: p.Time, Value: round2(p.Value / base * 100)}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
