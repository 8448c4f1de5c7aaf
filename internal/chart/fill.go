package chart

import "time"

// forwardFillMax is the largest bucket distance between real points that is
// bridged by repeating the last value instead of interpolating.
const forwardFillMax = 3

// gapCapRatio caps how long a gap may be, as a share of the expected series
// length, before it is left unfilled.
const gapCapRatio = 0.9

// fillGaps walks the expected bucket sequence of [from, to] and produces a
// dense series. Short gaps forward-fill, longer gaps linearly interpolate
// between the surrounding real values, leading gaps back-fill from the first
// real value, and gaps above the cap stay empty. If filling somehow yields
// fewer points than the raw input, the raw points are returned as-is.
func fillGaps(points []Point, width time.Duration, from, to time.Time) []Point {
	if len(points) == 0 {
		return nil
	}

	real := make(map[time.Time]float64, len(points))
	for _, p := range points {
		real[p.Time] = p.Value
	}

	start := Align(from, width)
	end := Align(to, width)
	total := int(end.Sub(start)/width) + 1
	if total < 1 {
		return points
	}
	gapCap := int(float64(total) * gapCapRatio)

	var filled []Point
	prevIdx := -1 // index of last real bucket in the expected sequence
	var prevVal float64

	for i := 0; i < total; i++ {
		ts := start.Add(time.Duration(i) * width)

		if v, ok := real[ts]; ok {
			filled = append(filled, Point{Time: ts, Value: v})
			prevIdx, prevVal = i, v
			continue
		}

		nextIdx, nextVal, hasNext := nextReal(start, width, i, total, real)

		switch {
		case prevIdx < 0:
			// Leading gap: back-fill from the first real value.
			if hasNext {
				filled = append(filled, Point{Time: ts, Value: nextVal})
			}
		case hasNext && nextIdx-prevIdx <= forwardFillMax:
			filled = append(filled, Point{Time: ts, Value: prevVal})
		case hasNext && nextIdx-prevIdx <= gapCap:
			v := interpolate(prevIdx, prevVal, nextIdx, nextVal, i)
			if !plausible(v, prevVal, nextVal) {
				v = prevVal
			}
			filled = append(filled, Point{Time: ts, Value: v})
		case !hasNext && i-prevIdx <= gapCap:
			// Trailing gap: no future value yet, carry the last one.
			filled = append(filled, Point{Time: ts, Value: prevVal})
		default:
			// Gap beyond the cap: no synthetic point.
		}
	}

	if len(filled) < len(points) {
		return points
	}
	return filled
}

// nextReal finds the next bucket index at or after i holding a real value.
func nextReal(start time.Time, width time.Duration, i, total int, real map[time.Time]float64) (int, float64, bool) {
	for j := i + 1; j < total; j++ {
		if v, ok := real[start.Add(time.Duration(j)*width)]; ok {
			return j, v, true
		}
	}
	return 0, 0, false
}

func interpolate(i0 int, v0 float64, i1 int, v1 float64, i int) float64 {
	frac := float64(i-i0) / float64(i1-i0)
	return v0 + (v1-v0)*frac
}

// plausible rejects interpolated values outside a sane envelope of the
// surrounding real values.
func plausible(v, a, b float64) bool {
	max := a
	if b > max {
		max = b
	}
	return v > 0 && v <= max*10
}
