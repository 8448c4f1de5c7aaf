// Package chart turns irregular snapshot data into an evenly spaced,
// normalized index series for chart consumers.
package chart

import "time"

// Width picks the bucket width for a requested range. Short ranges get fine
// buckets, long ranges get daily ones.
func Width(rng time.Duration) time.Duration {
	switch {
	case rng <= 7*24*time.Hour:
		return 30 * time.Minute
	case rng <= 30*24*time.Hour:
		return time.Hour
	case rng <= 90*24*time.Hour:
		return 4 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Align floors a timestamp onto its bucket boundary.
func Align(ts time.Time, width time.Duration) time.Time {
	sec := int64(width / time.Second)
	return time.Unix((ts.Unix()/sec)*sec, 0).UTC()
}
