package stats

import (
	"time"

	"guildstats/internal/repository"
)

// maxBuckets is the largest series a report renders before the rollup kicks
// in. Above it a daily series collapses to monthly buckets, and a monthly
// series to yearly ones.
const maxBuckets = 45

// Bucket is one point of a rendered series. Depending on the reduction stage
// its date is a day, the first day of a month, or the first day of a year.
type Bucket struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// DenseDaily expands sparse per-day counts into a dense series with exactly
// one entry per calendar day in [from, to], zero-filled where the store had
// nothing. Inputs are normalized to UTC midnight.
func DenseDaily(sparse []repository.DayCount, from, to time.Time) []Bucket {
	counts := make(map[time.Time]int64, len(sparse))
	for _, dc := range sparse {
		counts[midnight(dc.Day)] += dc.Count
	}

	var series []Bucket
	for day := midnight(from); !day.After(midnight(to)); day = day.AddDate(0, 0, 1) {
		series = append(series, Bucket{Date: day, Count: counts[day]})
	}
	return series
}

// Reduce rolls a dense daily series up until it fits maxBuckets: first to
// monthly buckets keyed by the first day of each month, then to yearly
// buckets keyed by the first day of each year. Counts are summed at every
// stage, so the series total never changes.
func Reduce(series []Bucket) []Bucket {
	if len(series) > maxBuckets {
		series = collapse(series, firstOfMonth)
	}
	if len(series) > maxBuckets {
		series = collapse(series, firstOfYear)
	}
	return series
}

// collapse merges consecutive entries sharing a key. The input is already in
// date order, so one forward scan suffices.
func collapse(series []Bucket, key func(time.Time) time.Time) []Bucket {
	var out []Bucket
	for _, b := range series {
		k := key(b.Date)
		if len(out) > 0 && out[len(out)-1].Date.Equal(k) {
			out[len(out)-1].Count += b.Count
			continue
		}
		out = append(out, Bucket{Date: k, Count: b.Count})
	}
	return out
}

// Total sums a series.
func Total(series []Bucket) int64 {
	var total int64
	for _, b := range series {
		total += b.Count
	}
	return total
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func firstOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}
