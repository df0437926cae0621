package analytics

import (
	"math"
	"strconv"

	"github.com/penshort/linkpulse/internal/model"
)

// RankedEntry is a bucket with its position and share of the dimension.
type RankedEntry struct {
	Rank       int    `json:"rank"`
	Value      string `json:"value"`
	Clicks     int64  `json:"clicks"`
	Percentage string `json:"percentage"`
}

// Sum adds up bucket counts.
func Sum(buckets []model.Bucket) int64 {
	var n int64
	for _, b := range buckets {
		n += b.Count
	}
	return n
}

// Percentage returns count as a percentage of total rounded to two
// decimals, clamped to [0, 100]. It is 0 when total is not positive.
func Percentage(count, total int64) float64 {
	if total <= 0 || count <= 0 {
		return 0
	}
	p := math.Round(float64(count)/float64(total)*10000) / 100
	return math.Min(p, 100)
}

// FormatPercentage renders p with two decimals.
func FormatPercentage(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// TopN returns the first n buckets. A non-positive n keeps them all.
func TopN(buckets []model.Bucket, n int) []model.Bucket {
	if n <= 0 || n >= len(buckets) {
		return buckets
	}
	return buckets[:n]
}

// Rank turns ordered buckets into entries ranked from offset+1 with
// percentages of total. Ranks are contiguous; equal counts keep their input
// order.
func Rank(buckets []model.Bucket, total int64, offset int) []RankedEntry {
	out := make([]RankedEntry, len(buckets))
	for i, b := range buckets {
		out[i] = RankedEntry{
			Rank:       offset + i + 1,
			Value:      b.Value,
			Clicks:     b.Count,
			Percentage: FormatPercentage(Percentage(b.Count, total)),
		}
	}
	return out
}

// RankTop ranks the first n buckets against the sum of all of them.
func RankTop(buckets []model.Bucket, n int) []RankedEntry {
	return Rank(TopN(buckets, n), Sum(buckets), 0)
}

// topValue returns the leading bucket value, or "" when there is none.
func topValue(buckets []model.Bucket) string {
	if len(buckets) == 0 {
		return ""
	}
	return buckets[0].Value
}

// values lists bucket values in order.
func values(buckets []model.Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Value
	}
	return out
}
