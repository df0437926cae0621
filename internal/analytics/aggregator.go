// Package analytics computes click roll-ups: grouped counts per dimension,
// rankings and percentage distributions, and the reports built on them.
package analytics

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

// GroupStore runs grouped counts over stored clicks.
type GroupStore interface {
	CountClicks(ctx context.Context, filter model.ClickFilter) (int64, error)
	GroupClicks(ctx context.Context, dim model.Dimension, filter model.ClickFilter) ([]model.Bucket, error)
}

// Result is the outcome of one Aggregate call.
type Result struct {
	// Total counts every matching click, including those whose dimension
	// values are null or blank.
	Total   int64
	Buckets map[model.Dimension][]model.Bucket
}

// Sum returns the number of clicks that have a value for dim.
func (r Result) Sum(dim model.Dimension) int64 {
	return Sum(r.Buckets[dim])
}

// Aggregator groups clicks along dimensions.
type Aggregator struct {
	store GroupStore
}

// NewAggregator creates an Aggregator over store.
func NewAggregator(store GroupStore) *Aggregator {
	return &Aggregator{store: store}
}

// Aggregate counts the clicks matching filter and groups them by each of
// dims. The queries run concurrently; if any fails the whole call fails.
func (a *Aggregator) Aggregate(ctx context.Context, filter model.ClickFilter, dims ...model.Dimension) (Result, error) {
	dims, err := uniqueDimensions(dims)
	if err != nil {
		return Result{}, err
	}

	var total int64
	buckets := make([][]model.Bucket, len(dims))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountClicks(gctx, filter)
		if err != nil {
			return fmt.Errorf("count clicks: %w", err)
		}
		total = n
		return nil
	})
	for i, dim := range dims {
		g.Go(func() error {
			b, err := a.store.GroupClicks(gctx, dim, filter)
			if err != nil {
				return fmt.Errorf("group clicks by %s: %w", dim, err)
			}
			buckets[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Total: total, Buckets: make(map[model.Dimension][]model.Bucket, len(dims))}
	for i, dim := range dims {
		if buckets[i] == nil {
			buckets[i] = []model.Bucket{}
		}
		res.Buckets[dim] = buckets[i]
	}
	return res, nil
}

func uniqueDimensions(dims []model.Dimension) ([]model.Dimension, error) {
	seen := make(map[model.Dimension]bool, len(dims))
	out := make([]model.Dimension, 0, len(dims))
	for _, d := range dims {
		if !d.Valid() {
			return nil, apperr.InvalidArgument("dimension", fmt.Sprintf("unknown dimension %q", d))
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}
