package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

func newAggregateStore() *memStore {
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	store.addClicks("l1", 3, at, "Peru", "Lima", "Desktop", "Chrome")
	store.addClicks("l1", 2, at.Add(time.Hour), "Chile", "Santiago", "Mobile", "Safari")
	store.addClicks("l2", 2, at.Add(2*time.Hour), "Peru", "Cusco", "Desktop", "Firefox")
	store.addClicks("l2", 1, at.Add(3*time.Hour), "", "", "Tablet", "Chrome")
	return store
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(newAggregateStore())
	res, err := agg.Aggregate(context.Background(), model.ClickFilter{},
		model.DimensionCountry, model.DimensionDevice, model.DimensionCountry)
	require.NoError(t, err)

	assert.Equal(t, int64(8), res.Total)
	assert.Len(t, res.Buckets, 2)
	assert.Equal(t, []model.Bucket{{Value: "Peru", Count: 5}, {Value: "Chile", Count: 2}}, res.Buckets[model.DimensionCountry])
	assert.Equal(t, int64(7), res.Sum(model.DimensionCountry))
	assert.Equal(t, "Desktop", res.Buckets[model.DimensionDevice][0].Value)
}

func TestAggregateLinkFilter(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(newAggregateStore())
	since := time.Date(2025, 5, 1, 13, 0, 0, 0, time.UTC)
	res, err := agg.Aggregate(context.Background(), model.ClickFilter{LinkID: "l1", Since: &since}, model.DimensionBrowser)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, []model.Bucket{{Value: "Safari", Count: 2}}, res.Buckets[model.DimensionBrowser])
}

func TestAggregateIdempotent(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(newAggregateStore())
	first, err := agg.Aggregate(context.Background(), model.ClickFilter{}, model.Dimensions...)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), model.ClickFilter{}, model.Dimensions...)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregateEmptyBucketsAreNotNil(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(&memStore{})
	res, err := agg.Aggregate(context.Background(), model.ClickFilter{}, model.DimensionCity)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
	assert.NotNil(t, res.Buckets[model.DimensionCity])
	assert.Empty(t, res.Buckets[model.DimensionCity])
}

func TestAggregateFailsAtomically(t *testing.T) {
	t.Parallel()

	store := newAggregateStore()
	store.failDim = model.DimensionCity

	res, err := NewAggregator(store).Aggregate(context.Background(), model.ClickFilter{},
		model.DimensionCountry, model.DimensionCity, model.DimensionDevice)
	require.Error(t, err)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
	assert.Nil(t, res.Buckets)
	assert.Zero(t, res.Total)
}

func TestAggregateRejectsUnknownDimension(t *testing.T) {
	t.Parallel()

	store := newAggregateStore()
	_, err := NewAggregator(store).Aggregate(context.Background(), model.ClickFilter{},
		model.DimensionCountry, model.Dimension("referrer"))
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Zero(t, store.queries.Load())
}
