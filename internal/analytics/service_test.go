package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/model"
)

var testNow = time.Date(2025, 5, 10, 15, 30, 0, 0, time.UTC)

func newTestService(store *memStore) (*Service, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	svc := NewService(store, store, store, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)), rec)
	svc.now = func() time.Time { return testNow }
	return svc, rec
}

func strPtr(s string) *string { return &s }

func TestServiceTopLinksPagination(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	counts := []int{10, 8, 6, 4, 2}
	for i, n := range counts {
		id := fmt.Sprintf("link-%d", i+1)
		store.links = append(store.links, &model.Link{ID: id, ShortCode: fmt.Sprintf("c%d", i+1)})
		store.addClicks(id, n, testNow.Add(-time.Hour), "Peru", "Lima", "Desktop", "Chrome")
	}
	// Outside the 24h window.
	store.addClicks("link-5", 50, testNow.Add(-48*time.Hour), "Peru", "Lima", "Desktop", "Chrome")

	svc, rec := newTestService(store)
	report, err := svc.TopLinks(context.Background(), TopLinksQuery{Page: 2, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, "24h", report.Period)
	assert.Equal(t, int64(5), report.QuantityLinks)
	assert.Equal(t, 3, report.TotalPages)
	assert.Equal(t, 2, report.CurrentPage)
	assert.True(t, report.HasNextPage)
	assert.True(t, report.HasPreviousPage)

	require.Len(t, report.TopLinks, 2)
	assert.Equal(t, 3, report.TopLinks[0].Rank)
	assert.Equal(t, "link-3", report.TopLinks[0].LinkID)
	assert.Equal(t, int64(6), report.TopLinks[0].ClicksCount)
	assert.Equal(t, "20.00", report.TopLinks[0].Percentage)
	assert.Equal(t, "c3", report.TopLinks[0].Link.ShortCode)
	assert.Equal(t, 4, report.TopLinks[1].Rank)
	assert.Equal(t, int64(4), report.TopLinks[1].ClicksCount)

	assert.Equal(t, uint64(1), rec.Snapshot().AggregationDurationCount)
}

func TestServiceTopLinksPeriodWindow(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	store.links = []*model.Link{{ID: "old"}, {ID: "new"}}
	store.addClicks("old", 3, testNow.Add(-72*time.Hour), "", "", "Desktop", "Chrome")
	store.addClicks("new", 1, testNow.Add(-time.Minute), "", "", "Desktop", "Chrome")

	svc, _ := newTestService(store)
	day, err := svc.TopLinks(context.Background(), TopLinksQuery{Period: "24h"})
	require.NoError(t, err)
	require.Len(t, day.TopLinks, 1)
	assert.Equal(t, "new", day.TopLinks[0].LinkID)
	assert.False(t, day.HasNextPage)
	assert.False(t, day.HasPreviousPage)

	week, err := svc.TopLinks(context.Background(), TopLinksQuery{Period: "7d"})
	require.NoError(t, err)
	require.Len(t, week.TopLinks, 2)
	assert.Equal(t, "old", week.TopLinks[0].LinkID)
	assert.Equal(t, "75.00", week.TopLinks[0].Percentage)
}

func TestServiceValidatesBeforeQuerying(t *testing.T) {
	t.Parallel()

	start := testNow
	end := testNow.Add(-time.Hour)
	cases := []struct {
		name string
		run  func(*Service) error
	}{
		{"unknown_period", func(s *Service) error {
			_, err := s.TopLinks(context.Background(), TopLinksQuery{Period: "2w"})
			return err
		}},
		{"negative_page", func(s *Service) error {
			_, err := s.TopLinks(context.Background(), TopLinksQuery{Page: -1})
			return err
		}},
		{"limit_over_max", func(s *Service) error {
			_, err := s.TopLinks(context.Background(), TopLinksQuery{Limit: 101})
			return err
		}},
		{"reversed_range", func(s *Service) error {
			_, err := s.TimeSeries(context.Background(), TimeSeriesQuery{StartDate: &start, EndDate: &end})
			return err
		}},
		{"time_series_limit", func(s *Service) error {
			_, err := s.TimeSeries(context.Background(), TimeSeriesQuery{Limit: -3})
			return err
		}},
		{"empty_link_id", func(s *Service) error {
			_, err := s.LinkStats(context.Background(), "")
			return err
		}},
		{"top_links_offset_overflow", func(s *Service) error {
			_, err := s.TopLinks(context.Background(), TopLinksQuery{Page: math.MaxInt/100 + 2, Limit: 100})
			return err
		}},
		{"time_series_offset_overflow", func(s *Service) error {
			_, err := s.TimeSeries(context.Background(), TimeSeriesQuery{Page: math.MaxInt})
			return err
		}},
		{"list_clicks_offset_overflow", func(s *Service) error {
			_, err := s.ListClicks(context.Background(), ClickListQuery{Page: math.MaxInt, Limit: 2})
			return err
		}},
		{"list_clicks_limit", func(s *Service) error {
			_, err := s.ListClicks(context.Background(), ClickListQuery{Limit: 101})
			return err
		}},
		{"empty_click_id", func(s *Service) error {
			_, err := s.GetClick(context.Background(), " ")
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := &memStore{}
			svc, _ := newTestService(store)
			err := tc.run(svc)
			assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
			assert.Zero(t, store.queries.Load())
		})
	}
}

func TestServiceConversionRate(t *testing.T) {
	t.Parallel()

	t.Run("no_links", func(t *testing.T) {
		t.Parallel()
		store := &memStore{}
		svc, _ := newTestService(store)
		report, err := svc.ConversionRate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, NoLinksMessage, report.Message)
		assert.Zero(t, report.TotalLinks)
		assert.Zero(t, report.TotalClicks)
		assert.Empty(t, report.ConversionRate)
		assert.Empty(t, report.ClickRatio)
		assert.Equal(t, int64(1), store.queries.Load())

		body, err := json.Marshal(report)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"conversionRate":0`)
		assert.NotContains(t, string(body), "clickRatio")
	})

	t.Run("ratio", func(t *testing.T) {
		t.Parallel()
		store := &memStore{}
		for i := 0; i < 4; i++ {
			store.links = append(store.links, &model.Link{ID: fmt.Sprintf("l%d", i)})
		}
		store.addClicks("l0", 7, testNow, "", "", "Desktop", "Chrome")
		store.addClicks("l1", 3, testNow, "", "", "Mobile", "Safari")

		svc, _ := newTestService(store)
		report, err := svc.ConversionRate(context.Background())
		require.NoError(t, err)
		assert.Empty(t, report.Message)
		assert.Equal(t, int64(4), report.TotalLinks)
		assert.Equal(t, int64(10), report.TotalClicks)
		assert.Equal(t, "2.50", report.ConversionRate)
		assert.Equal(t, "250.00%", report.ClickRatio)
		assert.Equal(t, testNow, report.Timestamp)

		body, err := json.Marshal(report)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"conversionRate":"2.50"`)
	})
}

func TestServiceGeographic(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	store.addClicks("l1", 4, testNow, "Peru", "Lima", "Desktop", "Chrome")
	store.addClicks("l1", 2, testNow, "Chile", "Santiago", "Mobile", "Safari")
	store.addClicks("l2", 1, testNow, "Atlantis", "unknown", "Tablet", "Firefox")
	store.addClicks("l2", 3, testNow, "", "", "Desktop", "Edge")

	svc, _ := newTestService(store)
	report, err := svc.Geographic(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), report.Stats.TotalClicks)
	assert.Equal(t, int64(7), report.Stats.CountryClicks)
	assert.Equal(t, 3, report.Stats.UniqueCountries)
	assert.Equal(t, 3, report.Stats.UniqueDevices)
	assert.Equal(t, "Peru", report.Stats.TopCountry)
	assert.Equal(t, "Desktop", report.Stats.TopDevice)

	require.Len(t, report.Rankings.TopCountries, 3)
	assert.Equal(t, "PE", report.Rankings.TopCountries[0].Code)
	assert.Equal(t, "57.14", report.Rankings.TopCountries[0].Percentage)
	assert.Equal(t, "CL", report.Rankings.TopCountries[1].Code)
	assert.Empty(t, report.Rankings.TopCountries[2].Code)

	integrity := report.Metadata.DataIntegrity
	assert.True(t, integrity.HasIncompleteData)
	assert.Equal(t, int64(10), integrity.TotalClicks)
	assert.Equal(t, int64(7), integrity.CountryClicks)
	assert.Equal(t, geoTopLimit, report.Metadata.QueryLimit)
	assert.Equal(t, deviceTopLimit, report.Metadata.DeviceLimit)
}

func TestServiceGeographicDeviceLimit(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	for i := 0; i < 8; i++ {
		store.addClicks("l1", i+1, testNow, "Peru", "Lima", fmt.Sprintf("device-%d", i), "Chrome")
	}
	svc, _ := newTestService(store)
	report, err := svc.Geographic(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Rankings.TopDevices, deviceTopLimit)
	assert.Equal(t, "device-7", report.Rankings.TopDevices[0].Value)
	assert.False(t, report.Metadata.DataIntegrity.HasIncompleteData)
}

func TestServiceDeviceBrowserDistribution(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	store.addClicks("l1", 3, testNow, "", "", "Desktop", "Chrome")
	store.addClicks("l1", 1, testNow, "", "", "Mobile", "Safari")

	svc, _ := newTestService(store)
	report, err := svc.DeviceBrowserDistribution(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.DeviceStats.TotalDevices)
	assert.Equal(t, []string{"Desktop", "Mobile"}, report.DeviceStats.UniqueDevices)
	assert.Equal(t, int64(4), report.DeviceStats.TotalRecords)
	assert.Equal(t, map[string]int64{"Desktop": 3, "Mobile": 1}, report.DeviceTotals)
	require.Len(t, report.BrowserDistribution, 2)
	assert.Equal(t, "75.00", report.BrowserDistribution[0].Percentage)
	assert.Equal(t, "25.00", report.BrowserDistribution[1].Percentage)
}

func TestServiceGeneral(t *testing.T) {
	t.Parallel()

	newStore := func() *memStore {
		store := &memStore{
			links: []*model.Link{{ID: "l1"}, {ID: "l2"}},
			users: []*model.User{
				{ID: "u1", Role: model.RolePremium},
				{ID: "u2", Role: model.RoleFree},
				{ID: "u3", Role: model.RoleFree},
				{ID: "u4", Role: model.RoleAdmin},
			},
		}
		store.addClicks("l1", 5, testNow, "", "", "Desktop", "Chrome")
		return store
	}

	svc, _ := newTestService(newStore())
	report, err := svc.General(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.TotalLinks)
	assert.Equal(t, int64(5), report.TotalClicks)
	assert.Equal(t, int64(4), report.TotalUsers)
	assert.Equal(t, int64(1), report.TotalPremiumUsers)
	assert.Equal(t, int64(2), report.TotalFreeUsers)
	assert.Equal(t, int64(0), report.TotalGuestUsers)
	assert.Equal(t, int64(1), report.TotalAdminUsers)
	require.Len(t, report.DistributionUsers, len(model.Roles))
	assert.Equal(t, RoleCount{Role: model.RoleFree, Count: 2}, report.DistributionUsers[1])

	skewed := newStore()
	skewed.roleSkew = 1
	svc, _ = newTestService(skewed)
	_, err = svc.General(context.Background())
	assert.Equal(t, apperr.KindDataInconsistency, apperr.KindOf(err))
}

func TestServiceTimeSeries(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &memStore{
		users: []*model.User{{ID: "u1", FullName: "Ada", Email: "ada@example.com", Role: model.RoleFree}},
	}
	for i := 0; i < 5; i++ {
		l := &model.Link{ID: fmt.Sprintf("l%d", i), CreatedAt: base.AddDate(0, 0, 4-i)}
		if i%2 == 0 {
			l.UserID = strPtr("u1")
		}
		store.links = append(store.links, l)
	}
	store.addClicks("l3", 2, testNow, "Peru", "Lima", "Desktop", "Chrome")

	svc, _ := newTestService(store)
	start := base.AddDate(0, 0, 1)
	end := base.AddDate(0, 0, 3)
	report, err := svc.TimeSeries(context.Background(), TimeSeriesQuery{StartDate: &start, EndDate: &end, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.QuantityLinks)
	assert.Equal(t, 2, report.TotalPages)
	assert.True(t, report.HasNextPage)
	require.Len(t, report.TimeSeries, 2)

	// Ascending by creation: l3 (day 1) then l2 (day 2).
	assert.Equal(t, "l3", report.TimeSeries[0].ID)
	assert.Len(t, report.TimeSeries[0].Clicks, 2)
	assert.Nil(t, report.TimeSeries[0].Owner)
	assert.Equal(t, "l2", report.TimeSeries[1].ID)
	assert.NotNil(t, report.TimeSeries[1].Clicks)
	assert.Empty(t, report.TimeSeries[1].Clicks)
	require.NotNil(t, report.TimeSeries[1].Owner)
	assert.Equal(t, "Ada", report.TimeSeries[1].Owner.FullName)

	all, err := svc.TimeSeries(context.Background(), TimeSeriesQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), all.QuantityLinks)
	assert.Equal(t, "l4", all.TimeSeries[0].ID)
}

func TestServiceLinkStats(t *testing.T) {
	t.Parallel()

	store := &memStore{links: []*model.Link{{ID: "l1", ShortCode: "abc123"}}}
	store.addClicks("l1", 3, testNow.Add(-time.Hour), "Peru", "Lima", "Desktop", "Chrome")
	store.addClicks("l1", 2, testNow.AddDate(0, 0, -2), "Chile", "Santiago", "Mobile", "Safari")
	store.addClicks("l1", 4, testNow.AddDate(0, 0, -45), "Peru", "Cusco", "Desktop", "Chrome")
	store.addClicks("l2", 9, testNow, "Mexico", "Puebla", "Tablet", "Edge")

	svc, _ := newTestService(store)
	report, err := svc.LinkStats(context.Background(), "l1")
	require.NoError(t, err)

	assert.Equal(t, "abc123", report.Link.ShortCode)
	assert.Equal(t, int64(9), report.TotalClicks)
	assert.Equal(t, "Peru", report.TopCountries[0].Value)
	assert.Equal(t, int64(7), report.TopCountries[0].Clicks)
	assert.Len(t, report.Devices, 2)
	assert.Len(t, report.RecentClicks, 9)
	assert.True(t, report.RecentClicks[0].CreatedAt.After(report.RecentClicks[8].CreatedAt))

	require.Len(t, report.Daily, linkStatsDays)
	last := report.Daily[linkStatsDays-1]
	assert.Equal(t, "2025-05-10", last.Date)
	assert.Equal(t, int64(3), last.Clicks)
	assert.Equal(t, int64(2), report.Daily[linkStatsDays-3].Clicks)
	assert.Equal(t, "2025-04-11", report.Daily[0].Date)
	var daily int64
	for _, d := range report.Daily {
		daily += d.Clicks
	}
	assert.Equal(t, int64(5), daily)

	_, err = svc.LinkStats(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestServiceListClicks(t *testing.T) {
	t.Parallel()

	store := &memStore{
		links: []*model.Link{{ID: "l1", ShortCode: "abc123"}, {ID: "l2", ShortCode: "def456"}},
		users: []*model.User{{ID: "u1", FullName: "Ada", Role: model.RoleFree}},
	}
	store.addClicks("l1", 3, testNow.Add(-time.Hour), "Peru", "Lima", "Desktop", "Chrome")
	store.addClicks("l2", 2, testNow.Add(-2*time.Hour), "Chile", "Santiago", "Mobile", "Safari")
	store.addClicks("l1", 1, testNow.Add(-3*time.Hour), "Peru", "Cusco", "Mobile", "Chrome")
	store.clicks[5].UserID = strPtr("u1")

	svc, _ := newTestService(store)

	t.Run("country_contains_paged", func(t *testing.T) {
		report, err := svc.ListClicks(context.Background(), ClickListQuery{Country: "PE", Page: 2, Limit: 2})
		require.NoError(t, err)

		assert.Equal(t, int64(4), report.QuantityClicks)
		assert.Equal(t, 2, report.TotalPages)
		assert.Equal(t, 2, report.CurrentPage)
		assert.False(t, report.HasNextPage)
		assert.True(t, report.HasPreviousPage)

		require.Len(t, report.Clicks, 2)
		assert.Equal(t, "abc123", report.Clicks[0].Link.ShortCode)
		assert.Nil(t, report.Clicks[0].User)
		assert.Equal(t, store.clicks[5].ID, report.Clicks[1].ID)
		require.NotNil(t, report.Clicks[1].User)
		assert.Equal(t, "Ada", report.Clicks[1].User.FullName)
	})

	t.Run("device_and_browser", func(t *testing.T) {
		report, err := svc.ListClicks(context.Background(), ClickListQuery{Device: "mob", Browser: "SAF"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), report.QuantityClicks)
		require.Len(t, report.Clicks, 2)
		for _, c := range report.Clicks {
			assert.Equal(t, "l2", c.LinkID)
			assert.Equal(t, "def456", c.Link.ShortCode)
		}
	})

	t.Run("user", func(t *testing.T) {
		report, err := svc.ListClicks(context.Background(), ClickListQuery{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), report.QuantityClicks)
		assert.Equal(t, 1, report.CurrentPage)
		require.Len(t, report.Clicks, 1)
	})

	t.Run("no_match", func(t *testing.T) {
		report, err := svc.ListClicks(context.Background(), ClickListQuery{City: "Tokyo"})
		require.NoError(t, err)
		assert.Zero(t, report.QuantityClicks)
		assert.Zero(t, report.TotalPages)
		assert.NotNil(t, report.Clicks)
		assert.Empty(t, report.Clicks)
	})
}

func TestServiceGetClick(t *testing.T) {
	t.Parallel()

	store := &memStore{
		links: []*model.Link{{ID: "l1", ShortCode: "abc123"}},
		users: []*model.User{{ID: "u1", FullName: "Ada", Role: model.RoleFree}},
	}
	store.addClicks("l1", 1, testNow, "Peru", "Lima", "Desktop", "Chrome")
	store.clicks[0].UserID = strPtr("u1")

	svc, _ := newTestService(store)
	detail, err := svc.GetClick(context.Background(), store.clicks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", detail.Link.ShortCode)
	require.NotNil(t, detail.User)
	assert.Equal(t, "Ada", detail.User.FullName)

	body, err := json.Marshal(detail)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"link_id":"l1"`)
	assert.Contains(t, string(body), `"short_code":"abc123"`)

	_, err = svc.GetClick(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
