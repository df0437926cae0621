package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pariz/gountries"
	"golang.org/x/sync/errgroup"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/model"
)

// Report list sizes.
const (
	geoTopLimit       = 10
	deviceTopLimit    = 5
	linkStatsTopLimit = 5
	linkStatsDays     = 30
	recentClickLimit  = 20
)

// LinkStore reads links for reports.
type LinkStore interface {
	CountLinks(ctx context.Context) (int64, error)
	FindLinkByID(ctx context.Context, id string) (*model.Link, error)
	FindLinksByIDs(ctx context.Context, ids []string) ([]*model.Link, error)
	ListLinksCreatedBetween(ctx context.Context, start, end *time.Time, offset, limit int) ([]*model.Link, error)
	CountLinksCreatedBetween(ctx context.Context, start, end *time.Time) (int64, error)
}

// UserStore reads users for reports.
type UserStore interface {
	CountUsers(ctx context.Context) (int64, error)
	CountUsersByRole(ctx context.Context, role model.Role) (int64, error)
	FindUserSummariesByIDs(ctx context.Context, ids []string) (map[string]*model.UserSummary, error)
}

// ClickStore reads clicks for reports.
type ClickStore interface {
	GroupStore
	GroupClicksByLink(ctx context.Context, filter model.ClickFilter, offset, limit int) ([]model.Bucket, error)
	CountDistinctLinks(ctx context.Context, filter model.ClickFilter) (int64, error)
	FindClicks(ctx context.Context, filter model.ClickFilter, offset, limit int) ([]*model.ClickEvent, error)
	FindClickByID(ctx context.Context, id string) (*model.ClickEvent, error)
	FindClicksByLinkIDs(ctx context.Context, linkIDs []string) ([]*model.ClickEvent, error)
}

// Config holds report defaults.
type Config struct {
	DefaultLimit  int
	MaxLimit      int
	DefaultPeriod string
}

// Service builds analytics reports.
type Service struct {
	links     LinkStore
	users     UserStore
	clicks    ClickStore
	agg       *Aggregator
	cfg       Config
	logger    *slog.Logger
	metrics   metrics.Recorder
	countries *gountries.Query
	now       func() time.Time
}

// NewService creates a report service.
func NewService(links LinkStore, users UserStore, clicks ClickStore, cfg Config, logger *slog.Logger, recorder metrics.Recorder) *Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = "24h"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		links:     links,
		users:     users,
		clicks:    clicks,
		agg:       NewAggregator(clicks),
		cfg:       cfg,
		logger:    logger.With("component", "analytics"),
		metrics:   recorder,
		countries: gountries.New(),
		now:       time.Now,
	}
}

func (s *Service) observe(report string, start time.Time) {
	s.metrics.ObserveAggregationDuration(report, time.Since(start))
}

// TopLinks returns a page of the links with the most clicks in a period.
func (s *Service) TopLinks(ctx context.Context, q TopLinksQuery) (*TopLinksReport, error) {
	defer s.observe(ReportTopLinks, time.Now())

	period := q.Period
	if period == "" {
		period = s.cfg.DefaultPeriod
	}
	window, err := PeriodDuration(period)
	if err != nil {
		return nil, err
	}
	page, limit, err := pagination(q.Page, q.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	if err != nil {
		return nil, err
	}

	since := s.now().UTC().Add(-window)
	filter := model.ClickFilter{Since: &since}
	offset := (page - 1) * limit

	var (
		quantity int64
		total    int64
		buckets  []model.Bucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.clicks.CountDistinctLinks(gctx, filter)
		if err != nil {
			return fmt.Errorf("count linked clicks: %w", err)
		}
		quantity = n
		return nil
	})
	g.Go(func() error {
		n, err := s.clicks.CountClicks(gctx, filter)
		if err != nil {
			return fmt.Errorf("count clicks: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		b, err := s.clicks.GroupClicksByLink(gctx, filter, offset, limit)
		if err != nil {
			return fmt.Errorf("group clicks by link: %w", err)
		}
		buckets = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := map[string]*model.Link{}
	if len(buckets) > 0 {
		links, err := s.links.FindLinksByIDs(ctx, values(buckets))
		if err != nil {
			return nil, fmt.Errorf("load ranked links: %w", err)
		}
		for _, l := range links {
			byID[l.ID] = l
		}
	}

	top := make([]TopLink, len(buckets))
	for i, entry := range Rank(buckets, total, offset) {
		link := byID[entry.Value]
		if link == nil {
			s.logger.Warn("ranked link not found", "link_id", entry.Value)
		}
		top[i] = TopLink{
			Rank:        entry.Rank,
			LinkID:      entry.Value,
			Link:        link,
			ClicksCount: entry.Clicks,
			Percentage:  entry.Percentage,
		}
	}

	return &TopLinksReport{
		Period:        period,
		Since:         since,
		QuantityLinks: quantity,
		Page:          newPage(quantity, page, limit),
		TopLinks:      top,
	}, nil
}

// Geographic returns the all-time click distribution by country, city,
// device and browser.
func (s *Service) Geographic(ctx context.Context) (*GeographicReport, error) {
	defer s.observe(ReportGeographic, time.Now())

	res, err := s.agg.Aggregate(ctx, model.ClickFilter{},
		model.DimensionCountry, model.DimensionCity, model.DimensionDevice, model.DimensionBrowser)
	if err != nil {
		return nil, fmt.Errorf("aggregate geographic: %w", err)
	}

	countries := res.Buckets[model.DimensionCountry]
	cities := res.Buckets[model.DimensionCity]
	devices := res.Buckets[model.DimensionDevice]
	browsers := res.Buckets[model.DimensionBrowser]

	countryClicks := Sum(countries)
	cityClicks := Sum(cities)

	report := &GeographicReport{
		Stats: GeoStats{
			UniqueCountries: len(countries),
			UniqueCities:    len(cities),
			UniqueDevices:   len(devices),
			UniqueBrowsers:  len(browsers),
			CountryClicks:   countryClicks,
			CityClicks:      cityClicks,
			DeviceClicks:    Sum(devices),
			BrowserClicks:   Sum(browsers),
			TotalClicks:     res.Total,
			TopCountry:      topValue(countries),
			TopCity:         topValue(cities),
			TopDevice:       topValue(devices),
			TopBrowser:      topValue(browsers),
		},
		Rankings: GeoRankings{
			TopCountries: s.countryEntries(RankTop(countries, geoTopLimit)),
			TopCities:    RankTop(cities, geoTopLimit),
			TopDevices:   RankTop(devices, deviceTopLimit),
			TopBrowsers:  RankTop(browsers, geoTopLimit),
		},
		Metadata: GeoMetadata{
			QueryLimit:  geoTopLimit,
			DeviceLimit: deviceTopLimit,
			Timestamp:   s.now().UTC(),
			DataIntegrity: DataIntegrity{
				TotalClicks:       res.Total,
				CountryClicks:     countryClicks,
				CityClicks:        cityClicks,
				HasIncompleteData: countryClicks != res.Total,
			},
		},
	}
	if report.Metadata.DataIntegrity.HasIncompleteData {
		s.logger.Debug("clicks without country",
			"total", res.Total,
			"with_country", countryClicks,
		)
	}
	return report, nil
}

func (s *Service) countryEntries(ranked []RankedEntry) []CountryEntry {
	out := make([]CountryEntry, len(ranked))
	for i, e := range ranked {
		out[i] = CountryEntry{RankedEntry: e}
		if c, err := s.countries.FindCountryByName(e.Value); err == nil {
			out[i].Code = c.Alpha2
		}
	}
	return out
}

// DeviceBrowserDistribution returns the all-time device and browser
// distribution.
func (s *Service) DeviceBrowserDistribution(ctx context.Context) (*DeviceBrowserReport, error) {
	defer s.observe(ReportDeviceBrowser, time.Now())

	res, err := s.agg.Aggregate(ctx, model.ClickFilter{}, model.DimensionDevice, model.DimensionBrowser)
	if err != nil {
		return nil, fmt.Errorf("aggregate devices: %w", err)
	}
	devices := res.Buckets[model.DimensionDevice]
	browsers := res.Buckets[model.DimensionBrowser]

	totals := make(map[string]int64, len(devices))
	for _, b := range devices {
		totals[b.Value] = b.Count
	}

	return &DeviceBrowserReport{
		DeviceStats: DeviceStats{
			TotalDevices:   len(devices),
			TotalBrowsers:  len(browsers),
			UniqueDevices:  values(devices),
			UniqueBrowsers: values(browsers),
			TotalRecords:   res.Total,
		},
		DeviceTotals:        totals,
		DeviceDistribution:  RankTop(devices, 0),
		BrowserDistribution: RankTop(browsers, 0),
		Metadata:            ReportMetadata{Timestamp: s.now().UTC()},
	}, nil
}

// ConversionRate relates the number of clicks to the number of links.
func (s *Service) ConversionRate(ctx context.Context) (*ConversionReport, error) {
	defer s.observe(ReportConversionRate, time.Now())

	links, err := s.links.CountLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}
	now := s.now().UTC()
	if links == 0 {
		return &ConversionReport{
			Message:   NoLinksMessage,
			Timestamp: now,
		}, nil
	}

	clicks, err := s.clicks.CountClicks(ctx, model.ClickFilter{})
	if err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}
	rate := float64(clicks) / float64(links)
	return &ConversionReport{
		TotalLinks:     links,
		TotalClicks:    clicks,
		ConversionRate: Rate(fmt.Sprintf("%.2f", rate)),
		ClickRatio:     fmt.Sprintf("%.2f%%", rate*100),
		Timestamp:      now,
	}, nil
}

// TimeSeries returns a page of links created in an optional window, oldest
// first, each with its clicks and owner.
func (s *Service) TimeSeries(ctx context.Context, q TimeSeriesQuery) (*TimeSeriesReport, error) {
	defer s.observe(ReportTimeSeries, time.Now())

	if err := validateRange(q.StartDate, q.EndDate); err != nil {
		return nil, err
	}
	page, limit, err := pagination(q.Page, q.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	if err != nil {
		return nil, err
	}
	offset := (page - 1) * limit

	var (
		quantity int64
		links    []*model.Link
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.links.CountLinksCreatedBetween(gctx, q.StartDate, q.EndDate)
		if err != nil {
			return fmt.Errorf("count links: %w", err)
		}
		quantity = n
		return nil
	})
	g.Go(func() error {
		l, err := s.links.ListLinksCreatedBetween(gctx, q.StartDate, q.EndDate, offset, limit)
		if err != nil {
			return fmt.Errorf("list links: %w", err)
		}
		links = l
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := make([]*model.LinkWithClicks, len(links))
	if len(links) > 0 {
		ids := make([]string, len(links))
		var owners []string
		for i, l := range links {
			ids[i] = l.ID
			if l.UserID != nil {
				owners = append(owners, *l.UserID)
			}
		}

		var (
			clicks    []*model.ClickEvent
			summaries map[string]*model.UserSummary
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			c, err := s.clicks.FindClicksByLinkIDs(gctx, ids)
			if err != nil {
				return fmt.Errorf("load clicks: %w", err)
			}
			clicks = c
			return nil
		})
		g.Go(func() error {
			if len(owners) == 0 {
				return nil
			}
			u, err := s.users.FindUserSummariesByIDs(gctx, owners)
			if err != nil {
				return fmt.Errorf("load owners: %w", err)
			}
			summaries = u
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		byLink := make(map[string][]*model.ClickEvent, len(links))
		for _, c := range clicks {
			byLink[c.LinkID] = append(byLink[c.LinkID], c)
		}
		for i, l := range links {
			entry := &model.LinkWithClicks{Link: *l, Clicks: byLink[l.ID]}
			if entry.Clicks == nil {
				entry.Clicks = []*model.ClickEvent{}
			}
			if l.UserID != nil {
				entry.Owner = summaries[*l.UserID]
			}
			series[i] = entry
		}
	}

	return &TimeSeriesReport{
		QuantityLinks: quantity,
		Page:          newPage(quantity, page, limit),
		TimeSeries:    series,
	}, nil
}

// General returns system-wide totals. The per-role user counts must add up
// to the user total; otherwise it fails with a data inconsistency error.
func (s *Service) General(ctx context.Context) (*GeneralReport, error) {
	defer s.observe(ReportGeneral, time.Now())

	var links, clicks, users int64
	roles := make([]int64, len(model.Roles))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.links.CountLinks(gctx)
		if err != nil {
			return fmt.Errorf("count links: %w", err)
		}
		links = n
		return nil
	})
	g.Go(func() error {
		n, err := s.clicks.CountClicks(gctx, model.ClickFilter{})
		if err != nil {
			return fmt.Errorf("count clicks: %w", err)
		}
		clicks = n
		return nil
	})
	g.Go(func() error {
		n, err := s.users.CountUsers(gctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		users = n
		return nil
	})
	for i, role := range model.Roles {
		g.Go(func() error {
			n, err := s.users.CountUsersByRole(gctx, role)
			if err != nil {
				return fmt.Errorf("count %s users: %w", role, err)
			}
			roles[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &GeneralReport{
		TotalLinks:        links,
		TotalClicks:       clicks,
		TotalUsers:        users,
		DistributionUsers: make([]RoleCount, len(model.Roles)),
	}
	var sum int64
	for i, role := range model.Roles {
		sum += roles[i]
		report.DistributionUsers[i] = RoleCount{Role: role, Count: roles[i]}
		switch role {
		case model.RolePremium:
			report.TotalPremiumUsers = roles[i]
		case model.RoleFree:
			report.TotalFreeUsers = roles[i]
		case model.RoleGuest:
			report.TotalGuestUsers = roles[i]
		case model.RoleAdmin:
			report.TotalAdminUsers = roles[i]
		}
	}
	if sum != users {
		s.logger.Error("user role counts do not match total", "total", users, "by_role", sum)
		return nil, apperr.Inconsistent("users by role sum to %d but total is %d", sum, users)
	}
	return report, nil
}

// LinkStats describes the clicks of one link: top locations, devices and
// browsers, a daily series for the last 30 days and the latest clicks.
func (s *Service) LinkStats(ctx context.Context, linkID string) (*LinkStatsReport, error) {
	defer s.observe(ReportLinkStats, time.Now())

	if linkID == "" {
		return nil, apperr.InvalidArgument("link_id", "is required")
	}
	link, err := s.links.FindLinkByID(ctx, linkID)
	if err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	firstDay := today.AddDate(0, 0, -(linkStatsDays - 1))
	filter := model.ClickFilter{LinkID: linkID}
	recentFilter := model.ClickFilter{LinkID: linkID, Since: &firstDay}

	var (
		dims   Result
		daily  Result
		recent []*model.ClickEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.agg.Aggregate(gctx, filter,
			model.DimensionCountry, model.DimensionCity, model.DimensionDevice, model.DimensionBrowser)
		if err != nil {
			return fmt.Errorf("aggregate link clicks: %w", err)
		}
		dims = r
		return nil
	})
	g.Go(func() error {
		r, err := s.agg.Aggregate(gctx, recentFilter, model.DimensionDay)
		if err != nil {
			return fmt.Errorf("aggregate daily clicks: %w", err)
		}
		daily = r
		return nil
	})
	g.Go(func() error {
		c, err := s.clicks.FindClicks(gctx, filter, 0, recentClickLimit)
		if err != nil {
			return fmt.Errorf("load recent clicks: %w", err)
		}
		recent = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []*model.ClickEvent{}
	}

	return &LinkStatsReport{
		Link:         link,
		TotalClicks:  dims.Total,
		TopCountries: RankTop(dims.Buckets[model.DimensionCountry], linkStatsTopLimit),
		TopCities:    RankTop(dims.Buckets[model.DimensionCity], linkStatsTopLimit),
		Devices:      RankTop(dims.Buckets[model.DimensionDevice], 0),
		Browsers:     RankTop(dims.Buckets[model.DimensionBrowser], 0),
		Daily:        dailySeries(daily.Buckets[model.DimensionDay], firstDay, linkStatsDays),
		RecentClicks: recent,
	}, nil
}

// ListClicks returns a page of clicks matching the query, newest first,
// each with its link and user.
func (s *Service) ListClicks(ctx context.Context, q ClickListQuery) (*ClickListReport, error) {
	defer s.observe(ReportClicks, time.Now())

	page, limit, err := pagination(q.Page, q.Limit, s.cfg.DefaultLimit, s.cfg.MaxLimit)
	if err != nil {
		return nil, err
	}
	filter := model.ClickFilter{
		UserID:  strings.TrimSpace(q.UserID),
		Country: strings.TrimSpace(q.Country),
		City:    strings.TrimSpace(q.City),
		Device:  strings.TrimSpace(q.Device),
		Browser: strings.TrimSpace(q.Browser),
	}
	offset := (page - 1) * limit

	var (
		quantity int64
		clicks   []*model.ClickEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.clicks.CountClicks(gctx, filter)
		if err != nil {
			return fmt.Errorf("count clicks: %w", err)
		}
		quantity = n
		return nil
	})
	g.Go(func() error {
		c, err := s.clicks.FindClicks(gctx, filter, offset, limit)
		if err != nil {
			return fmt.Errorf("list clicks: %w", err)
		}
		clicks = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details, err := s.details(ctx, clicks)
	if err != nil {
		return nil, err
	}
	return &ClickListReport{
		QuantityClicks: quantity,
		Page:           newPage(quantity, page, limit),
		Clicks:         details,
	}, nil
}

// GetClick returns one click with its link and user.
func (s *Service) GetClick(ctx context.Context, id string) (*model.ClickDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.InvalidArgument("click_id", "is required")
	}
	click, err := s.clicks.FindClickByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.details(ctx, []*model.ClickEvent{click})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// details joins clicks to their links and users with one lookup each.
func (s *Service) details(ctx context.Context, clicks []*model.ClickEvent) ([]*model.ClickDetail, error) {
	out := make([]*model.ClickDetail, len(clicks))
	if len(clicks) == 0 {
		return out, nil
	}

	linkIDs := make([]string, 0, len(clicks))
	var userIDs []string
	seen := map[string]bool{}
	for _, c := range clicks {
		if !seen["l:"+c.LinkID] {
			seen["l:"+c.LinkID] = true
			linkIDs = append(linkIDs, c.LinkID)
		}
		if c.UserID != nil && !seen["u:"+*c.UserID] {
			seen["u:"+*c.UserID] = true
			userIDs = append(userIDs, *c.UserID)
		}
	}

	var (
		links map[string]*model.Link
		users map[string]*model.UserSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := s.links.FindLinksByIDs(gctx, linkIDs)
		if err != nil {
			return fmt.Errorf("load click links: %w", err)
		}
		links = make(map[string]*model.Link, len(l))
		for _, link := range l {
			links[link.ID] = link
		}
		return nil
	})
	g.Go(func() error {
		if len(userIDs) == 0 {
			return nil
		}
		u, err := s.users.FindUserSummariesByIDs(gctx, userIDs)
		if err != nil {
			return fmt.Errorf("load click users: %w", err)
		}
		users = u
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, c := range clicks {
		d := &model.ClickDetail{ClickEvent: c, Link: links[c.LinkID]}
		if c.UserID != nil {
			d.User = users[*c.UserID]
		}
		out[i] = d
	}
	return out, nil
}

// dailySeries expands day buckets into n consecutive days from first,
// filling missing days with zero.
func dailySeries(buckets []model.Bucket, first time.Time, n int) []DailyCount {
	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Value] = b.Count
	}
	out := make([]DailyCount, n)
	for i := range out {
		day := first.AddDate(0, 0, i).Format(model.DayLayout)
		out[i] = DailyCount{Date: day, Clicks: counts[day]}
	}
	return out
}
