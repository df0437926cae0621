package analytics

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

// memStore is an in-memory LinkStore, UserStore and ClickStore.
type memStore struct {
	mu     sync.Mutex
	links  []*model.Link
	users  []*model.User
	clicks []*model.ClickEvent

	// roleSkew is added to CountUsers to simulate inconsistent data.
	roleSkew int64
	// failDim makes GroupClicks fail for one dimension.
	failDim model.Dimension
	queries atomic.Int64
}

func (m *memStore) CountLinks(ctx context.Context) (int64, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.links)), nil
}

func (m *memStore) FindLinkByID(ctx context.Context, id string) (*model.Link, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, apperr.NotFound("link", id)
}

func (m *memStore) FindLinksByIDs(ctx context.Context, ids []string) ([]*model.Link, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Link
	for _, l := range m.links {
		for _, id := range ids {
			if l.ID == id {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (m *memStore) linksBetween(start, end *time.Time) []*model.Link {
	var out []*model.Link
	for _, l := range m.links {
		if start != nil && l.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && l.CreatedAt.After(*end) {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListLinksCreatedBetween(ctx context.Context, start, end *time.Time, offset, limit int) ([]*model.Link, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.linksBetween(start, end)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) CountLinksCreatedBetween(ctx context.Context, start, end *time.Time) (int64, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.linksBetween(start, end))), nil
}

func (m *memStore) CountUsers(ctx context.Context) (int64, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)) + m.roleSkew, nil
}

func (m *memStore) CountUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindUserSummariesByIDs(ctx context.Context, ids []string) (map[string]*model.UserSummary, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]*model.UserSummary{}
	for _, u := range m.users {
		for _, id := range ids {
			if u.ID == id {
				out[id] = &model.UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email}
			}
		}
	}
	return out, nil
}

func (m *memStore) matching(filter model.ClickFilter) []*model.ClickEvent {
	var out []*model.ClickEvent
	for _, c := range m.clicks {
		if filter.Since != nil && c.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.LinkID != "" && c.LinkID != filter.LinkID {
			continue
		}
		if filter.UserID != "" && (c.UserID == nil || *c.UserID != filter.UserID) {
			continue
		}
		if !containsFold(dimensionValue(c, model.DimensionCountry), filter.Country) ||
			!containsFold(dimensionValue(c, model.DimensionCity), filter.City) ||
			!containsFold(c.Device, filter.Device) ||
			!containsFold(c.Browser, filter.Browser) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func containsFold(value, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(substr))
}

func (m *memStore) CountClicks(ctx context.Context, filter model.ClickFilter) (int64, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func dimensionValue(c *model.ClickEvent, dim model.Dimension) string {
	var v string
	switch dim {
	case model.DimensionCountry:
		if c.Country != nil {
			v = *c.Country
		}
	case model.DimensionCity:
		if c.City != nil {
			v = *c.City
		}
	case model.DimensionDevice:
		v = c.Device
	case model.DimensionBrowser:
		v = c.Browser
	case model.DimensionLink:
		v = c.LinkID
	case model.DimensionDay:
		v = c.CreatedAt.UTC().Format(model.DayLayout)
	}
	return strings.TrimSpace(v)
}

func (m *memStore) group(dim model.Dimension, filter model.ClickFilter) []model.Bucket {
	var out []model.Bucket
	index := map[string]int{}
	for _, c := range m.matching(filter) {
		v := dimensionValue(c, dim)
		if v == "" {
			continue
		}
		i, ok := index[v]
		if !ok {
			i = len(out)
			index[v] = i
			out = append(out, model.Bucket{Value: v})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func (m *memStore) GroupClicks(ctx context.Context, dim model.Dimension, filter model.ClickFilter) ([]model.Bucket, error) {
	m.queries.Add(1)
	if dim == m.failDim {
		return nil, apperr.Store("click_event", string(dim), context.DeadlineExceeded)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.group(dim, filter), nil
}

func (m *memStore) GroupClicksByLink(ctx context.Context, filter model.ClickFilter, offset, limit int) ([]model.Bucket, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.group(model.DimensionLink, filter)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) CountDistinctLinks(ctx context.Context, filter model.ClickFilter) (int64, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.group(model.DimensionLink, filter))), nil
}

func (m *memStore) FindClicks(ctx context.Context, filter model.ClickFilter, offset, limit int) ([]*model.ClickEvent, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(filter)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) FindClickByID(ctx context.Context, id string) (*model.ClickEvent, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clicks {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperr.NotFound("click", id)
}

func (m *memStore) FindClicksByLinkIDs(ctx context.Context, linkIDs []string) ([]*model.ClickEvent, error) {
	m.queries.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ClickEvent
	for _, c := range m.clicks {
		for _, id := range linkIDs {
			if c.LinkID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// addClicks appends n clicks for linkID at the given time.
func (m *memStore) addClicks(linkID string, n int, at time.Time, country, city, device, browser string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		c := &model.ClickEvent{
			ID:        linkID + "-" + at.Format(time.RFC3339Nano) + "-" + string(rune('a'+len(m.clicks)%26)),
			LinkID:    linkID,
			Device:    device,
			Browser:   browser,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if country != "" {
			c.Country = &country
		}
		if city != "" {
			c.City = &city
		}
		m.clicks = append(m.clicks, c)
	}
}
