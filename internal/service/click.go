// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/penshort/linkpulse/internal/agent"
	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/cache"
	"github.com/penshort/linkpulse/internal/clientip"
	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/model"
)

// UnknownUserAgent is stored when a request carries no User-Agent header.
const UnknownUserAgent = "Unknown"

// LinkStore reads links.
type LinkStore interface {
	FindLinkByID(ctx context.Context, id string) (*model.Link, error)
	FindLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error)
}

// UserStore reads users.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// ClickStore persists click events.
type ClickStore interface {
	InsertClick(ctx context.Context, event *model.ClickEvent) error
}

// GeoResolver geolocates an IP address. It never fails.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) model.Location
}

// LinkCache caches short code lookups.
type LinkCache interface {
	GetLink(ctx context.Context, shortCode string) (*model.Link, error)
	SetLink(ctx context.Context, link *model.Link) error
	IsNegativelyCached(ctx context.Context, shortCode string) (bool, error)
	SetNegativeCache(ctx context.Context, shortCode string) error
}

// RecordClickInput defines input for recording a click.
type RecordClickInput struct {
	LinkID     string
	UserID     *string
	Header     http.Header
	RemoteAddr string
}

// ClickRecorder is the write path for clicks produced by inbound traffic.
type ClickRecorder struct {
	links      LinkStore
	users      UserStore
	clicks     ClickStore
	classifier agent.Classifier
	geo        GeoResolver
	cache      LinkCache
	logger     *slog.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// NewClickRecorder creates a new ClickRecorder.
func NewClickRecorder(
	links LinkStore,
	users UserStore,
	clicks ClickStore,
	classifier agent.Classifier,
	geo GeoResolver,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *ClickRecorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if classifier == nil {
		classifier = agent.NewParser()
	}
	return &ClickRecorder{
		links:      links,
		users:      users,
		clicks:     clicks,
		classifier: classifier,
		geo:        geo,
		logger:     logger.With("component", "service.click"),
		metrics:    recorder,
		now:        time.Now,
	}
}

// SetLinkCache enables caching of short code lookups.
func (r *ClickRecorder) SetLinkCache(c LinkCache) {
	r.cache = c
}

// Capture extracts the raw click facts from a request.
func (r *ClickRecorder) Capture(linkID string, userID *string, header http.Header, remoteAddr string) model.ClickCapture {
	if header == nil {
		header = http.Header{}
	}

	ua := strings.TrimSpace(header.Get("User-Agent"))
	if ua == "" {
		ua = UnknownUserAgent
	}
	if len(ua) > model.MaxUserAgentLength {
		ua = strings.ToValidUTF8(ua[:model.MaxUserAgentLength], "")
	}

	return model.ClickCapture{
		ID:        ulid.Make().String(),
		LinkID:    linkID,
		UserID:    normalizeUserID(userID),
		IPAddress: clientip.Resolve(header, remoteAddr),
		UserAgent: ua,
		ClickedAt: r.now().UTC(),
	}
}

// Record validates the link and optional user, enriches the request and
// stores one click event.
func (r *ClickRecorder) Record(ctx context.Context, input RecordClickInput) (*model.ClickEvent, error) {
	if strings.TrimSpace(input.LinkID) == "" {
		return nil, apperr.InvalidArgument("link_id", "is required")
	}
	return r.RecordCapture(ctx, r.Capture(input.LinkID, input.UserID, input.Header, input.RemoteAddr))
}

// RecordCapture enriches and stores a previously captured click.
func (r *ClickRecorder) RecordCapture(ctx context.Context, c model.ClickCapture) (*model.ClickEvent, error) {
	link, err := r.links.FindLinkByID(ctx, c.LinkID)
	if err != nil {
		r.metrics.IncClickRecorded(metrics.StatusFailed)
		return nil, err
	}
	return r.record(ctx, link, c)
}

// RecordByShortCode resolves an active link by short code and records a
// click against it. The link is returned so callers can redirect.
func (r *ClickRecorder) RecordByShortCode(ctx context.Context, shortCode string, userID *string, header http.Header, remoteAddr string) (*model.Link, *model.ClickEvent, error) {
	link, err := r.ResolveShortCode(ctx, shortCode)
	if err != nil {
		return nil, nil, err
	}

	event, err := r.record(ctx, link, r.Capture(link.ID, userID, header, remoteAddr))
	if err != nil {
		return link, nil, err
	}
	return link, event, nil
}

// ResolveShortCode returns the active link for shortCode, consulting the
// link cache first when one is configured. Inactive links are reported as
// not found.
func (r *ClickRecorder) ResolveShortCode(ctx context.Context, shortCode string) (*model.Link, error) {
	if r.cache != nil {
		cached, err := r.cache.GetLink(ctx, shortCode)
		switch {
		case err == nil:
			r.metrics.IncRedirectCacheHit()
			return activeLink(cached, shortCode)
		case errors.Is(err, cache.ErrCacheMiss):
			r.metrics.IncRedirectCacheMiss()
			if negative, _ := r.cache.IsNegativelyCached(ctx, shortCode); negative {
				return nil, apperr.NotFound("link", shortCode)
			}
		default:
			r.logger.Warn("link cache read failed", "short_code", shortCode, "error", err)
		}
	}

	link, err := r.links.FindLinkByShortCode(ctx, shortCode)
	if err != nil {
		if r.cache != nil && errors.Is(err, apperr.ErrNotFound) {
			if cerr := r.cache.SetNegativeCache(ctx, shortCode); cerr != nil {
				r.logger.Warn("negative cache write failed", "short_code", shortCode, "error", cerr)
			}
		}
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetLink(ctx, link); err != nil {
			r.logger.Warn("link cache write failed", "short_code", shortCode, "error", err)
		}
	}

	return activeLink(link, shortCode)
}

func (r *ClickRecorder) record(ctx context.Context, link *model.Link, c model.ClickCapture) (*model.ClickEvent, error) {
	if c.UserID != nil {
		if _, err := r.users.FindUserByID(ctx, *c.UserID); err != nil {
			r.metrics.IncClickRecorded(metrics.StatusFailed)
			return nil, err
		}
	}

	var (
		classified agent.Result
		location   model.Location
		g          errgroup.Group
	)
	g.Go(func() error {
		classified = r.classifier.Classify(c.UserAgent)
		return nil
	})
	g.Go(func() error {
		if r.geo != nil {
			location = r.geo.Resolve(ctx, c.IPAddress)
		}
		return nil
	})
	_ = g.Wait()

	clickedAt := c.ClickedAt
	if clickedAt.IsZero() {
		clickedAt = r.now().UTC()
	}
	id := c.ID
	if id == "" {
		id = ulid.Make().String()
	}

	event := &model.ClickEvent{
		ID:        id,
		LinkID:    link.ID,
		UserID:    c.UserID,
		IPAddress: c.IPAddress,
		UserAgent: c.UserAgent,
		Country:   location.Country,
		City:      location.City,
		Device:    classified.Device,
		Browser:   classified.Browser,
		CreatedAt: clickedAt,
		UpdatedAt: clickedAt,
	}

	if err := r.clicks.InsertClick(ctx, event); err != nil {
		r.metrics.IncClickRecorded(metrics.StatusFailed)
		r.logger.Error("failed to store click",
			"link_id", link.ID,
			"click_id", event.ID,
			"error", err,
		)
		return nil, err
	}

	r.metrics.IncClickRecorded(metrics.StatusSuccess)
	r.logger.Debug("click recorded",
		"link_id", link.ID,
		"click_id", event.ID,
		"ip", event.IPAddress,
		"device", event.Device,
		"browser", event.Browser,
	)

	return event, nil
}

func activeLink(link *model.Link, shortCode string) (*model.Link, error) {
	if !link.IsActive {
		return nil, apperr.NotFound("link", shortCode)
	}
	return link, nil
}

func normalizeUserID(userID *string) *string {
	if userID == nil {
		return nil
	}
	id := strings.TrimSpace(*userID)
	if id == "" {
		return nil
	}
	return &id
}
