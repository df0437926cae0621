package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penshort/linkpulse/internal/analytics"
	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

// AnalyticsService builds the analytics reports.
type AnalyticsService interface {
	General(ctx context.Context) (*analytics.GeneralReport, error)
	TopLinks(ctx context.Context, q analytics.TopLinksQuery) (*analytics.TopLinksReport, error)
	Geographic(ctx context.Context) (*analytics.GeographicReport, error)
	DeviceBrowserDistribution(ctx context.Context) (*analytics.DeviceBrowserReport, error)
	ConversionRate(ctx context.Context) (*analytics.ConversionReport, error)
	TimeSeries(ctx context.Context, q analytics.TimeSeriesQuery) (*analytics.TimeSeriesReport, error)
	LinkStats(ctx context.Context, linkID string) (*analytics.LinkStatsReport, error)
	ListClicks(ctx context.Context, q analytics.ClickListQuery) (*analytics.ClickListReport, error)
	GetClick(ctx context.Context, id string) (*model.ClickDetail, error)
}

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	svc    AnalyticsService
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc:    svc,
		logger: logger.With("component", "handler.analytics"),
	}
}

// General handles GET /api/v1/analytics/general.
func (h *AnalyticsHandler) General(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.General(r.Context())
	h.respond(w, report, err)
}

// TopLinks handles GET /api/v1/analytics/top-links?period=&page=&limit=.
func (h *AnalyticsHandler) TopLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := parsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	report, err := h.svc.TopLinks(r.Context(), analytics.TopLinksQuery{
		Period: strings.TrimSpace(q.Get("period")),
		Page:   page,
		Limit:  limit,
	})
	h.respond(w, report, err)
}

// Geographic handles GET /api/v1/analytics/geographic.
func (h *AnalyticsHandler) Geographic(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Geographic(r.Context())
	h.respond(w, report, err)
}

// DeviceBrowserDistribution handles GET /api/v1/analytics/device-browser-distribution.
func (h *AnalyticsHandler) DeviceBrowserDistribution(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.DeviceBrowserDistribution(r.Context())
	h.respond(w, report, err)
}

// ConversionRate handles GET /api/v1/analytics/conversion-rate.
func (h *AnalyticsHandler) ConversionRate(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ConversionRate(r.Context())
	h.respond(w, report, err)
}

// TimeSeries handles GET /api/v1/analytics/time-series?page=&limit=&startDate=&endDate=.
func (h *AnalyticsHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := parsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	start, err := parseDate("startDate", q.Get("startDate"), false)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	end, err := parseDate("endDate", q.Get("endDate"), true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	report, err := h.svc.TimeSeries(r.Context(), analytics.TimeSeriesQuery{
		Page:      page,
		Limit:     limit,
		StartDate: start,
		EndDate:   end,
	})
	h.respond(w, report, err)
}

// LinkStats handles GET /api/v1/links/{linkID}/stats.
func (h *AnalyticsHandler) LinkStats(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.LinkStats(r.Context(), chi.URLParam(r, "linkID"))
	h.respond(w, report, err)
}

// ListClicks handles GET /api/v1/clicks?page=&limit=&country=&city=&device=&browser=&userId=.
func (h *AnalyticsHandler) ListClicks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := parsePage(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	report, err := h.svc.ListClicks(r.Context(), analytics.ClickListQuery{
		Page:    page,
		Limit:   limit,
		Country: q.Get("country"),
		City:    q.Get("city"),
		Device:  q.Get("device"),
		Browser: q.Get("browser"),
		UserID:  q.Get("userId"),
	})
	h.respond(w, report, err)
}

// GetClick handles GET /api/v1/clicks/{clickID}.
func (h *AnalyticsHandler) GetClick(w http.ResponseWriter, r *http.Request) {
	click, err := h.svc.GetClick(r.Context(), chi.URLParam(r, "clickID"))
	h.respond(w, click, err)
}

func (h *AnalyticsHandler) respond(w http.ResponseWriter, report any, err error) {
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// parsePage reads optional page and limit parameters. Absent values are
// zero so the service applies its defaults.
func parsePage(pageStr, limitStr string) (int, int, error) {
	page, err := parseInt("page", pageStr)
	if err != nil {
		return 0, 0, err
	}
	limit, err := parseInt("limit", limitStr)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func parseInt(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.InvalidArgument(field, "must be an integer")
	}
	if n == 0 {
		return 0, apperr.InvalidArgument(field, "must be at least 1")
	}
	return n, nil
}

// parseDate accepts RFC 3339 timestamps or YYYY-MM-DD dates. A bare date
// used as an upper bound covers the whole day.
func parseDate(field, s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, apperr.InvalidArgument(field, "must be RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
