package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/handler/dto"
	"github.com/penshort/linkpulse/internal/model"
	"github.com/penshort/linkpulse/internal/service"
)

// ClickRecorder records clicks synchronously.
type ClickRecorder interface {
	Record(ctx context.Context, input service.RecordClickInput) (*model.ClickEvent, error)
	RecordByShortCode(ctx context.Context, shortCode string, userID *string, header http.Header, remoteAddr string) (*model.Link, *model.ClickEvent, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*model.Link, error)
	Capture(linkID string, userID *string, header http.Header, remoteAddr string) model.ClickCapture
}

// ClickPublisher queues captured clicks for background recording.
type ClickPublisher interface {
	PublishAsync(c model.ClickCapture)
}

// ClickHandler serves click ingestion and short link redirects.
type ClickHandler struct {
	recorder  ClickRecorder
	publisher ClickPublisher
	logger    *slog.Logger
}

// NewClickHandler creates a ClickHandler. With a nil publisher redirects
// record clicks inline; otherwise they are queued.
func NewClickHandler(recorder ClickRecorder, publisher ClickPublisher, logger *slog.Logger) *ClickHandler {
	return &ClickHandler{
		recorder:  recorder,
		publisher: publisher,
		logger:    logger.With("component", "handler.click"),
	}
}

// Record handles POST /api/v1/links/{linkID}/clicks.
func (h *ClickHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, apperr.InvalidArgument("body", "must be a JSON object"))
		return
	}

	event, err := h.recorder.Record(r.Context(), service.RecordClickInput{
		LinkID:     chi.URLParam(r, "linkID"),
		UserID:     req.UserID,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToClickResponse(event))
}

// Redirect handles GET /r/{shortCode}. The click is recorded inline or
// queued depending on configuration. Failing to record a click never
// blocks the redirect of a known link.
func (h *ClickHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	start := time.Now()

	var (
		link *model.Link
		err  error
	)
	if h.publisher == nil {
		link, _, err = h.recorder.RecordByShortCode(r.Context(), shortCode, nil, r.Header, r.RemoteAddr)
	} else {
		link, err = h.recorder.ResolveShortCode(r.Context(), shortCode)
		if err == nil {
			h.publisher.PublishAsync(h.recorder.Capture(link.ID, nil, r.Header, r.RemoteAddr))
		}
	}
	duration := time.Since(start)

	if link == nil {
		if errors.Is(err, apperr.ErrNotFound) {
			h.logger.Info("redirect_not_found",
				"short_code", shortCode,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
		}
		w.Header().Set("Cache-Control", "private, max-age=0")
		writeError(w, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Error("click not recorded",
			"short_code", shortCode,
			"link_id", link.ID,
			"error", err,
		)
	}

	h.logger.Info("redirect_success",
		"short_code", shortCode,
		"link_id", link.ID,
		"queued", h.publisher != nil,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}
