// Package ingest queues captured clicks on a Redis stream so redirects do not
// wait on enrichment, and drains the stream into the click store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/model"
)

const (
	// StreamKey is the Redis stream for captured clicks.
	StreamKey = "stream:clicks"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:clicks:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond

	// FallbackTimeout bounds a direct write after a failed publish.
	FallbackTimeout = 10 * time.Second
)

// ClickPayload is the compact stream encoding of a model.ClickCapture.
type ClickPayload struct {
	ID        string  `json:"id"`
	LinkID    string  `json:"lid"`
	UserID    *string `json:"uid,omitempty"`
	IPAddress string  `json:"ip"`
	UserAgent string  `json:"ua"`
	ClickedAt int64   `json:"t"` // Unix milliseconds
}

// NewPayload encodes a capture for the stream.
func NewPayload(c model.ClickCapture) ClickPayload {
	return ClickPayload{
		ID:        c.ID,
		LinkID:    c.LinkID,
		UserID:    c.UserID,
		IPAddress: c.IPAddress,
		UserAgent: c.UserAgent,
		ClickedAt: c.ClickedAt.UnixMilli(),
	}
}

// Capture decodes the payload back into a capture.
func (p ClickPayload) Capture() model.ClickCapture {
	return model.ClickCapture{
		ID:        p.ID,
		LinkID:    p.LinkID,
		UserID:    p.UserID,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		ClickedAt: time.UnixMilli(p.ClickedAt).UTC(),
	}
}

// Recorder stores a captured click. It is satisfied by
// *service.ClickRecorder.
type Recorder interface {
	RecordCapture(ctx context.Context, c model.ClickCapture) (*model.ClickEvent, error)
}

// Publisher enqueues captured clicks to the Redis stream.
type Publisher struct {
	redis    *redis.Client
	fallback Recorder
	logger   *slog.Logger
	metrics  metrics.Recorder

	inflight sync.WaitGroup
}

// NewPublisher creates a new click publisher. When fallback is non-nil,
// captures that cannot be published are written through it directly.
func NewPublisher(client *redis.Client, fallback Recorder, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:    client,
		fallback: fallback,
		logger:   logger.With("component", "ingest.publisher"),
		metrics:  recorder,
	}
}

// Publish adds a capture to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, c model.ClickCapture) (string, error) {
	data, err := json.Marshal(NewPayload(c))
	if err != nil {
		return "", fmt.Errorf("marshal capture: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller. A failed publish falls
// back to a direct write; the click is dropped only if that fails too.
func (p *Publisher) PublishAsync(c model.ClickCapture) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, c)
		if err == nil {
			p.logger.Debug("click published",
				"click_id", c.ID,
				"stream_id", streamID,
			)
			p.metrics.IncClickPublished(metrics.PublishSuccess)
			return
		}

		p.logger.Warn("failed to publish click",
			"click_id", c.ID,
			"link_id", c.LinkID,
			"error", err,
		)
		p.writeThrough(c)
	}()
}

// Shutdown waits for asynchronous publishes and their direct writes to
// finish. It matches server.ShutdownFunc; call it once no new clicks arrive.
func (p *Publisher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publisher shutdown: %w", ctx.Err())
	}
}

func (p *Publisher) writeThrough(c model.ClickCapture) {
	if p.fallback == nil {
		p.metrics.IncClickPublished(metrics.PublishDropped)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), FallbackTimeout)
	defer cancel()

	if _, err := p.fallback.RecordCapture(ctx, c); err != nil {
		p.logger.Error("click dropped",
			"click_id", c.ID,
			"link_id", c.LinkID,
			"error", err,
		)
		p.metrics.IncClickPublished(metrics.PublishDropped)
	}
}
