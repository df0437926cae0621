package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/metrics"
	"github.com/penshort/linkpulse/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "click_recorders"

	// DefaultBatchSize is the max messages read per batch.
	DefaultBatchSize = 100

	// DefaultConcurrency is how many captures of a batch are enriched at once.
	DefaultConcurrency = 8

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the max attempts for a failing capture per batch.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the first retry delay; it doubles per attempt.
	DefaultRetryBackoff = time.Second

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second

	ackTimeout = 2 * time.Second
)

// item is one stream message decoded into a capture.
type item struct {
	msg     redis.XMessage
	capture model.ClickCapture
}

// Worker drains the click stream through a Recorder.
type Worker struct {
	redis           *redis.Client
	recorder        Recorder
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	concurrency     int
	blockTimeout    time.Duration
	maxRetries      int
	retryBackoff    time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new ingest worker.
func NewWorker(client *redis.Client, recorder Recorder, logger *slog.Logger, consumerID string, m metrics.Recorder) *Worker {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		recorder:        recorder,
		logger:          logger.With("component", "ingest.worker", "consumer_id", consumerID),
		metrics:         m,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		concurrency:     DefaultConcurrency,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		retryBackoff:    DefaultRetryBackoff,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

// Run starts the worker loop. Blocks until context is cancelled or Shutdown
// is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("ingest worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("ingest worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("ingest worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				sleep(ctx, time.Second)
			}
		}
	}
}

// Shutdown stops the worker, waiting for the in-flight batch.
// It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("ingest worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("ingest worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("ingest worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetConcurrency overrides how many captures are enriched at once.
func (w *Worker) SetConcurrency(n int) {
	if n > 0 {
		w.concurrency = n
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimInterval overrides the default pending-claim interval.
func (w *Worker) SetClaimInterval(interval time.Duration) {
	if interval > 0 {
		w.claimInterval = interval
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// SetMetricsInterval overrides the default metrics refresh interval.
func (w *Worker) SetMetricsInterval(interval time.Duration) {
	if interval > 0 {
		w.metricsInterval = interval
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and processes a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	if len(messages) == 0 {
		return nil
	}

	items, rejected := w.parseMessages(ctx, messages)

	finished, err := w.processWithRetry(ctx, items)
	if ackErr := w.ackMessages(ctx, append(rejected, finished...)); ackErr != nil {
		return ackErr
	}
	// Unfinished messages stay pending and are reclaimed later.
	return err
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetIngestQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if err == redis.Nil || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return streams[0].Messages, nil
}

// parseMessages decodes messages into captures. Malformed messages are moved
// to the dead-letter stream and their IDs returned for acknowledgement.
func (w *Worker) parseMessages(ctx context.Context, messages []redis.XMessage) ([]item, []string) {
	items := make([]item, 0, len(messages))
	var rejected []string

	for _, msg := range messages {
		raw, ok := msg.Values["payload"].(string)
		if !ok {
			w.deadLetter(ctx, msg, "invalid_format", "payload field missing or not a string")
			rejected = append(rejected, msg.ID)
			continue
		}

		var payload ClickPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			w.deadLetter(ctx, msg, "unmarshal_error", err.Error())
			rejected = append(rejected, msg.ID)
			continue
		}
		if err := ValidatePayload(payload); err != nil {
			w.deadLetter(ctx, msg, "validation_error", err.Error())
			rejected = append(rejected, msg.ID)
			continue
		}

		items = append(items, item{msg: msg, capture: payload.Capture()})
	}

	return items, rejected
}

// processWithRetry records items, retrying transient failures with
// exponential backoff. It returns the IDs of messages that are finished,
// either stored or dead-lettered.
func (w *Worker) processWithRetry(ctx context.Context, items []item) ([]string, error) {
	var finished []string
	remaining := items

	for attempt := 1; len(remaining) > 0; attempt++ {
		done, failed, lastErr := w.processBatch(ctx, remaining)
		finished = append(finished, done...)
		if len(failed) == 0 {
			return finished, nil
		}

		if attempt >= w.maxRetries || ctx.Err() != nil {
			for range failed {
				w.metrics.IncClickProcessed(metrics.ProcessFailed)
			}
			if ctx.Err() != nil {
				return finished, ctx.Err()
			}
			return finished, fmt.Errorf("%d captures failed after %d attempts: %w", len(failed), attempt, lastErr)
		}

		backoff := w.retryBackoff << (attempt - 1)
		w.logger.Warn("capture processing failed, retrying",
			"attempt", attempt,
			"failed", len(failed),
			"backoff_seconds", backoff.Seconds(),
			"error", lastErr,
		)
		if !sleep(ctx, backoff) {
			return finished, ctx.Err()
		}
		remaining = failed
	}

	return finished, nil
}

// processBatch records items concurrently. Captures whose link or user no
// longer exists are dead-lettered; other failures are returned for retry.
func (w *Worker) processBatch(ctx context.Context, items []item) (done []string, failed []item, lastErr error) {
	start := time.Now()
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(w.concurrency)

	for _, it := range items {
		g.Go(func() error {
			_, err := w.recorder.RecordCapture(ctx, it.capture)

			switch kind := apperr.KindOf(err); {
			case err == nil:
				w.metrics.IncClickProcessed(metrics.ProcessSuccess)
				w.metrics.ObserveIngestLag(time.Since(it.capture.ClickedAt))
			case kind == apperr.KindNotFound || kind == apperr.KindInvalidArgument:
				w.deadLetter(ctx, it.msg, "rejected", err.Error())
			default:
				mu.Lock()
				failed = append(failed, it)
				lastErr = err
				mu.Unlock()
				return nil
			}

			mu.Lock()
			done = append(done, it.msg.ID)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	w.logger.Debug("batch processed",
		"batch_size", len(items),
		"stored_or_rejected", len(done),
		"failed", len(failed),
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	return done, failed, lastErr
}

// deadLetter moves a poison message to the dead-letter stream.
func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering click message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter stream",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncClickProcessed(metrics.ProcessDeadLetter)
}

// ackMessages acknowledges finished messages. It uses its own deadline so
// work completed before cancellation is still acknowledged.
func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()

	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
