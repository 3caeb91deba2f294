// Package outbox доставляет события заказов из transactional outbox в Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/retry"
	"github.com/vladislavdragonenkov/ordercore/internal/telemetry"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

type settings struct {
	logger         *log.Entry
	metrics        *metrics.OutboxMetrics
	dlqPublisher   domain.OutboxPublisher
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*settings)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics задаёт метрики; по умолчанию используется DefaultRegisterer.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithDLQPublisher задаёт publisher для сообщений, исчерпавших попытки.
// Без него такие сообщения только помечаются failed.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(s *settings) { s.dlqPublisher = publisher }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) { s.pollInterval = interval }
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(s *settings) { s.batchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации перед failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(s *settings) { s.maxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт базовую задержку экспоненциального backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(s *settings) { s.retryBaseDelay = delay }
}

// BatchResult — итог одного цикла опроса.
type BatchResult struct {
	Sent         int
	Failed       int
	DeadLettered int
	// Deferred — сообщения, оставленные pending из-за остановки воркера.
	Deferred int
}

// Worker публикует pending-сообщения outbox в брокер: order.created и
// order.stock_decrement_failed уходят в Kafka уже после ответа клиенту.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlqPublisher domain.OutboxPublisher
	logger       *log.Entry
	metrics      *metrics.OutboxMetrics
	tracer       trace.Tracer
	pollInterval time.Duration
	batchSize    int
	retry        retry.Config
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	s := settings{
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&s)
	}

	if s.logger == nil {
		s.logger = log.WithField("component", "outbox-worker")
	}
	if s.metrics == nil {
		s.metrics = metrics.NewOutboxMetrics()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.retryBaseDelay < 0 {
		s.retryBaseDelay = 0
	}

	return &Worker{
		repo:         repo,
		publisher:    publisher,
		dlqPublisher: s.dlqPublisher,
		logger:       s.logger,
		metrics:      s.metrics,
		tracer:       telemetry.Tracer(),
		pollInterval: s.pollInterval,
		batchSize:    s.batchSize,
		retry: retry.Config{
			MaxAttempts:   s.maxAttempts,
			InitialDelay:  s.retryBaseDelay,
			MaxDelay:      maxRetryDelay,
			Backoff:       retry.Exponential,
			BackoffFactor: 2,
		},
	}
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce публикует один батч pending-сообщений.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var result BatchResult
	if ctx.Err() != nil {
		return result
	}

	ctx, span := w.tracer.Start(ctx, "outbox.ProcessBatch")
	defer span.End()
	start := time.Now()
	defer func() { w.metrics.ObserveBatch(time.Since(start)) }()

	w.refreshBacklog(ctx)

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return result
	}
	if len(events) == 0 {
		return result
	}

	for i, event := range events {
		if ctx.Err() != nil {
			result.Deferred += len(events) - i
			break
		}
		w.deliver(ctx, event, &result)
	}

	span.SetAttributes(
		attribute.Int("outbox.batch", len(events)),
		attribute.Int("outbox.sent", result.Sent),
		attribute.Int("outbox.failed", result.Failed),
	)
	w.refreshBacklog(ctx)
	return result
}

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage, result *BatchResult) {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"order_id":   event.AggregateID,
		"event_type": event.EventType,
	})

	err := w.publishWithRetry(ctx, event, logger)
	if err == nil {
		result.Sent++
		if markErr := w.repo.MarkSent(ctx, event.ID); markErr != nil {
			logger.WithError(markErr).Warn("failed to mark outbox as sent")
		}
		return
	}

	// Попытки прерваны остановкой: сообщение дождётся следующего запуска.
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		result.Deferred++
		return
	}

	result.Failed++
	w.metrics.RecordPublish(event.EventType, metrics.OutboxFailed)
	logger.WithError(err).Error("outbox publish failed after retries")

	if w.dlqPublisher != nil {
		if dlqErr := w.publishToDLQ(ctx, event, err); dlqErr != nil {
			w.metrics.RecordPublish(event.EventType, metrics.OutboxDLQFailed)
			logger.WithError(dlqErr).Warn("failed to publish to DLQ")
		} else {
			result.DeadLettered++
			w.metrics.RecordPublish(event.EventType, metrics.OutboxDeadLettered)
		}
	}
	if markErr := w.repo.MarkFailed(ctx, event.ID); markErr != nil {
		logger.WithError(markErr).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage, logger *log.Entry) error {
	return retry.Do(ctx, w.retry, logger, nil, func(ctx context.Context, _ int) error {
		if err := w.publisher.Publish(ctx, event); err != nil {
			w.metrics.RecordPublish(event.EventType, metrics.OutboxRetryError)
			return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, err)
		}
		w.metrics.RecordPublish(event.EventType, metrics.OutboxSent)
		return nil
	})
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	var age time.Duration
	if !stats.OldestPendingAt.IsZero() {
		age = time.Since(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

func (w *Worker) publishToDLQ(ctx context.Context, event domain.OutboxMessage, publishErr error) error {
	payload, err := json.Marshal(kafka.OutboxDLQRecord{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        json.RawMessage(event.Payload),
		PublishError:   publishErr.Error(),
		DLQPublishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq record: %w", err)
	}

	dlqEvent := event
	dlqEvent.Payload = payload
	if err := w.dlqPublisher.Publish(ctx, dlqEvent); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
