package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordercore/internal/telemetry"
)

const (
	defaultProducerRetries = 5
	defaultCompression     = "snappy"
)

// ProducerConfig задаёт параметры подключения producer.
type ProducerConfig struct {
	Brokers  []string
	ClientID string
	// MaxRetries — повторы внутри sarama до возврата ошибки; 0 — 5.
	MaxRetries int
	// Compression: none, gzip, snappy, lz4 или zstd; пусто — snappy.
	Compression string
}

// saramaConfig собирает идемпотентный синхронный producer: acks=all и
// один запрос в полёте, чтобы повторы sarama не меняли порядок сообщений.
func saramaConfig(cfg ProducerConfig) (*sarama.Config, error) {
	config := sarama.NewConfig()
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultProducerRetries
	}
	compression := cfg.Compression
	if compression == "" {
		compression = defaultCompression
	}
	if err := config.Producer.Compression.UnmarshalText([]byte(compression)); err != nil {
		return nil, fmt.Errorf("kafka compression %q: %w", compression, err)
	}

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = retries
	config.Producer.Return.Successes = true
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka producer config: %w", err)
	}
	return config, nil
}

// Producer публикует JSON-события в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
	tracer   trace.Tracer
}

// NewProducer подключается к brokers.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	config, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer to %v: %w", cfg.Brokers, err)
	}
	return NewProducerWithSync(producer, nil), nil
}

// NewProducerWithSync оборачивает готовый sarama.SyncProducer (в тестах — mocks).
func NewProducerWithSync(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: producer, logger: logger, tracer: telemetry.Tracer()}
}

// PublishEvent кодирует event в JSON и синхронно отправляет его в topic.
// Контекст трассировки уходит в заголовках сообщения.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any, headers ...sarama.RecordHeader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %T for %s: %w", event, topic, err)
	}

	ctx, span := p.tracer.Start(ctx, "kafka.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", topic),
		))
	defer span.End()

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   injectTrace(ctx, headers),
		Timestamp: time.Now().UTC(),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	logger := p.logger.WithFields(log.Fields{"topic": topic, "key": key})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		logger.WithError(err).Warn("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	span.SetAttributes(attribute.Int64("messaging.kafka.offset", offset))
	logger.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("kafka message sent")
	return nil
}

// Close сбрасывает буферы и закрывает соединения.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
