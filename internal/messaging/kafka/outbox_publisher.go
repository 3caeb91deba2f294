package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// HeaderMessageID несёт ID outbox-сообщения для дедупликации у потребителей.
const HeaderMessageID = "x-message-id"

var errPublisherNotConfigured = errors.New("kafka outbox publisher has no producer")

// OutboxPublisher отправляет outbox-сообщения в Kafka в виде Envelope.
type OutboxPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт publisher для topic; пустой topic — TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxPublisher{
		producer: producer,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish отправляет сообщение с ключом партиционирования по заказу:
// события одного заказа попадают в одну партицию и читаются по порядку.
func (p *OutboxPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotConfigured
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.PublishEvent(ctx, p.topic, key,
		Envelope{
			ID:            msg.ID,
			AggregateType: msg.AggregateType,
			AggregateID:   msg.AggregateID,
			EventType:     EventType(msg.EventType),
			Payload:       json.RawMessage(msg.Payload),
			PublishedAt:   p.now(),
		},
		sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte(msg.EventType)},
		sarama.RecordHeader{Key: []byte(HeaderMessageID), Value: []byte(msg.ID)},
	)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
