package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

func recordHeader(headers []sarama.RecordHeader, key string) string {
	for _, h := range headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestOutboxPublisher_PublishWrapsEnvelope(t *testing.T) {
	t.Parallel()

	publishedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			return errors.New("unexpected topic " + msg.Topic)
		}
		if key, _ := msg.Key.Encode(); string(key) != "order-123" {
			return errors.New("message must be keyed by order id, got " + string(key))
		}
		if got := recordHeader(msg.Headers, HeaderEventType); got != string(EventTypeOrderCreated) {
			return errors.New("missing event type header: " + got)
		}
		if got := recordHeader(msg.Headers, HeaderMessageID); got != "outbox-1" {
			return errors.New("missing message id header: " + got)
		}

		raw, _ := msg.Value.Encode()
		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" || envelope.EventType != EventTypeOrderCreated || !envelope.PublishedAt.Equal(publishedAt) {
			return errors.New("unexpected envelope " + string(raw))
		}
		if string(envelope.Payload) != `{"order_id":"order-123"}` {
			return errors.New("payload must be embedded as is: " + string(envelope.Payload))
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerWithSync(sync, nil), "")
	publisher.now = func() time.Time { return publishedAt }

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: AggregateOrder,
		AggregateID:   "order-123",
		EventType:     string(EventTypeOrderCreated),
		Payload:       []byte(`{"order_id":"order-123"}`),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := sync.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_FallsBackToMessageIDKey(t *testing.T) {
	t.Parallel()

	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			return errors.New("unexpected topic " + msg.Topic)
		}
		if key, _ := msg.Key.Encode(); string(key) != "outbox-9" {
			return errors.New("expected message id as key, got " + string(key))
		}
		return nil
	})

	publisher := NewOutboxPublisher(NewProducerWithSync(sync, nil), TopicDeadLetterQueue)
	if err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-9", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := sync.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_ProducerError(t *testing.T) {
	t.Parallel()

	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(NewProducerWithSync(sync, nil), TopicOrderEvents)
	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:          "outbox-2",
		AggregateID: "order-234",
		EventType:   string(EventTypeStockDecrementFailed),
		Payload:     []byte(`{"product_id":"p1"}`),
	})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if err := sync.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}); !errors.Is(err, errPublisherNotConfigured) {
		t.Fatalf("expected not configured error, got %v", err)
	}
}
