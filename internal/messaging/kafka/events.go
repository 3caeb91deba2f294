package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// EventType определяет тип события заказа.
type EventType string

const (
	// EventTypeOrderCreated — заказ сохранён в статусе pending.
	EventTypeOrderCreated EventType = "order.created"
	// EventTypeStockDecrementFailed — списание остатка после создания заказа не удалось.
	EventTypeStockDecrementFailed EventType = "order.stock_decrement_failed"
)

// AggregateOrder — тип агрегата для событий заказа в outbox.
const AggregateOrder = "order"

// Topics для Kafka.
const (
	TopicOrderEvents     = "oms.order.events"
	TopicDeadLetterQueue = "oms.dlq"
)

// Kafka headers.
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — формат сообщения, которое outbox публикует в topic.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OrderCreatedEvent — полезная нагрузка order.created.
type OrderCreatedEvent struct {
	OrderID     string    `json:"order_id"`
	ProductIDs  []string  `json:"product_ids"`
	TotalAmount string    `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// StockDecrementFailedEvent — полезная нагрузка order.stock_decrement_failed.
type StockDecrementFailedEvent struct {
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ParseEnvelope разбирает конверт outbox-сообщения.
func ParseEnvelope(message *sarama.ConsumerMessage) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return &envelope, nil
}

// ParseStockDecrementFailed разбирает событие несписанного остатка.
// Для других типов событий возвращает ok=false.
func ParseStockDecrementFailed(message *sarama.ConsumerMessage) (event StockDecrementFailedEvent, ok bool, err error) {
	if typ := EventTypeOf(message); typ != "" && typ != EventTypeStockDecrementFailed {
		return StockDecrementFailedEvent{}, false, nil
	}
	envelope, err := ParseEnvelope(message)
	if err != nil {
		return StockDecrementFailedEvent{}, false, err
	}
	if envelope.EventType != EventTypeStockDecrementFailed {
		return StockDecrementFailedEvent{}, false, nil
	}
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return StockDecrementFailedEvent{}, false, fmt.Errorf("failed to unmarshal stock decrement event: %w", err)
	}
	return event, true, nil
}

func headerValue(headers []*sarama.RecordHeader, key string) string {
	for _, header := range headers {
		if header != nil && string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

// EventTypeOf читает тип события из заголовка, не разбирая тело сообщения.
func EventTypeOf(message *sarama.ConsumerMessage) EventType {
	return EventType(headerValue(message.Headers, HeaderEventType))
}
