package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// ConsumerDLQRecord пишет Consumer, когда обработчик исчерпал попытки.
type ConsumerDLQRecord struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

// OutboxDLQRecord лежит в Payload конверта, который outbox-воркер отправляет
// в DLQ после исчерпания попыток публикации.
type OutboxDLQRecord struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error,omitempty"`
	DLQPublishedAt string          `json:"dlq_published_at,omitempty"`
}

// ReplayMessage — исходное событие, восстановленное из DLQ.
type ReplayMessage struct {
	Topic     string
	Key       string
	EventType EventType
	Value     json.RawMessage
}

// ErrNotReplayable — запись DLQ не похожа ни на один известный формат.
var ErrNotReplayable = errors.New("dlq record is not replayable")

// DecodeDLQ восстанавливает исходное событие из записи DLQ. Записи consumer
// возвращаются в исходный topic (или defaultTopic), записи outbox заново
// заворачиваются в Envelope и адресуются в defaultTopic.
func DecodeDLQ(message *sarama.ConsumerMessage, defaultTopic string) (ReplayMessage, error) {
	if message == nil || len(message.Value) == 0 {
		return ReplayMessage{}, ErrNotReplayable
	}

	var consumerRecord ConsumerDLQRecord
	if err := json.Unmarshal(message.Value, &consumerRecord); err == nil && consumerRecord.OriginalValue != "" {
		value := []byte(consumerRecord.OriginalValue)
		if !json.Valid(value) {
			return ReplayMessage{}, fmt.Errorf("original value of %s is not valid JSON", consumerRecord.OriginalTopic)
		}
		topic := strings.TrimSpace(consumerRecord.OriginalTopic)
		if topic == "" {
			topic = strings.TrimSpace(headerValue(message.Headers, HeaderOriginalTopic))
		}
		if topic == "" {
			topic = defaultTopic
		}
		var envelope Envelope
		_ = json.Unmarshal(value, &envelope)
		return ReplayMessage{
			Topic:     topic,
			Key:       consumerRecord.OriginalKey,
			EventType: envelope.EventType,
			Value:     value,
		}, nil
	}

	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return ReplayMessage{}, ErrNotReplayable
	}
	var record OutboxDLQRecord
	if err := json.Unmarshal(envelope.Payload, &record); err != nil {
		return ReplayMessage{}, fmt.Errorf("decode outbox dlq record: %w", err)
	}
	if len(record.Payload) == 0 || string(record.Payload) == "null" {
		return ReplayMessage{}, errors.New("outbox dlq record does not contain original event payload")
	}

	replay := Envelope{
		ID:            firstNonEmpty(record.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(record.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(record.AggregateID, envelope.AggregateID),
		EventType:     EventType(firstNonEmpty(record.EventType, string(envelope.EventType))),
		Payload:       record.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return ReplayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	return ReplayMessage{
		Topic:     defaultTopic,
		Key:       firstNonEmpty(replay.AggregateID, replay.ID),
		EventType: replay.EventType,
		Value:     encoded,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
