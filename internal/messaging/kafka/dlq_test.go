package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestDecodeDLQ_ConsumerRecord(t *testing.T) {
	original := mustJSON(t, Envelope{ID: "evt-1", AggregateID: "order-1", EventType: EventTypeStockDecrementFailed, Payload: json.RawMessage(`{}`)})
	message := &sarama.ConsumerMessage{Value: mustJSON(t, ConsumerDLQRecord{
		OriginalTopic: TopicOrderEvents,
		OriginalKey:   "order-1",
		OriginalValue: string(original),
		ErrorMessage:  "boom",
	})}

	got, err := DecodeDLQ(message, "fallback")
	if err != nil {
		t.Fatalf("DecodeDLQ failed: %v", err)
	}
	if got.Topic != TopicOrderEvents || got.Key != "order-1" {
		t.Fatalf("unexpected routing: %+v", got)
	}
	if got.EventType != EventTypeStockDecrementFailed {
		t.Fatalf("unexpected event type: %s", got.EventType)
	}
	if string(got.Value) != string(original) {
		t.Fatalf("original value must be replayed as is: %s", got.Value)
	}
}

func TestDecodeDLQ_ConsumerRecordTopicFromHeader(t *testing.T) {
	message := &sarama.ConsumerMessage{
		Value:   mustJSON(t, ConsumerDLQRecord{OriginalKey: "k", OriginalValue: `{"id":"1"}`}),
		Headers: []*sarama.RecordHeader{{Key: []byte(HeaderOriginalTopic), Value: []byte("custom.topic")}},
	}
	got, err := DecodeDLQ(message, "fallback")
	if err != nil {
		t.Fatalf("DecodeDLQ failed: %v", err)
	}
	if got.Topic != "custom.topic" {
		t.Fatalf("expected topic from header, got %s", got.Topic)
	}

	message.Headers = nil
	got, err = DecodeDLQ(message, "fallback")
	if err != nil {
		t.Fatalf("DecodeDLQ failed: %v", err)
	}
	if got.Topic != "fallback" {
		t.Fatalf("expected default topic, got %s", got.Topic)
	}
}

func TestDecodeDLQ_OutboxRecord(t *testing.T) {
	record := OutboxDLQRecord{
		OutboxID:      "outbox-1",
		AggregateType: AggregateOrder,
		AggregateID:   "order-1",
		EventType:     string(EventTypeOrderCreated),
		Payload:       json.RawMessage(`{"order_id":"order-1"}`),
		PublishError:  "timeout",
	}
	message := &sarama.ConsumerMessage{Value: mustJSON(t, Envelope{
		ID:            "outbox-1",
		AggregateType: AggregateOrder,
		AggregateID:   "order-1",
		EventType:     EventTypeOrderCreated,
		Payload:       mustJSON(t, record),
	})}

	got, err := DecodeDLQ(message, TopicOrderEvents)
	if err != nil {
		t.Fatalf("DecodeDLQ failed: %v", err)
	}
	if got.Topic != TopicOrderEvents || got.Key != "order-1" || got.EventType != EventTypeOrderCreated {
		t.Fatalf("unexpected replay: %+v", got)
	}

	var envelope Envelope
	if err := json.Unmarshal(got.Value, &envelope); err != nil {
		t.Fatalf("replay value must be an envelope: %v", err)
	}
	if envelope.ID != "outbox-1" || string(envelope.Payload) != `{"order_id":"order-1"}` {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.PublishedAt.IsZero() {
		t.Fatal("replay envelope must be re-stamped")
	}
}

func TestDecodeDLQ_Errors(t *testing.T) {
	tests := []struct {
		name    string
		value   []byte
		wantErr error
	}{
		{name: "empty", value: nil, wantErr: ErrNotReplayable},
		{name: "unknown shape", value: []byte(`{"foo":"bar"}`), wantErr: ErrNotReplayable},
		{name: "not json", value: []byte(`garbage`), wantErr: ErrNotReplayable},
		{name: "outbox record without payload", value: mustJSON(t, Envelope{
			ID:      "outbox-1",
			Payload: mustJSON(t, OutboxDLQRecord{OutboxID: "outbox-1"}),
		})},
		{name: "consumer record with invalid original", value: mustJSON(t, ConsumerDLQRecord{OriginalValue: "{broken"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDLQ(&sarama.ConsumerMessage{Value: tt.value}, TopicOrderEvents)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
