package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// injectTrace дописывает к заголовкам контекст трассировки (traceparent, baggage).
func injectTrace(ctx context.Context, headers []sarama.RecordHeader) []sarama.RecordHeader {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, key := range carrier.Keys() {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(carrier.Get(key))})
	}
	return headers
}

// ExtractTrace восстанавливает контекст трассировки из заголовков сообщения.
func ExtractTrace(ctx context.Context, headers []*sarama.RecordHeader) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier(headers))
}

func headerCarrier(headers []*sarama.RecordHeader) propagation.MapCarrier {
	carrier := make(propagation.MapCarrier, len(headers))
	for _, h := range headers {
		if h != nil {
			carrier[string(h.Key)] = string(h.Value)
		}
	}
	return carrier
}
