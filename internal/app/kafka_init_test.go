package app

import (
	"context"
	"testing"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func TestStartKafkaProducer_NoBrokers(t *testing.T) {
	health := healthcheck.NewHandler("test")

	producer := startKafkaProducer(producerSettings{clientID: "order-service"}, health, log.WithField("test", "kafka"))
	require.Nil(t, producer)

	status, checks := health.Evaluate(context.Background())
	require.Equal(t, healthcheck.StatusHealthy, status)
	require.Empty(t, checks)
}

func TestStartKafkaProducer_FailureRegistersOptionalCheck(t *testing.T) {
	tests := []struct {
		name     string
		settings producerSettings
	}{
		{name: "unreachable broker", settings: producerSettings{brokers: []string{"127.0.0.1:1"}, clientID: "order-service"}},
		{name: "unknown compression", settings: producerSettings{brokers: []string{"127.0.0.1:1"}, clientID: "order-service", compression: "brotli"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := healthcheck.NewHandler("test")

			producer := startKafkaProducer(tt.settings, health, log.WithField("test", "kafka"))
			require.Nil(t, producer)

			status, checks := health.Evaluate(context.Background())
			require.Equal(t, healthcheck.StatusDegraded, status)
			require.Contains(t, checks, "kafka")
			require.Contains(t, checks["kafka"].Message, "order-service")
		})
	}
}

func TestStartKafkaProducer_FailureWithoutHealth(t *testing.T) {
	producer := startKafkaProducer(producerSettings{brokers: []string{"127.0.0.1:1"}}, nil, log.WithField("test", "kafka"))
	require.Nil(t, producer)
}

func TestOutboxFor(t *testing.T) {
	repo := memory.NewOutboxRepository()

	cfg := DefaultOrderServiceConfig()
	cfg.KafkaBrokers = nil
	require.Nil(t, outboxFor(cfg, repo), "without brokers nothing drains the outbox")

	cfg.KafkaBrokers = []string{"localhost:9092"}
	require.Equal(t, domain.OutboxRepository(repo), outboxFor(cfg, repo))
}

func TestCloseKafka(t *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka"))

	sync := mocks.NewSyncProducer(t, nil)
	closeKafka(kafka.NewProducerWithSync(sync, nil), log.WithField("test", "kafka"))
}
