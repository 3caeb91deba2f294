package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
)

// producerSettings — параметры producer одного процесса.
type producerSettings struct {
	brokers     []string
	clientID    string
	compression string
}

// startKafkaProducer подключает producer. Без brokers процесс работает без
// Kafka. Ошибка подключения не останавливает старт: в health появляется
// необязательная проверка "kafka", а события остаются в outbox.
func startKafkaProducer(settings producerSettings, health *healthcheck.Handler, logger *log.Entry) *kafka.Producer {
	if len(settings.brokers) == 0 {
		return nil
	}
	logger = logger.WithFields(log.Fields{"brokers": settings.brokers, "client_id": settings.clientID})

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     settings.brokers,
		ClientID:    settings.clientID,
		Compression: settings.compression,
	})
	if err != nil {
		logger.WithError(err).Warn("kafka producer unavailable, continuing without kafka")
		if health != nil {
			health.RegisterChecker("kafka", healthcheck.NewOptionalChecker("kafka", func(context.Context) error {
				return fmt.Errorf("producer %s unavailable: %w", settings.clientID, err)
			}))
		}
		return nil
	}

	logger.Info("kafka producer connected")
	return producer
}

// outboxFor отдаёт оркестратору outbox только при настроенной Kafka:
// без brokers публиковать некому, и записи копились бы без конца.
func outboxFor(cfg OrderServiceConfig, repo domain.OutboxRepository) domain.OutboxRepository {
	if len(cfg.KafkaBrokers) == 0 {
		return nil
	}
	return repo
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("kafka producer close failed")
		return
	}
	logger.Info("kafka producer closed")
}
