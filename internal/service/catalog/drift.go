package catalog

import (
	"context"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

// DriftListener считает несписанные после создания заказа остатки.
// Только наблюдает: остатки не меняет.
type DriftListener struct {
	metrics *metrics.CatalogMetrics
	logger  *log.Entry
}

// NewDriftListener создаёт обработчик событий order.stock_decrement_failed.
func NewDriftListener(m *metrics.CatalogMetrics, logger *log.Entry) *DriftListener {
	if logger == nil {
		logger = log.New().WithField("component", "stock-drift-listener")
	}
	return &DriftListener{metrics: m, logger: logger}
}

// Handle подходит как kafka.MessageHandler. Битое сообщение возвращает
// ошибку, и consumer после повторов отправляет его в DLQ.
func (l *DriftListener) Handle(_ context.Context, message *sarama.ConsumerMessage) error {
	event, ok, err := kafka.ParseStockDecrementFailed(message)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	l.metrics.RecordStockDrift(event.ProductID)
	l.logger.WithFields(log.Fields{
		"order_id":   event.OrderID,
		"product_id": event.ProductID,
		"reason":     event.Reason,
	}).Warn("stock drift reported by order service")
	return nil
}
