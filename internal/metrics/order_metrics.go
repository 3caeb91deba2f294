package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты списания остатка после создания заказа.
const (
	StockDecrementOK     = "ok"
	StockDecrementFailed = "failed"
)

// OrderMetrics содержит метрики оркестратора заказов. Методы nil-безопасны.
type OrderMetrics struct {
	ordersCreated    prometheus.Counter
	ordersRejected   *prometheus.CounterVec
	stockDecrements  *prometheus.CounterVec
	createDuration   prometheus.Histogram
	stepDuration     *prometheus.HistogramVec
	updateConflicts  prometheus.Counter
	liveLookupMisses prometheus.Counter
	timelineEvents   prometheus.Counter
	outboxEvents     prometheus.Counter
	inFlightCreates  prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of orders persisted by the orchestrator",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_orders_rejected_total",
			Help: "Total number of order creations rejected, grouped by reason",
		}, []string{"reason"}),
		stockDecrements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_stock_decrements_total",
			Help: "Stock decrements issued after order creation, grouped by result",
		}, []string{"result"}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "oms_order_create_duration_seconds",
			Help:    "Duration of order creation including stock decrements",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "oms_order_step_duration_seconds",
			Help:    "Duration of individual orchestration steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		updateConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_order_update_conflicts_total",
			Help: "Optimistic locking conflicts observed while updating orders",
		}),
		liveLookupMisses: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_order_live_lookup_fallbacks_total",
			Help: "Reads that fell back to the stored product snapshot",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "oms_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		inFlightCreates: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "oms_order_creates_in_flight",
			Help: "Number of order creations currently in progress",
		}),
	}
}

// RecordCreateStarted отмечает начало создания заказа.
func (m *OrderMetrics) RecordCreateStarted() {
	if m == nil {
		return
	}
	m.inFlightCreates.Inc()
}

// RecordCreateFinished фиксирует длительность создания, успешного или нет.
func (m *OrderMetrics) RecordCreateFinished(duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlightCreates.Dec()
	m.createDuration.Observe(duration.Seconds())
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderRejected учитывает отказ в создании заказа.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	if m == nil {
		return
	}
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordStockDecrement учитывает результат одного списания.
func (m *OrderMetrics) RecordStockDecrement(result string) {
	if m == nil {
		return
	}
	m.stockDecrements.WithLabelValues(result).Inc()
}

// RecordStepDuration записывает время выполнения шага.
func (m *OrderMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordUpdateConflict учитывает конфликт версий при обновлении.
func (m *OrderMetrics) RecordUpdateConflict() {
	if m == nil {
		return
	}
	m.updateConflicts.Inc()
}

// RecordLiveLookupFallback учитывает чтение снимка вместо живого каталога.
func (m *OrderMetrics) RecordLiveLookupFallback() {
	if m == nil {
		return
	}
	m.liveLookupMisses.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
