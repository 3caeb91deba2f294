package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics содержит метрики product-service. Методы nil-безопасны.
type CatalogMetrics struct {
	stockAdjustments *prometheus.CounterVec
	productWrites    *prometheus.CounterVec
	bulkLookupSize   prometheus.Histogram
	stockDrift       *prometheus.CounterVec
}

// NewCatalogMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCatalogMetrics() *CatalogMetrics {
	return NewCatalogMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCatalogMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewCatalogMetricsWithRegisterer(registerer prometheus.Registerer) *CatalogMetrics {
	return &CatalogMetrics{
		stockAdjustments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_catalog_stock_adjustments_total",
			Help: "Stock adjustments grouped by direction and result",
		}, []string{"direction", "result"}),
		productWrites: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_catalog_product_writes_total",
			Help: "Product create/update/delete operations grouped by operation",
		}, []string{"op"}),
		bulkLookupSize: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "oms_catalog_bulk_lookup_ids",
			Help:    "Number of ids requested per bulk lookup",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		stockDrift: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_catalog_stock_drift_total",
			Help: "Failed stock decrements reported by the order service, per product",
		}, []string{"product_id"}),
	}
}

// RecordStockAdjustment учитывает корректировку остатка.
func (m *CatalogMetrics) RecordStockAdjustment(delta int, err error) {
	if m == nil {
		return
	}
	direction := "increase"
	if delta < 0 {
		direction = "decrease"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.stockAdjustments.WithLabelValues(direction, result).Inc()
}

// RecordProductWrite учитывает изменение каталога.
func (m *CatalogMetrics) RecordProductWrite(op string) {
	if m == nil {
		return
	}
	m.productWrites.WithLabelValues(op).Inc()
}

// RecordBulkLookup записывает размер bulk-запроса.
func (m *CatalogMetrics) RecordBulkLookup(ids int) {
	if m == nil {
		return
	}
	m.bulkLookupSize.Observe(float64(ids))
}

// RecordStockDrift учитывает несписанный остаток по товару.
func (m *CatalogMetrics) RecordStockDrift(productID string) {
	if m == nil {
		return
	}
	m.stockDrift.WithLabelValues(productID).Inc()
}
