// Package orders — оркестратор заказов: создание со снимком товаров и
// списанием остатков в product-service, чтение, обновление и удаление.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/retry"
	"github.com/vladislavdragonenkov/ordercore/internal/telemetry"
)

// Причины отказа в создании заказа для метрик.
const (
	rejectValidation = "validation"
	rejectLookup     = "lookup_failed"
	rejectNoProducts = "no_products"
)

// CreateOrderRequest — входные данные создания заказа.
type CreateOrderRequest struct {
	Customer   domain.CustomerInfo
	ProductIDs []string
}

// OrderWithProducts — заказ вместе с товарами. Live=false означает, что
// каталог недоступен и Products взяты из снимка заказа.
type OrderWithProducts struct {
	Order    domain.Order
	Products []domain.ProductSnapshot
	Live     bool
}

// Options задаёт необязательные зависимости оркестратора.
type Options struct {
	Timeline domain.TimelineRepository
	Outbox   domain.OutboxRepository
	Logger   *log.Entry
	Metrics  *metrics.OrderMetrics
	Tracer   trace.Tracer
	Retry    retry.Config
	NewID    func() string
}

// Orchestrator координирует хранилище заказов и удалённый каталог.
type Orchestrator struct {
	orders   domain.OrderRepository
	catalog  domain.ProductCatalog
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	tracer   trace.Tracer
	retry    retry.Config
	newID    func() string
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(orders domain.OrderRepository, catalog domain.ProductCatalog, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}
	retryCfg := opts.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Orchestrator{
		orders:   orders,
		catalog:  catalog,
		timeline: opts.Timeline,
		outbox:   opts.Outbox,
		logger:   logger,
		metrics:  opts.Metrics,
		tracer:   tracer,
		retry:    retryCfg,
		newID:    newID,
	}
}

// CreateOrder создаёт заказ:
//  1. проверяет вход до любых удалённых вызовов;
//  2. одним bulk-запросом получает снимки товаров;
//  3. считает сумму по снимку;
//  4. сохраняет заказ в статусе pending;
//  5. параллельно списывает по единице остатка на каждую позицию productIds.
//
// Сбои списания не откатывают заказ и не возвращаются вызывающему: они
// пишутся в лог, метрики, timeline и outbox. Повторов нет.
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "orders.CreateOrder",
		trace.WithAttributes(attribute.Int("order.product_ids", len(req.ProductIDs))))
	defer span.End()

	start := time.Now()
	o.metrics.RecordCreateStarted()
	defer func() { o.metrics.RecordCreateFinished(time.Since(start)) }()

	if err := domain.ValidateNewOrder(req.Customer, req.ProductIDs); err != nil {
		o.metrics.RecordOrderRejected(rejectValidation)
		return domain.Order{}, traceError(span, err)
	}

	snapshots, err := o.resolveSnapshots(ctx, req.ProductIDs)
	if err != nil {
		return domain.Order{}, traceError(span, err)
	}

	order := domain.Order{
		ID:             o.newID(),
		Customer:       normalizeCustomer(req.Customer),
		ProductIDs:     append([]string(nil), req.ProductIDs...),
		ProductDetails: snapshots,
		TotalAmount:    domain.SumSnapshotPrices(snapshots),
		Status:         domain.OrderStatusPending,
	}

	persistStart := time.Now()
	created, err := o.orders.Create(ctx, order)
	o.metrics.RecordStepDuration("persist", time.Since(persistStart))
	if err != nil {
		return domain.Order{}, traceError(span, fmt.Errorf("persist order: %w", err))
	}

	o.metrics.RecordOrderCreated()
	span.SetAttributes(attribute.String("order.id", created.ID))
	o.logger.WithFields(log.Fields{
		"order_id":     created.ID,
		"total_amount": created.TotalAmount.StringFixed(domain.MoneyScale),
		"products":     len(created.ProductDetails),
	}).Info("order created")

	// Заказ уже сохранён: отмена клиентского запроса не должна прерывать учёт.
	bookkeeping := context.WithoutCancel(ctx)
	o.recordTimeline(bookkeeping, created.ID, domain.TimelineOrderCreated, "")
	o.enqueue(bookkeeping, created.ID, kafka.EventTypeOrderCreated, kafka.OrderCreatedEvent{
		OrderID:     created.ID,
		ProductIDs:  created.ProductIDs,
		TotalAmount: created.TotalAmount.StringFixed(domain.MoneyScale),
		Status:      string(created.Status),
		CreatedAt:   created.CreatedAt,
	})
	o.decrementStock(bookkeeping, created)

	return created, nil
}

func (o *Orchestrator) resolveSnapshots(ctx context.Context, productIDs []string) ([]domain.ProductSnapshot, error) {
	ctx, span := o.tracer.Start(ctx, "orders.ResolveProducts")
	defer span.End()

	start := time.Now()
	snapshots, err := o.catalog.ResolveMany(ctx, productIDs)
	o.metrics.RecordStepDuration("resolve", time.Since(start))
	if err != nil {
		o.metrics.RecordOrderRejected(rejectLookup)
		o.logger.WithError(err).WithField("product_ids", productIDs).Warn("product lookup failed, order rejected")
		return nil, traceError(span, fmt.Errorf("%w: %w", domain.ErrOrderCreationRejected, err))
	}
	if len(snapshots) == 0 {
		o.metrics.RecordOrderRejected(rejectNoProducts)
		o.logger.WithField("product_ids", productIDs).Warn("no products resolved, order rejected")
		return nil, traceError(span, fmt.Errorf("%w: %w", domain.ErrOrderCreationRejected, domain.ErrNoProductsResolved))
	}
	return snapshots, nil
}

type decrementResult struct {
	productID string
	err       error
}

// decrementStock отправляет AdjustStock(id, -1) на каждую позицию заказа,
// включая дубликаты, и ждёт все ответы.
func (o *Orchestrator) decrementStock(ctx context.Context, order domain.Order) {
	ctx, span := o.tracer.Start(ctx, "orders.DecrementStock")
	defer span.End()

	start := time.Now()
	results := make([]decrementResult, len(order.ProductIDs))

	var wg sync.WaitGroup
	for i, productID := range order.ProductIDs {
		wg.Add(1)
		go func(i int, productID string) {
			defer wg.Done()
			_, err := o.catalog.AdjustStock(ctx, productID, -1)
			results[i] = decrementResult{productID: productID, err: err}
		}(i, productID)
	}
	wg.Wait()
	o.metrics.RecordStepDuration("decrement", time.Since(start))

	failed := 0
	for _, res := range results {
		if res.err == nil {
			o.metrics.RecordStockDecrement(metrics.StockDecrementOK)
			o.recordTimeline(ctx, order.ID, domain.TimelineStockDecremented, res.productID)
			continue
		}

		failed++
		o.metrics.RecordStockDecrement(metrics.StockDecrementFailed)
		o.logger.WithError(res.err).WithFields(log.Fields{
			"order_id":   order.ID,
			"product_id": res.productID,
		}).Warn("stock decrement failed, order kept")
		o.recordTimeline(ctx, order.ID, domain.TimelineStockDecrementFailed, res.productID+": "+res.err.Error())
		o.enqueue(ctx, order.ID, kafka.EventTypeStockDecrementFailed, kafka.StockDecrementFailedEvent{
			OrderID:    order.ID,
			ProductID:  res.productID,
			Reason:     res.err.Error(),
			OccurredAt: time.Now().UTC(),
		})
	}

	span.SetAttributes(
		attribute.Int("stock.decrements", len(results)),
		attribute.Int("stock.decrements_failed", failed),
	)
	if failed > 0 {
		span.SetStatus(otelcodes.Error, "stock decrement failed")
	}
}

// GetOrder возвращает заказ или domain.ErrOrderNotFound.
func (o *Orchestrator) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, domain.NewValidationError("id is required")
	}
	return o.orders.Get(ctx, id)
}

// ListOrders возвращает заказы, новые первыми. Пустой статус не фильтрует.
func (o *Orchestrator) ListOrders(ctx context.Context, status string) ([]domain.Order, error) {
	filter := domain.OrderFilter{}
	if strings.TrimSpace(status) != "" {
		parsed, err := domain.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = parsed
	}
	return o.orders.List(ctx, filter)
}

// UpdateOrder накладывает патч на заказ. Сумма и снимок товаров не
// пересчитываются, даже если меняется productIds.
func (o *Orchestrator) UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "orders.UpdateOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var (
		updated    domain.Order
		prevStatus domain.OrderStatus
	)
	err := o.withConflictRetry(ctx, func(ctx context.Context) error {
		current, err := o.orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Empty() {
			updated = current
			prevStatus = current.Status
			return nil
		}
		prevStatus = current.Status
		if err := patch.Apply(&current); err != nil {
			return err
		}
		updated, err = o.orders.Save(ctx, current)
		return err
	})
	if err != nil {
		return domain.Order{}, traceError(span, err)
	}
	if patch.Empty() {
		return updated, nil
	}

	if patch.ProductIDs != nil {
		o.logger.WithFields(log.Fields{
			"order_id":     id,
			"product_ids":  updated.ProductIDs,
			"total_amount": updated.TotalAmount.StringFixed(domain.MoneyScale),
		}).Warn("productIds changed, totalAmount and product snapshot are not recomputed")
	}

	o.recordTimeline(ctx, id, domain.TimelineOrderUpdated, "")
	if updated.Status != prevStatus {
		o.recordTimeline(ctx, id, domain.TimelineOrderStatusChanged, string(prevStatus)+" -> "+string(updated.Status))
	}
	return updated, nil
}

// UpdateStatus перезаписывает статус. Переходы между статусами не
// проверяются, только принадлежность к перечислению.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	ctx, span := o.tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, traceError(span, err)
	}

	var (
		updated    domain.Order
		prevStatus domain.OrderStatus
	)
	err = o.withConflictRetry(ctx, func(ctx context.Context) error {
		current, err := o.orders.Get(ctx, id)
		if err != nil {
			return err
		}
		prevStatus = current.Status
		current.Status = next
		updated, err = o.orders.Save(ctx, current)
		return err
	})
	if err != nil {
		return domain.Order{}, traceError(span, err)
	}

	o.logger.WithFields(log.Fields{
		"order_id": id,
		"from":     prevStatus,
		"to":       next,
	}).Info("order status changed")
	o.recordTimeline(ctx, id, domain.TimelineOrderStatusChanged, string(prevStatus)+" -> "+string(next))
	return updated, nil
}

// DeleteOrder удаляет заказ. Остатки не возвращаются.
func (o *Orchestrator) DeleteOrder(ctx context.Context, id string) error {
	if err := o.orders.Delete(ctx, id); err != nil {
		return err
	}
	o.logger.WithField("order_id", id).Info("order deleted")
	return nil
}

// GetOrderWithProducts возвращает заказ с актуальными товарами из каталога.
// Если каталог недоступен, отдаётся снимок из заказа с Live=false.
func (o *Orchestrator) GetOrderWithProducts(ctx context.Context, id string) (OrderWithProducts, error) {
	ctx, span := o.tracer.Start(ctx, "orders.GetOrderWithProducts", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := o.GetOrder(ctx, id)
	if err != nil {
		return OrderWithProducts{}, traceError(span, err)
	}

	products, err := o.catalog.ResolveMany(ctx, order.ProductIDs)
	if err != nil {
		o.metrics.RecordLiveLookupFallback()
		o.logger.WithError(err).WithField("order_id", id).Warn("live product lookup failed, using stored snapshot")
		span.SetAttributes(attribute.Bool("order.products_live", false))
		return OrderWithProducts{Order: order, Products: order.ProductDetails, Live: false}, nil
	}

	span.SetAttributes(attribute.Bool("order.products_live", true))
	return OrderWithProducts{Order: order, Products: products, Live: true}, nil
}

// Timeline возвращает события заказа в хронологическом порядке.
func (o *Orchestrator) Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error) {
	if _, err := o.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	if o.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return o.timeline.List(ctx, id)
}

func (o *Orchestrator) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, o.retry, o.logger, func(err error) bool {
		if domain.IsVersionConflict(err) {
			o.metrics.RecordUpdateConflict()
			return true
		}
		return false
	}, func(ctx context.Context, _ int) error {
		return fn(ctx)
	})
}

func (o *Orchestrator) recordTimeline(ctx context.Context, orderID, eventType, reason string) {
	if o.timeline == nil {
		return
	}
	err := o.timeline.Append(ctx, domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: time.Now().UTC(),
	})
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to append timeline event")
		return
	}
	o.metrics.RecordTimelineEvent()
}

func (o *Orchestrator) enqueue(ctx context.Context, orderID string, eventType kafka.EventType, payload any) {
	if o.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.WithError(err).WithField("event_type", eventType).Error("failed to encode outbox payload")
		return
	}
	_, err = o.outbox.Enqueue(ctx, domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: kafka.AggregateOrder,
		AggregateID:   orderID,
		EventType:     string(eventType),
		Payload:       data,
	})
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id":   orderID,
			"event_type": eventType,
		}).Warn("failed to enqueue outbox event")
		return
	}
	o.metrics.RecordOutboxEvent()
}

func normalizeCustomer(c domain.CustomerInfo) domain.CustomerInfo {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	return c
}

func traceError(span trace.Span, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}
