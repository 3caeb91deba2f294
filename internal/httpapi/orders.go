package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordercore/internal/service/orders"
)

// OrderService — операции оркестратора, доступные через REST.
type OrderService interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, status string) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (domain.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	GetOrderWithProducts(ctx context.Context, id string) (orders.OrderWithProducts, error)
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
}

type orderHandler struct {
	svc    OrderService
	logger *log.Entry
}

// NewOrderRouter собирает роутер /orders. guard может быть nil: тогда
// Idempotency-Key игнорируется.
func NewOrderRouter(svc OrderService, guard *idempotency.Guard, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.New().WithField("component", "orders-http")
	}
	h := &orderHandler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.With(Idempotency(guard, logger)).Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/with-products", h.getWithProducts)
		r.Get("/{id}/timeline", h.timeline)
		r.Patch("/{id}", h.update)
		r.Patch("/{id}/status", h.updateStatus)
		r.Delete("/{id}", h.delete)
	})
	return r
}

func (h *orderHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *orderHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(list))
}

func (h *orderHandler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) getWithProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOrderWithProducts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderWithProductsResponse(result))
}

func (h *orderHandler) timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponses(events))
}

func (h *orderHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	order, err := h.svc.UpdateOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *orderHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
