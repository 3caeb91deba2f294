package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// ProductService — операции каталога, доступные через REST.
type ProductService interface {
	CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	FindMany(ctx context.Context, ids []string) ([]domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error)
}

type productHandler struct {
	svc    ProductService
	logger *log.Entry
}

// NewProductRouter собирает роутер /products.
func NewProductRouter(svc ProductService, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.New().WithField("component", "products-http")
	}
	h := &productHandler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/by-ids/bulk", h.findMany)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Patch("/{id}/stock", h.adjustStock)
		r.Delete("/{id}", h.delete)
	})
	return r
}

func (h *productHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	input, err := req.toDomain()
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	product, err := h.svc.CreateProduct(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *productHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.svc.ListProducts(r.Context(), domain.ProductFilter{
		Category: query.Get("category"),
		Search:   query.Get("search"),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(list))
}

// findMany принимает ids как ?ids=a,b и как повторяющийся ?ids=a&ids=b.
func (h *productHandler) findMany(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, raw := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	list, err := h.svc.FindMany(r.Context(), ids)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(list))
}

func (h *productHandler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	product, err := h.svc.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if req.Quantity == nil {
		writeDomainError(w, r, h.logger, domain.NewValidationError("quantity is required"))
		return
	}

	product, err := h.svc.AdjustStock(r.Context(), chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *productHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
