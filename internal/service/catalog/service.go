// Package catalog содержит бизнес-логику product-service: CRUD каталога и
// атомарную корректировку остатков.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/retry"
)

// Options задаёт зависимости сервиса.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.CatalogMetrics
	Retry   retry.Config
	NewID   func() string
}

// Service управляет каталогом товаров.
type Service struct {
	products domain.ProductRepository
	logger   *log.Entry
	metrics  *metrics.CatalogMetrics
	retry    retry.Config
	newID    func() string
}

// NewService создаёт сервис каталога.
func NewService(products domain.ProductRepository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	retryCfg := opts.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig()
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		products: products,
		logger:   logger,
		metrics:  opts.Metrics,
		retry:    retryCfg,
		newID:    newID,
	}
}

// CreateProduct валидирует и сохраняет новый товар. Если доступность не
// передана, товар считается доступным.
func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}

	product := domain.Product{
		ID:          s.newID(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Category:    strings.TrimSpace(input.Category),
		Stock:       input.Stock,
		SKU:         input.SKU,
		IsAvailable: available,
		Tags:        append([]string(nil), input.Tags...),
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.metrics.RecordProductWrite("create")
	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"stock":      created.Stock,
	}).Info("product created")
	return created, nil
}

// GetProduct возвращает товар или domain.ErrProductNotFound.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, domain.NewValidationError("id is required")
	}
	return s.products.Get(ctx, id)
}

// FindMany возвращает существующие товары из списка; неизвестные id
// пропускаются, пустой список не является ошибкой.
func (s *Service) FindMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	s.metrics.RecordBulkLookup(len(ids))
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	products, err := s.products.FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return products, nil
}

// ListProducts возвращает товары по фильтру, новые первыми.
func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.products.List(ctx, filter)
}

// UpdateProduct накладывает патч. При конфликте версий (например, с
// параллельным AdjustStock) товар перечитывается и патч применяется заново.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := retry.Do(ctx, s.retry, s.logger, domain.IsVersionConflict, func(ctx context.Context, _ int) error {
		current, err := s.products.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(&current); err != nil {
			return err
		}
		updated, err = s.products.Save(ctx, current)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.metrics.RecordProductWrite("update")
	s.logger.WithField("product_id", id).Debug("product updated")
	return updated, nil
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.RecordProductWrite("delete")
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

// AdjustStock применяет stock += delta одной атомарной операцией хранилища.
// Остаток никогда не уходит в минус.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	if delta == 0 {
		return domain.Product{}, domain.NewValidationError("quantity must not be zero")
	}

	start := time.Now()
	product, err := s.products.AdjustStock(ctx, id, delta)
	s.metrics.RecordStockAdjustment(delta, err)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"product_id": id,
			"delta":      delta,
		}).Debug("stock adjustment rejected")
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": id,
		"delta":      delta,
		"stock":      product.Stock,
		"took":       time.Since(start),
	}).Debug("stock adjusted")
	return product, nil
}
