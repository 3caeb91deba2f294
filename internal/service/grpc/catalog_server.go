// Package grpcsvc реализует gRPC API product-service поверх сервиса каталога.
package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/rpc/catalogv1"
)

// Catalog — операции каталога, которые публикуются по gRPC.
type Catalog interface {
	FindMany(ctx context.Context, ids []string) ([]domain.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error)
}

// CatalogServer реализует catalog.v1.CatalogService.
type CatalogServer struct {
	catalogv1.UnimplementedCatalogServiceServer

	catalog Catalog
	logger  *log.Entry
}

// NewCatalogServer конструирует сервер с зависимостями.
func NewCatalogServer(catalog Catalog, logger *log.Entry) *CatalogServer {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-grpc")
	}
	return &CatalogServer{catalog: catalog, logger: logger}
}

// BulkGetProducts возвращает существующие товары из списка id в порядке
// хранилища. Дубликаты в запросе допустимы, неизвестные id пропускаются.
func (s *CatalogServer) BulkGetProducts(ctx context.Context, req *catalogv1.BulkGetProductsRequest) (*catalogv1.BulkGetProductsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	ids := make([]string, 0, len(req.GetIds()))
	for _, id := range req.GetIds() {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	products, err := s.catalog.FindMany(ctx, ids)
	if err != nil {
		return nil, s.toStatus(err, "bulk get products")
	}

	resp := &catalogv1.BulkGetProductsResponse{Products: make([]*catalogv1.Product, 0, len(products))}
	for _, product := range products {
		resp.Products = append(resp.Products, catalogv1.FromDomain(product))
	}
	return resp, nil
}

// AdjustStock атомарно меняет остаток товара.
func (s *CatalogServer) AdjustStock(ctx context.Context, req *catalogv1.AdjustStockRequest) (*catalogv1.AdjustStockResponse, error) {
	if req == nil || strings.TrimSpace(req.GetProductId()) == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	product, err := s.catalog.AdjustStock(ctx, strings.TrimSpace(req.GetProductId()), int(req.GetDelta()))
	if err != nil {
		return nil, s.toStatus(err, "adjust stock")
	}
	return &catalogv1.AdjustStockResponse{Product: catalogv1.FromDomain(product)}, nil
}

// toStatus переводит доменную ошибку в gRPC-код. Внутренние детали наружу
// не отдаются.
func (s *CatalogServer) toStatus(err error, operation string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.IsVersionConflict(err):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		s.logger.WithError(err).WithField("operation", operation).Error("catalog operation failed")
		return status.Error(codes.Internal, "failed to "+operation)
	}
}

var _ catalogv1.CatalogServiceServer = (*CatalogServer)(nil)
