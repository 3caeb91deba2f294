// Package productclient — сетевой клиент order-service к product-service.
//
// Клиент делает ровно один RPC на вызов и никогда не повторяет запросы:
// повторное списание остатка нельзя отличить от нового.
package productclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/rpc/catalogv1"
)

const (
	defaultLookupTimeout      = 3 * time.Second
	defaultStockAdjustTimeout = 2 * time.Second
)

// Config задаёт адрес product-service и таймауты на вызов.
type Config struct {
	Addr               string
	LookupTimeout      time.Duration
	StockAdjustTimeout time.Duration
}

// DefaultConfig возвращает таймауты по умолчанию; адрес задаёт вызывающий.
func DefaultConfig() Config {
	return Config{
		LookupTimeout:      defaultLookupTimeout,
		StockAdjustTimeout: defaultStockAdjustTimeout,
	}
}

// Client реализует domain.ProductCatalog поверх gRPC.
type Client struct {
	rpc                catalogv1.CatalogServiceClient
	conn               *grpc.ClientConn
	lookupTimeout      time.Duration
	stockAdjustTimeout time.Duration
	logger             *log.Entry
}

// Dial создаёт соединение с метриками go-grpc-prometheus и трассировкой
// otelgrpc. Соединение ленивое: недоступность сервиса проявится на первом вызове.
func Dial(cfg Config, logger *log.Entry) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("product service address is required")
	}

	conn, err := grpc.NewClient(cfg.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(promgrpc.UnaryClientInterceptor),
	)
	if err != nil {
		return nil, fmt.Errorf("dial product service %s: %w", cfg.Addr, err)
	}

	client := New(catalogv1.NewCatalogServiceClient(conn), cfg, logger)
	client.conn = conn
	return client, nil
}

// New оборачивает готовый gRPC-клиент.
func New(rpc catalogv1.CatalogServiceClient, cfg Config, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "product-client")
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	if cfg.StockAdjustTimeout <= 0 {
		cfg.StockAdjustTimeout = defaultStockAdjustTimeout
	}
	return &Client{
		rpc:                rpc,
		lookupTimeout:      cfg.LookupTimeout,
		stockAdjustTimeout: cfg.StockAdjustTimeout,
		logger:             logger,
	}
}

// Close закрывает соединение, если клиент создан через Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Ping спрашивает grpc health-сервис product-service о статусе catalog.v1.
// Клиент без собственного соединения считается недоступным.
func (c *Client) Ping(ctx context.Context) error {
	if c.conn == nil {
		return errors.New("product service connection is not established")
	}
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: catalogv1.ServiceName})
	if err != nil {
		return fmt.Errorf("product service health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("product service is %s", resp.GetStatus())
	}
	return nil
}

// ResolveMany одним bulk-запросом получает снимки товаров. Дубликаты id
// передаются как есть; порядок и состав ответа определяет каталог.
func (c *Client) ResolveMany(ctx context.Context, productIDs []string) ([]domain.ProductSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	resp, err := c.rpc.BulkGetProducts(ctx, &catalogv1.BulkGetProductsRequest{Ids: productIDs})
	if err != nil {
		return nil, c.lookupError(err)
	}

	snapshots := make([]domain.ProductSnapshot, 0, len(resp.GetProducts()))
	for _, msg := range resp.GetProducts() {
		product, err := msg.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrLookupFailed, err)
		}
		snapshots = append(snapshots, product.Snapshot())
	}
	return snapshots, nil
}

// AdjustStock меняет остаток товара на delta.
func (c *Client) AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.stockAdjustTimeout)
	defer cancel()

	resp, err := c.rpc.AdjustStock(ctx, &catalogv1.AdjustStockRequest{ProductId: productID, Delta: int64(delta)})
	if err != nil {
		return domain.Product{}, c.callError(err, "adjust stock")
	}

	product, err := resp.GetProduct().ToDomain()
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %w", domain.ErrLookupFailed, err)
	}
	return product, nil
}

func (c *Client) lookupError(err error) error {
	mapped := c.callError(err, "bulk lookup")
	if errors.Is(mapped, domain.ErrLookupFailed) {
		return mapped
	}
	// Для bulk-запроса любой отказ каталога считается неудачным lookup.
	return errors.Join(domain.ErrLookupFailed, mapped)
}

// callError переводит gRPC-статус в доменную ошибку.
func (c *Client) callError(err error, operation string) error {
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return errors.Join(domain.ErrLookupFailed, domain.ErrUpstreamUnavailable, err)
		}
		return errors.Join(domain.ErrLookupFailed, err)
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		c.logger.WithField("code", st.Code().String()).Warnf("product service %s failed", operation)
		return errors.Join(domain.ErrLookupFailed, domain.ErrUpstreamUnavailable,
			fmt.Errorf("product service %s: %s", operation, st.Message()))
	case codes.NotFound:
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, st.Message())
	case codes.InvalidArgument:
		return domain.NewValidationError(st.Message())
	case codes.Aborted:
		return fmt.Errorf("%w: %s", domain.ErrProductVersionConflict, st.Message())
	default:
		return errors.Join(domain.ErrLookupFailed, fmt.Errorf("product service %s: %s: %s", operation, st.Code(), st.Message()))
	}
}

var _ domain.ProductCatalog = (*Client)(nil)
