package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/ordercore/internal/storage/redis"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/sqlite"
)

const redisKeyspace = "oms:idempotency"

// orderDependencies — хранилища order-service.
type orderDependencies struct {
	repo            domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	// cleanupExpired выключен, когда ключи истекают сами (redis TTL).
	cleanupExpired bool
	checkers       map[string]health.Checker
	closeFn        func() error
}

// productDependencies — хранилище product-service.
type productDependencies struct {
	repo     domain.ProductRepository
	checkers map[string]health.Checker
	closeFn  func() error
}

func initOrderDependencies(ctx context.Context, cfg OrderServiceConfig, logger *log.Entry) (*orderDependencies, error) {
	deps := &orderDependencies{cleanupExpired: true, checkers: map[string]health.Checker{}}
	var closers []func() error

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		deps.repo = memory.NewOrderRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("storage driver: memory")
	case StorageDriverPostgres:
		store, err := openPostgres(ctx, cfg.PostgresDSN, cfg.PostgresAutoMigrate)
		if err != nil {
			return nil, err
		}
		closers = append(closers, store.Close)
		deps.repo = postgres.NewOrderRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.timelineRepo = postgres.NewTimelineRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.checkers["postgres"] = health.NewSimpleChecker("postgres", store.Ping)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("storage driver: postgres")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q for order service", cfg.StorageDriver)
	}

	if cfg.IdempotencyStore == IdempotencyStoreRedis {
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = closeAll(closers)
			return nil, fmt.Errorf("init redis idempotency store: %w", err)
		}
		closers = append(closers, client.Close)
		deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client, redisKeyspace)
		deps.cleanupExpired = false
		deps.checkers["redis"] = health.NewOptionalChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.WithField("addr", cfg.RedisAddr).Info("idempotency store: redis")
	}

	deps.closeFn = func() error { return closeAll(closers) }
	return deps, nil
}

func initProductDependencies(ctx context.Context, cfg ProductServiceConfig, logger *log.Entry) (*productDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		logger.Info("storage driver: memory")
		return &productDependencies{
			repo:    memory.NewProductRepository(),
			closeFn: func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		store, err := openPostgres(ctx, cfg.PostgresDSN, cfg.PostgresAutoMigrate)
		if err != nil {
			return nil, err
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("storage driver: postgres")
		return &productDependencies{
			repo:     postgres.NewProductRepository(store),
			checkers: map[string]health.Checker{"postgres": health.NewSimpleChecker("postgres", store.Ping)},
			closeFn:  store.Close,
		}, nil
	case StorageDriverSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, errors.New("sqlite path is required for sqlite storage driver")
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("storage driver: sqlite")
		return &productDependencies{
			repo:     sqlite.NewProductRepository(store),
			checkers: map[string]health.Checker{"sqlite": health.NewSimpleChecker("sqlite", store.Ping)},
			closeFn:  store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q for product service", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, dsn string, autoMigrate bool) (*postgres.Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required for postgres storage driver")
	}
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if autoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres migrations: %w", err)
		}
	}
	return store, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
