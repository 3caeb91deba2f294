// Package app собирает процессы order-service и product-service из
// конфигурации: хранилища, транспорт, фоновые воркеры и их жизненный цикл.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/httpapi"
	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/ordercore/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordercore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordercore/internal/service/orders"
	"github.com/vladislavdragonenkov/ordercore/internal/service/outbox"
	"github.com/vladislavdragonenkov/ordercore/internal/service/productclient"
	"github.com/vladislavdragonenkov/ordercore/internal/telemetry"
	"github.com/vladislavdragonenkov/ordercore/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// ConfigureLogging задаёт формат и уровень глобального логгера процесса.
func ConfigureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// RunOrderService запускает order-service и блокируется до отмены ctx или
// падения одного из компонентов. При штатной остановке возвращает ctx.Err().
func RunOrderService(ctx context.Context, cfg OrderServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid order service config: %w", err)
	}
	logger := log.WithField("component", "order-service")
	logger.WithFields(version.Fields()).Info("starting order service")
	metrics.RegisterBuildInfo(prometheus.DefaultRegisterer, "order-service", version.GetVersion(), version.ShortCommit())

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer flushTracer(shutdownTracer, logger)

	deps, err := initOrderDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	client, err := productclient.Dial(productclient.Config{
		Addr:               cfg.ProductServiceAddr,
		LookupTimeout:      cfg.LookupTimeout,
		StockAdjustTimeout: cfg.StockAdjustTimeout,
	}, logger.WithField("component", "product-client"))
	if err != nil {
		return fmt.Errorf("dial product service: %w", err)
	}
	defer func() { _ = client.Close() }()

	orchestrator := orders.NewOrchestrator(deps.repo, client, orders.Options{
		Timeline: deps.timelineRepo,
		Outbox:   outboxFor(cfg, deps.outboxRepo),
		Logger:   logger.WithField("component", "orders"),
		Metrics:  metrics.NewOrderMetrics(),
	})
	idempotencyMetrics := metrics.NewIdempotencyMetrics()
	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL,
		logger.WithField("component", "idempotency"),
		idempotency.WithGuardMetrics(idempotencyMetrics),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}
	healthHandler.RegisterChecker("product-service", healthcheck.NewSimpleChecker("product-service", client.Ping))

	producer := startKafkaProducer(producerSettings{
		brokers:     cfg.KafkaBrokers,
		clientID:    "order-service",
		compression: cfg.KafkaCompression,
	}, healthHandler, logger)
	defer closeKafka(producer, logger)

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewOrderRouter(orchestrator, guard, logger.WithField("component", "http")),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gctx, apiSrv, logger) })
	startMetricsServer(gctx, cfg.MetricsAddr, logger, healthHandler)

	if producer != nil {
		worker := outbox.NewWorker(deps.outboxRepo,
			kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithMetrics(metrics.NewOutboxMetrics()),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	if deps.cleanupExpired {
		cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
			idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
			idempotency.WithCleanupMetrics(idempotencyMetrics),
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		)
		g.Go(func() error {
			cleanup.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("order service stopped")
	return ctx.Err()
}

// RunProductService запускает product-service: REST, gRPC и, если заданы
// brokers, слушатель расхождений остатков.
func RunProductService(ctx context.Context, cfg ProductServiceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid product service config: %w", err)
	}
	logger := log.WithField("component", "product-service")
	logger.WithFields(version.Fields()).Info("starting product service")
	metrics.RegisterBuildInfo(prometheus.DefaultRegisterer, "product-service", version.GetVersion(), version.ShortCommit())

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer flushTracer(shutdownTracer, logger)

	deps, err := initProductDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	catalogMetrics := metrics.NewCatalogMetrics()
	catalogSvc := catalog.NewService(deps.repo, catalog.Options{
		Logger:  logger.WithField("component", "catalog"),
		Metrics: catalogMetrics,
	})

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	grpcServer := grpcsvc.NewServer(catalogSvc, prometheus.DefaultRegisterer, logger.WithField("component", "catalog-grpc"))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewProductRouter(catalogSvc, logger.WithField("component", "http")),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var consumer *kafka.Consumer
	var dlqProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		if cfg.DriftDLQTopic != "" {
			dlqProducer = startKafkaProducer(producerSettings{
				brokers:  cfg.KafkaBrokers,
				clientID: "product-service-dlq",
			}, healthHandler, logger)
		}
		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.DriftGroupID,
			Topics:      []string{cfg.DriftTopic},
			ClientID:    "product-service",
			DLQProducer: dlqProducer,
			DLQTopic:    cfg.DriftDLQTopic,
			MaxRetries:  cfg.DriftMaxRetries,
			RetryDelay:  cfg.DriftRetryBackoff,
			Logger:      logger.WithField("component", "drift-consumer"),
		}, catalog.NewDriftListener(catalogMetrics, logger.WithField("component", "drift")).Handle)
		if err != nil {
			// Слушатель расхождений необязателен для обслуживания каталога.
			logger.WithError(err).Warn("drift listener disabled")
			consumer = nil
		}
	}
	defer closeKafka(dlqProducer, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gctx, apiSrv, logger) })
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", lis.Addr().String()).Info("grpc server listening")
			errCh <- grpcServer.Serve(lis)
		}()
		select {
		case <-gctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			grpcServer.Shutdown(stopCtx)
			return nil
		case err := <-errCh:
			return fmt.Errorf("grpc server: %w", err)
		}
	})
	startMetricsServer(gctx, cfg.MetricsAddr, logger, healthHandler)
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Warn("failed to stop drift consumer")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("product service stopped")
	return ctx.Err()
}

// serveHTTP обслуживает srv до отмены ctx.
func serveHTTP(ctx context.Context, srv *http.Server, logger *log.Entry) error {
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownHTTP(srv, logger)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server %s: %w", srv.Addr, err)
	}
}

func flushTracer(shutdown telemetry.ShutdownFunc, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
