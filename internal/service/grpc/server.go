package grpcsvc

import (
	"context"
	"errors"
	"runtime/debug"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordercore/internal/rpc/catalogv1"
)

// Server — gRPC-сервер product-service вместе с health-сервисом.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer собирает gRPC-сервер: метрики go-grpc-prometheus, трассировка
// otelgrpc, перехват паник и health. Reflection не регистрируется: у catalog.v1
// нет protobuf-дескриптора, описать его клиенты reflection не смогут.
func NewServer(catalog Catalog, registerer prometheus.Registerer, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-grpc")
	}
	grpcMetrics := serverMetrics(registerer, logger)

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(logger),
			grpcMetrics.UnaryServerInterceptor(),
		),
	)

	catalogv1.RegisterCatalogServiceServer(srv, NewCatalogServer(catalog, logger))
	grpcMetrics.InitializeMetrics(srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(catalogv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	return &Server{Server: srv, Health: healthServer}
}

// Shutdown помечает сервер как NOT_SERVING и останавливает его.
func (s *Server) Shutdown(ctx context.Context) {
	s.Health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.Stop()
	}
}

func serverMetrics(registerer prometheus.Registerer, logger *log.Entry) *promgrpc.ServerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registerer.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

func recoveryInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(log.Fields{
					"method": info.FullMethod,
					"panic":  r,
					"stack":  string(debug.Stack()),
				}).Error("grpc handler panicked")
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
