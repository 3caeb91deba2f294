package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordercore/internal/telemetry"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Хранилища ключей идемпотентности.
const (
	IdempotencyStoreStorage = "storage"
	IdempotencyStoreRedis   = "redis"
)

// OrderServiceConfig — настройки order-service.
type OrderServiceConfig struct {
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string

	ProductServiceAddr string
	LookupTimeout      time.Duration
	StockAdjustTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	IdempotencyStore            string
	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
	RedisAddr                   string
	RedisPassword               string
	RedisDB                     int

	KafkaBrokers       []string
	KafkaTopic         string
	KafkaDLQTopic      string
	KafkaCompression   string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	Tracing telemetry.Config
}

// DefaultOrderServiceConfig возвращает настройки для локального запуска.
func DefaultOrderServiceConfig() OrderServiceConfig {
	return OrderServiceConfig{
		HTTPAddr:    ":3001",
		MetricsAddr: ":9090",
		LogLevel:    "info",

		ProductServiceAddr: "localhost:50051",
		LookupTimeout:      3 * time.Second,
		StockAdjustTimeout: 2 * time.Second,

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		IdempotencyStore:            IdempotencyStoreStorage,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Hour,
		IdempotencyCleanupBatchSize: 500,

		KafkaTopic:         kafka.TopicOrderEvents,
		KafkaDLQTopic:      kafka.TopicDeadLetterQueue,
		KafkaCompression:   "snappy",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,

		Tracing: telemetry.Config{ServiceName: "order-service", SampleRatio: 1},
	}
}

// Validate проверяет согласованность настроек.
func (c OrderServiceConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if strings.TrimSpace(c.ProductServiceAddr) == "" {
		errs = append(errs, errors.New("product service addr is required"))
	}
	if c.LookupTimeout <= 0 || c.StockAdjustTimeout <= 0 {
		errs = append(errs, errors.New("product service timeouts must be > 0"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q for order service", c.StorageDriver))
	}
	switch c.IdempotencyStore {
	case IdempotencyStoreStorage:
	case IdempotencyStoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis addr is required for redis idempotency store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported idempotency store %q", c.IdempotencyStore))
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ProductServiceConfig — настройки product-service.
type ProductServiceConfig struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string
	LogLevel    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SQLitePath          string

	KafkaBrokers      []string
	DriftTopic        string
	DriftGroupID      string
	DriftDLQTopic     string
	DriftMaxRetries   int
	DriftRetryBackoff time.Duration

	Tracing telemetry.Config
}

// DefaultProductServiceConfig возвращает настройки для локального запуска.
func DefaultProductServiceConfig() ProductServiceConfig {
	return ProductServiceConfig{
		HTTPAddr:    ":3002",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9091",
		LogLevel:    "info",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SQLitePath:          "products.db",

		DriftTopic:        kafka.TopicOrderEvents,
		DriftGroupID:      "product-service-drift",
		DriftMaxRetries:   3,
		DriftRetryBackoff: 100 * time.Millisecond,

		Tracing: telemetry.Config{ServiceName: "product-service", SampleRatio: 1},
	}
}

// Validate проверяет согласованность настроек.
func (c ProductServiceConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc addr is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	case StorageDriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite path is required for sqlite storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q for product service", c.StorageDriver))
	}
	if len(c.KafkaBrokers) > 0 && (strings.TrimSpace(c.DriftTopic) == "" || strings.TrimSpace(c.DriftGroupID) == "") {
		errs = append(errs, errors.New("drift topic and group id are required when brokers are set"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
