package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvLookup совместим с os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// Переменные окружения order-service.
const (
	EnvOrderHTTPAddr               = "OMS_HTTP_ADDR"
	EnvOrderMetricsAddr            = "OMS_METRICS_ADDR"
	EnvLogLevel                    = "OMS_LOG_LEVEL"
	EnvProductServiceAddr          = "OMS_PRODUCT_SERVICE_ADDR"
	EnvLookupTimeout               = "OMS_PRODUCT_LOOKUP_TIMEOUT"
	EnvStockAdjustTimeout          = "OMS_STOCK_ADJUST_TIMEOUT"
	EnvStorageDriver               = "OMS_STORAGE_DRIVER"
	EnvPostgresDSN                 = "OMS_POSTGRES_DSN"
	EnvPostgresAutoMigrate         = "OMS_POSTGRES_AUTO_MIGRATE"
	EnvIdempotencyStore            = "OMS_IDEMPOTENCY_STORE"
	EnvIdempotencyTTL              = "OMS_IDEMPOTENCY_TTL"
	EnvIdempotencyCleanupInterval  = "OMS_IDEMPOTENCY_CLEANUP_INTERVAL"
	EnvIdempotencyCleanupBatchSize = "OMS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	EnvRedisAddr                   = "OMS_REDIS_ADDR"
	EnvRedisPassword               = "OMS_REDIS_PASSWORD"
	EnvRedisDB                     = "OMS_REDIS_DB"
	EnvKafkaBrokers                = "OMS_KAFKA_BROKERS"
	EnvKafkaTopic                  = "OMS_KAFKA_TOPIC"
	EnvKafkaDLQTopic               = "OMS_KAFKA_DLQ_TOPIC"
	EnvKafkaCompression            = "OMS_KAFKA_COMPRESSION"
	EnvOutboxPollInterval          = "OMS_OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize             = "OMS_OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts           = "OMS_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetryDelay            = "OMS_OUTBOX_RETRY_DELAY"
	EnvOTLPEndpoint                = "OMS_OTLP_ENDPOINT"
	EnvTraceSampleRatio            = "OMS_TRACE_SAMPLE_RATIO"
	EnvEnvironment                 = "OMS_ENVIRONMENT"
	EnvProductHTTPAddr             = "OMS_PRODUCT_HTTP_ADDR"
	EnvProductGRPCAddr             = "OMS_PRODUCT_GRPC_ADDR"
	EnvProductMetricsAddr          = "OMS_PRODUCT_METRICS_ADDR"
	EnvProductStorageDriver        = "OMS_PRODUCT_STORAGE_DRIVER"
	EnvProductPostgresDSN          = "OMS_PRODUCT_POSTGRES_DSN"
	EnvSQLitePath                  = "OMS_SQLITE_PATH"
	EnvDriftTopic                  = "OMS_DRIFT_TOPIC"
	EnvDriftGroupID                = "OMS_DRIFT_GROUP_ID"
	EnvDriftDLQTopic               = "OMS_DRIFT_DLQ_TOPIC"
	EnvDriftMaxRetries             = "OMS_DRIFT_MAX_RETRIES"
	EnvDriftRetryBackoff           = "OMS_DRIFT_RETRY_BACKOFF"
)

// OrderServiceConfigFromEnv накладывает переменные окружения на значения по
// умолчанию. Некорректные значения не применяются и возвращаются как warnings.
func OrderServiceConfigFromEnv(lookup EnvLookup) (OrderServiceConfig, []string) {
	cfg := DefaultOrderServiceConfig()
	r := envReader{lookup: lookup}

	r.str(EnvOrderHTTPAddr, &cfg.HTTPAddr)
	r.str(EnvOrderMetricsAddr, &cfg.MetricsAddr)
	r.lower(EnvLogLevel, &cfg.LogLevel)
	r.str(EnvProductServiceAddr, &cfg.ProductServiceAddr)
	r.duration(EnvLookupTimeout, &cfg.LookupTimeout, positiveDuration, "must be > 0")
	r.duration(EnvStockAdjustTimeout, &cfg.StockAdjustTimeout, positiveDuration, "must be > 0")
	r.lower(EnvStorageDriver, &cfg.StorageDriver)
	r.str(EnvPostgresDSN, &cfg.PostgresDSN)
	r.boolean(EnvPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	r.lower(EnvIdempotencyStore, &cfg.IdempotencyStore)
	r.duration(EnvIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0")
	r.duration(EnvIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	r.integer(EnvIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positiveInt, "must be > 0")
	r.str(EnvRedisAddr, &cfg.RedisAddr)
	r.str(EnvRedisPassword, &cfg.RedisPassword)
	r.integer(EnvRedisDB, &cfg.RedisDB, func(v int) bool { return v >= 0 }, "must be >= 0")
	r.list(EnvKafkaBrokers, &cfg.KafkaBrokers)
	r.str(EnvKafkaTopic, &cfg.KafkaTopic)
	r.str(EnvKafkaDLQTopic, &cfg.KafkaDLQTopic)
	r.lower(EnvKafkaCompression, &cfg.KafkaCompression)
	r.duration(EnvOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	r.integer(EnvOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0")
	r.integer(EnvOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0")
	r.duration(EnvOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
	r.tracing(&cfg.Tracing.Endpoint, &cfg.Tracing.SampleRatio, &cfg.Tracing.Environment)

	return cfg, r.warnings
}

// ProductServiceConfigFromEnv — то же для product-service.
func ProductServiceConfigFromEnv(lookup EnvLookup) (ProductServiceConfig, []string) {
	cfg := DefaultProductServiceConfig()
	r := envReader{lookup: lookup}

	r.str(EnvProductHTTPAddr, &cfg.HTTPAddr)
	r.str(EnvProductGRPCAddr, &cfg.GRPCAddr)
	r.str(EnvProductMetricsAddr, &cfg.MetricsAddr)
	r.lower(EnvLogLevel, &cfg.LogLevel)
	r.lower(EnvProductStorageDriver, &cfg.StorageDriver)
	r.str(EnvProductPostgresDSN, &cfg.PostgresDSN)
	r.boolean(EnvPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	r.str(EnvSQLitePath, &cfg.SQLitePath)
	r.list(EnvKafkaBrokers, &cfg.KafkaBrokers)
	r.str(EnvDriftTopic, &cfg.DriftTopic)
	r.str(EnvDriftGroupID, &cfg.DriftGroupID)
	r.str(EnvDriftDLQTopic, &cfg.DriftDLQTopic)
	r.integer(EnvDriftMaxRetries, &cfg.DriftMaxRetries, positiveInt, "must be > 0")
	r.duration(EnvDriftRetryBackoff, &cfg.DriftRetryBackoff, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
	r.tracing(&cfg.Tracing.Endpoint, &cfg.Tracing.SampleRatio, &cfg.Tracing.Environment)

	return cfg, r.warnings
}

func positiveInt(v int) bool { return v > 0 }

func positiveDuration(v time.Duration) bool { return v > 0 }

type envReader struct {
	lookup   EnvLookup
	warnings []string
}

func (r *envReader) value(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	raw, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (r *envReader) warn(key, raw string, err error) {
	r.warnings = append(r.warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
}

func (r *envReader) str(key string, dst *string) {
	if raw, ok := r.value(key); ok {
		*dst = raw
	}
}

func (r *envReader) lower(key string, dst *string) {
	if raw, ok := r.value(key); ok {
		*dst = strings.ToLower(raw)
	}
}

func (r *envReader) list(key string, dst *[]string) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (r *envReader) boolean(key string, dst *bool) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	v, err := parseBool(raw)
	if err != nil {
		r.warn(key, raw, err)
		return
	}
	*dst = v
}

func (r *envReader) integer(key string, dst *int, valid func(int) bool, rule string) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	v, err := parseInt(raw, valid, rule)
	if err != nil {
		r.warn(key, raw, err)
		return
	}
	*dst = v
}

func (r *envReader) duration(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
	raw, ok := r.value(key)
	if !ok {
		return
	}
	v, err := parseDuration(raw, valid, rule)
	if err != nil {
		r.warn(key, raw, err)
		return
	}
	*dst = v
}

func (r *envReader) tracing(endpoint *string, ratio *float64, environment *string) {
	r.str(EnvOTLPEndpoint, endpoint)
	r.str(EnvEnvironment, environment)
	raw, ok := r.value(EnvTraceSampleRatio)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		r.warn(EnvTraceSampleRatio, raw, fmt.Errorf("must be a number in [0, 1]"))
		return
	}
	*ratio = v
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("value %d %s", v, rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("value %s %s", v, rule)
	}
	return v, nil
}
