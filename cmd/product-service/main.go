package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/app"
	"github.com/vladislavdragonenkov/ordercore/internal/version"
)

// readConfig собирает конфигурацию из окружения и логирует отброшенные значения.
func readConfig(lookup app.EnvLookup) app.ProductServiceConfig {
	cfg, warnings := app.ProductServiceConfigFromEnv(lookup)
	for _, warning := range warnings {
		log.Warn(warning)
	}
	return cfg
}

func main() {
	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("product-service"))
		return
	}

	cfg := readConfig(os.LookupEnv)
	app.ConfigureLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"drift_listener": len(cfg.KafkaBrokers) > 0,
	}).Info("запускаем ProductService")

	if err := app.RunProductService(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("ProductService остановлен")
}
