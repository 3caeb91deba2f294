package app

import (
	"context"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
)

func TestInitOrderDependencies_Memory(t *testing.T) {
	t.Parallel()

	cfg := DefaultOrderServiceConfig()
	deps, err := initOrderDependencies(context.Background(), cfg, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initOrderDependencies(memory) failed: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	if deps.repo == nil {
		t.Fatal("repo should not be nil for memory storage")
	}
	if deps.outboxRepo == nil {
		t.Fatal("outboxRepo should not be nil for memory storage")
	}
	if deps.timelineRepo == nil {
		t.Fatal("timelineRepo should not be nil for memory storage")
	}
	if deps.idempotencyRepo == nil {
		t.Fatal("idempotencyRepo should not be nil for memory storage")
	}
	if !deps.cleanupExpired {
		t.Fatal("memory idempotency store needs the cleanup worker")
	}
	if len(deps.checkers) != 0 {
		t.Fatalf("memory storage has nothing to check, got %d checkers", len(deps.checkers))
	}
}

func TestInitOrderDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultOrderServiceConfig()
	cfg.StorageDriver = StorageDriverPostgres
	_, err := initOrderDependencies(context.Background(), cfg, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitOrderDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := DefaultOrderServiceConfig()
	cfg.StorageDriver = StorageDriverSQLite
	_, err := initOrderDependencies(context.Background(), cfg, log.WithField("test", "unsupported-driver"))
	if err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestInitProductDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initProductDependencies(context.Background(), DefaultProductServiceConfig(), log.WithField("test", "memory-products"))
	if err != nil {
		t.Fatalf("initProductDependencies(memory) failed: %v", err)
	}
	if deps.repo == nil {
		t.Fatal("repo should not be nil for memory storage")
	}
	if err := deps.closeFn(); err != nil {
		t.Fatalf("close memory storage: %v", err)
	}
}

func TestInitProductDependencies_SQLite(t *testing.T) {
	t.Parallel()

	cfg := DefaultProductServiceConfig()
	cfg.StorageDriver = StorageDriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "products.db")

	deps, err := initProductDependencies(context.Background(), cfg, log.WithField("test", "sqlite-products"))
	if err != nil {
		t.Fatalf("initProductDependencies(sqlite) failed: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	checker, ok := deps.checkers["sqlite"]
	if !ok {
		t.Fatal("expected sqlite health checker")
	}
	if check := checker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy sqlite checker, got %+v", check)
	}
}

func TestInitProductDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := DefaultProductServiceConfig()
	cfg.StorageDriver = "mongo"
	if _, err := initProductDependencies(context.Background(), cfg, log.WithField("test", "unsupported")); err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestCloseAll_ReverseOrderAndJoin(t *testing.T) {
	var order []int
	err := closeAll([]func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return context.Canceled },
	})
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected reverse close order, got %v", order)
	}
	if err == nil {
		t.Fatal("expected joined error")
	}
}
