package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// integrationStore открывает базу из OMS_POSTGRES_TEST_DSN. Без переменной
// тесты пропускаются: локальный прогон не должен зависеть от Docker.
func integrationStore(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("OMS_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("OMS_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn, WithMaxOpenConns(8))
	if err != nil {
		t.Fatalf("open postgres %s: %v", dsn, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// migratedStore возвращает store со свежей схемой и пустыми таблицами.
func migratedStore(t *testing.T) *Store {
	t.Helper()

	store := integrationStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `
		TRUNCATE idempotency_keys, outbox_messages, timeline_events, orders, products
		RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return store
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
