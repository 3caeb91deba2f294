package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func TestIdempotencyRepository_ClaimAndComplete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	created, err := repo.CreateProcessing(ctx, "  order-key  ", " hash ", ttl)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if created.Key != "order-key" || created.RequestHash != "hash" || created.Completed() {
		t.Fatalf("unexpected new record: %+v", created)
	}

	if err := repo.MarkFailed(ctx, "order-key", []byte(`{"error":"upstream_unavailable"}`), 503); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err := repo.Get(ctx, "order-key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.IdempotencyStatusFailed || got.HTTPStatus != 503 || !got.TTLAt.Equal(ttl) {
		t.Fatalf("unexpected stored record: %+v", got)
	}

	// Тело ответа копируется при чтении.
	got.ResponseBody[0] = 'X'
	again, _ := repo.Get(ctx, "order-key")
	if string(again.ResponseBody) != `{"error":"upstream_unavailable"}` {
		t.Fatalf("stored body was mutated: %s", again.ResponseBody)
	}
}

func TestIdempotencyRepository_Errors(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, "k", "hash-a", ttl); err != nil {
		t.Fatalf("claim: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"same request in flight", func() error { _, err := repo.CreateProcessing(ctx, "k", "hash-a", ttl); return err }, domain.ErrIdempotencyKeyAlreadyExists},
		{"other request body", func() error { _, err := repo.CreateProcessing(ctx, "k", "hash-b", ttl); return err }, domain.ErrIdempotencyHashMismatch},
		{"blank key", func() error { _, err := repo.CreateProcessing(ctx, " ", "hash", ttl); return err }, domain.ErrIdempotencyKeyRequired},
		{"blank hash", func() error { _, err := repo.CreateProcessing(ctx, "k2", "", ttl); return err }, domain.ErrIdempotencyRequestHashRequired},
		{"get missing", func() error { _, err := repo.Get(ctx, "nope"); return err }, domain.ErrIdempotencyKeyNotFound},
		{"complete missing", func() error { return repo.MarkDone(ctx, "nope", nil, 201) }, domain.ErrIdempotencyKeyNotFound},
		{"complete blank", func() error { return repo.MarkDone(ctx, "", nil, 201) }, domain.ErrIdempotencyKeyRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestIdempotencyRepository_ExpiredKeys(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()

	for i := range 3 {
		key := fmt.Sprintf("old-%d", i)
		if _, err := repo.CreateProcessing(ctx, key, "h", now.Add(-time.Duration(3-i)*time.Minute)); err != nil {
			t.Fatalf("claim %s: %v", key, err)
		}
	}
	if _, err := repo.CreateProcessing(ctx, "live", "h", now.Add(time.Hour)); err != nil {
		t.Fatalf("claim live: %v", err)
	}

	// Просроченный ключ можно занять другим запросом до очистки.
	reclaimed, err := repo.CreateProcessing(ctx, "old-2", "h-new", now.Add(time.Hour))
	if err != nil || reclaimed.RequestHash != "h-new" {
		t.Fatalf("expired key must be reusable: %+v, %v", reclaimed, err)
	}

	removed, err := repo.DeleteExpired(ctx, now, 1)
	if err != nil || removed != 1 {
		t.Fatalf("first batch: removed=%d err=%v", removed, err)
	}
	if _, err := repo.Get(ctx, "old-0"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("oldest key must go first, got %v", err)
	}

	removed, err = repo.DeleteExpired(ctx, time.Time{}, 0)
	if err != nil || removed != 1 {
		t.Fatalf("second batch: removed=%d err=%v", removed, err)
	}
	for _, key := range []string{"live", "old-2"} {
		if _, err := repo.Get(ctx, key); err != nil {
			t.Fatalf("%s must survive cleanup: %v", key, err)
		}
	}
}
