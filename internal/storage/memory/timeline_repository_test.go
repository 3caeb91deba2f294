package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func TestTimelineRepository_OrdersHistoryByTime(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	appendAll(t, repo,
		domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineOrderStatusChanged, Reason: "pending -> confirmed", Occurred: base.Add(time.Minute)},
		domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineOrderCreated, Occurred: base},
		domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineStockDecremented, Reason: "p1", Occurred: base.Add(time.Second)},
		domain.TimelineEvent{OrderID: "o-1", Type: domain.TimelineStockDecrementFailed, Reason: "p2: insufficient stock", Occurred: base.Add(time.Second)},
		domain.TimelineEvent{OrderID: "o-2", Type: domain.TimelineOrderCreated, Occurred: base},
	)

	history, err := repo.List(ctx, "o-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		domain.TimelineOrderCreated,
		domain.TimelineStockDecremented,
		domain.TimelineStockDecrementFailed,
		domain.TimelineOrderStatusChanged,
	}
	if len(history) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(history))
	}
	for i, typ := range want {
		if history[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, history[i].Type)
		}
	}

	// Изменение полученного среза не затрагивает хранилище.
	history[0].Type = "tampered"
	again, _ := repo.List(ctx, "o-1")
	if again[0].Type != domain.TimelineOrderCreated {
		t.Fatal("List must return a copy")
	}
}

func TestTimelineRepository_FillsOccurredAndHandlesUnknownOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTimelineRepository()

	before := time.Now().UTC()
	appendAll(t, repo, domain.TimelineEvent{OrderID: "o-3", Type: domain.TimelineOrderCreated})

	history, err := repo.List(ctx, "o-3")
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one event, got %v, %v", history, err)
	}
	if history[0].Occurred.Before(before) {
		t.Fatalf("occurred must default to now, got %s", history[0].Occurred)
	}

	empty, err := repo.List(ctx, "missing")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v, %v", empty, err)
	}
}

func appendAll(t *testing.T, repo domain.TimelineRepository, events ...domain.TimelineEvent) {
	t.Helper()
	for _, event := range events {
		if err := repo.Append(context.Background(), event); err != nil {
			t.Fatalf("append %s: %v", event.Type, err)
		}
	}
}
