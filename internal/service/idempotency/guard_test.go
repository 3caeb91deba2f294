package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func TestGuard_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Minute, nil)
	hash := RequestHash("POST", "/orders", []byte(`{"customerName":"Ann"}`))

	decision, err := guard.Begin(ctx, "key-1", hash)
	require.NoError(t, err)
	require.Equal(t, Proceed, decision.Outcome)

	decision, err = guard.Begin(ctx, "key-1", hash)
	require.NoError(t, err)
	require.Equal(t, InFlight, decision.Outcome)

	other := RequestHash("POST", "/orders", []byte(`{"customerName":"Bob"}`))
	decision, err = guard.Begin(ctx, "key-1", other)
	require.NoError(t, err)
	require.Equal(t, Mismatch, decision.Outcome)

	guard.Complete(ctx, "key-1", 201, []byte(`{"id":"o-1"}`))

	decision, err = guard.Begin(ctx, "key-1", hash)
	require.NoError(t, err)
	require.Equal(t, Replay, decision.Outcome)
	require.Equal(t, 201, decision.Record.HTTPStatus)
	require.JSONEq(t, `{"id":"o-1"}`, string(decision.Record.ResponseBody))
}

func TestGuard_ServerErrorIsReplayedAsFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	guard := NewGuard(repo, 0, nil)

	_, err := guard.Begin(ctx, "key-5xx", "hash")
	require.NoError(t, err)
	guard.Complete(ctx, "key-5xx", 503, []byte(`{"error":"upstream_unavailable"}`))

	record, err := repo.Get(ctx, "key-5xx")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusFailed, record.Status)

	decision, err := guard.Begin(ctx, "key-5xx", "hash")
	require.NoError(t, err)
	require.Equal(t, Replay, decision.Outcome)
	require.Equal(t, 503, decision.Record.HTTPStatus)
}

func TestGuard_EmptyKey(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewIdempotencyRepository(), time.Minute, nil)
	_, err := guard.Begin(context.Background(), "  ", "hash")
	require.True(t, errors.Is(err, domain.ErrIdempotencyKeyRequired))
}

func TestRequestHash(t *testing.T) {
	t.Parallel()

	a := RequestHash("POST", "/orders", []byte("{}"))
	require.Len(t, a, 64)
	require.Equal(t, a, RequestHash("POST", "/orders", []byte("{}")))
	require.NotEqual(t, a, RequestHash("POST", "/orders/x", []byte("{}")))
	require.NotEqual(t, a, RequestHash("POST", "/orders", []byte("[]")))
	require.Equal(t, "in_flight", InFlight.String())
}

func TestGuard_RecordsDecisionsAndUsesClock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	fixed := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	guard := NewGuard(memory.NewIdempotencyRepository(), time.Hour, nil,
		WithGuardMetrics(metrics.NewIdempotencyMetricsWithRegisterer(reg)),
		WithClock(func() time.Time { return fixed }),
	)

	decision, err := guard.Begin(ctx, "key-clock", "hash")
	require.NoError(t, err)
	require.Equal(t, Proceed, decision.Outcome)
	require.True(t, decision.Record.TTLAt.Equal(fixed.Add(time.Hour)))

	_, err = guard.Begin(ctx, "key-clock", "hash")
	require.NoError(t, err)
	_, err = guard.Begin(ctx, "", "hash")
	require.Error(t, err)

	require.Equal(t, 3, testutil.CollectAndCount(reg, "oms_idempotency_decisions_total"))
}
