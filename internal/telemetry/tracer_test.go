package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := SetupTracer(context.Background(), Config{ServiceName: "order-service"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestSetupTracerWithEndpoint(t *testing.T) {
	shutdown, err := SetupTracer(context.Background(), Config{
		ServiceName: "order-service",
		Endpoint:    "http://127.0.0.1:4317",
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Коллектора нет: shutdown не должен зависать на отменённом контексте.
	_ = shutdown(ctx)
}

func TestStripScheme(t *testing.T) {
	require.Equal(t, "collector:4317", stripScheme("http://collector:4317"))
	require.Equal(t, "collector:4317", stripScheme("https://collector:4317"))
	require.Equal(t, "collector:4317", stripScheme("collector:4317"))
}
