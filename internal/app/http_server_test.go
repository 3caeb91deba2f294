package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/ordercore/internal/health"
	"github.com/vladislavdragonenkov/ordercore/internal/version"
)

func getStatus(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestMetricsServer_HealthEndpointsFollowDependencies(t *testing.T) {
	tests := []struct {
		name        string
		checkers    map[string]healthcheck.Checker
		wantHealthz int
		wantReadyz  int
		wantStatus  healthcheck.Status
	}{
		{
			name:        "no dependencies",
			wantHealthz: http.StatusOK,
			wantReadyz:  http.StatusOK,
			wantStatus:  healthcheck.StatusHealthy,
		},
		{
			name: "kafka down keeps service ready",
			checkers: map[string]healthcheck.Checker{
				"postgres": healthcheck.NewSimpleChecker("postgres", func(context.Context) error { return nil }),
				"kafka": healthcheck.NewOptionalChecker("kafka", func(context.Context) error {
					return errors.New("producer unavailable")
				}),
			},
			wantHealthz: http.StatusOK,
			wantReadyz:  http.StatusOK,
			wantStatus:  healthcheck.StatusDegraded,
		},
		{
			name: "storage down fails readiness",
			checkers: map[string]healthcheck.Checker{
				"sqlite": healthcheck.NewSimpleChecker("sqlite", func(context.Context) error {
					return errors.New("database is closed")
				}),
			},
			wantHealthz: http.StatusServiceUnavailable,
			wantReadyz:  http.StatusServiceUnavailable,
			wantStatus:  healthcheck.StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := findFreePort(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			healthHandler := healthcheck.NewHandler(version.GetVersion())
			for name, checker := range tt.checkers {
				healthHandler.RegisterChecker(name, checker)
			}
			srv := startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", tt.name), healthHandler)
			if srv == nil {
				t.Fatal("startMetricsServer returned nil")
			}
			base := fmt.Sprintf("http://127.0.0.1:%d", port)
			waitForHTTP(t, base+"/livez", http.StatusOK)

			code, body := getStatus(t, base+"/healthz")
			if code != tt.wantHealthz {
				t.Fatalf("/healthz: expected %d, got %d (%s)", tt.wantHealthz, code, body)
			}
			var resp healthcheck.Response
			if err := json.Unmarshal([]byte(body), &resp); err != nil {
				t.Fatalf("decode /healthz: %v", err)
			}
			if resp.Status != tt.wantStatus || len(resp.Checks) != len(tt.checkers) {
				t.Fatalf("unexpected health response: %+v", resp)
			}

			if code, _ := getStatus(t, base+"/readyz"); code != tt.wantReadyz {
				t.Fatalf("/readyz: expected %d, got %d", tt.wantReadyz, code)
			}
			if code, body := getStatus(t, base+"/livez"); code != http.StatusOK || body != "ok" {
				t.Fatalf("/livez: got %d %q", code, body)
			}
			if code, body := getStatus(t, base+"/metrics"); code != http.StatusOK || body == "" {
				t.Fatalf("/metrics: got %d with %d bytes", code, len(body))
			}
		})
	}
}

func TestMetricsServer_StopsWithContext(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())

	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), log.WithField("test", "metrics-stop"), healthcheck.NewHandler("test"))
	url := fmt.Sprintf("http://127.0.0.1:%d/livez", port)
	waitForHTTP(t, url, http.StatusOK)

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err != nil {
			return
		}
		resp.Body.Close()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("metrics server should stop after context cancellation")
}

func TestServeHTTP_Lifecycle(t *testing.T) {
	logger := log.WithField("test", "serve-http")

	t.Run("returns nil on cancel", func(t *testing.T) {
		port := findFreePort(t)
		mux := http.NewServeMux()
		mux.HandleFunc("/orders", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("[]"))
		})
		srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serveHTTP(ctx, srv, logger) }()

		waitForHTTP(t, fmt.Sprintf("http://127.0.0.1:%d/orders", port), http.StatusOK)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected nil on shutdown, got %v", err)
			}
		case <-time.After(shutdownTimeout + time.Second):
			t.Fatal("serveHTTP did not return after cancel")
		}
	})

	t.Run("reports bind error", func(t *testing.T) {
		busy, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer busy.Close()

		srv := &http.Server{Addr: busy.Addr().String(), Handler: http.NewServeMux()}
		if err := serveHTTP(context.Background(), srv, logger); err == nil {
			t.Fatal("expected bind error")
		}
	})
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
