package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/service/catalog"
	"github.com/vladislavdragonenkov/ordercore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ordercore/internal/service/orders"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

// localCatalog ходит в каталог напрямую, без gRPC.
type localCatalog struct {
	svc  *catalog.Service
	down atomic.Bool
}

func (c *localCatalog) ResolveMany(ctx context.Context, ids []string) ([]domain.ProductSnapshot, error) {
	if c.down.Load() {
		return nil, errors.Join(domain.ErrLookupFailed, domain.ErrUpstreamUnavailable)
	}
	products, err := c.svc.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProductSnapshot, 0, len(products))
	for _, p := range products {
		out = append(out, p.Snapshot())
	}
	return out, nil
}

func (c *localCatalog) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	return c.svc.AdjustStock(ctx, id, delta)
}

type orderEnv struct {
	server   *httptest.Server
	products *catalog.Service
	catalog  *localCatalog
}

func newOrderEnv(t *testing.T) orderEnv {
	t.Helper()

	products := catalog.NewService(memory.NewProductRepository(), catalog.Options{Logger: testLogger()})
	cat := &localCatalog{svc: products}
	orch := orders.NewOrchestrator(memory.NewOrderRepository(), cat, orders.Options{
		Timeline: memory.NewTimelineRepository(),
		Logger:   testLogger(),
	})
	guard := idempotency.NewGuard(memory.NewIdempotencyRepository(), 0, testLogger())

	server := httptest.NewServer(NewOrderRouter(orch, guard, testLogger()))
	t.Cleanup(server.Close)
	return orderEnv{server: server, products: products, catalog: cat}
}

func (e orderEnv) seedProduct(t *testing.T, name, price string, stock int) domain.Product {
	t.Helper()
	p, err := e.products.CreateProduct(context.Background(), domain.ProductInput{
		Name: name, Price: decimal.RequireFromString(price), Category: "test", Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestOrders_CreateAndRead(t *testing.T) {
	env := newOrderEnv(t)
	keyboard := env.seedProduct(t, "Keyboard", "49.90", 3)
	mouse := env.seedProduct(t, "Mouse", "19.99", 1)

	resp := doJSON(t, http.MethodPost, env.server.URL+"/orders", map[string]any{
		"customerName":  "Jane Doe",
		"customerEmail": "jane@example.com",
		"productIds":    []string{keyboard.ID, mouse.ID},
		"city":          "Berlin",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[OrderResponse](t, resp)
	require.Equal(t, "69.89", created.TotalAmount)
	require.Equal(t, "pending", created.Status)
	require.Len(t, created.ProductDetails, 2)

	got := decodeBody[OrderResponse](t, doJSON(t, http.MethodGet, env.server.URL+"/orders/"+created.ID, nil, nil))
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "Berlin", got.City)

	list := decodeBody[[]OrderResponse](t, doJSON(t, http.MethodGet, env.server.URL+"/orders?status=pending", nil, nil))
	require.Len(t, list, 1)

	withProducts := decodeBody[OrderWithProductsResponse](t,
		doJSON(t, http.MethodGet, env.server.URL+"/orders/"+created.ID+"/with-products", nil, nil))
	require.True(t, withProducts.ProductsLive)
	require.Len(t, withProducts.Products, 2)

	stored, err := env.products.GetProduct(context.Background(), mouse.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stock)

	events := decodeBody[[]TimelineEventResponse](t,
		doJSON(t, http.MethodGet, env.server.URL+"/orders/"+created.ID+"/timeline", nil, nil))
	require.Len(t, events, 3)
	require.Equal(t, domain.TimelineOrderCreated, events[0].Type)
}

func TestOrders_CreateErrors(t *testing.T) {
	env := newOrderEnv(t)
	product := env.seedProduct(t, "Cable", "5.00", 1)

	cases := []struct {
		name     string
		body     any
		down     bool
		status   int
		category string
	}{
		{name: "malformed json", body: "{", status: http.StatusBadRequest, category: errValidationFailed},
		{
			name:     "invalid email",
			body:     map[string]any{"customerName": "A", "customerEmail": "nope", "productIds": []string{product.ID}},
			status:   http.StatusBadRequest,
			category: errValidationFailed,
		},
		{
			name:     "no products resolved",
			body:     map[string]any{"customerName": "A", "customerEmail": "a@b.co", "productIds": []string{"nonexistent-id"}},
			status:   http.StatusBadRequest,
			category: errRejected,
		},
		{
			name:     "lookup timeout",
			body:     map[string]any{"customerName": "A", "customerEmail": "a@b.co", "productIds": []string{product.ID}},
			down:     true,
			status:   http.StatusBadRequest,
			category: errRejected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env.catalog.down.Store(tc.down)
			defer env.catalog.down.Store(false)

			resp := doJSON(t, http.MethodPost, env.server.URL+"/orders", tc.body, nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.category, decodeBody[ErrorResponse](t, resp).Error)
		})
	}

	list := decodeBody[[]OrderResponse](t, doJSON(t, http.MethodGet, env.server.URL+"/orders", nil, nil))
	require.Empty(t, list, "rejected orders are never persisted")
}

func TestOrders_UpdateStatusDelete(t *testing.T) {
	env := newOrderEnv(t)
	product := env.seedProduct(t, "Lamp", "12.00", 5)
	other := env.seedProduct(t, "Desk", "300.00", 5)

	created := decodeBody[OrderResponse](t, doJSON(t, http.MethodPost, env.server.URL+"/orders", map[string]any{
		"customerName": "Jane", "customerEmail": "jane@example.com", "productIds": []string{product.ID},
	}, nil))

	resp := doJSON(t, http.MethodPatch, env.server.URL+"/orders/"+created.ID, map[string]any{
		"notes":      "leave at door",
		"productIds": []string{product.ID, other.ID},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody[OrderResponse](t, resp)
	require.Equal(t, "leave at door", updated.Notes)
	require.Equal(t, "12.00", updated.TotalAmount, "total stays as computed at creation")

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/orders/"+created.ID, map[string]any{"status": "lost"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/orders/"+created.ID+"/status", map[string]any{"status": "shipped"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "shipped", decodeBody[OrderResponse](t, resp).Status)

	resp = doJSON(t, http.MethodPatch, env.server.URL+"/orders/"+created.ID+"/status", map[string]any{"status": "teleported"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, env.server.URL+"/orders/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, env.server.URL+"/orders/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, errNotFound, decodeBody[ErrorResponse](t, resp).Error)

	resp = doJSON(t, http.MethodDelete, env.server.URL+"/orders/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrders_WithProductsFallback(t *testing.T) {
	env := newOrderEnv(t)
	product := env.seedProduct(t, "Mug", "7.50", 2)

	created := decodeBody[OrderResponse](t, doJSON(t, http.MethodPost, env.server.URL+"/orders", map[string]any{
		"customerName": "Jane", "customerEmail": "jane@example.com", "productIds": []string{product.ID},
	}, nil))

	env.catalog.down.Store(true)
	resp := doJSON(t, http.MethodGet, env.server.URL+"/orders/"+created.ID+"/with-products", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[OrderWithProductsResponse](t, resp)
	require.False(t, body.ProductsLive)
	require.Equal(t, created.ProductDetails, body.Products)
}

func TestOrders_Idempotency(t *testing.T) {
	env := newOrderEnv(t)
	product := env.seedProduct(t, "Pen", "1.25", 10)
	body := map[string]any{"customerName": "Jane", "customerEmail": "jane@example.com", "productIds": []string{product.ID}}
	headers := map[string]string{HeaderIdempotencyKey: "key-1"}

	first := doJSON(t, http.MethodPost, env.server.URL+"/orders", body, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	firstOrder := decodeBody[OrderResponse](t, first)

	replay := doJSON(t, http.MethodPost, env.server.URL+"/orders", body, headers)
	require.Equal(t, http.StatusCreated, replay.StatusCode)
	require.Equal(t, "true", replay.Header.Get("Idempotent-Replayed"))
	require.Equal(t, firstOrder.ID, decodeBody[OrderResponse](t, replay).ID)

	stored, err := env.products.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 9, stored.Stock, "replay does not decrement stock again")

	body["customerName"] = "John"
	mismatch := doJSON(t, http.MethodPost, env.server.URL+"/orders", body, headers)
	require.Equal(t, http.StatusUnprocessableEntity, mismatch.StatusCode)

	list := decodeBody[[]OrderResponse](t, doJSON(t, http.MethodGet, env.server.URL+"/orders", nil, nil))
	require.Len(t, list, 1)
}
