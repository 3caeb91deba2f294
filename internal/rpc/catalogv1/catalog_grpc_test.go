package catalogv1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

type fakeClientConn struct {
	invoke func(context.Context, string, any, any, ...grpc.CallOption) error
}

func (f *fakeClientConn) Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error {
	if f.invoke == nil {
		return errors.New("unexpected Invoke call")
	}
	return f.invoke(ctx, method, args, reply, opts...)
}

func (f *fakeClientConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("not implemented")
}

type testCatalogServer struct {
	UnimplementedCatalogServiceServer
}

func (testCatalogServer) BulkGetProducts(_ context.Context, req *BulkGetProductsRequest) (*BulkGetProductsResponse, error) {
	products := make([]*Product, 0, len(req.GetIds()))
	for _, id := range req.GetIds() {
		products = append(products, &Product{Id: id, Price: "1.00"})
	}
	return &BulkGetProductsResponse{Products: products}, nil
}

func (testCatalogServer) AdjustStock(_ context.Context, req *AdjustStockRequest) (*AdjustStockResponse, error) {
	return &AdjustStockResponse{Product: &Product{Id: req.GetProductId(), Stock: 10 + req.GetDelta()}}, nil
}

func TestCatalogServiceClientMethods(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		methods := map[string]int{}
		conn := &fakeClientConn{
			invoke: func(_ context.Context, method string, _ any, reply any, opts ...grpc.CallOption) error {
				methods[method]++
				if !hasJSONSubtype(opts) {
					t.Fatalf("%s called without json content-subtype", method)
				}
				switch out := reply.(type) {
				case *BulkGetProductsResponse:
					out.Products = []*Product{{Id: "p1"}}
				case *AdjustStockResponse:
					out.Product = &Product{Id: "p1", Stock: 4}
				default:
					t.Fatalf("unexpected reply type: %T", out)
				}
				return nil
			},
		}

		client := NewCatalogServiceClient(conn)
		ctx := context.Background()

		bulk, err := client.BulkGetProducts(ctx, &BulkGetProductsRequest{Ids: []string{"p1"}})
		if err != nil {
			t.Fatalf("BulkGetProducts failed: %v", err)
		}
		if len(bulk.GetProducts()) != 1 {
			t.Fatalf("unexpected bulk response: %+v", bulk)
		}
		adjusted, err := client.AdjustStock(ctx, &AdjustStockRequest{ProductId: "p1", Delta: -1})
		if err != nil {
			t.Fatalf("AdjustStock failed: %v", err)
		}
		if adjusted.GetProduct().Stock != 4 {
			t.Fatalf("unexpected adjust response: %+v", adjusted)
		}

		for _, method := range []string{
			CatalogService_BulkGetProducts_FullMethodName,
			CatalogService_AdjustStock_FullMethodName,
		} {
			if methods[method] != 1 {
				t.Fatalf("expected method %s called exactly once, got %d", method, methods[method])
			}
		}
	})

	t.Run("error", func(t *testing.T) {
		conn := &fakeClientConn{
			invoke: func(context.Context, string, any, any, ...grpc.CallOption) error {
				return status.Error(codes.Unavailable, "down")
			},
		}
		client := NewCatalogServiceClient(conn)
		ctx := context.Background()

		if _, err := client.BulkGetProducts(ctx, &BulkGetProductsRequest{}); status.Code(err) != codes.Unavailable {
			t.Fatalf("BulkGetProducts expected Unavailable, got %v", err)
		}
		if _, err := client.AdjustStock(ctx, &AdjustStockRequest{}); status.Code(err) != codes.Unavailable {
			t.Fatalf("AdjustStock expected Unavailable, got %v", err)
		}
	})
}

func TestUnimplementedCatalogServiceServer(t *testing.T) {
	var srv UnimplementedCatalogServiceServer
	ctx := context.Background()

	if _, err := srv.BulkGetProducts(ctx, &BulkGetProductsRequest{}); status.Code(err) != codes.Unimplemented {
		t.Fatalf("BulkGetProducts expected Unimplemented, got %v", err)
	}
	if _, err := srv.AdjustStock(ctx, &AdjustStockRequest{}); status.Code(err) != codes.Unimplemented {
		t.Fatalf("AdjustStock expected Unimplemented, got %v", err)
	}
}

func TestHandlers(t *testing.T) {
	srv := testCatalogServer{}
	ctx := context.Background()

	cases := []struct {
		name   string
		method string
		call   func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error)
		decode func(any) error
	}{
		{
			name:   "BulkGetProducts",
			method: CatalogService_BulkGetProducts_FullMethodName,
			call:   bulkGetProductsHandler,
			decode: func(v any) error { v.(*BulkGetProductsRequest).Ids = []string{"p1", "p1"}; return nil },
		},
		{
			name:   "AdjustStock",
			method: CatalogService_AdjustStock_FullMethodName,
			call:   adjustStockHandler,
			decode: func(v any) error { v.(*AdjustStockRequest).ProductId = "p1"; return nil },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.call(srv, ctx, func(any) error { return errors.New("decode failed") }, nil); err == nil {
				t.Fatalf("expected decode error")
			}

			resp, err := tc.call(srv, ctx, tc.decode, nil)
			if err != nil || resp == nil {
				t.Fatalf("handler without interceptor failed: %v, %v", resp, err)
			}

			interceptorCalled := false
			_, err = tc.call(srv, ctx, tc.decode, func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
				interceptorCalled = true
				if info.FullMethod != tc.method {
					t.Fatalf("unexpected full method: got %s want %s", info.FullMethod, tc.method)
				}
				return handler(ctx, req)
			})
			if err != nil {
				t.Fatalf("handler with interceptor failed: %v", err)
			}
			if !interceptorCalled {
				t.Fatalf("interceptor was not called")
			}
		})
	}
}

func TestRegisterAndServiceDescriptor(t *testing.T) {
	g := grpc.NewServer()
	RegisterCatalogServiceServer(g, testCatalogServer{})

	if got, want := CatalogService_ServiceDesc.ServiceName, "catalog.v1.CatalogService"; got != want {
		t.Fatalf("unexpected service name: got %s want %s", got, want)
	}
	if len(CatalogService_ServiceDesc.Methods) != 2 {
		t.Fatalf("expected 2 method descriptors, got %d", len(CatalogService_ServiceDesc.Methods))
	}
	if _, ok := g.GetServiceInfo()[ServiceName]; !ok {
		t.Fatalf("service %s is not registered", ServiceName)
	}
}

func TestJSONCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	if codec == nil {
		t.Fatal("json codec is not registered")
	}

	data, err := codec.Marshal(&BulkGetProductsRequest{Ids: []string{"a", "a"}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded BulkGetProductsRequest
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded.Ids) != 2 {
		t.Fatalf("duplicates must survive the wire, got %v", decoded.Ids)
	}
	if err := codec.Unmarshal([]byte("{"), &decoded); err == nil {
		t.Fatal("expected error for broken payload")
	}
}

func TestProductConversion(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	product := domain.Product{
		ID:        "p1",
		Name:      "Keyboard",
		Price:     decimal.RequireFromString("10.5"),
		Category:  "peripherals",
		Stock:     3,
		Version:   2,
		CreatedAt: created,
		UpdatedAt: created,
	}

	msg := FromDomain(product)
	if msg.Price != "10.50" {
		t.Fatalf("price must be rendered with two decimals, got %q", msg.Price)
	}

	back, err := msg.ToDomain()
	if err != nil {
		t.Fatalf("ToDomain failed: %v", err)
	}
	if !back.Price.Equal(product.Price) || back.Stock != 3 || !back.CreatedAt.Equal(created) {
		t.Fatalf("unexpected product after conversion: %+v", back)
	}

	for name, bad := range map[string]*Product{
		"nil":       nil,
		"empty id":  {Price: "1.00"},
		"bad price": {Id: "p1", Price: "ten"},
		"bad time":  {Id: "p1", Price: "1.00", CreatedAt: "yesterday"},
	} {
		if _, err := bad.ToDomain(); !errors.Is(err, ErrMalformedProduct) {
			t.Fatalf("%s: expected ErrMalformedProduct, got %v", name, err)
		}
	}
}

func hasJSONSubtype(opts []grpc.CallOption) bool {
	for _, opt := range opts {
		if sub, ok := opt.(grpc.ContentSubtypeCallOption); ok && sub.ContentSubtype == CodecName {
			return true
		}
	}
	return false
}
