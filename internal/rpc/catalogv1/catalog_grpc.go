package catalogv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "catalog.v1.CatalogService"

	CatalogService_BulkGetProducts_FullMethodName = "/catalog.v1.CatalogService/BulkGetProducts"
	CatalogService_AdjustStock_FullMethodName     = "/catalog.v1.CatalogService/AdjustStock"
)

// CatalogServiceClient — клиентская сторона catalog.v1.CatalogService.
type CatalogServiceClient interface {
	BulkGetProducts(ctx context.Context, in *BulkGetProductsRequest, opts ...grpc.CallOption) (*BulkGetProductsResponse, error)
	AdjustStock(ctx context.Context, in *AdjustStockRequest, opts ...grpc.CallOption) (*AdjustStockResponse, error)
}

type catalogServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCatalogServiceClient оборачивает соединение; каждый вызов идёт через JSON-кодек.
func NewCatalogServiceClient(cc grpc.ClientConnInterface) CatalogServiceClient {
	return &catalogServiceClient{cc: cc}
}

func (c *catalogServiceClient) BulkGetProducts(ctx context.Context, in *BulkGetProductsRequest, opts ...grpc.CallOption) (*BulkGetProductsResponse, error) {
	out := new(BulkGetProductsResponse)
	if err := c.cc.Invoke(ctx, CatalogService_BulkGetProducts_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *catalogServiceClient) AdjustStock(ctx context.Context, in *AdjustStockRequest, opts ...grpc.CallOption) (*AdjustStockResponse, error) {
	out := new(AdjustStockResponse)
	if err := c.cc.Invoke(ctx, CatalogService_AdjustStock_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// CatalogServiceServer — серверная сторона catalog.v1.CatalogService.
type CatalogServiceServer interface {
	BulkGetProducts(context.Context, *BulkGetProductsRequest) (*BulkGetProductsResponse, error)
	AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error)
}

// UnimplementedCatalogServiceServer встраивается в реализации, чтобы новые
// методы контракта не ломали сборку.
type UnimplementedCatalogServiceServer struct{}

func (UnimplementedCatalogServiceServer) BulkGetProducts(context.Context, *BulkGetProductsRequest) (*BulkGetProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method BulkGetProducts not implemented")
}

func (UnimplementedCatalogServiceServer) AdjustStock(context.Context, *AdjustStockRequest) (*AdjustStockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AdjustStock not implemented")
}

// RegisterCatalogServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&CatalogService_ServiceDesc, srv)
}

func bulkGetProductsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BulkGetProductsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).BulkGetProducts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CatalogService_BulkGetProducts_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).BulkGetProducts(ctx, req.(*BulkGetProductsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func adjustStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AdjustStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).AdjustStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CatalogService_AdjustStock_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).AdjustStock(ctx, req.(*AdjustStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// CatalogService_ServiceDesc — описание сервиса для grpc.Server.
var CatalogService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BulkGetProducts", Handler: bulkGetProductsHandler},
		{MethodName: "AdjustStock", Handler: adjustStockHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog.json",
}
