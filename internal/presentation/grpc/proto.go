package grpc

// proto.go defines the gRPC server interface for contas.v1.ImportService.
// Messages travel with the JSON codec registered in json_codec.go.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Saltoleto/consulta-produtos/internal/application/dto"
)

const (
	importServiceName    = "contas.v1.ImportService"
	importAccountsMethod = "/contas.v1.ImportService/ImportAccounts"
)

// ImportAccountsRequest is the wire message of ImportAccounts.
type ImportAccountsRequest = dto.ImportAccountsRequest

// ImportAccountsResponse is the wire message returned by ImportAccounts.
type ImportAccountsResponse = dto.ImportAccountsResponse

// ImportServiceServer is the server API for ImportService.
type ImportServiceServer interface {
	ImportAccounts(context.Context, *ImportAccountsRequest) (*ImportAccountsResponse, error)
	mustEmbedUnimplementedImportServiceServer()
}

// UnimplementedImportServiceServer provides forward-compatible default implementations.
type UnimplementedImportServiceServer struct{}

func (UnimplementedImportServiceServer) ImportAccounts(context.Context, *ImportAccountsRequest) (*ImportAccountsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ImportAccounts not implemented")
}
func (UnimplementedImportServiceServer) mustEmbedUnimplementedImportServiceServer() {}

// RegisterImportServiceServer registers the ImportServiceServer with the gRPC server.
func RegisterImportServiceServer(s *grpclib.Server, srv ImportServiceServer) {
	s.RegisterService(&_ImportService_serviceDesc, srv) //nolint:revive // gRPC handler registration
}

//nolint:revive // gRPC handler registration
var _ImportService_serviceDesc = grpclib.ServiceDesc{
	ServiceName: importServiceName,
	HandlerType: (*ImportServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "ImportAccounts", Handler: _ImportService_ImportAccounts_Handler}, //nolint:revive // gRPC handler registration
	},
	Streams: []grpclib.StreamDesc{},
}

//nolint:revive,errcheck // gRPC handler registration
func _ImportService_ImportAccounts_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(ImportAccountsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ImportServiceServer).ImportAccounts(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{
		Server:     srv,
		FullMethod: importAccountsMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ImportServiceServer).ImportAccounts(ctx, req.(*ImportAccountsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ImportServiceClient is the client API for ImportService.
type ImportServiceClient interface {
	ImportAccounts(ctx context.Context, in *ImportAccountsRequest, opts ...grpclib.CallOption) (*ImportAccountsResponse, error)
}

type importServiceClient struct {
	cc grpclib.ClientConnInterface
}

// NewImportServiceClient creates a client that speaks the JSON codec.
func NewImportServiceClient(cc grpclib.ClientConnInterface) ImportServiceClient {
	return &importServiceClient{cc: cc}
}

func (c *importServiceClient) ImportAccounts(ctx context.Context, in *ImportAccountsRequest, opts ...grpclib.CallOption) (*ImportAccountsResponse, error) {
	out := new(ImportAccountsResponse)
	opts = append([]grpclib.CallOption{grpclib.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, importAccountsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
