package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service descriptor for querykit.v1.QueryService.
 *
 * There is no .proto for this service: requests and responses are
 * google.protobuf.Struct, so the descriptor and client are written out the
 * way protoc-gen-go-grpc would generate them.
 */

const (
	// QueryServiceName is the fully qualified gRPC service name.
	QueryServiceName = "querykit.v1.QueryService"

	// QueryFullMethod is the full method name of Query.
	QueryFullMethod = "/" + QueryServiceName + "/Query"
)

// QueryServer is the server API for QueryService.
type QueryServer interface {
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// QueryClient is the client API for QueryService.
type QueryClient interface {
	Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type queryClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryClient creates a QueryService client on cc.
func NewQueryClient(cc grpc.ClientConnInterface) QueryClient {
	return &queryClient{cc: cc}
}

func (c *queryClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, QueryFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterQueryServer registers srv on s.
func RegisterQueryServer(s grpc.ServiceRegistrar, srv QueryServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

func queryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueryServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: QueryFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(QueryServer).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// QueryServiceDesc is the grpc.ServiceDesc for QueryService.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: QueryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Query",
			Handler:    queryHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "querykit/v1/query.proto",
}
