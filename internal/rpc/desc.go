// Package rpc describes the medizone.v1.RemoteStore gRPC service. Messages are protobuf
// well-known types, so client and server share this descriptor instead of generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "medizone.v1.RemoteStore"

// Full method names, as seen by interceptors.
const (
	MethodCreate = "/" + ServiceName + "/Create"
	MethodQuery  = "/" + ServiceName + "/Query"
	MethodGet    = "/" + ServiceName + "/Get"
)

// RemoteStoreServer is implemented by the server.
type RemoteStoreServer interface {
	// Create takes {collection, fields} and returns the new document id.
	Create(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	// Query takes {collection} and returns the caller's documents.
	Query(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
	// Get takes {collection, id} and returns one document.
	Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRemoteStoreServer registers srv on s.
func RegisterRemoteStoreServer(s grpc.ServiceRegistrar, srv RemoteStoreServer) {
	s.RegisterService(&RemoteStoreServiceDesc, srv)
}

// RemoteStoreServiceDesc is the grpc.ServiceDesc for RemoteStore.
var RemoteStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RemoteStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: createHandler},
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "Get", Handler: getHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "medizone/v1/remote_store.proto",
}

func createHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).Create(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCreate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteStoreServer).Create(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodQuery}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteStoreServer).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGet}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteStoreServer).Get(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RemoteStoreClient calls the service over a connection.
type RemoteStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewRemoteStoreClient wraps cc.
func NewRemoteStoreClient(cc grpc.ClientConnInterface) *RemoteStoreClient {
	return &RemoteStoreClient{cc: cc}
}

func (c *RemoteStoreClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodCreate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RemoteStoreClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodQuery, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RemoteStoreClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGet, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
