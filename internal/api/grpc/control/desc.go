package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "homesecurity.v1.ControlService"
	// ExecuteMethod is the full method name of Execute.
	ExecuteMethod = "/" + ServiceName + "/Execute"
	// GetStatusMethod is the full method name of GetStatus.
	GetStatusMethod = "/" + ServiceName + "/GetStatus"
	// ActorMetadataKey carries the caller identity.
	ActorMetadataKey = "x-actor"
)

// controlServer is the handler type of ServiceDesc.
type controlServer interface {
	Execute(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the control service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Execute",
			Handler:    executeHandler,
		},
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "homesecurity/v1/control.proto",
}

// Register attaches the server to a gRPC registrar.
func Register(registrar grpc.ServiceRegistrar, server *Server) {
	registrar.RegisterService(&ServiceDesc, server)
}

//nolint:revive // Signature is fixed by grpc.MethodDesc.
func executeHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(controlServer).Execute(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecuteMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlServer).Execute(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:revive // Signature is fixed by grpc.MethodDesc.
func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(controlServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

// Client calls the control service over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Execute sends one command line.
func (c *Client) Execute(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetStatus requests the status message.
func (c *Client) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
