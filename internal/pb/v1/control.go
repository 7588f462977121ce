package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlServiceName is the fully qualified service name.
const ControlServiceName = "oneshot.v1.ControlService"

// Full method names.
const (
	GetStateMethod      = "/" + ControlServiceName + "/GetState"
	PressKeyMethod      = "/" + ControlServiceName + "/PressKey"
	ReleaseKeyMethod    = "/" + ControlServiceName + "/ReleaseKey"
	ListEmissionsMethod = "/" + ControlServiceName + "/ListEmissions"
)

// ControlServiceServer is the server API for the control service.
type ControlServiceServer interface {
	// GetState returns the daemon status.
	GetState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// PressKey injects a press of the given position.
	PressKey(ctx context.Context, req *wrapperspb.UInt32Value) (*emptypb.Empty, error)
	// ReleaseKey injects a release of the given position.
	ReleaseKey(ctx context.Context, req *wrapperspb.UInt32Value) (*emptypb.Empty, error)
	// ListEmissions returns the most recent emissions, at most req.Value of them (0 means all).
	ListEmissions(ctx context.Context, req *wrapperspb.UInt32Value) (*structpb.ListValue, error)
}

// UnimplementedControlServiceServer can be embedded for forward compatibility.
type UnimplementedControlServiceServer struct{}

// GetState is not implemented.
func (UnimplementedControlServiceServer) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetState not implemented")
}

// PressKey is not implemented.
func (UnimplementedControlServiceServer) PressKey(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method PressKey not implemented")
}

// ReleaseKey is not implemented.
func (UnimplementedControlServiceServer) ReleaseKey(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method ReleaseKey not implemented")
}

// ListEmissions is not implemented.
func (UnimplementedControlServiceServer) ListEmissions(
	context.Context, *wrapperspb.UInt32Value,
) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEmissions not implemented")
}

// ControlServiceDesc describes the control service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are registered by value.
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetState",
			Handler:    unaryHandler(GetStateMethod, ControlServiceServer.GetState),
		},
		{
			MethodName: "PressKey",
			Handler:    unaryHandler(PressKeyMethod, ControlServiceServer.PressKey),
		},
		{
			MethodName: "ReleaseKey",
			Handler:    unaryHandler(ReleaseKeyMethod, ControlServiceServer.ReleaseKey),
		},
		{
			MethodName: "ListEmissions",
			Handler:    unaryHandler(ListEmissionsMethod, ControlServiceServer.ListEmissions),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oneshot/v1/control.proto",
}

// RegisterControlServiceServer registers srv on s.
func RegisterControlServiceServer(s grpc.ServiceRegistrar, srv ControlServiceServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req any, Resp any, PReq interface{ *Req }](
	fullMethod string,
	call func(ControlServiceServer, context.Context, PReq) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(ControlServiceServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(PReq)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// ControlServiceClient is the client API for the control service.
type ControlServiceClient interface {
	GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	PressKey(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ReleaseKey(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ListEmissions(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type controlServiceClient struct {
	// cc carries the calls.
	cc grpc.ClientConnInterface
}

// NewControlServiceClient creates a client over cc.
//
//nolint:ireturn // Mirrors the grpc client constructor convention.
func NewControlServiceClient(cc grpc.ClientConnInterface) ControlServiceClient {
	return &controlServiceClient{cc: cc}
}

func (c *controlServiceClient) GetState(
	ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStateMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *controlServiceClient) PressKey(
	ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, PressKeyMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *controlServiceClient) ReleaseKey(
	ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, ReleaseKeyMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *controlServiceClient) ListEmissions(
	ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption,
) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListEmissionsMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
