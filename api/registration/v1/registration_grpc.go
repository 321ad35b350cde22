package registrationv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "registration.v1.PlatformRegistrationService"

	PlatformRegistrationService_RegisterService_FullMethodName   = "/registration.v1.PlatformRegistrationService/RegisterService"
	PlatformRegistrationService_UnregisterService_FullMethodName = "/registration.v1.PlatformRegistrationService/UnregisterService"
	PlatformRegistrationService_UpdateHealth_FullMethodName      = "/registration.v1.PlatformRegistrationService/UpdateHealth"
)

// PlatformRegistrationServiceClient 注册中心客户端
type PlatformRegistrationServiceClient interface {
	// RegisterService 注册服务并持续接收注册状态
	RegisterService(ctx context.Context, in *RegisterServiceRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[RegisterServiceResponse], error)
	UnregisterService(ctx context.Context, in *UnregisterServiceRequest, opts ...grpc.CallOption) (*UnregisterServiceResponse, error)
	UpdateHealth(ctx context.Context, in *HealthUpdateRequest, opts ...grpc.CallOption) (*HealthUpdateResponse, error)
}

type platformRegistrationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPlatformRegistrationServiceClient(cc grpc.ClientConnInterface) PlatformRegistrationServiceClient {
	return &platformRegistrationServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
}

func (c *platformRegistrationServiceClient) RegisterService(ctx context.Context, in *RegisterServiceRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[RegisterServiceResponse], error) {
	stream, err := c.cc.NewStream(ctx, &PlatformRegistrationService_ServiceDesc.Streams[0], PlatformRegistrationService_RegisterService_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[RegisterServiceRequest, RegisterServiceResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *platformRegistrationServiceClient) UnregisterService(ctx context.Context, in *UnregisterServiceRequest, opts ...grpc.CallOption) (*UnregisterServiceResponse, error) {
	out := new(UnregisterServiceResponse)
	if err := c.cc.Invoke(ctx, PlatformRegistrationService_UnregisterService_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *platformRegistrationServiceClient) UpdateHealth(ctx context.Context, in *HealthUpdateRequest, opts ...grpc.CallOption) (*HealthUpdateResponse, error) {
	out := new(HealthUpdateResponse)
	if err := c.cc.Invoke(ctx, PlatformRegistrationService_UpdateHealth_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// PlatformRegistrationServiceServer 注册中心服务端
type PlatformRegistrationServiceServer interface {
	RegisterService(*RegisterServiceRequest, grpc.ServerStreamingServer[RegisterServiceResponse]) error
	UnregisterService(context.Context, *UnregisterServiceRequest) (*UnregisterServiceResponse, error)
	UpdateHealth(context.Context, *HealthUpdateRequest) (*HealthUpdateResponse, error)
}

// UnimplementedPlatformRegistrationServiceServer 嵌入后未实现的方法返回 Unimplemented
type UnimplementedPlatformRegistrationServiceServer struct{}

func (UnimplementedPlatformRegistrationServiceServer) RegisterService(*RegisterServiceRequest, grpc.ServerStreamingServer[RegisterServiceResponse]) error {
	return status.Errorf(codes.Unimplemented, "method RegisterService not implemented")
}

func (UnimplementedPlatformRegistrationServiceServer) UnregisterService(context.Context, *UnregisterServiceRequest) (*UnregisterServiceResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UnregisterService not implemented")
}

func (UnimplementedPlatformRegistrationServiceServer) UpdateHealth(context.Context, *HealthUpdateRequest) (*HealthUpdateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateHealth not implemented")
}

func RegisterPlatformRegistrationServiceServer(s grpc.ServiceRegistrar, srv PlatformRegistrationServiceServer) {
	s.RegisterService(&PlatformRegistrationService_ServiceDesc, srv)
}

func _PlatformRegistrationService_RegisterService_Handler(srv any, stream grpc.ServerStream) error {
	m := new(RegisterServiceRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PlatformRegistrationServiceServer).RegisterService(m, &grpc.GenericServerStream[RegisterServiceRequest, RegisterServiceResponse]{ServerStream: stream})
}

func _PlatformRegistrationService_UnregisterService_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UnregisterServiceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlatformRegistrationServiceServer).UnregisterService(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PlatformRegistrationService_UnregisterService_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlatformRegistrationServiceServer).UnregisterService(ctx, req.(*UnregisterServiceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PlatformRegistrationService_UpdateHealth_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthUpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlatformRegistrationServiceServer).UpdateHealth(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PlatformRegistrationService_UpdateHealth_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlatformRegistrationServiceServer).UpdateHealth(ctx, req.(*HealthUpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PlatformRegistrationService_ServiceDesc 服务描述，供 grpc.Server.RegisterService 使用
var PlatformRegistrationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlatformRegistrationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UnregisterService",
			Handler:    _PlatformRegistrationService_UnregisterService_Handler,
		},
		{
			MethodName: "UpdateHealth",
			Handler:    _PlatformRegistrationService_UpdateHealth_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "RegisterService",
			Handler:       _PlatformRegistrationService_RegisterService_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "registration/v1/registration.msgpack",
}
