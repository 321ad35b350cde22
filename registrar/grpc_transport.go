package registrar

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/trace"
	"github.com/ceyewan/registrar/xerrors"
)

// GRPCTransport 通过 gRPC 与注册中心通信
type GRPCTransport struct {
	conn   *grpc.ClientConn
	client registrationv1.PlatformRegistrationServiceClient
}

// NewGRPCTransport 创建到 target 的连接。
// grpc.NewClient 不会立即拨号，连接在第一次调用时建立。
// 默认使用明文传输并挂载 otelgrpc 统计处理器，opts 可追加或覆盖。
func NewGRPCTransport(target string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(trace.GRPCClientStatsHandler()),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create grpc client for %s", target)
	}
	return &GRPCTransport{
		conn:   conn,
		client: registrationv1.NewPlatformRegistrationServiceClient(conn),
	}, nil
}

func (t *GRPCTransport) RegisterService(ctx context.Context, req *registrationv1.RegisterServiceRequest) (RegistrationStream, error) {
	return t.client.RegisterService(ctx, req)
}

func (t *GRPCTransport) UnregisterService(ctx context.Context, req *registrationv1.UnregisterServiceRequest) (*registrationv1.UnregisterServiceResponse, error) {
	return t.client.UnregisterService(ctx, req)
}

func (t *GRPCTransport) UpdateHealth(ctx context.Context, req *registrationv1.HealthUpdateRequest) (*registrationv1.HealthUpdateResponse, error) {
	return t.client.UpdateHealth(ctx, req)
}

// Close 关闭底层连接，进行中的调用以 Canceled 结束
func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}
