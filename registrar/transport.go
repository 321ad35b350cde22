package registrar

import (
	"context"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/connector"
)

// Transport 与注册中心通信的底层通道，收发线协议消息。
// 实现需并发安全；Close 之后所有进行中的调用应尽快返回。
type Transport interface {
	// RegisterService 打开注册流，流的生命周期受 ctx 控制
	RegisterService(ctx context.Context, req *registrationv1.RegisterServiceRequest) (RegistrationStream, error)
	UnregisterService(ctx context.Context, req *registrationv1.UnregisterServiceRequest) (*registrationv1.UnregisterServiceResponse, error)
	UpdateHealth(ctx context.Context, req *registrationv1.HealthUpdateRequest) (*registrationv1.HealthUpdateResponse, error)
	Close() error
}

// RegistrationStream 服务端流的接收端，正常结束时 Recv 返回 io.EOF
type RegistrationStream interface {
	Recv() (*registrationv1.RegisterServiceResponse, error)
}

// TransportFactory 创建 Transport，由 Client 在首次使用时调用一次
type TransportFactory func(ctx context.Context) (Transport, error)

// newEtcdTransportFactory 按配置创建自有的 etcd 连接器
func newEtcdTransportFactory(cfg RegistryConfig, o *options) TransportFactory {
	return func(ctx context.Context) (Transport, error) {
		conn, err := connector.NewEtcd(&connector.EtcdConfig{
			Name:        "registrar",
			Endpoints:   []string{cfg.Address()},
			Username:    cfg.Username,
			Password:    cfg.Password,
			DialTimeout: cfg.Timeout,
		}, connector.WithLogger(o.logger), connector.WithMeter(o.meter))
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		t := newEtcdTransport(conn, cfg, o.logger)
		t.owned = true
		return t, nil
	}
}

// newGRPCTransportFactory 连接到配置的注册中心地址
func newGRPCTransportFactory(cfg RegistryConfig) TransportFactory {
	return func(context.Context) (Transport, error) {
		t, err := NewGRPCTransport(cfg.Address())
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// NewTransportFactory 按 Registry.Driver 选择传输实现
func NewTransportFactory(cfg RegistryConfig, opts ...Option) TransportFactory {
	return newTransportFactory(cfg, applyOptions(opts))
}

func newTransportFactory(cfg RegistryConfig, o *options) TransportFactory {
	if cfg.Driver == DriverEtcd {
		return newEtcdTransportFactory(cfg, o)
	}
	return newGRPCTransportFactory(cfg)
}
