package testkit

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/trace"
)

// Attempt 注册流的一次脚本：依次发送 Responses，然后
// Hold 为 true 时保持流直到客户端取消或注册中心停止，否则以 Err 结束（nil 为正常关闭）
type Attempt struct {
	Responses []*registrationv1.RegisterServiceResponse
	Err       error
	Hold      bool
}

// Registered 返回一条 REGISTERED 响应
func Registered(serviceID string) *registrationv1.RegisterServiceResponse {
	return &registrationv1.RegisterServiceResponse{
		Status:    registrationv1.RegistrationStatus_REGISTERED,
		ServiceId: serviceID,
		Message:   "registered",
	}
}

// Rejected 返回一条 FAILED 响应
func Rejected(message string) *registrationv1.RegisterServiceResponse {
	return &registrationv1.RegisterServiceResponse{
		Status:  registrationv1.RegistrationStatus_FAILED,
		Message: message,
	}
}

// Unavailable 模拟注册中心不可用
func Unavailable() Attempt {
	return Attempt{Err: status.Error(codes.Unavailable, "registry unavailable")}
}

// Accept 注册成功并保持流
func Accept(serviceID string) Attempt {
	return Attempt{Responses: []*registrationv1.RegisterServiceResponse{Registered(serviceID)}, Hold: true}
}

// Registry 进程内的假注册中心，按脚本逐次响应注册流
type Registry struct {
	registrationv1.UnimplementedPlatformRegistrationServiceServer

	Addr string

	server *grpc.Server
	stopCh chan struct{}
	once   sync.Once

	mu              sync.Mutex
	script          []Attempt
	fallback        Attempt
	registers       []*registrationv1.RegisterServiceRequest
	unregisters     []string
	healths         []*registrationv1.HealthUpdateRequest
	unregisterDelay time.Duration
	unregisterErr   error
	healthErr       error
}

// StartRegistry 在 127.0.0.1 的随机端口启动假注册中心，测试结束时停止。
// 脚本用完后重复使用 fallback（默认 Unavailable）。
func StartRegistry(t *testing.T, script ...Attempt) *Registry {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	r := &Registry{
		Addr:     lis.Addr().String(),
		server:   grpc.NewServer(grpc.StatsHandler(trace.GRPCServerStatsHandler())),
		stopCh:   make(chan struct{}),
		script:   script,
		fallback: Unavailable(),
	}
	registrationv1.RegisterPlatformRegistrationServiceServer(r.server, r)
	go func() {
		_ = r.server.Serve(lis)
	}()
	t.Cleanup(r.Stop)
	return r
}

// Host 和 Port 拆分监听地址，便于填入 RegistryConfig
func (r *Registry) Host() string {
	host, _, _ := net.SplitHostPort(r.Addr)
	return host
}

func (r *Registry) Port() int {
	_, port, _ := net.SplitHostPort(r.Addr)
	p, _ := strconv.Atoi(port)
	return p
}

// Stop 停止服务，保持中的流以 Unavailable 结束
func (r *Registry) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
		r.server.Stop()
	})
}

func (r *Registry) SetFallback(a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = a
}

// SetUnregisterBehavior 注销前等待 delay，然后返回 err
func (r *Registry) SetUnregisterBehavior(delay time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterDelay = delay
	r.unregisterErr = err
}

func (r *Registry) SetHealthError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthErr = err
}

// Registrations 收到的注册请求
func (r *Registry) Registrations() []*registrationv1.RegisterServiceRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*registrationv1.RegisterServiceRequest(nil), r.registers...)
}

func (r *Registry) RegisterCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registers)
}

// Unregistered 收到的注销请求中的服务 ID
func (r *Registry) Unregistered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unregisters...)
}

func (r *Registry) HealthUpdates() []*registrationv1.HealthUpdateRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*registrationv1.HealthUpdateRequest(nil), r.healths...)
}

func (r *Registry) RegisterService(req *registrationv1.RegisterServiceRequest, stream grpc.ServerStreamingServer[registrationv1.RegisterServiceResponse]) error {
	r.mu.Lock()
	r.registers = append(r.registers, req)
	a := r.fallback
	if n := len(r.registers); n <= len(r.script) {
		a = r.script[n-1]
	}
	r.mu.Unlock()

	for _, resp := range a.Responses {
		if err := stream.Send(resp); err != nil {
			return err
		}
	}
	if a.Hold {
		select {
		case <-stream.Context().Done():
			return status.FromContextError(stream.Context().Err()).Err()
		case <-r.stopCh:
			return status.Error(codes.Unavailable, "registry stopped")
		}
	}
	return a.Err
}

func (r *Registry) UnregisterService(ctx context.Context, req *registrationv1.UnregisterServiceRequest) (*registrationv1.UnregisterServiceResponse, error) {
	r.mu.Lock()
	r.unregisters = append(r.unregisters, req.ServiceId)
	delay, err := r.unregisterDelay, r.unregisterErr
	r.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &registrationv1.UnregisterServiceResponse{Success: true, Message: "unregistered"}, nil
}

func (r *Registry) UpdateHealth(_ context.Context, req *registrationv1.HealthUpdateRequest) (*registrationv1.HealthUpdateResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.healthErr != nil {
		return nil, r.healthErr
	}
	r.healths = append(r.healths, req)
	return &registrationv1.HealthUpdateResponse{Acknowledged: true}, nil
}
