package registrar

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/trace"
	"github.com/ceyewan/registrar/xerrors"
)

// 调用方法名，用作指标标签
const (
	methodRegisterService   = "RegisterService"
	methodUnregisterService = "UnregisterService"
	methodUpdateHealth      = "UpdateHealth"
)

// Client 注册中心客户端。
//
// 负责领域类型与线协议消息之间的转换，Transport 在第一次调用时创建且只创建一次。
// Client 本身不做重试，所有失败都以 ErrTransport 类别返回，由调用方决定如何处理。
type Client struct {
	cfg     RegistryConfig
	factory TransportFactory
	logger  clog.Logger
	rpc     *metrics.RPCClientMetrics

	initMu    sync.Mutex
	transport atomic.Pointer[transportHolder]

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

type transportHolder struct {
	t Transport
}

// NewClient 创建客户端，不会立即连接注册中心
func NewClient(cfg RegistryConfig, opts ...Option) (*Client, error) {
	return newClient(cfg, applyOptions(opts))
}

func newClient(cfg RegistryConfig, o *options) (*Client, error) {
	d := DefaultConfig().Registry
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = d.ShutdownGrace
	}

	factory := o.factory
	if factory == nil {
		factory = newTransportFactory(cfg, o)
	}
	rpc, err := metrics.NewRPCClientMetrics(o.meter, registrationv1.ServiceName)
	if err != nil {
		return nil, xerrors.Wrap(err, "create client metrics")
	}

	return &Client{
		cfg:     cfg,
		factory: factory,
		logger:  o.logger.WithNamespace("client"),
		rpc:     rpc,
	}, nil
}

// begin 登记一次在途调用，关闭后返回 ErrClosed
func (c *Client) begin() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	c.inflight.Add(1)
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// getTransport 双重检查的惰性初始化，失败后下次调用会重新尝试
func (c *Client) getTransport(ctx context.Context) (Transport, error) {
	if h := c.transport.Load(); h != nil {
		return h.t, nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()
	if h := c.transport.Load(); h != nil {
		return h.t, nil
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	t, err := c.factory(ctx)
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "create transport"), ErrTransport)
	}
	c.transport.Store(&transportHolder{t: t})
	c.logger.Info("registry transport initialized",
		clog.String("driver", c.cfg.Driver),
		clog.String("registry", c.cfg.Address()))
	return t, nil
}

// RegisterService 打开注册流并返回订阅句柄。
// 流的生命周期受 ctx 和 Subscription.Cancel 控制，不受单次调用超时限制。
func (c *Client) RegisterService(ctx context.Context, d *ServiceDescriptor) (*Subscription, error) {
	if d == nil {
		return nil, xerrors.Markf(ErrValidation, "service descriptor is nil")
	}
	if err := c.begin(); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	spanCtx, span := trace.StartClientSpan(streamCtx, trace.SpanRegister,
		attribute.String(trace.AttrServiceName, d.Name()),
		attribute.String(trace.AttrRegistry, c.cfg.Address()))

	start := time.Now()
	var stream RegistrationStream
	t, err := c.getTransport(spanCtx)
	if err == nil {
		stream, err = t.RegisterService(spanCtx, toRegisterRequest(d))
	}
	c.rpc.Observe(ctx, methodRegisterService, err, time.Since(start))
	if err != nil {
		cancel()
		c.inflight.Done()
		if !errors.Is(err, ErrClosed) {
			err = xerrors.Mark(xerrors.Wrap(err, "open registration stream"), ErrTransport)
		}
		trace.EndSpan(span, err)
		return nil, err
	}
	trace.EndSpan(span, nil)

	c.logger.Info("registration stream opened",
		clog.String("service", d.Name()),
		clog.String("address", d.Address()))

	sub := &Subscription{
		events: make(chan RegistrationEvent),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go sub.run(streamCtx, stream, c.logger, c.inflight.Done)
	return sub, nil
}

// UnregisterService 注销服务实例，受 Registry.Timeout 限制
func (c *Client) UnregisterService(ctx context.Context, serviceID string) (*UnregisterResult, error) {
	var resp *registrationv1.UnregisterServiceResponse
	err := c.invoke(ctx, methodUnregisterService, trace.SpanUnregister, serviceID,
		func(ctx context.Context, t Transport) (err error) {
			resp, err = t.UnregisterService(ctx, &registrationv1.UnregisterServiceRequest{ServiceId: serviceID})
			return err
		})
	if err != nil {
		return nil, err
	}
	return &UnregisterResult{Success: resp.Success, Message: resp.Message}, nil
}

// UpdateHealth 上报健康状态，请求带上当前时间
func (c *Client) UpdateHealth(ctx context.Context, serviceID string, status HealthStatus, message string) (*HealthUpdateResult, error) {
	var resp *registrationv1.HealthUpdateResponse
	err := c.invoke(ctx, methodUpdateHealth, trace.SpanHealthUpdate, serviceID,
		func(ctx context.Context, t Transport) (err error) {
			resp, err = t.UpdateHealth(ctx, &registrationv1.HealthUpdateRequest{
				ServiceId: serviceID,
				Status:    toWireHealth(status),
				Message:   message,
				Timestamp: time.Now().UnixNano(),
			})
			return err
		})
	if err != nil {
		return nil, err
	}
	return &HealthUpdateResult{Acknowledged: resp.Acknowledged}, nil
}

// invoke 执行一次有超时的一元调用，并记录指标和 Span
func (c *Client) invoke(ctx context.Context, method, spanName, serviceID string, fn func(context.Context, Transport) error) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, span := trace.StartClientSpan(ctx, spanName,
		attribute.String(trace.AttrServiceID, serviceID),
		attribute.String(trace.AttrRegistry, c.cfg.Address()))

	start := time.Now()
	t, err := c.getTransport(ctx)
	if err == nil {
		err = fn(ctx, t)
	}
	c.rpc.Observe(ctx, method, err, time.Since(start))
	if err != nil && !errors.Is(err, ErrClosed) {
		err = xerrors.Mark(xerrors.Wrapf(err, "%s %s", method, serviceID), ErrTransport)
	}
	trace.EndSpan(span, err)
	return err
}

// Close 关闭客户端，可重复调用。
// 先在 ShutdownGrace 内等待在途调用结束，超时或 ctx 结束后强制关闭 Transport。
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(drained)
	}()

	timer := time.NewTimer(c.cfg.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		c.logger.Warn("in-flight calls still running after grace period, forcing close",
			clog.Duration("grace", c.cfg.ShutdownGrace))
	case <-ctx.Done():
		c.logger.Warn("close context done before in-flight calls finished, forcing close",
			clog.Error(ctx.Err()))
	}

	c.initMu.Lock()
	h := c.transport.Swap(nil)
	c.initMu.Unlock()
	if h == nil {
		return nil
	}
	if err := h.t.Close(); err != nil {
		return xerrors.Wrap(err, "close transport")
	}
	c.logger.Info("registry transport closed")
	return nil
}

// Subscription 注册流的订阅句柄。
//
// Events 按服务端发送顺序投递事件，流结束后关闭；此后 Err 给出结束原因：
// 服务端正常关闭为 nil，被取消为 context.Canceled，其余为 ErrTransport 类别。
type Subscription struct {
	events chan RegistrationEvent
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *Subscription) Events() <-chan RegistrationEvent {
	return s.events
}

// Done 在接收协程退出后关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel 取消订阅，可重复调用
func (s *Subscription) Cancel() {
	s.cancel()
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Subscription) run(ctx context.Context, stream RegistrationStream, logger clog.Logger, release func()) {
	defer release()
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	for {
		resp, err := stream.Recv()
		if err != nil {
			s.setErr(classifyStreamErr(ctx, err))
			if errors.Is(err, io.EOF) {
				logger.Info("Registration stream completed")
			} else if ctx.Err() == nil {
				logger.Warn("registration stream failed", clog.Error(err))
			}
			return
		}

		ev := fromRegisterResponse(resp)
		logger.Debug("registration event received",
			clog.String("status", ev.Status.String()),
			clog.String("service_id", ev.ServiceID))
		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.setErr(context.Canceled)
			return
		}
	}
}

func classifyStreamErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case ctx.Err() != nil:
		return context.Canceled
	default:
		return xerrors.Mark(xerrors.Wrap(err, "registration stream"), ErrTransport)
	}
}

func toRegisterRequest(d *ServiceDescriptor) *registrationv1.RegisterServiceRequest {
	return &registrationv1.RegisterServiceRequest{
		ServiceName: d.Name(),
		Host:        d.Host(),
		Port:        int32(d.Port()),
		Version:     d.Version(),
		Metadata:    d.Metadata(),
	}
}

func fromRegisterResponse(resp *registrationv1.RegisterServiceResponse) RegistrationEvent {
	ev := RegistrationEvent{ServiceID: resp.ServiceId, Message: resp.Message}
	switch resp.Status {
	case registrationv1.RegistrationStatus_REGISTERED:
		ev.Status = EventRegistered
	case registrationv1.RegistrationStatus_FAILED:
		ev.Status = EventFailed
	default:
		ev.Status = EventUnspecified
	}
	return ev
}

func toWireHealth(s HealthStatus) registrationv1.HealthStatus {
	switch s {
	case HealthUp:
		return registrationv1.HealthStatus_UP
	case HealthDown:
		return registrationv1.HealthStatus_DOWN
	default:
		return registrationv1.HealthStatus_UNKNOWN
	}
}
