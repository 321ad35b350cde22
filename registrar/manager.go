// Package registrar 是嵌入服务进程的注册代理。
//
// 启动时向注册中心打开一条服务端流完成注册，注册成功后周期性上报健康状态，
// 进程退出时注销。核心是一个只允许合法转换的状态机：
//
//	UNREGISTERED -> REGISTERING -> REGISTERED -> DEREGISTERING -> DEREGISTERED
//	                     \-> FAILED
//
// ## 基本使用
//
//	cfg := registrar.DefaultConfig()
//	cfg.ServiceName = "order-service"
//	cfg.HTTPPort = 8080
//
//	mgr, err := registrar.New(cfg,
//		registrar.WithLogger(logger),
//		registrar.WithMeter(meter),
//		registrar.WithHealthSource(source))
//	if err != nil {
//		return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//		return err
//	}
//	defer mgr.Shutdown(context.Background())
//
// ## 重试
//
// 每次尝试对应一条注册流。流出错或在给出结论前结束时按指数退避重试，
// 最多 Retry.MaxAttempts 次，全部失败后进入 FAILED，不会自行恢复。
// 注册中心返回 FAILED 视为拒绝，直接进入 FAILED。
//
// ## 传输
//
// Registry.Driver 为 grpc 时使用 registration.v1.PlatformRegistrationService，
// 为 etcd 时以租约直接写入 etcd，见 EtcdTransport。
package registrar

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/trace"
	"github.com/ceyewan/registrar/xerrors"
)

// Manager 服务注册生命周期管理器，方法均并发安全
type Manager struct {
	cfg       *Config
	policy    RetryPolicy
	client    *Client
	collector MetadataCollector
	reporter  *HealthReporter
	logger    clog.Logger
	metrics   *managerMetrics
	random    func() float64

	stateListeners []StateListener
	retryListeners []RetryListener

	state      atomic.Int32
	serviceID  atomic.Pointer[string]
	descriptor atomic.Pointer[ServiceDescriptor]
	attempts   atomic.Int32

	mu       sync.Mutex
	started  bool
	shutdown bool
	cancel   context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// New 校验配置并创建 Manager，不会发起任何网络调用
func New(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, xerrors.Markf(ErrConfiguration, "config is nil")
	}
	c := *cfg
	c.Metadata = maps.Clone(cfg.Metadata)
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	policy, err := c.retryPolicy()
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	client, err := newClient(c.Registry, o)
	if err != nil {
		return nil, err
	}
	reporter, err := newHealthReporter(client, c.HealthCheck, o)
	if err != nil {
		return nil, err
	}
	mm, err := newManagerMetrics(o.meter)
	if err != nil {
		return nil, err
	}
	collector := o.collector
	if collector == nil {
		collector = NewConfigCollector(&c)
	}

	m := &Manager{
		cfg:            &c,
		policy:         policy,
		client:         client,
		collector:      collector,
		reporter:       reporter,
		logger:         o.logger,
		metrics:        mm,
		random:         o.random,
		stateListeners: o.stateListeners,
		retryListeners: o.retryListeners,
		done:           make(chan struct{}),
	}
	mm.setState(StateUnregistered)
	return m, nil
}

// State 当前状态
func (m *Manager) State() State {
	return State(m.state.Load())
}

// ServiceID 注册中心分配的服务 ID，未注册或已注销时为空
func (m *Manager) ServiceID() string {
	if id := m.serviceID.Load(); id != nil {
		return *id
	}
	return ""
}

// Descriptor 本次注册使用的服务描述，Start 前为 nil
func (m *Manager) Descriptor() *ServiceDescriptor {
	return m.descriptor.Load()
}

// Attempts 当前重试周期内已发起的尝试次数
func (m *Manager) Attempts() int {
	return int(m.attempts.Load())
}

// Done 注册流消费协程退出后关闭；未启动或已禁用时在 Start/Shutdown 后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

// Start 采集服务描述并在后台开始注册，不等待注册结果。
// 重复调用返回 ErrAlreadyStarted，Shutdown 之后返回 ErrClosed；
// 服务描述不合法时进入 FAILED 并返回 ErrValidation 类别的错误。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.shutdown:
		return ErrClosed
	case m.started:
		return ErrAlreadyStarted
	}
	m.started = true

	if !m.cfg.Enabled {
		m.logger.Info("service registration disabled")
		m.closeDone()
		return nil
	}

	m.transition(StateUnregistered, StateRegistering)
	desc, err := m.collector.Collect(ctx)
	if err != nil {
		err = xerrors.Mark(xerrors.Wrap(err, "collect service metadata"), ErrValidation)
		m.fail(err)
		m.closeDone()
		return err
	}
	m.descriptor.Store(desc)
	m.logger.Info("collected service metadata", clog.String("descriptor", desc.String()))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	go m.run(runCtx, desc)
	return nil
}

// Shutdown 停止注册并在已注册时注销，可重复调用，不返回注册中心错误。
// 先取消注册流并等待消费协程退出（受 ctx 限制），再停止健康上报；
// 只有处于 REGISTERED 时才注销，注销失败也会进入 DEREGISTERED。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	cancel := m.cancel
	m.mu.Unlock()

	if !m.cfg.Enabled {
		m.logger.Info("service registration disabled, nothing to deregister")
		m.closeDone()
		return nil
	}

	if cancel != nil {
		cancel()
		select {
		case <-m.done:
		case <-ctx.Done():
			m.logger.Warn("registration consumer still running at shutdown deadline", clog.Error(ctx.Err()))
		}
	} else {
		m.closeDone()
	}
	m.reporter.Stop()

	if state := m.State(); state == StateRegistered {
		m.deregister(ctx)
	} else {
		m.logger.Info("skip deregistration", clog.String("state", state.String()))
	}

	if err := m.client.Close(ctx); err != nil {
		m.logger.Warn("close registry client failed", clog.Error(err))
	}
	return nil
}

func (m *Manager) deregister(ctx context.Context) {
	if !m.transition(StateRegistered, StateDeregistering) {
		return
	}
	id := m.ServiceID()
	res, err := m.client.UnregisterService(ctx, id)
	switch {
	case err != nil:
		m.logger.Error("failed to unregister service", clog.String("service_id", id), clog.Error(err))
	case !res.Success:
		m.logger.Warn("registry did not confirm unregistration",
			clog.String("service_id", id),
			clog.String("message", res.Message))
	default:
		m.logger.Info("service unregistered", clog.String("service_id", id))
	}
	m.serviceID.Store(nil)
	m.transition(StateDeregistering, StateDeregistered)
}

// transition 按转换表做 CAS，成功后通知监听方
func (m *Manager) transition(from, to State) bool {
	if !CanTransition(from, to) {
		m.logger.Error("illegal state transition",
			clog.String("from", from.String()),
			clog.String("to", to.String()))
		return false
	}
	if !m.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	m.logger.Info("registration state changed",
		clog.String("from", from.String()),
		clog.String("to", to.String()))
	m.metrics.setState(to)
	for _, l := range m.stateListeners {
		l(from, to)
	}
	return true
}

func (m *Manager) fail(err error) {
	if m.transition(StateRegistering, StateFailed) {
		m.logger.Error("service registration failed", clog.Error(err))
	}
}

// run 注册流消费协程
func (m *Manager) run(ctx context.Context, desc *ServiceDescriptor) {
	defer m.closeDone()
	for m.cycle(ctx, desc) {
		m.logger.Warn("registration stream lost, re-opening",
			clog.Duration("delay", m.policy.InitialDelay))
		if !sleepCtx(ctx, m.policy.InitialDelay) {
			return
		}
	}
}

type attemptResult int

const (
	attemptFailed    attemptResult = iota // 可重试的失败
	attemptRejected                       // 注册中心返回 FAILED
	attemptCompleted                      // 注册后服务端正常关闭
	attemptBroken                         // 注册后流中断
	attemptCancelled                      // 被 Shutdown 取消
)

// cycle 执行一个重试周期，返回 true 表示已注册的流中断，需要以新周期重建。
// span 覆盖到首个 REGISTERED 或周期结束，不跟随注册流的整个生命周期
func (m *Manager) cycle(ctx context.Context, desc *ServiceDescriptor) (reopen bool) {
	ctx, span := trace.StartInternalSpan(ctx, trace.SpanRegisterCycle,
		attribute.String(trace.AttrServiceName, desc.Name()))
	var once sync.Once
	finish := func(err error) {
		once.Do(func() { trace.EndSpan(span, err) })
	}
	var cycleErr error
	defer func() { finish(cycleErr) }()

	var prev time.Duration
	for attempt := 1; ; attempt++ {
		m.attempts.Store(int32(attempt))
		res, err := m.attempt(ctx, desc, func() { finish(nil) })
		switch res {
		case attemptCancelled, attemptCompleted:
			return false
		case attemptBroken:
			cycleErr = err
			return true
		case attemptRejected:
			cycleErr = err
			m.metrics.attempt(metrics.OutcomeRejected)
			m.fail(err)
			return false
		}

		m.metrics.attempt(metrics.OutcomeError)
		m.logger.Warn("registration attempt failed",
			clog.Int("attempt", attempt),
			clog.Int("max_attempts", m.policy.MaxAttempts),
			clog.Error(err))

		if attempt >= m.policy.MaxAttempts {
			cycleErr = xerrors.Wrapf(err, "registration failed after %d attempts", attempt)
			if m.State() == StateRegistered {
				m.logger.Error("giving up re-opening registration stream, keeping registration", clog.Error(cycleErr))
				return false
			}
			m.fail(cycleErr)
			return false
		}

		delay := max(m.policy.Delay(attempt, m.random()), prev)
		prev = delay
		for _, l := range m.retryListeners {
			l(attempt, delay, err)
		}
		m.logger.Info("retrying registration",
			clog.Int("next_attempt", attempt+1),
			clog.Duration("delay", delay))
		if !sleepCtx(ctx, delay) {
			return false
		}
	}
}

// attempt 打开一条注册流并按顺序消费其中的事件，首个 REGISTERED 时调用 settled
func (m *Manager) attempt(ctx context.Context, desc *ServiceDescriptor, settled func()) (attemptResult, error) {
	sub, err := m.client.RegisterService(ctx, desc)
	if err != nil {
		if ctx.Err() != nil {
			return attemptCancelled, ctx.Err()
		}
		return attemptFailed, err
	}
	defer sub.Cancel()

	registered := false
	for ev := range sub.Events() {
		switch ev.Status {
		case EventRegistered:
			if !registered {
				registered = true
				m.metrics.attempt(metrics.OutcomeSuccess)
				settled()
			}
			m.onRegistered(ctx, ev)
		case EventFailed:
			if m.State() == StateRegistering {
				return attemptRejected, rejectedError(ev.Message)
			}
			m.logger.Warn("ignoring FAILED event for registered service",
				clog.String("service_id", m.ServiceID()),
				clog.String("message", ev.Message))
		default:
			m.logger.Debug("ignoring registration event", clog.String("event", ev.String()))
		}
	}

	err = sub.Err()
	switch {
	case ctx.Err() != nil:
		return attemptCancelled, ctx.Err()
	case err == nil && m.State() == StateRegistered:
		return attemptCompleted, nil
	case err == nil:
		return attemptFailed, xerrors.Markf(ErrTransport, "registration stream ended before a terminal status")
	case registered:
		return attemptBroken, err
	default:
		return attemptFailed, err
	}
}

// onRegistered 首个 REGISTERED 完成状态转换并启动健康上报，之后只刷新服务 ID
func (m *Manager) onRegistered(ctx context.Context, ev RegistrationEvent) {
	prev := m.ServiceID()
	id := ev.ServiceID
	m.serviceID.Store(&id)

	if m.transition(StateRegistering, StateRegistered) {
		m.logger.Info("service registered",
			clog.String("service_id", id),
			clog.String("message", ev.Message))
		if ctx.Err() == nil {
			m.reporter.Start(id, m.cfg.HealthCheck.Interval)
		}
		return
	}
	if id != prev {
		m.logger.Info("service id changed",
			clog.String("previous", prev),
			clog.String("service_id", id))
		m.reporter.SetServiceID(id)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
