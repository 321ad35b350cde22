package registrar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/registrar/breaker"
	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/xerrors"
)

// 健康上报在熔断器中的 key
const breakerKeyHealth = "health_update"

const (
	msgHealthy   = "All health checks passed"
	msgUnhealthy = "Health check failed"
)

// Verdict 宿主健康检查的结论
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictUp
	VerdictDown
)

func (v Verdict) String() string {
	switch v {
	case VerdictUp:
		return "UP"
	case VerdictDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// HealthSource 宿主健康检查的聚合结果
type HealthSource interface {
	Check(ctx context.Context) (Verdict, error)
}

// HealthSourceFunc 函数适配器
type HealthSourceFunc func(ctx context.Context) (Verdict, error)

func (f HealthSourceFunc) Check(ctx context.Context) (Verdict, error) {
	return f(ctx)
}

// StaticHealthSource 始终返回固定结论
func StaticHealthSource(v Verdict) HealthSource {
	return HealthSourceFunc(func(context.Context) (Verdict, error) {
		return v, nil
	})
}

// HealthUpdater 健康上报的发送方，*Client 实现了该接口
type HealthUpdater interface {
	UpdateHealth(ctx context.Context, serviceID string, status HealthStatus, message string) (*HealthUpdateResult, error)
}

// HealthReporter 按固定周期向注册中心上报健康状态。
//
// 每个周期在独立协程中执行，上一周期未结束不影响下一周期。
// 上报失败只记录日志，不会停止定时器。
type HealthReporter struct {
	updater HealthUpdater
	source  HealthSource
	cfg     HealthCheckConfig
	breaker breaker.Breaker
	logger  clog.Logger
	reports metrics.Counter

	serviceID atomic.Pointer[string]

	mu  sync.Mutex
	run *reporterRun
}

// reporterRun 一次 Start 到 Stop 之间的运行实例
type reporterRun struct {
	ctx    context.Context
	cancel context.CancelFunc

	// gate 读锁覆盖一次 UpdateHealth 调用，写锁用于 Stop 封口
	gate    sync.RWMutex
	stopped bool
}

func (run *reporterRun) isStopped() bool {
	run.gate.RLock()
	defer run.gate.RUnlock()
	return run.stopped
}

func (run *reporterRun) stop() {
	run.cancel()
	run.gate.Lock()
	run.stopped = true
	run.gate.Unlock()
}

// NewHealthReporter 创建健康上报器
func NewHealthReporter(updater HealthUpdater, cfg HealthCheckConfig, opts ...Option) (*HealthReporter, error) {
	return newHealthReporter(updater, cfg, applyOptions(opts))
}

func newHealthReporter(updater HealthUpdater, cfg HealthCheckConfig, o *options) (*HealthReporter, error) {
	if updater == nil {
		return nil, xerrors.Markf(ErrConfiguration, "health updater is nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().HealthCheck.Interval
	}

	reports, err := o.meter.Counter(MetricHealthUpdatesTotal, "Health reports pushed to the registry.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create health counter")
	}

	return &HealthReporter{
		updater: updater,
		source:  o.source,
		cfg:     cfg,
		breaker: o.breaker,
		logger:  o.logger.WithNamespace("health"),
		reports: reports,
	}, nil
}

// Start 以 interval 为周期开始上报；已在运行时替换原定时器。
// interval 非正时使用配置的周期，健康上报被禁用时只记录日志。
func (r *HealthReporter) Start(serviceID string, interval time.Duration) {
	if !r.cfg.Enabled {
		r.logger.Info("health reporting disabled")
		return
	}
	if interval <= 0 {
		interval = r.cfg.Interval
	}
	r.SetServiceID(serviceID)

	ctx, cancel := context.WithCancel(context.Background())
	run := &reporterRun{ctx: ctx, cancel: cancel}

	r.mu.Lock()
	prev := r.run
	r.run = run
	r.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	go r.loop(run, interval)
	r.logger.Info("health reporting started",
		clog.String("service_id", serviceID),
		clog.Duration("interval", interval))
}

// SetServiceID 更新后续上报使用的服务 ID
func (r *HealthReporter) SetServiceID(serviceID string) {
	r.serviceID.Store(&serviceID)
}

func (r *HealthReporter) ServiceID() string {
	if id := r.serviceID.Load(); id != nil {
		return *id
	}
	return ""
}

// Running 是否有活动的定时器
func (r *HealthReporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run != nil
}

// Stop 停止上报，可重复调用。
// 返回后不会再发起新的上报，进行中的上报被取消而不是等待完成。
func (r *HealthReporter) Stop() {
	r.mu.Lock()
	run := r.run
	r.run = nil
	r.mu.Unlock()
	if run == nil {
		return
	}
	run.stop()
	r.logger.Info("health reporting stopped")
}

func (r *HealthReporter) loop(run *reporterRun, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-run.ctx.Done():
			return
		case <-ticker.C:
			go r.tick(run)
		}
	}
}

// tick 健康检查在封口之外执行，宿主的检查即使忽略 ctx 也不会阻塞 Stop
func (r *HealthReporter) tick(run *reporterRun) {
	if run.isStopped() {
		return
	}
	id := r.ServiceID()
	if id == "" {
		r.logger.Debug("service id not assigned, skip health report")
		return
	}

	status, message := r.sample(run.ctx)

	run.gate.RLock()
	defer run.gate.RUnlock()
	if run.stopped {
		return
	}
	err := r.push(run.ctx, id, status, message)

	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
		r.logger.Debug("health reported",
			clog.String("service_id", id),
			clog.String("status", status.String()))
	case run.ctx.Err() != nil:
		return
	case errors.Is(err, breaker.ErrOpenState):
		outcome = metrics.OutcomeRejected
		r.logger.Debug("health report skipped, breaker open", clog.String("service_id", id))
	default:
		outcome = metrics.OutcomeError
		r.logger.Warn("health report failed",
			clog.String("service_id", id),
			clog.String("status", status.String()),
			clog.Error(err))
	}
	r.reports.Inc(context.Background(),
		metrics.L(metrics.LabelStatus, status.String()),
		metrics.L(metrics.LabelOutcome, outcome))
}

// push 发送一次上报，配置了熔断器时经由熔断器执行
func (r *HealthReporter) push(ctx context.Context, id string, status HealthStatus, message string) error {
	call := func(ctx context.Context) error {
		res, err := r.updater.UpdateHealth(ctx, id, status, message)
		if err != nil {
			return err
		}
		if !res.Acknowledged {
			r.logger.Debug("health report not acknowledged", clog.String("service_id", id))
		}
		return nil
	}
	if r.breaker == nil {
		return call(ctx)
	}
	return r.breaker.Execute(ctx, breakerKeyHealth, call)
}

// sample 查询健康来源，出错或 panic 时为 UNKNOWN
func (r *HealthReporter) sample(ctx context.Context) (status HealthStatus, message string) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Interval)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			status, message = HealthUnknown, fmt.Sprintf("%s: %v", msgUnhealthy, p)
		}
	}()

	verdict, err := r.source.Check(ctx)
	if err != nil {
		return HealthUnknown, fmt.Sprintf("%s: %v", msgUnhealthy, err)
	}
	switch verdict {
	case VerdictUp:
		return HealthUp, msgHealthy
	case VerdictDown:
		return HealthDown, msgUnhealthy
	default:
		return HealthUnknown, msgUnhealthy
	}
}
