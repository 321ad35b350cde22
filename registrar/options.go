package registrar

import (
	"math/rand/v2"
	"time"

	"github.com/ceyewan/registrar/breaker"
	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
)

// Option 组件初始化选项函数，Client、HealthReporter 和 Manager 共用
type Option func(*options)

// StateListener 观察状态转换，在发生转换的协程中同步调用
type StateListener func(from, to State)

// RetryListener 观察每次重试前的等待，attempt 为刚失败的尝试序号
type RetryListener func(attempt int, delay time.Duration, err error)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	breaker   breaker.Breaker
	factory   TransportFactory
	collector MetadataCollector
	source    HealthSource
	random    func() float64

	stateListeners []StateListener
	retryListeners []RetryListener
}

// WithLogger 注入日志记录器，组件内部会追加 "registrar" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("registrar")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithBreaker 为健康上报加上熔断器。
// 未设置时每个周期都直接调用注册中心；熔断打开期间的周期会被跳过
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		if b != nil {
			o.breaker = b
		}
	}
}

// WithTransportFactory 替换按配置驱动创建的默认 Transport
func WithTransportFactory(f TransportFactory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithMetadataCollector 替换默认的 ConfigCollector
func WithMetadataCollector(c MetadataCollector) Option {
	return func(o *options) {
		if c != nil {
			o.collector = c
		}
	}
}

// WithHealthSource 设置健康判定来源，默认始终为 UP
func WithHealthSource(s HealthSource) Option {
	return func(o *options) {
		if s != nil {
			o.source = s
		}
	}
}

// WithRandom 替换退避抖动使用的随机源，返回值应在 [0,1)
func WithRandom(f func() float64) Option {
	return func(o *options) {
		if f != nil {
			o.random = f
		}
	}
}

// WithStateListener 追加状态转换监听
func WithStateListener(l StateListener) Option {
	return func(o *options) {
		if l != nil {
			o.stateListeners = append(o.stateListeners, l)
		}
	}
}

// WithRetryListener 追加重试监听
func WithRetryListener(l RetryListener) Option {
	return func(o *options) {
		if l != nil {
			o.retryListeners = append(o.retryListeners, l)
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		source: StaticHealthSource(VerdictUp),
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
