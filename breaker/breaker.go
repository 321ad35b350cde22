// Package breaker 提供按 key 隔离的熔断器，基于 gobreaker 实现。
//
// registrar 可选地用它保护健康上报（WithBreaker）：注册中心持续不可用时熔断打开，
// 后续 tick 直接跳过而不再堆积超时调用；Timeout 过后进入半开状态探测恢复。
// 熔断期间的 tick 不会送达注册中心，Timeout 应不大于上报周期。
//
//	brk, _ := breaker.New(&breaker.Config{FailureRatio: 0.6, MinimumRequests: 3},
//		breaker.WithLogger(logger))
//
//	err := brk.Execute(ctx, "health_update", func(ctx context.Context) error {
//		_, err := client.UpdateHealth(ctx, id, status, msg)
//		return err
//	})
//	if errors.Is(err, breaker.ErrOpenState) {
//		// 熔断中，本次调用未执行
//	}
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/registrar/clog"
)

// Breaker 熔断器
type Breaker interface {
	// Execute 在 key 对应的熔断器保护下执行 fn
	// 熔断打开时不执行 fn，返回 ErrOpenState
	Execute(ctx context.Context, key string, fn func(ctx context.Context) error) error

	// State 返回 key 对应熔断器的状态，未使用过的 key 为 StateClosed
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的最大请求数，默认 1
	MaxRequests uint32 `mapstructure:"max_requests" yaml:"max_requests"`
	// Interval 闭合状态下的统计周期，0 表示不清空
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// Timeout 打开状态持续时间，默认 60s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// FailureRatio 失败率阈值，默认 0.6
	FailureRatio float64 `mapstructure:"failure_ratio" yaml:"failure_ratio"`
	// MinimumRequests 触发熔断的最小请求数，默认 10
	MinimumRequests uint32 `mapstructure:"minimum_requests" yaml:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

// New 创建熔断器
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	c := *cfg
	c.setDefaults()

	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	o.logger.Debug("circuit breaker created",
		clog.Int("max_requests", int(c.MaxRequests)),
		clog.Duration("timeout", c.Timeout),
		clog.Float64("failure_ratio", c.FailureRatio),
		clog.Int("minimum_requests", int(c.MinimumRequests)))

	return newBreaker(&c, o), nil
}
