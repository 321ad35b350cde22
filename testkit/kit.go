// Package testkit 提供 registrar 各组件测试共用的依赖和假注册中心。
package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
)

// Kit 单个测试的公共依赖，随测试结束释放
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

func NewKit(t testing.TB) *Kit {
	ctx, cancel := context.WithCancel(context.Background())
	meter := NewMeter()
	t.Cleanup(func() {
		cancel()
		_ = meter.Shutdown(context.Background())
	})
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 控制台格式的测试 logger。
// 默认 warn 级别，排查时用 REGISTRAR_TEST_LOG_LEVEL=debug 打开状态机和重试日志
func NewLogger() clog.Logger {
	cfg := clog.NewDevDefaultConfig()
	cfg.Level = "warn"
	if level := os.Getenv("REGISTRAR_TEST_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	logger, err := clog.New(cfg, clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 启用的 meter，每个实例持有独立的 Prometheus Registry，指标可以直接抓取断言
func NewMeter() metrics.Meter {
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "registrar-test"})
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 带超时的上下文，测试结束时自动取消
func NewContext(t testing.TB, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 8 位随机串，用作服务名或 etcd 命名空间后缀
func NewID() string {
	return uuid.New().String()[:8]
}
