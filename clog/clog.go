// Package clog 为 registrar 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象 Logger 接口，不暴露底层 slog 实现
//   - 层级命名空间，registrar 的每个子组件各占一段（registrar.client、registrar.health）
//   - 运行时动态调整级别，配合 config.Watch 实现热更新
//   - 可从 Context 中提取 OpenTelemetry 的 trace_id/span_id
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "console", Output: "stdout"},
//	    clog.WithNamespace("registrar"),
//	)
//	logger.Info("registration started", clog.String("service", "orders"))
package clog

import "fmt"

// New 创建一个新的 Logger 实例，config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}

// Must 与 New 相同，出错时 panic。仅用于 main 和测试中的初始化。
func Must(config *Config, opts ...Option) Logger {
	logger, err := New(config, opts...)
	if err != nil {
		panic(err)
	}
	return logger
}
