package clog

import "context"

// Logger 结构化日志接口
//
// 创建子 Logger：
//
//	child := logger.With(clog.String("service_id", id))
//	health := logger.WithNamespace("health")
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// Context 版本会从 ctx 中提取配置的字段和 trace 信息
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建带预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 在现有命名空间后追加，以 "." 连接
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整级别，对所有派生自同一根 Logger 的实例生效
	SetLevel(level Level) error

	Flush()
}
