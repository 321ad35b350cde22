package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracerName registrar 使用的 Tracer 名称
const TracerName = "github.com/ceyewan/registrar"

// 注册相关的 Span 属性键
const (
	AttrServiceName  = "registrar.service.name"
	AttrServiceID    = "registrar.service.id"
	AttrAttempt      = "registrar.attempt"
	AttrHealthStatus = "registrar.health.status"
	AttrRegistry     = "registrar.registry"
)

// Span 名称
const (
	SpanRegister      = "registrar.register"
	SpanUnregister    = "registrar.unregister"
	SpanHealthUpdate  = "registrar.health_update"
	SpanRegisterCycle = "registrar.register_cycle"
)

// StartClientSpan 以全局 TracerProvider 创建客户端 Span
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attrs...),
	)
}

// StartInternalSpan 创建内部 Span，用于注册周期等不直接对应一次调用的过程
func StartInternalSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindInternal),
		oteltrace.WithAttributes(attrs...),
	)
}

// EndSpan 记录错误（如果有）并结束 Span
func EndSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
