package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/ceyewan/registrar/xerrors"
)

const (
	MetricRPCClientRequestTotal    = "registrar_rpc_client_requests_total"
	MetricRPCClientDurationSeconds = "registrar_rpc_duration_seconds"
)

var defaultRPCDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// RPCClientMetrics 封装对注册中心发起调用的 RED 指标
type RPCClientMetrics struct {
	service      string
	requestTotal Counter
	duration     Histogram
}

// NewRPCClientMetrics 创建客户端调用指标，service 为被调用的远端服务名
func NewRPCClientMetrics(m Meter, service string) (*RPCClientMetrics, error) {
	if m == nil {
		return nil, xerrors.New("meter is nil")
	}
	service = strings.TrimSpace(service)
	if service == "" {
		service = "unknown"
	}

	counter, err := m.Counter(MetricRPCClientRequestTotal, "Total number of registry RPC calls.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create rpc request counter")
	}
	duration, err := m.Histogram(MetricRPCClientDurationSeconds, "Registry RPC duration in seconds.",
		WithUnit("s"), WithBuckets(defaultRPCDurationBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create rpc duration histogram")
	}

	return &RPCClientMetrics{service: service, requestTotal: counter, duration: duration}, nil
}

// Observe 记录一次调用，err 为 nil 视为成功
func (m *RPCClientMetrics) Observe(ctx context.Context, method string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}

	code := ErrorCode(err)
	labels := []Label{
		L(LabelService, m.service),
		L(LabelOperation, OperationRPCClient),
		L(LabelMethod, method),
		L(LabelGRPCCode, GRPCStatusClass(code)),
		L(LabelOutcome, GRPCOutcome(code)),
	}
	// 指标记录不应受调用方 ctx 取消影响
	ctx = context.WithoutCancel(ctx)
	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, duration.Seconds(), labels...)
}
