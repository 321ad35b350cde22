package registrar

import (
	"context"

	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/xerrors"
)

const (
	MetricAttemptsTotal      = "registrar_registration_attempts_total"
	MetricState              = "registrar_state"
	MetricHealthUpdatesTotal = "registrar_health_updates_total"
)

// allStates 状态 gauge 需要为每个状态写值
var allStates = []State{
	StateUnregistered, StateRegistering, StateRegistered,
	StateFailed, StateDeregistering, StateDeregistered,
}

type managerMetrics struct {
	attempts metrics.Counter
	state    metrics.Gauge
}

func newManagerMetrics(m metrics.Meter) (*managerMetrics, error) {
	attempts, err := m.Counter(MetricAttemptsTotal, "Registration stream attempts by outcome.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create attempts counter")
	}
	state, err := m.Gauge(MetricState, "Current registration state, 1 for the active state.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create state gauge")
	}
	return &managerMetrics{attempts: attempts, state: state}, nil
}

func (m *managerMetrics) attempt(outcome string) {
	m.attempts.Inc(context.Background(), metrics.L(metrics.LabelOutcome, outcome))
}

// setState 当前状态置 1，其余置 0
func (m *managerMetrics) setState(current State) {
	ctx := context.Background()
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.Set(ctx, v, metrics.L(metrics.LabelState, s.String()))
	}
}
