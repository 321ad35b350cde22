package breaker

import (
	"context"
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
)

const (
	MetricRejectsTotal = "registrar_breaker_rejects_total"
	MetricStateChanges = "registrar_breaker_state_changes_total"
)

type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger

	rejects      metrics.Counter
	stateChanges metrics.Counter

	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[struct{}]
}

func newBreaker(cfg *Config, o options) *circuitBreaker {
	cb := &circuitBreaker{cfg: cfg, logger: o.logger}

	meter := o.meter
	if meter == nil {
		meter = metrics.Discard()
	}
	var err error
	if cb.rejects, err = meter.Counter(MetricRejectsTotal, "Calls rejected by an open circuit breaker."); err != nil {
		cb.logger.Warn("create breaker reject counter failed", clog.Error(err))
		cb.rejects, _ = metrics.Discard().Counter(MetricRejectsTotal, "")
	}
	if cb.stateChanges, err = meter.Counter(MetricStateChanges, "Circuit breaker state transitions."); err != nil {
		cb.logger.Warn("create breaker state counter failed", clog.Error(err))
		cb.stateChanges, _ = metrics.Discard().Counter(MetricStateChanges, "")
	}
	return cb
}

func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if key == "" {
		return ErrKeyEmpty
	}

	_, err := cb.getOrCreate(key).Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.rejects.Inc(ctx, metrics.L("key", key))
		cb.logger.Debug("call rejected by circuit breaker", clog.String("key", key))
		return ErrOpenState
	}
	return err
}

func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}
	val, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, nil
	}
	return fromGobreaker(val.(*gobreaker.CircuitBreaker[struct{}]).State()), nil
}

func (cb *circuitBreaker) getOrCreate(key string) *gobreaker.CircuitBreaker[struct{}] {
	if val, ok := cb.breakers.Load(key); ok {
		return val.(*gobreaker.CircuitBreaker[struct{}])
	}

	settings := gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		IsSuccessful:  isSuccessful,
		OnStateChange: cb.onStateChange,
	}
	actual, _ := cb.breakers.LoadOrStore(key, gobreaker.NewCircuitBreaker[struct{}](settings))
	return actual.(*gobreaker.CircuitBreaker[struct{}])
}

func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= cb.cfg.FailureRatio
}

// isSuccessful 调用方主动取消不计入失败
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func (cb *circuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.stateChanges.Inc(context.Background(),
		metrics.L("key", name), metrics.L("to", fromGobreaker(to).String()))
	cb.logger.Info("circuit breaker state changed",
		clog.String("key", name),
		clog.String("from", fromGobreaker(from).String()),
		clog.String("to", fromGobreaker(to).String()))
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
