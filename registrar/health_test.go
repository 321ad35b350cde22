package registrar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/registrar/breaker"
	"github.com/ceyewan/registrar/testkit"
)

// fakeUpdater 记录上报，可按调用序号注入失败
type fakeUpdater struct {
	calls  atomic.Int32
	failOn map[int32]bool

	mu      sync.Mutex
	ids     []string
	reports []HealthStatus
	msgs    []string
}

func (f *fakeUpdater) UpdateHealth(_ context.Context, id string, status HealthStatus, msg string) (*HealthUpdateResult, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.reports = append(f.reports, status)
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	if f.failOn[n] {
		return nil, errors.New("registry unavailable")
	}
	return &HealthUpdateResult{Acknowledged: true}, nil
}

func (f *fakeUpdater) lastID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return ""
	}
	return f.ids[len(f.ids)-1]
}

func newTestReporter(t *testing.T, u HealthUpdater, cfg HealthCheckConfig, opts ...Option) *HealthReporter {
	t.Helper()
	kit := testkit.NewKit(t)
	opts = append([]Option{WithLogger(kit.Logger), WithMeter(kit.Meter)}, opts...)
	r, err := NewHealthReporter(u, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestHealthReporterCadence(t *testing.T) {
	u := &fakeUpdater{failOn: map[int32]bool{1: true}}
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: time.Hour})

	r.Start("svc-1", 20*time.Millisecond)
	assert.True(t, r.Running())

	// 第一次失败不影响后续周期
	assert.Eventually(t, func() bool { return u.calls.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "svc-1", u.lastID())
}

func TestHealthReporterStop(t *testing.T) {
	u := &fakeUpdater{}
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: 10 * time.Millisecond})

	r.Start("svc-1", 0)
	require.Eventually(t, func() bool { return u.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
	assert.False(t, r.Running())

	stopped := u.calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, stopped, u.calls.Load())
}

func TestHealthReporterRestartReplacesTimer(t *testing.T) {
	u := &fakeUpdater{}
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: time.Hour})

	r.Start("svc-1", time.Hour)
	r.Start("svc-2", 10*time.Millisecond)
	require.Eventually(t, func() bool { return u.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "svc-2", u.lastID())

	r.SetServiceID("svc-3")
	assert.Eventually(t, func() bool { return u.lastID() == "svc-3" }, 2*time.Second, 5*time.Millisecond)
}

func TestHealthReporterDisabled(t *testing.T) {
	u := &fakeUpdater{}
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: false, Interval: 10 * time.Millisecond})

	r.Start("svc-1", 10*time.Millisecond)
	assert.False(t, r.Running())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, u.calls.Load())
}

func TestHealthReporterSkipsWithoutServiceID(t *testing.T) {
	u := &fakeUpdater{}
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: 10 * time.Millisecond})

	r.Start("", 0)
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, u.calls.Load())

	r.SetServiceID("svc-1")
	assert.Eventually(t, func() bool { return u.calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestHealthReporterResumesAfterRegistryRecovers(t *testing.T) {
	u := &fakeUpdater{failOn: map[int32]bool{}}
	for i := int32(1); i <= 10; i++ {
		u.failOn[i] = true
	}
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: 5 * time.Millisecond})

	// 不配置熔断器时，恢复后的每个周期都会送达注册中心
	r.Start("svc-1", 0)
	require.Eventually(t, func() bool { return u.calls.Load() >= 20 }, 3*time.Second, 5*time.Millisecond)
	assert.True(t, r.Running())
	assert.Equal(t, "svc-1", u.lastID())
}

func TestHealthReporterStopDoesNotWaitForSlowSource(t *testing.T) {
	u := &fakeUpdater{}
	entered := make(chan struct{}, 64)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// 宿主检查忽略 ctx，直到测试结束才返回
	source := HealthSourceFunc(func(context.Context) (Verdict, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return VerdictUp, nil
	})
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: 10 * time.Millisecond},
		WithHealthSource(source))

	r.Start("svc-1", 0)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("health source was not called")
	}

	start := time.Now()
	r.Stop()
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, r.Running())
	assert.Zero(t, u.calls.Load())
}

func TestHealthReporterNoUpdateAfterStop(t *testing.T) {
	u := &fakeUpdater{}
	release := make(chan struct{})
	var sampled atomic.Int32
	source := HealthSourceFunc(func(context.Context) (Verdict, error) {
		sampled.Add(1)
		<-release
		return VerdictUp, nil
	})
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: 10 * time.Millisecond},
		WithHealthSource(source))

	r.Start("svc-1", 0)
	require.Eventually(t, func() bool { return sampled.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()

	// 停止后才完成的检查不再上报
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, u.calls.Load())
}

func TestHealthReporterBreakerRejection(t *testing.T) {
	u := &fakeUpdater{failOn: map[int32]bool{}}
	for i := int32(1); i <= 1000; i++ {
		u.failOn[i] = true
	}
	br, err := breaker.New(&breaker.Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Hour})
	require.NoError(t, err)
	r := newTestReporter(t, u, HealthCheckConfig{Enabled: true, Interval: 5 * time.Millisecond}, WithBreaker(br))

	r.Start("svc-1", 0)
	require.Eventually(t, func() bool {
		s, _ := br.State(breakerKeyHealth)
		return s == breaker.StateOpen
	}, 2*time.Second, 5*time.Millisecond)

	// 熔断打开后不再调用注册中心，定时器继续运行
	time.Sleep(20 * time.Millisecond)
	open := u.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, open, u.calls.Load())
	assert.True(t, r.Running())
}

func TestHealthReporterSample(t *testing.T) {
	tests := []struct {
		name       string
		source     HealthSource
		wantStatus HealthStatus
		wantMsg    string
	}{
		{name: "up", source: StaticHealthSource(VerdictUp), wantStatus: HealthUp, wantMsg: msgHealthy},
		{name: "down", source: StaticHealthSource(VerdictDown), wantStatus: HealthDown, wantMsg: msgUnhealthy},
		{name: "unknown verdict", source: StaticHealthSource(VerdictUnknown), wantStatus: HealthUnknown, wantMsg: msgUnhealthy},
		{
			name: "error",
			source: HealthSourceFunc(func(context.Context) (Verdict, error) {
				return VerdictUp, errors.New("db ping timeout")
			}),
			wantStatus: HealthUnknown,
			wantMsg:    "Health check failed: db ping timeout",
		},
		{
			name: "panic",
			source: HealthSourceFunc(func(context.Context) (Verdict, error) {
				panic("nil pointer")
			}),
			wantStatus: HealthUnknown,
			wantMsg:    "Health check failed: nil pointer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReporter(t, &fakeUpdater{}, HealthCheckConfig{Enabled: true, Interval: time.Second},
				WithHealthSource(tt.source))
			status, msg := r.sample(context.Background())
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestHealthReporterPushesToRegistry(t *testing.T) {
	reg := testkit.StartRegistry(t)
	c := newTestClient(t, registryConfig(reg))
	r := newTestReporter(t, c, HealthCheckConfig{Enabled: true, Interval: 10 * time.Millisecond},
		WithHealthSource(StaticHealthSource(VerdictDown)))

	r.Start("svc-1", 0)
	require.Eventually(t, func() bool { return len(reg.HealthUpdates()) >= 2 }, 3*time.Second, 10*time.Millisecond)

	u := reg.HealthUpdates()[0]
	assert.Equal(t, "svc-1", u.ServiceId)
	assert.Equal(t, msgUnhealthy, u.Message)
}

func TestNewHealthReporterNilUpdater(t *testing.T) {
	_, err := NewHealthReporter(nil, HealthCheckConfig{Enabled: true})
	assert.ErrorIs(t, err, ErrConfiguration)
}
