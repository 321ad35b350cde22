package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/registrar"
)

func hostServer(t *testing.T, code int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestHTTPHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		verdict registrar.Verdict
	}{
		{"ok", http.StatusOK, registrar.VerdictUp},
		{"no content", http.StatusNoContent, registrar.VerdictUp},
		{"unavailable", http.StatusServiceUnavailable, registrar.VerdictDown},
		{"internal error", http.StatusInternalServerError, registrar.VerdictDown},
		{"not found", http.StatusNotFound, registrar.VerdictDown},
		{"unauthorized", http.StatusUnauthorized, registrar.VerdictDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := newHTTPHealthCheck(hostServer(t, tt.code), clog.Discard()).Check(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, verdict)
		})
	}
}

func TestHTTPHealthCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	verdict, err := newHTTPHealthCheck(url, clog.Discard()).Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, registrar.VerdictUnknown, verdict)
}

// recordingUpdater 记录健康上报的状态
type recordingUpdater struct {
	mu       sync.Mutex
	statuses []registrar.HealthStatus
}

func (u *recordingUpdater) UpdateHealth(_ context.Context, _ string, status registrar.HealthStatus, _ string) (*registrar.HealthUpdateResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statuses = append(u.statuses, status)
	return &registrar.HealthUpdateResult{Acknowledged: true}, nil
}

func (u *recordingUpdater) first() (registrar.HealthStatus, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.statuses) == 0 {
		return registrar.HealthUnknown, false
	}
	return u.statuses[0], true
}

func TestHTTPHealthCheckReportedStatus(t *testing.T) {
	tests := []struct {
		name string
		code int
		want registrar.HealthStatus
	}{
		{"ok", http.StatusOK, registrar.HealthUp},
		{"not found", http.StatusNotFound, registrar.HealthDown},
		{"unauthorized", http.StatusUnauthorized, registrar.HealthDown},
		{"unavailable", http.StatusServiceUnavailable, registrar.HealthDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &recordingUpdater{}
			r, err := registrar.NewHealthReporter(u,
				registrar.HealthCheckConfig{Enabled: true, Interval: 10 * time.Millisecond},
				registrar.WithHealthSource(newHTTPHealthCheck(hostServer(t, tt.code), clog.Discard())))
			require.NoError(t, err)
			t.Cleanup(r.Stop)

			r.Start("svc-1", 0)
			require.Eventually(t, func() bool {
				_, ok := u.first()
				return ok
			}, 2*time.Second, 5*time.Millisecond)
			got, _ := u.first()
			assert.Equal(t, tt.want, got)
		})
	}
}
