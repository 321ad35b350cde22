package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/registrar"
)

type fakeRegistration struct {
	state    registrar.State
	id       string
	attempts int
	desc     *registrar.ServiceDescriptor
}

func (f *fakeRegistration) State() registrar.State                   { return f.state }
func (f *fakeRegistration) ServiceID() string                        { return f.id }
func (f *fakeRegistration) Attempts() int                            { return f.attempts }
func (f *fakeRegistration) Descriptor() *registrar.ServiceDescriptor { return f.desc }

func serve(t *testing.T, reg registration, path string) *httptest.ResponseRecorder {
	t.Helper()
	router, err := newStatusRouter(reg, metrics.Discard(), "/metrics", clog.Discard())
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestStatusEndpoint(t *testing.T) {
	desc, err := registrar.NewServiceDescriptor("orders", "1.2.0", "10.0.0.5", 9090, map[string]string{"zone": "a"})
	require.NoError(t, err)

	reg := &fakeRegistration{state: registrar.StateRegistered, id: "svc-1", attempts: 2, desc: desc}
	w := serve(t, reg, "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var view statusView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "REGISTERED", view.State)
	assert.Equal(t, "svc-1", view.ServiceID)
	assert.Equal(t, 2, view.Attempts)
	require.NotNil(t, view.Descriptor)
	assert.Equal(t, "orders", view.Descriptor.Name)
	assert.Equal(t, "10.0.0.5:9090", view.Descriptor.Address)
	assert.Equal(t, "a", view.Descriptor.Metadata["zone"])
}

func TestStatusEndpointBeforeStart(t *testing.T) {
	w := serve(t, &fakeRegistration{state: registrar.StateUnregistered}, "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var view statusView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "UNREGISTERED", view.State)
	assert.Nil(t, view.Descriptor)
}

func TestHealthzEndpoint(t *testing.T) {
	tests := []struct {
		state registrar.State
		code  int
	}{
		{registrar.StateUnregistered, http.StatusOK},
		{registrar.StateRegistering, http.StatusOK},
		{registrar.StateRegistered, http.StatusOK},
		{registrar.StateFailed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			w := serve(t, &fakeRegistration{state: tt.state}, "/healthz")
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.state.String())
		})
	}
}
