package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ceyewan/registrar/xerrors"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		ok   bool
	}{
		{"nil", nil, false},
		{"disabled skips checks", &Config{}, true},
		{"default", DefaultConfig("registrar"), true},
		{"missing name", &Config{Enabled: true, Endpoint: "x:4317"}, false},
		{"missing endpoint", &Config{Enabled: true, ServiceName: "r"}, false},
		{"bad sampler", &Config{Enabled: true, ServiceName: "r", Endpoint: "x", Sampler: 2}, false},
		{"bad batcher", &Config{Enabled: true, ServiceName: "r", Endpoint: "x", Batcher: "zip"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
			}
		})
	}
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(&Config{ServiceName: "registrar"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	install(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := StartClientSpan(context.Background(), SpanRegister, attribute.String(AttrServiceName, "orders"))
	EndSpan(span, errors.New("unavailable"))

	_, span = StartInternalSpan(context.Background(), SpanRegisterCycle, attribute.Int(AttrAttempt, 1))
	EndSpan(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, SpanRegister, ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
	assert.Equal(t, codes.Ok, ended[1].Status().Code)
}
