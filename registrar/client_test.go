package registrar

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/testkit"
)

func registryConfig(reg *testkit.Registry) RegistryConfig {
	cfg := DefaultConfig().Registry
	cfg.Host = reg.Host()
	cfg.Port = reg.Port()
	cfg.Timeout = 2 * time.Second
	cfg.ShutdownGrace = 200 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, cfg RegistryConfig, opts ...Option) *Client {
	t.Helper()
	kit := testkit.NewKit(t)
	opts = append([]Option{WithLogger(kit.Logger), WithMeter(kit.Meter)}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func mustDescriptor(t *testing.T) *ServiceDescriptor {
	t.Helper()
	d, err := NewServiceDescriptor("order-service", "1.0.0", "127.0.0.1", 8080, map[string]string{"zone": "a"})
	require.NoError(t, err)
	return d
}

func recvEvent(t *testing.T, sub *Subscription) RegistrationEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events closed: %v", sub.Err())
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for registration event")
		return RegistrationEvent{}
	}
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not finish")
	}
}

func TestClientRegisterService(t *testing.T) {
	reg := testkit.StartRegistry(t, testkit.Attempt{
		Responses: []*registrationv1.RegisterServiceResponse{
			testkit.Registered("svc-1"),
			testkit.Registered("svc-2"),
		},
	})
	c := newTestClient(t, registryConfig(reg))

	sub, err := c.RegisterService(context.Background(), mustDescriptor(t))
	require.NoError(t, err)

	first := recvEvent(t, sub)
	assert.Equal(t, EventRegistered, first.Status)
	assert.Equal(t, "svc-1", first.ServiceID)
	assert.Equal(t, "svc-2", recvEvent(t, sub).ServiceID)

	waitDone(t, sub)
	assert.NoError(t, sub.Err())

	reqs := reg.Registrations()
	require.Len(t, reqs, 1)
	assert.Equal(t, "order-service", reqs[0].ServiceName)
	assert.Equal(t, "127.0.0.1", reqs[0].Host)
	assert.EqualValues(t, 8080, reqs[0].Port)
	assert.Equal(t, "a", reqs[0].Metadata["zone"])
}

func TestClientRegisterStreamFailure(t *testing.T) {
	reg := testkit.StartRegistry(t, testkit.Attempt{
		Responses: []*registrationv1.RegisterServiceResponse{testkit.Rejected("duplicate")},
		Err:       status.Error(codes.Internal, "boom"),
	})
	c := newTestClient(t, registryConfig(reg))

	sub, err := c.RegisterService(context.Background(), mustDescriptor(t))
	require.NoError(t, err)

	ev := recvEvent(t, sub)
	assert.Equal(t, EventFailed, ev.Status)
	assert.Equal(t, "duplicate", ev.Message)

	waitDone(t, sub)
	assert.ErrorIs(t, sub.Err(), ErrTransport)
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestClientSubscriptionCancel(t *testing.T) {
	reg := testkit.StartRegistry(t, testkit.Accept("svc-1"))
	c := newTestClient(t, registryConfig(reg))

	sub, err := c.RegisterService(context.Background(), mustDescriptor(t))
	require.NoError(t, err)
	assert.Equal(t, "svc-1", recvEvent(t, sub).ServiceID)

	sub.Cancel()
	sub.Cancel()
	waitDone(t, sub)
	assert.ErrorIs(t, sub.Err(), context.Canceled)
}

func TestClientUnaryCalls(t *testing.T) {
	reg := testkit.StartRegistry(t)
	c := newTestClient(t, registryConfig(reg))
	ctx := context.Background()

	before := time.Now()
	hres, err := c.UpdateHealth(ctx, "svc-1", HealthDown, "disk full")
	require.NoError(t, err)
	assert.True(t, hres.Acknowledged)

	updates := reg.HealthUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "svc-1", updates[0].ServiceId)
	assert.Equal(t, registrationv1.HealthStatus_DOWN, updates[0].Status)
	assert.Equal(t, "disk full", updates[0].Message)
	assert.GreaterOrEqual(t, updates[0].Timestamp, before.UnixNano())

	ures, err := c.UnregisterService(ctx, "svc-1")
	require.NoError(t, err)
	assert.True(t, ures.Success)
	assert.Equal(t, []string{"svc-1"}, reg.Unregistered())
}

func TestClientUnaryFailureIsTransportError(t *testing.T) {
	reg := testkit.StartRegistry(t)
	reg.SetUnregisterBehavior(0, status.Error(codes.NotFound, "unknown service"))
	reg.SetHealthError(status.Error(codes.Unavailable, "down"))
	c := newTestClient(t, registryConfig(reg))

	_, err := c.UnregisterService(context.Background(), "svc-1")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.UpdateHealth(context.Background(), "svc-1", HealthUp, "ok")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClientUnaryTimeout(t *testing.T) {
	reg := testkit.StartRegistry(t)
	reg.SetUnregisterBehavior(2*time.Second, nil)
	cfg := registryConfig(reg)
	cfg.Timeout = 100 * time.Millisecond
	c := newTestClient(t, cfg)

	start := time.Now()
	_, err := c.UnregisterService(context.Background(), "svc-1")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientLazyTransportInit(t *testing.T) {
	reg := testkit.StartRegistry(t)
	var calls atomic.Int32
	factory := func(ctx context.Context) (Transport, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("dial refused")
		}
		return NewGRPCTransport(reg.Addr)
	}
	c := newTestClient(t, registryConfig(reg), WithTransportFactory(factory))
	assert.Zero(t, calls.Load())

	_, err := c.UpdateHealth(context.Background(), "svc-1", HealthUp, "ok")
	assert.ErrorIs(t, err, ErrTransport)

	_, err = c.UpdateHealth(context.Background(), "svc-1", HealthUp, "ok")
	require.NoError(t, err)
	_, err = c.UnregisterService(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientClose(t *testing.T) {
	t.Run("never initialised", func(t *testing.T) {
		c, err := NewClient(DefaultConfig().Registry)
		require.NoError(t, err)
		require.NoError(t, c.Close(context.Background()))
		require.NoError(t, c.Close(context.Background()))
	})

	t.Run("calls after close", func(t *testing.T) {
		reg := testkit.StartRegistry(t)
		c := newTestClient(t, registryConfig(reg))
		_, err := c.UpdateHealth(context.Background(), "svc-1", HealthUp, "ok")
		require.NoError(t, err)

		require.NoError(t, c.Close(context.Background()))
		_, err = c.UpdateHealth(context.Background(), "svc-1", HealthUp, "ok")
		assert.ErrorIs(t, err, ErrClosed)
		_, err = c.UnregisterService(context.Background(), "svc-1")
		assert.ErrorIs(t, err, ErrClosed)
		_, err = c.RegisterService(context.Background(), mustDescriptor(t))
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("forces open streams after grace", func(t *testing.T) {
		reg := testkit.StartRegistry(t, testkit.Accept("svc-1"))
		cfg := registryConfig(reg)
		cfg.ShutdownGrace = 100 * time.Millisecond
		c := newTestClient(t, cfg)

		sub, err := c.RegisterService(context.Background(), mustDescriptor(t))
		require.NoError(t, err)
		recvEvent(t, sub)

		start := time.Now()
		require.NoError(t, c.Close(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), cfg.ShutdownGrace)
		waitDone(t, sub)
		assert.Error(t, sub.Err())
	})
}
