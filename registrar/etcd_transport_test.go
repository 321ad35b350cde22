package registrar

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/testkit"
)

func TestEtcdTransport(t *testing.T) {
	conn := testkit.GetEtcdConnector(t)
	cli := conn.GetClient()
	ns := "/registrar-test/" + testkit.NewID()

	tr, err := NewEtcdTransport(conn, RegistryConfig{Namespace: ns, LeaseTTL: 5 * time.Second},
		WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := tr.RegisterService(ctx, &registrationv1.RegisterServiceRequest{
		ServiceName: "order-service",
		Host:        "10.0.0.1",
		Port:        8080,
		Metadata:    map[string]string{"zone": "a"},
	})
	require.NoError(t, err)

	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, registrationv1.RegistrationStatus_REGISTERED, resp.Status)
	id := resp.ServiceId
	require.NotEmpty(t, id)

	key := ns + "/order-service/" + id
	got, err := cli.Get(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, got.Kvs, 1)
	var rec etcdRecord
	require.NoError(t, json.Unmarshal(got.Kvs[0].Value, &rec))
	assert.Equal(t, id, rec.ID)
	assert.EqualValues(t, 8080, rec.Port)
	assert.Equal(t, "a", rec.Metadata["zone"])

	hres, err := tr.UpdateHealth(context.Background(), &registrationv1.HealthUpdateRequest{
		ServiceId: id,
		Status:    registrationv1.HealthStatus_UP,
		Message:   msgHealthy,
		Timestamp: time.Now().UnixNano(),
	})
	require.NoError(t, err)
	assert.True(t, hres.Acknowledged)
	got, err = cli.Get(context.Background(), key+"/health")
	require.NoError(t, err)
	require.Len(t, got.Kvs, 1)
	assert.Contains(t, string(got.Kvs[0].Value), "HEALTH_STATUS_UP")

	ures, err := tr.UnregisterService(context.Background(), &registrationv1.UnregisterServiceRequest{ServiceId: id})
	require.NoError(t, err)
	assert.True(t, ures.Success)

	got, err = cli.Get(context.Background(), ns, clientv3.WithPrefix())
	require.NoError(t, err)
	assert.Empty(t, got.Kvs)

	// 注销后续约停止，流以取消结束
	_, err = stream.Recv()
	assert.Error(t, err)
}

func TestEtcdTransportUnknownService(t *testing.T) {
	conn := testkit.GetEtcdConnector(t)
	tr, err := NewEtcdTransport(conn, RegistryConfig{Namespace: "/registrar-test/" + testkit.NewID()})
	require.NoError(t, err)
	defer tr.Close()

	ures, err := tr.UnregisterService(context.Background(), &registrationv1.UnregisterServiceRequest{ServiceId: "missing"})
	require.NoError(t, err)
	assert.False(t, ures.Success)

	hres, err := tr.UpdateHealth(context.Background(), &registrationv1.HealthUpdateRequest{ServiceId: "missing"})
	require.NoError(t, err)
	assert.False(t, hres.Acknowledged)

	require.NoError(t, tr.Close())
	_, err = tr.RegisterService(context.Background(), &registrationv1.RegisterServiceRequest{ServiceName: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewEtcdTransportNilConnector(t *testing.T) {
	_, err := NewEtcdTransport(nil, RegistryConfig{})
	assert.ErrorIs(t, err, ErrConfiguration)
}
