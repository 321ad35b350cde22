package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEtcdValidation(t *testing.T) {
	_, err := NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewEtcd(&EtcdConfig{})
	assert.ErrorIs(t, err, ErrConfig)

	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}})
	require.NoError(t, err)
	assert.Equal(t, "default", conn.Name())
	assert.False(t, conn.IsHealthy())
	assert.Nil(t, conn.GetClient())
	assert.ErrorIs(t, conn.HealthCheck(context.Background()), ErrNotConnected)
}

func TestEtcdCloseIsIdempotent(t *testing.T) {
	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}})
	require.NoError(t, err)

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Connect(context.Background()), ErrClosed)
}

func TestEtcdConnectUnreachable(t *testing.T) {
	// 127.0.0.1:1 上没有 etcd
	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:1"}, DialTimeout: 300 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, conn.Connect(ctx), ErrConnection)
	assert.False(t, conn.IsHealthy())
}
