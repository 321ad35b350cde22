package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/registrar/connector"
)

// GetEtcdConfig 返回 Etcd 测试配置
// 默认连接 localhost:2379，可用 REGISTRAR_TEST_ETCD 覆盖
func GetEtcdConfig() *connector.EtcdConfig {
	endpoint := os.Getenv("REGISTRAR_TEST_ETCD")
	if endpoint == "" {
		endpoint = "localhost:2379"
	}
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{endpoint},
		DialTimeout: 2 * time.Second,
	}
}

// GetEtcdConnector 获取 Etcd 连接器，etcd 不可用时跳过测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	cfg := GetEtcdConfig()
	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		t.Skipf("etcd not available at %v: %v", cfg.Endpoints, err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// GetEtcdClient 获取原生 Etcd 客户端
func GetEtcdClient(t *testing.T) *clientv3.Client {
	return GetEtcdConnector(t).GetClient()
}
