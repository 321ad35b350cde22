// Package connector 管理 registrar 使用的外部连接。
//
// 目前只有 etcd：当注册驱动为 etcd 时，EtcdTransport 借用这里的客户端完成
// 租约注册、续约和健康写入。连接器拥有客户端的生命周期，借用方不应关闭它。
//
//	conn, err := connector.NewEtcd(&connector.EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	cli := conn.GetClient()
package connector

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 连接器通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error
	// Close 关闭连接，幂等
	Close() error
	// HealthCheck 发送探测请求并更新 IsHealthy 缓存
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// EtcdConnector etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
