package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/metrics"
	"github.com/ceyewan/registrar/xerrors"
)

const healthCheckKey = "registrar-health-check"

type etcdConnector struct {
	cfg    *EtcdConfig
	logger clog.Logger

	mu        sync.RWMutex
	client    *clientv3.Client
	connected bool
	closed    bool
	healthy   atomic.Bool

	connectAttempts metrics.Counter
	active          metrics.Gauge
}

// NewEtcd 创建 etcd 连接器，不会立即建立连接
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	conn := &etcdConnector{
		cfg:    &c,
		logger: o.logger.With(clog.String("connector", "etcd"), clog.String("name", c.Name)),
	}

	var err error
	if conn.connectAttempts, err = o.meter.Counter("registrar_connector_connect_total", "etcd connect attempts"); err != nil {
		return nil, xerrors.Wrap(err, "create connect counter")
	}
	if conn.active, err = o.meter.Gauge("registrar_connector_active", "Whether the etcd connection is established"); err != nil {
		return nil, xerrors.Wrap(err, "create active gauge")
	}
	return conn, nil
}

func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.connected {
		return nil
	}

	c.logger.Info("connecting to etcd", clog.Any("endpoints", c.cfg.Endpoints))
	client, err := clientv3.New(clientv3.Config{
		Endpoints:            c.cfg.Endpoints,
		Username:             c.cfg.Username,
		Password:             c.cfg.Password,
		DialTimeout:          c.cfg.DialTimeout,
		DialKeepAliveTime:    c.cfg.KeepAliveTime,
		DialKeepAliveTimeout: c.cfg.KeepAliveTimeout,
		Context:              context.WithoutCancel(ctx),
	})
	if err != nil {
		c.connectAttempts.Inc(ctx, metrics.L(metrics.LabelOutcome, metrics.OutcomeError))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]: create client", c.cfg.Name), ErrConnection)
	}

	if err := ping(ctx, client, c.cfg); err != nil {
		_ = client.Close()
		c.connectAttempts.Inc(ctx, metrics.L(metrics.LabelOutcome, metrics.OutcomeError))
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]: connect", c.cfg.Name), ErrConnection)
	}

	c.client = client
	c.connected = true
	c.healthy.Store(true)
	c.connectAttempts.Inc(ctx, metrics.L(metrics.LabelOutcome, metrics.OutcomeSuccess))
	c.active.Set(ctx, 1, metrics.L("connector", c.cfg.Name))
	c.logger.Info("connected to etcd")
	return nil
}

func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.healthy.Store(false)
	c.active.Set(context.Background(), 0, metrics.L("connector", c.cfg.Name))

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	c.logger.Info("etcd connection closed")
	return nil
}

func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}

	if err := ping(ctx, client, c.cfg); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.cfg.Name), ErrHealthCheck)
	}
	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// ping 读取一个不存在的 key，etcd 对不存在的 key 返回空结果而不是错误
func ping(ctx context.Context, client *clientv3.Client, cfg *EtcdConfig) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	_, err := client.Get(ctx, healthCheckKey)
	return err
}
