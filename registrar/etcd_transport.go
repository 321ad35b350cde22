package registrar

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	registrationv1 "github.com/ceyewan/registrar/api/registration/v1"
	"github.com/ceyewan/registrar/clog"
	"github.com/ceyewan/registrar/connector"
	"github.com/ceyewan/registrar/xerrors"
)

// EtcdTransport 以 etcd 租约模拟注册中心：
//
//	<namespace>/<service_name>/<service_id>        -> JSON(etcdRecord)
//	<namespace>/<service_name>/<service_id>/health -> JSON(etcdHealth)
//
// 注册时创建租约并写入实例记录，注册流在续约中断时失败；
// 注销即撤销租约，租约下的 key 随之删除。
type EtcdTransport struct {
	conn   connector.EtcdConnector
	owned  bool
	cfg    RegistryConfig
	logger clog.Logger

	mu     sync.Mutex
	leases map[string]*etcdLease
	closed bool
}

type etcdLease struct {
	id     clientv3.LeaseID
	key    string
	cancel context.CancelFunc
}

type etcdRecord struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Version      string            `json:"version,omitempty"`
	Host         string            `json:"host"`
	Port         int32             `json:"port"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}

type etcdHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEtcdTransport 借用已连接的 etcd 连接器，不负责关闭它
func NewEtcdTransport(conn connector.EtcdConnector, cfg RegistryConfig, opts ...Option) (*EtcdTransport, error) {
	if conn == nil {
		return nil, xerrors.Markf(ErrConfiguration, "etcd connector is nil")
	}
	return newEtcdTransport(conn, cfg, applyOptions(opts).logger), nil
}

func newEtcdTransport(conn connector.EtcdConnector, cfg RegistryConfig, logger clog.Logger) *EtcdTransport {
	c := cfg
	if c.Namespace == "" {
		c.Namespace = DefaultConfig().Registry.Namespace
	}
	if c.LeaseTTL < time.Second {
		c.LeaseTTL = DefaultConfig().Registry.LeaseTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig().Registry.Timeout
	}
	return &EtcdTransport{
		conn:   conn,
		cfg:    c,
		logger: logger.WithNamespace("etcd"),
		leases: make(map[string]*etcdLease),
	}
}

func (t *EtcdTransport) client() (*clientv3.Client, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	cli := t.conn.GetClient()
	if cli == nil {
		return nil, connector.ErrNotConnected
	}
	return cli, nil
}

func (t *EtcdTransport) buildKey(serviceName, serviceID string) string {
	return path.Join(t.cfg.Namespace, serviceName, serviceID)
}

func (t *EtcdTransport) RegisterService(ctx context.Context, req *registrationv1.RegisterServiceRequest) (RegistrationStream, error) {
	cli, err := t.client()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	key := t.buildKey(req.ServiceName, id)
	value, err := json.Marshal(etcdRecord{
		ID:           id,
		Name:         req.ServiceName,
		Version:      req.Version,
		Host:         req.Host,
		Port:         req.Port,
		Metadata:     req.Metadata,
		RegisteredAt: time.Now(),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "marshal service record")
	}

	opCtx, opCancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer opCancel()
	lease, err := cli.Grant(opCtx, int64(t.cfg.LeaseTTL.Seconds()))
	if err != nil {
		return nil, xerrors.Wrap(err, "grant lease failed")
	}
	if _, err := cli.Put(opCtx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		t.revoke(cli, lease.ID)
		return nil, xerrors.Wrap(err, "put service failed")
	}

	kaCtx, kaCancel := context.WithCancel(ctx)
	kaCh, err := cli.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		kaCancel()
		t.revoke(cli, lease.ID)
		return nil, xerrors.Wrap(err, "keepalive failed")
	}

	t.mu.Lock()
	t.leases[id] = &etcdLease{id: lease.ID, key: key, cancel: kaCancel}
	t.mu.Unlock()

	t.logger.Info("service registered in etcd",
		clog.String("service_id", id),
		clog.String("key", key),
		clog.Int64("lease_id", int64(lease.ID)))

	return &etcdStream{
		ctx:       kaCtx,
		transport: t,
		serviceID: id,
		keepAlive: kaCh,
		first: &registrationv1.RegisterServiceResponse{
			Status:    registrationv1.RegistrationStatus_REGISTERED,
			ServiceId: id,
			Message:   fmt.Sprintf("registered at %s", key),
		},
	}, nil
}

// revoke 尽力撤销租约，失败只记录日志
func (t *EtcdTransport) revoke(cli *clientv3.Client, id clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeout)
	defer cancel()
	if _, err := cli.Revoke(ctx, id); err != nil {
		t.logger.Error("failed to revoke lease",
			clog.Int64("lease_id", int64(id)),
			clog.Error(err))
	}
}

func (t *EtcdTransport) forget(serviceID string) *etcdLease {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.leases[serviceID]
	if !ok {
		return nil
	}
	delete(t.leases, serviceID)
	l.cancel()
	return l
}

func (t *EtcdTransport) lookup(serviceID string) (*etcdLease, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.leases[serviceID]
	return l, ok
}

func (t *EtcdTransport) UnregisterService(ctx context.Context, req *registrationv1.UnregisterServiceRequest) (*registrationv1.UnregisterServiceResponse, error) {
	cli, err := t.client()
	if err != nil {
		return nil, err
	}
	l := t.forget(req.ServiceId)
	if l == nil {
		return &registrationv1.UnregisterServiceResponse{
			Success: false,
			Message: fmt.Sprintf("service %s not registered by this agent", req.ServiceId),
		}, nil
	}
	if _, err := cli.Revoke(ctx, l.id); err != nil {
		return nil, xerrors.Wrap(err, "revoke lease failed")
	}
	t.logger.Info("service deregistered from etcd", clog.String("service_id", req.ServiceId))
	return &registrationv1.UnregisterServiceResponse{Success: true, Message: "lease revoked"}, nil
}

func (t *EtcdTransport) UpdateHealth(ctx context.Context, req *registrationv1.HealthUpdateRequest) (*registrationv1.HealthUpdateResponse, error) {
	cli, err := t.client()
	if err != nil {
		return nil, err
	}
	l, ok := t.lookup(req.ServiceId)
	if !ok {
		return &registrationv1.HealthUpdateResponse{Acknowledged: false}, nil
	}
	value, err := json.Marshal(etcdHealth{
		Status:    req.Status.String(),
		Message:   req.Message,
		Timestamp: time.Unix(0, req.Timestamp),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "marshal health record")
	}
	if _, err := cli.Put(ctx, l.key+"/health", string(value), clientv3.WithLease(l.id)); err != nil {
		return nil, xerrors.Wrap(err, "put health failed")
	}
	return &registrationv1.HealthUpdateResponse{Acknowledged: true}, nil
}

// Close 停止全部续约；连接器由本传输创建时一并关闭
func (t *EtcdTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for id, l := range t.leases {
		l.cancel()
		delete(t.leases, id)
	}
	t.mu.Unlock()

	if t.owned {
		return t.conn.Close()
	}
	return nil
}

// etcdStream 先给出一条 REGISTERED，之后阻塞在续约应答上，续约中断即失败
type etcdStream struct {
	ctx       context.Context
	transport *EtcdTransport
	serviceID string
	keepAlive <-chan *clientv3.LeaseKeepAliveResponse
	first     *registrationv1.RegisterServiceResponse
}

func (s *etcdStream) Recv() (*registrationv1.RegisterServiceResponse, error) {
	if s.first != nil {
		resp := s.first
		s.first = nil
		return resp, nil
	}
	for {
		select {
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		case _, ok := <-s.keepAlive:
			if ok {
				continue
			}
			if err := s.ctx.Err(); err != nil {
				return nil, err
			}
			s.transport.forget(s.serviceID)
			return nil, xerrors.Wrapf(connector.ErrConnection, "lease keep-alive for %s stopped", s.serviceID)
		}
	}
}
