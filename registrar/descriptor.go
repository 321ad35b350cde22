package registrar

import (
	"fmt"
	"maps"
	"net"
	"strconv"
	"strings"

	"github.com/ceyewan/registrar/xerrors"
)

// ServiceDescriptor 待注册服务实例的不可变描述
type ServiceDescriptor struct {
	name     string
	version  string
	host     string
	port     int
	metadata map[string]string
}

// NewServiceDescriptor 校验并创建服务描述，metadata 会被复制。
// name 和 host 不能为空，port 必须在 1..65535 之间，否则返回 ErrValidation。
func NewServiceDescriptor(name, version, host string, port int, metadata map[string]string) (*ServiceDescriptor, error) {
	name = strings.TrimSpace(name)
	host = strings.TrimSpace(host)
	if name == "" {
		return nil, xerrors.Markf(ErrValidation, "service name is empty")
	}
	if host == "" {
		return nil, xerrors.Markf(ErrValidation, "host is empty")
	}
	if port < 1 || port > 65535 {
		return nil, xerrors.Markf(ErrValidation, "port %d out of range 1-65535", port)
	}

	md := make(map[string]string, len(metadata))
	maps.Copy(md, metadata)

	return &ServiceDescriptor{
		name:     name,
		version:  strings.TrimSpace(version),
		host:     host,
		port:     port,
		metadata: md,
	}, nil
}

func (d *ServiceDescriptor) Name() string    { return d.name }
func (d *ServiceDescriptor) Version() string { return d.version }
func (d *ServiceDescriptor) Host() string    { return d.host }
func (d *ServiceDescriptor) Port() int       { return d.port }

// Metadata 返回元数据副本
func (d *ServiceDescriptor) Metadata() map[string]string {
	return maps.Clone(d.metadata)
}

// Address 返回 host:port
func (d *ServiceDescriptor) Address() string {
	return net.JoinHostPort(d.host, strconv.Itoa(d.port))
}

func (d *ServiceDescriptor) String() string {
	return fmt.Sprintf("ServiceDescriptor{name=%s, version=%s, address=%s, metadata=%d}",
		d.name, d.version, d.Address(), len(d.metadata))
}
