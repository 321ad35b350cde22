package registrar

import (
	"context"
	"maps"
	"runtime"
	"strconv"

	"github.com/google/uuid"
)

// Version 写入元数据的 registrar 版本
const Version = "0.1.0"

// 自动采集的元数据键
const (
	MetaHTTPPort   = "http.port"
	MetaGRPCPort   = "grpc.port"
	MetaGoVersion  = "go.version"
	MetaVersion    = "registrar.version"
	MetaInstanceID = "instance.id"
)

// 未配置服务名和版本时的默认值
const (
	DefaultServiceName = "unknown-service"
	DefaultVersion     = "1.0.0"
)

// MetadataCollector 生成待注册的服务描述
type MetadataCollector interface {
	Collect(ctx context.Context) (*ServiceDescriptor, error)
}

// ConfigCollector 从 Config 和运行环境采集服务描述。
// 服务名和版本依次取 ServiceName、ApplicationName、默认值；
// 端口依次取 Port、HTTPPort、DefaultServicePort。
// 用户元数据覆盖自动采集的同名键。
type ConfigCollector struct {
	cfg        *Config
	instanceID string
}

func NewConfigCollector(cfg *Config) *ConfigCollector {
	return &ConfigCollector{cfg: cfg, instanceID: uuid.NewString()}
}

func (c *ConfigCollector) Collect(context.Context) (*ServiceDescriptor, error) {
	port := c.cfg.resolvePort()

	httpPort := c.cfg.HTTPPort
	if httpPort <= 0 {
		httpPort = port
	}
	md := map[string]string{
		MetaHTTPPort:   strconv.Itoa(httpPort),
		MetaGoVersion:  runtime.Version(),
		MetaVersion:    Version,
		MetaInstanceID: c.instanceID,
	}
	if c.cfg.GRPCPort > 0 {
		md[MetaGRPCPort] = strconv.Itoa(c.cfg.GRPCPort)
	}
	maps.Copy(md, c.cfg.Metadata)

	return NewServiceDescriptor(
		firstNonEmpty(c.cfg.ServiceName, c.cfg.ApplicationName, DefaultServiceName),
		firstNonEmpty(c.cfg.Version, c.cfg.ApplicationVersion, DefaultVersion),
		c.cfg.Host,
		port,
		md,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
