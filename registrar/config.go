package registrar

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/registrar/xerrors"
)

// 注册中心驱动
const (
	DriverGRPC = "grpc"
	DriverEtcd = "etcd"
)

// DefaultServicePort 未配置端口且未知 HTTP 端口时使用
const DefaultServicePort = 8080

// Config 注册代理配置，对应配置文件中的 registration 段
type Config struct {
	// Enabled 关闭后 Start/Shutdown 只记录日志，默认 true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	Version     string `mapstructure:"version" yaml:"version"`
	Host        string `mapstructure:"host" yaml:"host"`
	// Port 0 表示未设置，回退到 HTTPPort
	Port     int               `mapstructure:"port" yaml:"port"`
	Metadata map[string]string `mapstructure:"metadata" yaml:"metadata"`

	// ApplicationName/ApplicationVersion 在未显式配置服务名和版本时使用
	ApplicationName    string `mapstructure:"application_name" yaml:"application_name"`
	ApplicationVersion string `mapstructure:"application_version" yaml:"application_version"`
	// HTTPPort/GRPCPort 宿主应用实际监听的端口，写入元数据
	HTTPPort int `mapstructure:"http_port" yaml:"http_port"`
	GRPCPort int `mapstructure:"grpc_port" yaml:"grpc_port"`

	Registry    RegistryConfig    `mapstructure:"registry" yaml:"registry"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check" yaml:"health_check"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
}

// RegistryConfig 注册中心连接配置
type RegistryConfig struct {
	Driver        string        `mapstructure:"driver" yaml:"driver"` // grpc | etcd
	Host          string        `mapstructure:"host" yaml:"host"`
	Port          int           `mapstructure:"port" yaml:"port"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`               // 单次调用超时，默认 10s
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"` // 关闭时等待在途调用，默认 5s

	// 以下仅 etcd 驱动使用
	Namespace string        `mapstructure:"namespace" yaml:"namespace"`
	LeaseTTL  time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl"`
	Username  string        `mapstructure:"username" yaml:"username"`
	Password  string        `mapstructure:"password" yaml:"password"`
}

// Address 返回注册中心 host:port
func (c RegistryConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HealthCheckConfig 健康上报配置
type HealthCheckConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// RetryConfig 注册重试配置
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// DefaultConfig 返回全部字段取默认值的配置。
// 从配置文件加载时应先取默认值再覆盖，否则布尔开关无法默认开启。
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Host:    "0.0.0.0",
		Registry: RegistryConfig{
			Driver:        DriverGRPC,
			Host:          "localhost",
			Port:          9090,
			Timeout:       10 * time.Second,
			ShutdownGrace: 5 * time.Second,
			Namespace:     "/registrar/services",
			LeaseTTL:      30 * time.Second,
		},
		HealthCheck: HealthCheckConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// setDefaults 补齐零值字段，布尔字段保持原样
func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Registry.Driver == "" {
		c.Registry.Driver = d.Registry.Driver
	}
	if c.Registry.Host == "" {
		c.Registry.Host = d.Registry.Host
	}
	if c.Registry.Port == 0 {
		c.Registry.Port = d.Registry.Port
	}
	if c.Registry.Timeout <= 0 {
		c.Registry.Timeout = d.Registry.Timeout
	}
	if c.Registry.ShutdownGrace <= 0 {
		c.Registry.ShutdownGrace = d.Registry.ShutdownGrace
	}
	if c.Registry.Namespace == "" {
		c.Registry.Namespace = d.Registry.Namespace
	}
	if c.Registry.LeaseTTL <= 0 {
		c.Registry.LeaseTTL = d.Registry.LeaseTTL
	}
	if c.HealthCheck.Interval <= 0 {
		c.HealthCheck.Interval = d.HealthCheck.Interval
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = d.Retry.InitialDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = d.Retry.MaxDelay
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = d.Retry.Multiplier
	}
}

func (c *Config) validate() error {
	c.Registry.Driver = strings.ToLower(strings.TrimSpace(c.Registry.Driver))
	switch c.Registry.Driver {
	case DriverGRPC, DriverEtcd:
	default:
		return xerrors.Markf(ErrConfiguration, "unknown registry driver %q", c.Registry.Driver)
	}
	if c.Registry.Port < 1 || c.Registry.Port > 65535 {
		return xerrors.Markf(ErrConfiguration, "registry port %d out of range", c.Registry.Port)
	}
	if c.Port < 0 || c.Port > 65535 {
		return xerrors.Markf(ErrConfiguration, "port %d out of range", c.Port)
	}
	if c.Registry.Driver == DriverEtcd && c.Registry.LeaseTTL < time.Second {
		return xerrors.Markf(ErrConfiguration, "lease ttl %s shorter than 1s", c.Registry.LeaseTTL)
	}
	if _, err := c.retryPolicy(); err != nil {
		return err
	}
	return nil
}

func (c *Config) retryPolicy() (RetryPolicy, error) {
	return NewRetryPolicy(c.Retry.MaxAttempts, c.Retry.InitialDelay, c.Retry.MaxDelay, c.Retry.Multiplier)
}

// resolvePort 显式端口优先，其次宿主 HTTP 端口
func (c *Config) resolvePort() int {
	if c.Port > 0 {
		return c.Port
	}
	if c.HTTPPort > 0 {
		return c.HTTPPort
	}
	return DefaultServicePort
}
