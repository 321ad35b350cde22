package connector

import (
	"time"

	"github.com/ceyewan/registrar/xerrors"
)

// EtcdConfig etcd 连接配置
type EtcdConfig struct {
	Name        string        `mapstructure:"name"`         // 连接器名称，默认 "default"
	Endpoints   []string      `mapstructure:"endpoints"`    // [必填]
	Username    string        `mapstructure:"username"`     // [可选]
	Password    string        `mapstructure:"password"`     // [可选]
	DialTimeout time.Duration `mapstructure:"dial_timeout"` // 默认 5s

	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // 默认 10s
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // 默认 3s
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime <= 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd endpoints are required")
	}
	return nil
}
