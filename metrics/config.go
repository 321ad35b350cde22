package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "registrar"
//	  version: "v1.0.0"
//	  path: "/metrics"
//	  runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// Path 采集路径，由宿主 HTTP 服务挂载 Meter.Handler()
	Path string `mapstructure:"path"`
	// Runtime 是否采集 Go runtime 指标
	Runtime bool `mapstructure:"runtime"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "registrar"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
