// Package config 为 registrar 提供统一的配置加载能力，基于 Viper 实现。
//
// 配置优先级：环境变量 > .env 文件 > 环境特定配置 > 基础配置 > 默认值
//
// 环境特定配置由 <PREFIX>_ENV 选择，例如 REGISTRAR_ENV=prod 会在 config.yaml
// 之上合并 config.prod.yaml。
//
// 基本使用：
//
//	loader := config.MustLoad(&config.Config{Name: "registrar", Paths: []string{"./etc"}})
//
//	var cfg registrar.Config
//	if err := loader.UnmarshalKey("registration", &cfg); err != nil {
//		panic(err)
//	}
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//		logger.SetLevel(...)
//	}
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置并开始监听文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值，环境变量覆盖生效
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 检查是否加载到任何配置
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
