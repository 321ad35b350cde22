package config

import "github.com/ceyewan/registrar/xerrors"

var (
	// ErrValidationFailed 未加载到任何配置
	ErrValidationFailed = xerrors.New("configuration validation failed")
	// ErrNotLoaded Load 之前调用了 Watch
	ErrNotLoaded = xerrors.New("configuration not loaded")
)

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput) || xerrors.Is(err, ErrValidationFailed)
}
