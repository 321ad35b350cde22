package registrar

import "github.com/ceyewan/registrar/xerrors"

// 哨兵错误，调用方通过 errors.Is 判断类别
var (
	// ErrValidation 服务描述不合法（名称或主机为空、端口越界）
	ErrValidation = xerrors.New("registrar: invalid service descriptor")
	// ErrTransport 与注册中心通信失败，包括超时和流中断
	ErrTransport = xerrors.New("registrar: transport failure")
	// ErrRegistryRejected 注册中心在注册流中返回了 FAILED
	ErrRegistryRejected = xerrors.New("registrar: registration rejected by registry")
	// ErrConfiguration 配置不合法
	ErrConfiguration = xerrors.New("registrar: invalid configuration")
	// ErrAlreadyStarted Manager 已经启动过
	ErrAlreadyStarted = xerrors.New("registrar: already started")
	// ErrClosed 组件已关闭
	ErrClosed = xerrors.New("registrar: closed")
)

// CodeRegistryRejected 注册被拒绝时的错误码，日志中以 error_code 字段输出
const CodeRegistryRejected = "REGISTRY_REJECTED"

// rejectedError 注册中心返回 FAILED 时的错误，message 为注册中心给出的原因
func rejectedError(message string) error {
	return xerrors.WithCode(xerrors.Markf(ErrRegistryRejected, "%s", message), CodeRegistryRejected)
}
