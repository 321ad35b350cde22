// Package registrationv1 是注册中心 registration.v1.PlatformRegistrationService 的线协议定义。
//
// 消息以 MessagePack 编码（见 Codec），客户端和服务端桩代码手工维护，
// 形状与 protoc-gen-go-grpc 生成的代码一致，便于将来切换到 protobuf。
package registrationv1

import "fmt"

// RegistrationStatus 注册流中每条响应携带的状态
type RegistrationStatus int32

const (
	RegistrationStatus_UNSPECIFIED RegistrationStatus = 0
	RegistrationStatus_REGISTERED  RegistrationStatus = 1
	RegistrationStatus_FAILED      RegistrationStatus = 2
)

func (s RegistrationStatus) String() string {
	switch s {
	case RegistrationStatus_UNSPECIFIED:
		return "REGISTRATION_STATUS_UNSPECIFIED"
	case RegistrationStatus_REGISTERED:
		return "REGISTRATION_STATUS_REGISTERED"
	case RegistrationStatus_FAILED:
		return "REGISTRATION_STATUS_FAILED"
	default:
		return fmt.Sprintf("REGISTRATION_STATUS(%d)", int32(s))
	}
}

// HealthStatus 健康上报状态
type HealthStatus int32

const (
	HealthStatus_UNKNOWN HealthStatus = 0
	HealthStatus_UP      HealthStatus = 1
	HealthStatus_DOWN    HealthStatus = 2
)

func (s HealthStatus) String() string {
	switch s {
	case HealthStatus_UNKNOWN:
		return "HEALTH_STATUS_UNKNOWN"
	case HealthStatus_UP:
		return "HEALTH_STATUS_UP"
	case HealthStatus_DOWN:
		return "HEALTH_STATUS_DOWN"
	default:
		return fmt.Sprintf("HEALTH_STATUS(%d)", int32(s))
	}
}

type RegisterServiceRequest struct {
	ServiceName string            `msgpack:"service_name"`
	Host        string            `msgpack:"host"`
	Port        int32             `msgpack:"port"`
	Version     string            `msgpack:"version,omitempty"`
	Metadata    map[string]string `msgpack:"metadata,omitempty"`
}

type RegisterServiceResponse struct {
	Status    RegistrationStatus `msgpack:"status"`
	ServiceId string             `msgpack:"service_id,omitempty"`
	Message   string             `msgpack:"message,omitempty"`
}

type UnregisterServiceRequest struct {
	ServiceId string `msgpack:"service_id"`
}

type UnregisterServiceResponse struct {
	Success bool   `msgpack:"success"`
	Message string `msgpack:"message,omitempty"`
}

type HealthUpdateRequest struct {
	ServiceId string       `msgpack:"service_id"`
	Status    HealthStatus `msgpack:"status"`
	Message   string       `msgpack:"message,omitempty"`
	// Timestamp Unix 纳秒
	Timestamp int64 `msgpack:"timestamp"`
}

type HealthUpdateResponse struct {
	Acknowledged bool `msgpack:"acknowledged"`
}
