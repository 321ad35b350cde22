package registrar

import "fmt"

// EventStatus 注册流事件状态
type EventStatus int

const (
	EventUnspecified EventStatus = iota
	EventRegistered
	EventFailed
)

func (s EventStatus) String() string {
	switch s {
	case EventRegistered:
		return "REGISTERED"
	case EventFailed:
		return "FAILED"
	default:
		return "UNSPECIFIED"
	}
}

// RegistrationEvent 注册流中的一条事件
type RegistrationEvent struct {
	Status    EventStatus
	ServiceID string
	Message   string
}

func (e RegistrationEvent) String() string {
	return fmt.Sprintf("%s(id=%s, message=%q)", e.Status, e.ServiceID, e.Message)
}

// HealthStatus 上报给注册中心的健康状态
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthUp
	HealthDown
)

func (s HealthStatus) String() string {
	switch s {
	case HealthUp:
		return "UP"
	case HealthDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// UnregisterResult 注销结果
type UnregisterResult struct {
	Success bool
	Message string
}

// HealthUpdateResult 健康上报结果
type HealthUpdateResult struct {
	Acknowledged bool
}
