package registrar

import "fmt"

// State 注册生命周期状态
type State int32

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateFailed
	StateDeregistering
	StateDeregistered
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateRegistering:
		return "REGISTERING"
	case StateRegistered:
		return "REGISTERED"
	case StateFailed:
		return "FAILED"
	case StateDeregistering:
		return "DEREGISTERING"
	case StateDeregistered:
		return "DEREGISTERED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// IsTerminal FAILED 和 DEREGISTERED 之后不再有任何转换
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateDeregistered
}

// transitions 合法的状态转换表
var transitions = map[State][]State{
	StateUnregistered:  {StateRegistering},
	StateRegistering:   {StateRegistered, StateFailed},
	StateRegistered:    {StateDeregistering},
	StateDeregistering: {StateDeregistered},
}

// CanTransition 判断 from -> to 是否在转换表中
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
