package registrar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := map[[2]State]bool{
		{StateUnregistered, StateRegistering}:   true,
		{StateRegistering, StateRegistered}:     true,
		{StateRegistering, StateFailed}:         true,
		{StateRegistered, StateDeregistering}:   true,
		{StateDeregistering, StateDeregistered}: true,
	}

	for _, from := range allStates {
		for _, to := range allStates {
			assert.Equal(t, legal[[2]State{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range allStates {
		want := s == StateFailed || s == StateDeregistered
		assert.Equal(t, want, s.IsTerminal(), s.String())
		if s.IsTerminal() {
			for _, to := range allStates {
				assert.False(t, CanTransition(s, to))
			}
		}
	}
	assert.Equal(t, "REGISTERED", StateRegistered.String())
	assert.Equal(t, "State(42)", State(42).String())
}
