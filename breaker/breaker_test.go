package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNil)

	brk, err := New(&Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, brk.Execute(context.Background(), "", func(context.Context) error { return nil }), ErrKeyEmpty)

	_, err = brk.State("")
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestTripAndRecover(t *testing.T) {
	brk, err := New(&Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	ctx := context.Background()
	boom := errors.New("unavailable")

	state, err := brk.State("health_update")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, brk.Execute(ctx, "health_update", func(context.Context) error { return boom }), boom)
	}
	state, _ = brk.State("health_update")
	assert.Equal(t, StateOpen, state)

	called := false
	err = brk.Execute(ctx, "health_update", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
	assert.False(t, called)

	// 其他 key 不受影响
	assert.NoError(t, brk.Execute(ctx, "other", func(context.Context) error { return nil }))

	time.Sleep(150 * time.Millisecond)
	assert.NoError(t, brk.Execute(ctx, "health_update", func(context.Context) error { return nil }))
	state, _ = brk.State("health_update")
	assert.Equal(t, StateClosed, state)
}

func TestCanceledIsNotFailure(t *testing.T) {
	brk, err := New(&Config{MinimumRequests: 1, FailureRatio: 0.5})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_ = brk.Execute(context.Background(), "k", func(context.Context) error { return context.Canceled })
	}
	state, _ := brk.State("k")
	assert.Equal(t, StateClosed, state)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
