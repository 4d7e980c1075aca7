// file: internal/lifecycle/lifecycle_test.go
package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPath(t *testing.T) {
	m := New(nil)
	assert.Equal(t, StateInitialising, m.Current())

	require.NoError(t, m.Fire(context.Background(), EventStart))
	assert.Equal(t, StateRunning, m.Current())
	assert.False(t, m.IsClosing())

	require.NoError(t, m.Fire(context.Background(), EventCloseRequest))
	assert.Equal(t, StateClosing, m.Current())
	assert.True(t, m.IsClosing())
	assert.False(t, m.IsClosed())

	require.NoError(t, m.Fire(context.Background(), EventDrained))
	assert.Equal(t, StateClosed, m.Current())
	assert.True(t, m.IsClosed())
}

func TestMachine_DoubleCloseIsIdempotent(t *testing.T) {
	m := New(nil)
	require.NoError(t, m.Fire(context.Background(), EventStart))
	require.NoError(t, m.Fire(context.Background(), EventCloseRequest))
	// A second close-style event from a different goroutine must not error.
	require.NoError(t, m.Fire(context.Background(), EventCloseRequest))
	require.NoError(t, m.Fire(context.Background(), EventPeerEOF))
	assert.Equal(t, StateClosing, m.Current())
}

func TestMachine_EventInvalidFromCurrentStateIsHarmless(t *testing.T) {
	m := New(nil)
	// Drained is only valid from Closing; firing it from Initialising must
	// not error, matching the idempotent-close design.
	require.NoError(t, m.Fire(context.Background(), EventDrained))
	assert.Equal(t, StateInitialising, m.Current())
}
