package icc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/icc/logger"
)

func TestTrySetOnlySucceedsFromExpectedState(t *testing.T) {
	sm := newStateManager(logger.Nop())
	require.Equal(t, NotConnected, sm.State())

	require.False(t, sm.TrySet(Connected, DisconnectInProgress))
	require.Equal(t, NotConnected, sm.State())

	require.True(t, sm.TrySet(NotConnected, WaitingForLogin))
	require.Equal(t, WaitingForLogin, sm.State())
}

func TestSetIsUnconditionalAndNoopWhenUnchanged(t *testing.T) {
	sm := newStateManager(logger.Nop())

	var transitions int
	sm.AddHandler(func(prev, cur State) { transitions++ })

	sm.Set(NotConnected) // already there: no-op
	require.Equal(t, 0, transitions)

	sm.Set(Connected)
	require.Equal(t, 1, transitions)
	require.Equal(t, Connected, sm.State())
}

func TestStateStringsAreHumanReadable(t *testing.T) {
	require.Equal(t, "not-connected", NotConnected.String())
	require.Equal(t, "waiting-for-login", WaitingForLogin.String())
	require.Equal(t, "connected", Connected.String())
	require.Equal(t, "disconnect-in-progress", DisconnectInProgress.String())
}
