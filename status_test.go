package icc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusRegistryPrefersPerSubstatusHandler(t *testing.T) {
	reg := newStatusRegistry()

	var perSubstatusCalled, unhandledCalled bool
	require.True(t, reg.Register(1, func(uint32, []byte) { perSubstatusCalled = true }))
	require.True(t, reg.RegisterUnhandled(func(uint32, []byte) { unhandledCalled = true }))

	handler, ok := reg.Lookup(1)
	require.True(t, ok)
	handler(1, nil)

	require.True(t, perSubstatusCalled)
	require.False(t, unhandledCalled)
}

func TestStatusRegistryFallsBackToUnhandled(t *testing.T) {
	reg := newStatusRegistry()

	var unhandledCalled bool
	require.True(t, reg.RegisterUnhandled(func(uint32, []byte) { unhandledCalled = true }))

	handler, ok := reg.Lookup(99)
	require.True(t, ok)
	handler(99, nil)
	require.True(t, unhandledCalled)
}

func TestStatusRegistryLookupMissesWithoutFallback(t *testing.T) {
	reg := newStatusRegistry()
	_, ok := reg.Lookup(1)
	require.False(t, ok)
}

func TestStatusRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := newStatusRegistry()
	require.True(t, reg.Register(5, func(uint32, []byte) {}))
	require.False(t, reg.Register(5, func(uint32, []byte) {}))
}

func TestStatusRegistryRejectsSecondUnhandledHandler(t *testing.T) {
	reg := newStatusRegistry()
	require.True(t, reg.RegisterUnhandled(func(uint32, []byte) {}))
	require.False(t, reg.RegisterUnhandled(func(uint32, []byte) {}))
}

func TestStatusRegistryUnregisterRemovesHandler(t *testing.T) {
	reg := newStatusRegistry()
	require.True(t, reg.Register(2, func(uint32, []byte) {}))
	reg.Unregister(2)
	_, ok := reg.Lookup(2)
	require.False(t, ok)
}
