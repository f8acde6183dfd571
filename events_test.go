package icc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObserverListEmitsToAllSubscribers(t *testing.T) {
	list := newObserverList[int]()

	var a, b int
	list.Subscribe(func(v int) { a = v })
	list.Subscribe(func(v int) { b = v })

	list.Emit(7)
	require.Equal(t, 7, a)
	require.Equal(t, 7, b)
}

func TestObserverListUnsubscribeStopsDelivery(t *testing.T) {
	list := newObserverList[int]()

	calls := 0
	unsubscribe := list.Subscribe(func(int) { calls++ })

	list.Emit(1)
	require.Equal(t, 1, calls)

	unsubscribe()
	list.Emit(2)
	require.Equal(t, 1, calls)
}
