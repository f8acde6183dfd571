package icc

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/icc/logger"
)

// State is one of the four stages a connection moves through, per §4.E.
type State uint32

const (
	// NotConnected is the initial state and the state after a clean or failed disconnect.
	NotConnected State = iota
	// WaitingForLogin is entered once the TCP stream is open and a LOGN frame has been sent,
	// while waiting for ACPT.
	WaitingForLogin
	// Connected is entered once ACPT has been received within the login timeout.
	Connected
	// DisconnectInProgress is entered for the duration of a user-requested disconnect.
	DisconnectInProgress
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case NotConnected:
		return "not-connected"
	case WaitingForLogin:
		return "waiting-for-login"
	case Connected:
		return "connected"
	case DisconnectInProgress:
		return "disconnect-in-progress"
	default:
		return "unknown"
	}
}

// stateManager owns the connection's current State and notifies a set of handlers, synchronously,
// whenever it changes. Adapted from the library's connection state manager, trimmed to this
// protocol's four states and with the async-relay goroutine removed: every caller here already
// runs the transition from the goroutine that is allowed to request it (user thread or reader
// thread), so there is no need for a background relay.
type stateManager struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state atomic.Uint32

	logger   logger.Logger
	handlers []func(prev, cur State)
}

func newStateManager(l logger.Logger) *stateManager {
	sm := &stateManager{logger: l}
	sm.cond = sync.NewCond(&sm.mu)
	return sm
}

// State returns the current state.
func (sm *stateManager) State() State {
	return State(sm.state.Load())
}

// AddHandler registers a handler invoked synchronously, under no lock, after every transition.
func (sm *stateManager) AddHandler(h func(prev, cur State)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.handlers = append(sm.handlers, h)
}

// Set unconditionally transitions to newState and notifies handlers. It is a no-op if already in
// newState.
func (sm *stateManager) Set(newState State) {
	sm.mu.Lock()
	prev := sm.State()
	if prev == newState {
		sm.mu.Unlock()
		return
	}
	sm.state.Store(uint32(newState))
	sm.cond.Broadcast()
	handlers := append([]func(prev, cur State){}, sm.handlers...)
	sm.mu.Unlock()

	sm.logger.Debug("connection state transition", "prev", prev, "cur", newState)

	for _, h := range handlers {
		h(prev, newState)
	}
}

// TrySet transitions from->to only if the current state is exactly from. It reports whether the
// transition happened. Used by Connect/Disconnect, which are each only legal from one state
// (§4.E).
func (sm *stateManager) TrySet(from, to State) bool {
	sm.mu.Lock()
	if sm.State() != from {
		sm.mu.Unlock()
		return false
	}
	sm.state.Store(uint32(to))
	sm.cond.Broadcast()
	handlers := append([]func(prev, cur State){}, sm.handlers...)
	sm.mu.Unlock()

	sm.logger.Debug("connection state transition", "prev", from, "cur", to)

	for _, h := range handlers {
		h(from, to)
	}
	return true
}
