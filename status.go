package icc

import "sync"

// StatusHandler processes one STAT frame's payload-after-substatus bytes for a registered
// substatus. data aliases the reader's buffer and must not be retained past the call (§4.D).
type StatusHandler func(substatus uint32, data []byte)

// statusRegistry holds the per-substatus handlers and the singleton unhandled-status fallback.
// The mutex is held only for registry mutation and lookup, never across a handler invocation
// (§5).
type statusRegistry struct {
	mu        sync.Mutex
	handlers  map[uint32]StatusHandler
	unhandled StatusHandler
}

func newStatusRegistry() *statusRegistry {
	return &statusRegistry{handlers: make(map[uint32]StatusHandler)}
}

// Register adds handler for substatus. It returns false if a handler is already registered for
// that substatus (§6).
func (r *statusRegistry) Register(substatus uint32, handler StatusHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[substatus]; exists {
		return false
	}
	r.handlers[substatus] = handler
	return true
}

// Unregister removes the handler for substatus, if any.
func (r *statusRegistry) Unregister(substatus uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, substatus)
}

// RegisterUnhandled sets the singleton fallback invoked when no per-substatus handler matches.
// It returns false if one is already registered.
func (r *statusRegistry) RegisterUnhandled(handler StatusHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unhandled != nil {
		return false
	}
	r.unhandled = handler
	return true
}

// Lookup returns the handler for substatus, falling back to the unhandled handler. The returned
// bool is false if neither is registered.
func (r *statusRegistry) Lookup(substatus uint32) (StatusHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[substatus]; ok {
		return h, true
	}
	if r.unhandled != nil {
		return r.unhandled, true
	}
	return nil, false
}
