package icc

import "sync"

// observerList is a typed, subscribe/unsubscribe multicast registry for one event kind, per §9's
// Design Notes. Emit invokes every currently-subscribed handler synchronously, on the calling
// goroutine (the reader thread for protocol/transport events, or the reconnect goroutine for
// ladder events).
type observerList[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

func newObserverList[T any]() *observerList[T] {
	return &observerList[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns a function that removes it.
func (o *observerList[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Emit invokes every subscribed handler with v, in an unspecified order.
func (o *observerList[T]) Emit(v T) {
	o.mu.Lock()
	handlers := make([]func(T), 0, len(o.subs))
	for _, fn := range o.subs {
		handlers = append(handlers, fn)
	}
	o.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// events bundles one observerList per event kind the client exposes (§6).
type events struct {
	connect           *observerList[struct{}]
	disconnect        *observerList[struct{}]
	disconnectWarning *observerList[struct{}]
	disconnectError   *observerList[struct{}]
	asyncError        *observerList[string]
}

func newEvents() *events {
	return &events{
		connect:           newObserverList[struct{}](),
		disconnect:        newObserverList[struct{}](),
		disconnectWarning: newObserverList[struct{}](),
		disconnectError:   newObserverList[struct{}](),
		asyncError:        newObserverList[string](),
	}
}

// OnConnect subscribes fn to the ConnectEvent, emitted once per successful connect.
func (c *Client) OnConnect(fn func()) func() {
	return c.events.connect.Subscribe(func(struct{}) { fn() })
}

// OnDisconnect subscribes fn to the DisconnectEvent, emitted once per disconnect episode
// (user-requested or unexpected).
func (c *Client) OnDisconnect(fn func()) func() {
	return c.events.disconnect.Subscribe(func(struct{}) { fn() })
}

// OnDisconnectWarning subscribes fn to DisconnectWarning, emitted at most once per reconnect
// episode once the elapsed time exceeds warningDelay.
func (c *Client) OnDisconnectWarning(fn func()) func() {
	return c.events.disconnectWarning.Subscribe(func(struct{}) { fn() })
}

// OnDisconnectError subscribes fn to DisconnectError, emitted at most once per reconnect episode
// once the elapsed time exceeds errorDelay, after which the ladder stops retrying.
func (c *Client) OnDisconnectError(fn func()) func() {
	return c.events.disconnectError.Subscribe(func(struct{}) { fn() })
}

// OnAsyncError subscribes fn to AsyncError, delivered on the async-error dispatch goroutine for
// every enqueued protocol/transport error description.
func (c *Client) OnAsyncError(fn func(description string)) func() {
	return c.events.asyncError.Subscribe(fn)
}
