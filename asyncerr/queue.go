// Package asyncerr implements the background dispatch path for human-readable protocol/transport
// error descriptions, per §4.F. It is intentionally decoupled from connection-state types: the
// gate predicate that decides whether an error is worth queuing is supplied by the caller.
package asyncerr

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Gate reports whether an async error should be enqueued right now. The protocol engine wires
// this to "state is Connected or WaitingForLogin" to suppress floods during teardown (§4.F).
type Gate func() bool

// Subscriber receives dispatched error descriptions, one at a time, on the dispatch goroutine.
type Subscriber func(description string)

// descNode is one node of the lock-free singly-linked list backing Queue. Unlike a
// general-purpose queue, the carried value is a description string directly rather than an
// any, so Queue never boxes/unboxes or type-asserts on its hot path.
type descNode struct {
	description string
	next        unsafe.Pointer
}

// Queue is a lock-free, single/multi-producer queue of error description strings that drains on
// a dedicated goroutine and delivers each item to the current Subscriber. Enqueue/Dequeue follow
// the Michael-Scott lock-free queue algorithm. totalEnqueued and length are the two counters
// icc/metrics reads directly (via Depth/TotalEnqueued) instead of the protocol engine
// hand-incrementing a duplicate counter on every dispatch.
type Queue struct {
	head   unsafe.Pointer
	tail   unsafe.Pointer
	length atomic.Int64

	totalEnqueued atomic.Uint64

	gate Gate

	subMu sync.RWMutex
	sub   Subscriber

	signal chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Queue gated by gate. Call Start to begin dispatching.
func New(gate Gate) *Queue {
	n := unsafe.Pointer(&descNode{})
	return &Queue{
		head:   n,
		tail:   n,
		gate:   gate,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Subscribe replaces the current subscriber. A nil subscriber discards dispatched errors.
func (aq *Queue) Subscribe(sub Subscriber) {
	aq.subMu.Lock()
	defer aq.subMu.Unlock()
	aq.sub = sub
}

// Enqueue adds description to the queue if the gate permits it. It never blocks.
func (aq *Queue) Enqueue(description string) {
	if aq.gate != nil && !aq.gate() {
		return
	}

	n := &descNode{description: description}
retry:
	tail := loadNode(&aq.tail)
	next := loadNode(&tail.next)
	if tail == loadNode(&aq.tail) {
		if next == nil {
			if casNode(&tail.next, next, n) {
				casNode(&aq.tail, tail, n)
				aq.length.Add(1)
				aq.totalEnqueued.Add(1)
				aq.wake()
				return
			}
		} else {
			casNode(&aq.tail, tail, next)
		}
	}
	goto retry
}

func (aq *Queue) dequeue() (string, bool) {
retry:
	head := loadNode(&aq.head)
	tail := loadNode(&aq.tail)
	next := loadNode(&head.next)

	if head == loadNode(&aq.head) {
		if head == tail {
			if next == nil {
				return "", false
			}
			casNode(&aq.tail, tail, next)
		} else {
			description := next.description
			if casNode(&aq.head, head, next) {
				aq.length.Add(-1)
				return description, true
			}
		}
	}
	goto retry
}

func loadNode(p *unsafe.Pointer) *descNode {
	return (*descNode)(atomic.LoadPointer(p))
}

func casNode(p *unsafe.Pointer, oldNode, newNode *descNode) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(oldNode), unsafe.Pointer(newNode))
}

func (aq *Queue) wake() {
	select {
	case aq.signal <- struct{}{}:
	default:
	}
}

// Start launches the dispatch goroutine. It is idempotent only in the sense that calling it
// twice starts two goroutines racing to drain the same queue; callers call it exactly once.
func (aq *Queue) Start() {
	aq.wg.Add(1)
	go aq.dispatchLoop()
}

// Stop signals the dispatch goroutine to exit and waits for it to do so. Calling it again after
// it has returned is a no-op.
func (aq *Queue) Stop() {
	select {
	case <-aq.done:
	default:
		close(aq.done)
	}
	aq.wg.Wait()
}

func (aq *Queue) dispatchLoop() {
	defer aq.wg.Done()

	for {
		aq.drain()

		select {
		case <-aq.done:
			aq.drain()
			return
		case <-aq.signal:
		}
	}
}

func (aq *Queue) drain() {
	for {
		description, ok := aq.dequeue()
		if !ok {
			return
		}

		aq.subMu.RLock()
		sub := aq.sub
		aq.subMu.RUnlock()

		if sub != nil {
			sub(description)
		}
	}
}

// Len reports the number of pending error descriptions. Intended for tests and diagnostics.
func (aq *Queue) Len() int {
	return int(aq.length.Load())
}

// Depth returns the current queue length as a float64, suitable for direct use as a Prometheus
// GaugeFunc collector in icc/metrics — it reads the same atomic counter Len does, so the gauge
// never drifts out of sync with hand-maintained bookkeeping elsewhere.
func (aq *Queue) Depth() float64 {
	return float64(aq.length.Load())
}

// TotalEnqueued returns the cumulative count of descriptions that ever passed the gate and were
// enqueued, suitable for direct use as a Prometheus CounterFunc collector in icc/metrics.
func (aq *Queue) TotalEnqueued() float64 {
	return float64(aq.totalEnqueued.Load())
}
