// Package inflight tracks outstanding GET/ACTN commands between the moment they are written to
// the transport and their terminal reply (ACK+RSP or NAK) or cancellation, per §4.C.
package inflight

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// startSequence is the first sequence number a fresh Table allocates, per §3.
const startSequence uint32 = 0xFFFFFF00

// Entry holds the completion handlers and bookkeeping for one outstanding command.
type Entry struct {
	// AckHandler is invoked once, outside any lock, when the matching ACK arrives.
	AckHandler func(userData any, seq uint32)
	// NakHandler is invoked once, outside any lock, when the matching NAK arrives.
	NakHandler func(userData any, seq uint32, statusCode uint32)
	// ResponseHandler is invoked once, outside any lock, when the matching RSP arrives. data
	// aliases the reader's buffer and must not be retained past the call.
	ResponseHandler func(userData any, seq, subcommand, statusCode uint32, data []byte)
	// UserData is an opaque value threaded back through every handler invocation.
	UserData any

	ackReceived atomic.Bool
}

// SetAck sets the ack-received latch and reports whether it was already set. The latch is
// write-once false→true; clearing it is a programming error (§3) and this type offers no way to
// do so.
func (e *Entry) SetAck() (alreadySet bool) {
	return !e.ackReceived.CompareAndSwap(false, true)
}

// AckReceived reports whether the ACK latch has been set.
func (e *Entry) AckReceived() bool {
	return e.ackReceived.Load()
}

// Table is the in-flight sequence-number table. Lookups use a lock-free concurrent map; sequence
// allocation is serialized by a dedicated mutex because increment-skip-collision logic (§3)
// needs a single critical section that a concurrent map alone cannot give atomically.
type Table struct {
	entries *xsync.MapOf[uint32, *Entry]

	seqMu   sync.Mutex
	nextSeq uint32
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		entries: xsync.NewMapOf[uint32, *Entry](),
		nextSeq: startSequence,
	}
}

// AllocateSequence returns a fresh sequence number: increment, skip 0 on wraparound, skip any
// value already present in the table (§3). The table is not mutated; callers add the entry with
// Add once they have built it.
func (t *Table) AllocateSequence() uint32 {
	t.seqMu.Lock()
	defer t.seqMu.Unlock()

	for {
		t.nextSeq++
		if t.nextSeq == 0 {
			t.nextSeq++
		}
		if _, exists := t.entries.Load(t.nextSeq); !exists {
			return t.nextSeq
		}
	}
}

// Add inserts entry under seq. A duplicate insert is a programming error and panics, per §4.C.
func (t *Table) Add(seq uint32, entry *Entry) {
	if _, loaded := t.entries.LoadOrStore(seq, entry); loaded {
		panic("inflight: duplicate sequence insert")
	}
}

// Retrieve looks up seq without removing it.
func (t *Table) Retrieve(seq uint32) (*Entry, bool) {
	return t.entries.Load(seq)
}

// Delete removes seq. It is a no-op if seq is 0 or absent, and returns the removed entry (if
// any) so the caller can invoke its handlers outside of any lock.
func (t *Table) Delete(seq uint32) (*Entry, bool) {
	if seq == 0 {
		return nil, false
	}
	return t.entries.LoadAndDelete(seq)
}

// Clear drops every entry and returns them, so the caller can optionally notify or cancel their
// owners outside of any lock. Used on disconnect.
func (t *Table) Clear() map[uint32]*Entry {
	drained := make(map[uint32]*Entry)
	t.entries.Range(func(seq uint32, entry *Entry) bool {
		drained[seq] = entry
		return true
	})
	t.entries.Clear()
	return drained
}

// Len reports the number of entries currently in flight. Intended for tests and diagnostics.
func (t *Table) Len() int {
	return t.entries.Size()
}
