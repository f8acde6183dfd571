package inflight_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/icc/inflight"
)

func TestAllocateSequenceNeverReturnsZero(t *testing.T) {
	table := inflight.New()
	for i := 0; i < 10_000; i++ {
		seq := table.AllocateSequence()
		require.NotZero(t, seq)
	}
}

func TestAllocateSequenceSkipsCollisions(t *testing.T) {
	table := inflight.New()
	seq1 := table.AllocateSequence()
	table.Add(seq1, &inflight.Entry{})

	seq2 := table.AllocateSequence()
	assert.NotEqual(t, seq1, seq2)
}

func TestAllocateSequenceUnderConcurrency(t *testing.T) {
	table := inflight.New()
	const n = 500

	var mu sync.Mutex
	seen := make(map[uint32]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq := table.AllocateSequence()
			table.Add(seq, &inflight.Entry{})

			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestAddDuplicateSequencePanics(t *testing.T) {
	table := inflight.New()
	table.Add(1, &inflight.Entry{})
	assert.Panics(t, func() {
		table.Add(1, &inflight.Entry{})
	})
}

func TestRetrieveMissing(t *testing.T) {
	table := inflight.New()
	_, ok := table.Retrieve(42)
	assert.False(t, ok)
}

func TestDeleteIsNoopForZeroAndMissing(t *testing.T) {
	table := inflight.New()
	entry, ok := table.Delete(0)
	assert.False(t, ok)
	assert.Nil(t, entry)

	entry, ok = table.Delete(42)
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestDeleteRemovesEntry(t *testing.T) {
	table := inflight.New()
	want := &inflight.Entry{}
	table.Add(7, want)

	got, ok := table.Delete(7)
	require.True(t, ok)
	assert.Same(t, want, got)

	_, ok = table.Retrieve(7)
	assert.False(t, ok)
}

func TestClearDrainsAllEntries(t *testing.T) {
	table := inflight.New()
	table.Add(1, &inflight.Entry{})
	table.Add(2, &inflight.Entry{})

	drained := table.Clear()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, table.Len())
}

func TestEntrySetAckLatchIsWriteOnce(t *testing.T) {
	entry := &inflight.Entry{}
	assert.False(t, entry.AckReceived())

	alreadySet := entry.SetAck()
	assert.False(t, alreadySet)
	assert.True(t, entry.AckReceived())

	alreadySet = entry.SetAck()
	assert.True(t, alreadySet)
}
