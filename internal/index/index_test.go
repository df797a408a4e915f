package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdIndex_PutGet(t *testing.T) {
	ix := New()

	ix.Put(10, 100)
	ix.Put(20, 200)

	v, ok := ix.Get(10)
	require.True(t, ok)
	assert.Equal(t, uint64(100), v)

	v, ok = ix.Get(20)
	require.True(t, ok)
	assert.Equal(t, uint64(200), v)

	_, ok = ix.Get(30)
	assert.False(t, ok)

	assert.Equal(t, 2, ix.Len())
	assert.True(t, ix.Contains(10))
	assert.False(t, ix.Contains(30))
}

func TestIdIndex_InsertionOrder(t *testing.T) {
	ix := New()
	ix.Put(5, 1)
	ix.Put(3, 2)
	ix.Put(9, 3)
	ix.Put(1, 4)

	assert.Equal(t, []uint64{5, 3, 9, 1}, ix.IDs())
}

func TestIdIndex_OverwriteKeepsPosition(t *testing.T) {
	ix := New()
	ix.Put(5, 1)
	ix.Put(3, 2)
	ix.Put(9, 3)

	// Overwriting the first key must not move it to the end
	ix.Put(5, 42)

	assert.Equal(t, []uint64{5, 3, 9}, ix.IDs())
	v, _ := ix.Get(5)
	assert.Equal(t, uint64(42), v)
	assert.Equal(t, 3, ix.Len())
}

func TestIdIndex_Remove(t *testing.T) {
	ix := New()
	ix.Put(1, 10)
	ix.Put(2, 20)
	ix.Put(3, 30)

	ix.Remove(2)

	assert.Equal(t, 2, ix.Len())
	assert.False(t, ix.Contains(2))
	assert.Equal(t, []uint64{1, 3}, ix.IDs())

	// Removing a missing id is a no-op
	ix.Remove(99)
	assert.Equal(t, 2, ix.Len())
}

func TestIdIndex_RemoveThenReAdd(t *testing.T) {
	ix := New()
	ix.Put(1, 10)
	ix.Put(2, 20)
	ix.Put(3, 30)

	ix.Remove(1)
	ix.Put(1, 11)

	// Re-added ids move to the end and appear exactly once
	assert.Equal(t, []uint64{2, 3, 1}, ix.IDs())
	v, _ := ix.Get(1)
	assert.Equal(t, uint64(11), v)
}

func TestIdIndex_IterationRestartable(t *testing.T) {
	ix := New()
	for i := uint64(1); i <= 5; i++ {
		ix.Put(i, i*10)
	}

	seq := ix.All()

	var first, second []uint64
	for id := range seq {
		first = append(first, id)
	}
	for id := range seq {
		second = append(second, id)
	}

	assert.Equal(t, first, second)
	assert.Len(t, first, 5)
}

func TestIdIndex_IterationEarlyStop(t *testing.T) {
	ix := New()
	for i := uint64(1); i <= 10; i++ {
		ix.Put(i, i)
	}

	var seen int
	for range ix.All() {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestIdIndex_CompactionPreservesOrder(t *testing.T) {
	ix := New()
	for i := uint64(1); i <= 100; i++ {
		ix.Put(i, i)
	}
	// Remove enough entries to force compaction of the order slice
	for i := uint64(1); i <= 100; i += 2 {
		ix.Remove(i)
	}

	want := make([]uint64, 0, 50)
	for i := uint64(2); i <= 100; i += 2 {
		want = append(want, i)
	}
	assert.Equal(t, want, ix.IDs())
	assert.Equal(t, 50, ix.Len())
}
