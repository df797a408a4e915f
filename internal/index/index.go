// Package index implements IdIndex, an insertion-ordered map from
// 64-bit object ids to 64-bit values. It is the building block for
// per-commit deltas and for the scratch sets used during garbage
// collection, so the hot operations stay allocation-light.
package index

import "iter"

// compactThreshold is the fraction of dead slots that triggers
// compaction of the order slice on Remove.
const compactThreshold = 2

// IdIndex maps uint64 object ids to uint64 values, iterating in
// insertion order. Updating an existing key overwrites its value
// in place without moving its position. The zero value is not
// usable; call New.
type IdIndex struct {
	values map[uint64]uint64
	pos    map[uint64]int
	order  []uint64
	dead   int
}

// New creates an empty IdIndex.
func New() *IdIndex {
	return &IdIndex{
		values: make(map[uint64]uint64),
		pos:    make(map[uint64]int),
	}
}

// NewWithCapacity creates an empty IdIndex sized for n entries.
func NewWithCapacity(n int) *IdIndex {
	return &IdIndex{
		values: make(map[uint64]uint64, n),
		pos:    make(map[uint64]int, n),
		order:  make([]uint64, 0, n),
	}
}

// Put inserts or updates the value for id. New ids are appended to
// the iteration order; existing ids keep their position.
func (ix *IdIndex) Put(id, value uint64) {
	if _, ok := ix.values[id]; !ok {
		ix.pos[id] = len(ix.order)
		ix.order = append(ix.order, id)
	}
	ix.values[id] = value
}

// Get returns the value for id and whether it is present.
func (ix *IdIndex) Get(id uint64) (uint64, bool) {
	v, ok := ix.values[id]
	return v, ok
}

// Contains reports whether id is present.
func (ix *IdIndex) Contains(id uint64) bool {
	_, ok := ix.values[id]
	return ok
}

// Remove deletes id if present. Removed slots stay in the order
// slice until enough of them are dead to be worth compacting.
func (ix *IdIndex) Remove(id uint64) {
	if _, ok := ix.pos[id]; !ok {
		return
	}
	delete(ix.values, id)
	delete(ix.pos, id)
	ix.dead++
	if ix.dead*compactThreshold >= len(ix.order) {
		ix.compact()
	}
}

// Len returns the number of live entries.
func (ix *IdIndex) Len() int {
	return len(ix.values)
}

// All returns an iterator over (id, value) pairs in insertion order.
// The sequence is finite and restartable. The index must not be
// mutated during iteration.
func (ix *IdIndex) All() iter.Seq2[uint64, uint64] {
	return func(yield func(uint64, uint64) bool) {
		for i, id := range ix.order {
			// A slot is live only when it is still the id's
			// current position; stale slots belong to removed
			// or re-added ids.
			if p, ok := ix.pos[id]; !ok || p != i {
				continue
			}
			if !yield(id, ix.values[id]) {
				return
			}
		}
	}
}

// IDs returns the live ids as a slice in insertion order.
func (ix *IdIndex) IDs() []uint64 {
	ids := make([]uint64, 0, len(ix.values))
	for id := range ix.All() {
		ids = append(ids, id)
	}
	return ids
}

func (ix *IdIndex) compact() {
	live := ix.order[:0]
	for i, id := range ix.order {
		if p, ok := ix.pos[id]; !ok || p != i {
			continue
		}
		ix.pos[id] = len(live)
		live = append(live, id)
	}
	ix.order = live
	ix.dead = 0
}
