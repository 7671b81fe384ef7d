package ecs

import (
	"math"
	"sync"
)

// Entity is a generational handle to an entity in a World. It pairs the slot
// index with the spawn tick of that slot; a handle is only valid as long as
// the slot still carries the same tick.
type Entity struct {
	Index uint32
	Tick  uint64
}

// deadBit marks an allocator slot as free. The spawn tick stored in the low
// bits survives despawning so that recycled slots keep advancing their tick.
const deadBit = uint64(1) << 63

// allocator hands out entity slots and recycles released ones through a free
// list. It is safe for concurrent use so that entities may be spawned from
// systems while storages are locked.
type allocator struct {
	mu    sync.Mutex
	slots []uint64
	free  []uint32
}

func newAllocator() *allocator {
	return &allocator{}
}

// spawn returns a fresh handle, reusing a free slot if one is available.
func (a *allocator) spawn() Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spawnLocked()
}

func (a *allocator) spawnLocked() Entity {
	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]
		tick := (a.slots[index] &^ deadBit) + 1
		a.slots[index] = tick
		return Entity{Index: index, Tick: tick}
	}
	if len(a.slots) >= math.MaxUint32 {
		panic("lattice/ecs: entity index space exhausted")
	}
	index := uint32(len(a.slots))
	a.slots = append(a.slots, 1)
	return Entity{Index: index, Tick: 1}
}

// batchSpawn returns n fresh handles, growing the slot vector once.
func (a *allocator) batchSpawn(n int) []Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if grow := n - len(a.free); grow > 0 {
		if len(a.slots)+grow > math.MaxUint32 {
			panic("lattice/ecs: entity index space exhausted")
		}
		if cap(a.slots) < len(a.slots)+grow {
			grown := make([]uint64, len(a.slots), len(a.slots)+grow)
			copy(grown, a.slots)
			a.slots = grown
		}
	}
	out := make([]Entity, n)
	for i := range out {
		out[i] = a.spawnLocked()
	}
	return out
}

// despawn releases the slot held by e. Releasing a dead handle is a no-op.
func (a *allocator) despawn(e Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(e.Index) >= len(a.slots) || a.slots[e.Index] != e.Tick {
		return false
	}
	a.slots[e.Index] |= deadBit
	a.free = append(a.free, e.Index)
	return true
}

// alive reports whether the handle still refers to a live slot.
func (a *allocator) alive(e Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(e.Index) < len(a.slots) && a.slots[e.Index] == e.Tick
}

// handleAt returns the live handle occupying an index, if any. It is used to
// turn dense storage positions back into full handles during iteration.
func (a *allocator) handleAt(index uint32) (Entity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(index) >= len(a.slots) {
		return Entity{}, false
	}
	tick := a.slots[index]
	if tick&deadBit != 0 {
		return Entity{}, false
	}
	return Entity{Index: index, Tick: tick}, true
}
