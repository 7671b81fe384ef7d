package ecs

import (
	"reflect"
	"runtime"

	"github.com/df-mc/lattice/internal/sysid"
	"golang.org/x/sync/errgroup"
)

// accessInfo describes one requested lock: the component or resource type,
// its hashed key used for canonical ordering, and the flags steering
// acquisition.
type accessInfo struct {
	typ        reflect.Type
	key        uint64
	write      bool
	resource   bool
	optional   bool
	mainThread bool
}

// Access is one read/write marker in a lock request. Marker values double as
// the typed view on the locked data: inside LockRequest.Execute the marker is
// bound to its storage or resource and its accessor methods become valid.
type Access interface {
	accessInfo() accessInfo
	bind(w *World)
	unbind()
}

func componentInfo[T any](write, optional bool) accessInfo {
	t := reflect.TypeFor[T]()
	return accessInfo{typ: t, key: sysid.OfType(t), write: write, optional: optional}
}

func resourceInfo[T any](write, mainThread bool) accessInfo {
	t := reflect.TypeFor[T]()
	return accessInfo{typ: t, key: sysid.OfType(t), write: write, resource: true, mainThread: mainThread}
}

// Read requests shared access to the storage of component type T. Using an
// unregistered type panics.
type Read[T any] struct {
	s *Storage[T]
	w *World
}

func (r *Read[T]) accessInfo() accessInfo { return componentInfo[T](false, false) }
func (r *Read[T]) bind(w *World)          { _, r.s = storeOf[T](w); r.w = w }
func (r *Read[T]) unbind()                { r.s, r.w = nil, nil }

// Get returns a copy of the component stored on the entity.
func (r *Read[T]) Get(e Entity) (T, bool) {
	r.ensure()
	if !r.w.alloc.alive(e) {
		var zero T
		return zero, false
	}
	return r.s.Get(e.Index)
}

// Has reports whether the entity carries the component.
func (r *Read[T]) Has(e Entity) bool {
	r.ensure()
	return r.w.alloc.alive(e) && r.s.Contains(e.Index)
}

// Len returns the number of stored components.
func (r *Read[T]) Len() int {
	r.ensure()
	return r.s.Len()
}

// Each calls f for every stored component. Iteration stops early if f
// returns false.
func (r *Read[T]) Each(f func(Entity, T) bool) {
	r.ensure()
	r.s.Iter(func(index uint32, value T) bool {
		e, ok := r.w.alloc.handleAt(index)
		if !ok {
			return true
		}
		return f(e, value)
	})
}

// ChangedSince reports whether the entity's component changed at or after the
// given clock value.
func (r *Read[T]) ChangedSince(e Entity, tick uint64) bool {
	r.ensure()
	return r.s.ChangedSince(e.Index, tick)
}

// AddedSince reports whether the entity's component was added at or after the
// given clock value.
func (r *Read[T]) AddedSince(e Entity, tick uint64) bool {
	r.ensure()
	return r.s.AddedSince(e.Index, tick)
}

func (r *Read[T]) ensure() {
	if r.s == nil {
		panic("lattice/ecs: access marker used outside Execute")
	}
}

// Write requests exclusive access to the storage of component type T. Using
// an unregistered type panics.
type Write[T any] struct {
	s *Storage[T]
	w *World
}

func (wr *Write[T]) accessInfo() accessInfo { return componentInfo[T](true, false) }
func (wr *Write[T]) bind(w *World)          { _, wr.s = storeOf[T](w); wr.w = w }
func (wr *Write[T]) unbind()                { wr.s, wr.w = nil, nil }

// Get returns a mutable reference to the entity's component, stamping its
// changed tick. The pointer must not escape the Execute closure.
func (wr *Write[T]) Get(e Entity) (*T, bool) {
	wr.ensure()
	if !wr.w.alloc.alive(e) {
		return nil, false
	}
	return wr.s.GetMut(e.Index)
}

// Has reports whether the entity carries the component.
func (wr *Write[T]) Has(e Entity) bool {
	wr.ensure()
	return wr.w.alloc.alive(e) && wr.s.Contains(e.Index)
}

// Len returns the number of stored components.
func (wr *Write[T]) Len() int {
	wr.ensure()
	return wr.s.Len()
}

// Each calls f with a mutable reference for every stored component, stamping
// changed ticks. Iteration stops early if f returns false.
func (wr *Write[T]) Each(f func(Entity, *T) bool) {
	wr.ensure()
	wr.s.IterMut(func(index uint32, value *T) bool {
		e, ok := wr.w.alloc.handleAt(index)
		if !ok {
			return true
		}
		return f(e, value)
	})
}

// ParForEach calls f for every stored component, chunking the dense array
// across a group of goroutines. The per-item borrows are disjoint, so f may
// mutate its value freely but must not touch other entities' components.
func (wr *Write[T]) ParForEach(f func(Entity, *T)) {
	wr.ensure()
	n := wr.s.Len()
	if n == 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	tick := wr.s.clock.Add(1)
	var eg errgroup.Group
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		eg.Go(func() error {
			for pos := start; pos < end; pos++ {
				wr.s.changed[pos] = tick
				if e, ok := wr.w.alloc.handleAt(wr.s.entities[pos]); ok {
					f(e, &wr.s.dense[pos])
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// ChangedSince reports whether the entity's component changed at or after the
// given clock value.
func (wr *Write[T]) ChangedSince(e Entity, tick uint64) bool {
	wr.ensure()
	return wr.s.ChangedSince(e.Index, tick)
}

func (wr *Write[T]) ensure() {
	if wr.s == nil {
		panic("lattice/ecs: access marker used outside Execute")
	}
}

// OptionalRead is like Read but tolerates an unregistered component type.
type OptionalRead[T any] struct {
	s *Storage[T]
	w *World
	b bool
}

func (r *OptionalRead[T]) accessInfo() accessInfo { return componentInfo[T](false, true) }
func (r *OptionalRead[T]) bind(w *World) {
	_, r.s, _ = tryStoreOf[T](w)
	r.w, r.b = w, true
}
func (r *OptionalRead[T]) unbind() { r.s, r.w, r.b = nil, nil, false }

// Present reports whether the component type was registered.
func (r *OptionalRead[T]) Present() bool {
	r.ensure()
	return r.s != nil
}

// Get returns a copy of the component stored on the entity. It reports false
// when the type is unregistered or the entity has no such component.
func (r *OptionalRead[T]) Get(e Entity) (T, bool) {
	r.ensure()
	if r.s == nil || !r.w.alloc.alive(e) {
		var zero T
		return zero, false
	}
	return r.s.Get(e.Index)
}

func (r *OptionalRead[T]) ensure() {
	if !r.b {
		panic("lattice/ecs: access marker used outside Execute")
	}
}

// OptionalWrite is like Write but tolerates an unregistered component type.
type OptionalWrite[T any] struct {
	s *Storage[T]
	w *World
	b bool
}

func (wr *OptionalWrite[T]) accessInfo() accessInfo { return componentInfo[T](true, true) }
func (wr *OptionalWrite[T]) bind(w *World) {
	_, wr.s, _ = tryStoreOf[T](w)
	wr.w, wr.b = w, true
}
func (wr *OptionalWrite[T]) unbind() { wr.s, wr.w, wr.b = nil, nil, false }

// Present reports whether the component type was registered.
func (wr *OptionalWrite[T]) Present() bool {
	wr.ensure()
	return wr.s != nil
}

// Get returns a mutable reference to the entity's component, or reports false
// when the type is unregistered or the entity has no such component.
func (wr *OptionalWrite[T]) Get(e Entity) (*T, bool) {
	wr.ensure()
	if wr.s == nil || !wr.w.alloc.alive(e) {
		return nil, false
	}
	return wr.s.GetMut(e.Index)
}

func (wr *OptionalWrite[T]) ensure() {
	if !wr.b {
		panic("lattice/ecs: access marker used outside Execute")
	}
}

// Res requests shared access to the resource of type T. Using an
// unregistered resource panics.
type Res[T any] struct {
	v *T
}

func (r *Res[T]) accessInfo() accessInfo { return resourceInfo[T](false, false) }
func (r *Res[T]) bind(w *World)          { r.v = mustResource[T](w).val.(*T) }
func (r *Res[T]) unbind()                { r.v = nil }

// Get returns the resource value. The value is shared; it must not be
// mutated through this marker.
func (r *Res[T]) Get() *T {
	if r.v == nil {
		panic("lattice/ecs: access marker used outside Execute")
	}
	return r.v
}

// ResMut requests exclusive access to the resource of type T. Using an
// unregistered resource panics.
type ResMut[T any] struct {
	v *T
}

func (r *ResMut[T]) accessInfo() accessInfo { return resourceInfo[T](true, false) }
func (r *ResMut[T]) bind(w *World)          { r.v = mustResource[T](w).val.(*T) }
func (r *ResMut[T]) unbind()                { r.v = nil }

// Get returns the resource value for mutation.
func (r *ResMut[T]) Get() *T {
	if r.v == nil {
		panic("lattice/ecs: access marker used outside Execute")
	}
	return r.v
}

// MainThreadRes is like Res, but forces the whole Execute closure onto the
// runner's main thread. Used for resources wrapping state that must only be
// touched there, such as windowing handles.
type MainThreadRes[T any] struct {
	Res[T]
}

func (r *MainThreadRes[T]) accessInfo() accessInfo { return resourceInfo[T](false, true) }

// MainThreadResMut is like ResMut, but forces the whole Execute closure onto
// the runner's main thread.
type MainThreadResMut[T any] struct {
	ResMut[T]
}

func (r *MainThreadResMut[T]) accessInfo() accessInfo { return resourceInfo[T](true, true) }
