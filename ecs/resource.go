package ecs

import (
	"reflect"
	"sync"

	"github.com/df-mc/lattice/internal/sysid"
)

// resourceEntry is one typed singleton in the world's resource table. The
// value is stored behind a pointer so that markers can hand out *T views
// while the entry's lock is held.
type resourceEntry struct {
	mu  sync.RWMutex
	val any
	typ reflect.Type
	key uint64
}

// InsertResource stores a singleton value of type T, replacing any previous
// value of that type.
func InsertResource[T any](w *World, value T) {
	t := reflect.TypeFor[T]()
	w.resMu.Lock()
	defer w.resMu.Unlock()
	if entry, ok := w.resources[t]; ok {
		entry.mu.Lock()
		entry.val = &value
		entry.mu.Unlock()
		return
	}
	w.resources[t] = &resourceEntry{val: &value, typ: t, key: sysid.OfType(t)}
}

// HasResource reports whether a resource of type T exists.
func HasResource[T any](w *World) bool {
	w.resMu.RLock()
	defer w.resMu.RUnlock()
	_, ok := w.resources[reflect.TypeFor[T]()]
	return ok
}

// RemoveResource deletes the resource of type T, returning whether it
// existed.
func RemoveResource[T any](w *World) bool {
	t := reflect.TypeFor[T]()
	w.resMu.Lock()
	defer w.resMu.Unlock()
	if _, ok := w.resources[t]; !ok {
		return false
	}
	delete(w.resources, t)
	return true
}

// ViewResource calls f with a shared borrow of the resource of type T. The
// pointer must not escape f. Panics when the resource is not registered.
func ViewResource[T any](w *World, f func(*T)) {
	entry := mustResource[T](w)
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	f(entry.val.(*T))
}

// EditResource calls f with an exclusive borrow of the resource of type T.
// The pointer must not escape f. Panics when the resource is not registered.
func EditResource[T any](w *World, f func(*T)) {
	entry := mustResource[T](w)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	f(entry.val.(*T))
}

func mustResource[T any](w *World) *resourceEntry {
	t := reflect.TypeFor[T]()
	entry := w.resourceEntry(t)
	if entry == nil {
		panic("lattice/ecs: resource " + sysid.TypeName(t) + " is not registered")
	}
	return entry
}

func (w *World) resourceEntry(t reflect.Type) *resourceEntry {
	w.resMu.RLock()
	defer w.resMu.RUnlock()
	return w.resources[t]
}
