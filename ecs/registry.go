package ecs

import (
	"errors"
	"reflect"

	"github.com/df-mc/lattice/internal/sysid"
)

// ErrUnknownComponentName is returned by the by-name operations when no
// component type was registered under the name.
var ErrUnknownComponentName = errors.New("no component type registered under name")

type namedType struct {
	name string
	slot int
}

// RegisterNamed registers the component type T under a stable name, making it
// reachable through the type-erased by-name operations that an external
// registration table (editor, serialization layer) drives. The component is
// registered as a side effect if it was not already.
func RegisterNamed[T any](w *World, name string) {
	RegisterComponent[T](w)
	t := reflect.TypeFor[T]()
	w.mu.RLock()
	slot := w.storeIndex[t]
	w.mu.RUnlock()

	key := sysid.OfName(name)
	w.nameMu.Lock()
	defer w.nameMu.Unlock()
	if idx, ok := w.nameKeys.Get(int64(key)); ok {
		existing := w.nameSlots[int(idx)]
		if existing.name != name {
			panic("lattice/ecs: component name hash collision between " + existing.name + " and " + name)
		}
		if existing.slot != slot {
			panic("lattice/ecs: component name " + name + " already registered for a different type")
		}
		return
	}
	w.nameKeys.Put(int64(key), int64(len(w.nameSlots)))
	w.nameSlots = append(w.nameSlots, namedType{name: name, slot: slot})
}

// ComponentNames returns the registered component names.
func (w *World) ComponentNames() []string {
	w.nameMu.RLock()
	defer w.nameMu.RUnlock()
	names := make([]string, len(w.nameSlots))
	for i, nt := range w.nameSlots {
		names[i] = nt.name
	}
	return names
}

func (w *World) entryByName(name string) (*storeEntry, error) {
	key := sysid.OfName(name)
	w.nameMu.RLock()
	idx, ok := w.nameKeys.Get(int64(key))
	var nt namedType
	if ok {
		nt = w.nameSlots[int(idx)]
	}
	w.nameMu.RUnlock()
	if !ok || nt.name != name {
		return nil, ErrUnknownComponentName
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stores[nt.slot], nil
}

// InsertDefaultByName stores the zero value of the component type registered
// under the name on a live entity, firing the usual observers.
func (w *World) InsertDefaultByName(e Entity, name string) error {
	entry, err := w.entryByName(name)
	if err != nil {
		return err
	}
	if !w.alloc.alive(e) {
		return ErrDeadEntity
	}
	entry.mu.Lock()
	added := entry.store.insertZero(e.Index)
	entry.mu.Unlock()
	if added {
		w.queueObserver(entry.typ, observerAdd, e)
	}
	w.queueObserver(entry.typ, observerInsert, e)
	return nil
}

// RemoveByName removes the component registered under the name from the
// entity. Removing an absent component is a no-op.
func (w *World) RemoveByName(e Entity, name string) error {
	_, err := w.ExtractByName(e, name)
	return err
}

// ExtractByName removes the component registered under the name from the
// entity and returns the removed value boxed, for type-erased undo support.
// It returns nil when the entity did not carry the component.
func (w *World) ExtractByName(e Entity, name string) (any, error) {
	entry, err := w.entryByName(name)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	value, removed := entry.store.extractIndex(e.Index)
	entry.mu.Unlock()
	if !removed {
		return nil, nil
	}
	w.queueObserver(entry.typ, observerRemove, e)
	return value, nil
}
