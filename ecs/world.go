package ecs

import (
	"errors"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/brentp/intintmap"
	"github.com/df-mc/lattice/internal/sysid"
	"github.com/google/uuid"
)

// ErrDeadEntity is returned when a mutation targets an entity whose handle no
// longer refers to a live slot.
var ErrDeadEntity = errors.New("entity is not alive")

// WorldConfig holds the options for creating a World. The zero value is
// usable.
type WorldConfig struct {
	// Log is the Logger used for warnings about dropped commands. If nil,
	// Log is set to slog.Default().
	Log *slog.Logger
}

// New creates a World using the settings in the configuration.
func (c WorldConfig) New() *World {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	id := uuid.New()
	w := &World{
		id:         id,
		log:        c.Log.With("world", id.String()),
		alloc:      newAllocator(),
		storeIndex: make(map[reflect.Type]int),
		storeKeys:  intintmap.New(64, 0.75),
		resources:  make(map[reflect.Type]*resourceEntry),
		observers:  make(map[observerKey][]func(Entity)),
		nameKeys:   intintmap.New(32, 0.75),
	}
	return w
}

// NewWorld creates a World with default settings.
func NewWorld() *World {
	return WorldConfig{}.New()
}

// World owns the entity allocator, one locked sparse-set storage per
// registered component type, a table of typed singleton resources and the
// observer hooks driving reactive triggers. All mutation stamps a monotonic
// clock used for change detection.
type World struct {
	id    uuid.UUID
	log   *slog.Logger
	clock atomic.Uint64
	alloc *allocator

	mu         sync.RWMutex
	stores     []*storeEntry
	storeIndex map[reflect.Type]int
	// storeKeys maps the hashed type key to the storage slot. Sorted lock
	// acquisition resolves storages through this map so the hot path does
	// not hash reflect.Type values.
	storeKeys *intintmap.Map

	resMu     sync.RWMutex
	resources map[reflect.Type]*resourceEntry

	obsMu      sync.Mutex
	observers  map[observerKey][]func(Entity)
	pendingObs []observerEvent

	trigMu     sync.Mutex
	trigRotors []func()

	nameMu    sync.RWMutex
	nameKeys  *intintmap.Map
	nameSlots []namedType
}

type storeEntry struct {
	mu    sync.RWMutex
	store componentStore
	typ   reflect.Type
	key   uint64
}

// ID returns the unique identity of the world, carried in its log records.
func (w *World) ID() uuid.UUID {
	return w.id
}

// Clock returns the current value of the world's mutation clock.
func (w *World) Clock() uint64 {
	return w.clock.Load()
}

// Spawn allocates a new entity handle.
func (w *World) Spawn() Entity {
	return w.alloc.spawn()
}

// BatchSpawn allocates n entity handles, amortising slot growth.
func (w *World) BatchSpawn(n int) []Entity {
	return w.alloc.batchSpawn(n)
}

// Alive reports whether the handle refers to a live entity.
func (w *World) Alive(e Entity) bool {
	return w.alloc.alive(e)
}

// Despawn releases the entity and removes its components from every storage,
// firing remove observers for each component it still carried. Despawning a
// dead entity is a no-op.
func (w *World) Despawn(e Entity) {
	if !w.alloc.despawn(e) {
		return
	}
	w.mu.RLock()
	stores := w.stores
	w.mu.RUnlock()
	for _, entry := range stores {
		entry.mu.Lock()
		removed := entry.store.removeIndex(e.Index)
		entry.mu.Unlock()
		if removed {
			w.queueObserver(entry.typ, observerRemove, e)
		}
	}
}

// RegisterComponent makes the component type T usable with the world. It is
// idempotent; registering a type twice leaves the existing storage in place.
func RegisterComponent[T any](w *World) {
	t := reflect.TypeFor[T]()
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.storeIndex[t]; ok {
		return
	}
	st := &Storage[T]{clock: &w.clock}
	slot := len(w.stores)
	w.stores = append(w.stores, &storeEntry{store: st, typ: t, key: sysid.OfType(t)})
	w.storeIndex[t] = slot
	w.storeKeys.Put(int64(sysid.OfType(t)), int64(slot))
}

// Registered reports whether the component type T has been registered.
func Registered[T any](w *World) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.storeIndex[reflect.TypeFor[T]()]
	return ok
}

// Insert stores a component value on a live entity, firing insert observers
// and, when the component was previously absent, add observers.
func Insert[T any](w *World, e Entity, value T) error {
	if !w.alloc.alive(e) {
		return ErrDeadEntity
	}
	entry, st := storeOf[T](w)
	entry.mu.Lock()
	added := st.Insert(e.Index, value)
	entry.mu.Unlock()
	if added {
		w.queueObserver(entry.typ, observerAdd, e)
	}
	w.queueObserver(entry.typ, observerInsert, e)
	return nil
}

// InsertBatch stores one component value per entity. Dead entities are
// skipped; the first error encountered is returned after all live entities
// have been processed.
func InsertBatch[T any](w *World, entities []Entity, values []T) error {
	if len(entities) != len(values) {
		panic("lattice/ecs: InsertBatch requires equal-length slices")
	}
	var firstErr error
	for i, e := range entities {
		if err := Insert(w, e, values[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Remove deletes the component of type T from the entity, returning the
// removed value and firing remove observers.
func Remove[T any](w *World, e Entity) (T, bool) {
	entry, st := storeOf[T](w)
	entry.mu.Lock()
	value, ok := st.Remove(e.Index)
	entry.mu.Unlock()
	if ok {
		w.queueObserver(entry.typ, observerRemove, e)
	}
	return value, ok
}

// Get returns a copy of the component of type T stored on the entity.
func Get[T any](w *World, e Entity) (T, bool) {
	if !w.alloc.alive(e) {
		var zero T
		return zero, false
	}
	entry, st := storeOf[T](w)
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return st.Get(e.Index)
}

// Mutate applies f to the component of type T stored on the entity under an
// exclusive lock, stamping its changed tick. It reports whether the entity
// carried the component. The pointer must not escape f.
func Mutate[T any](w *World, e Entity, f func(*T)) bool {
	if !w.alloc.alive(e) {
		return false
	}
	entry, st := storeOf[T](w)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	v, ok := st.GetMut(e.Index)
	if !ok {
		return false
	}
	f(v)
	return true
}

// Has reports whether the entity carries a component of type T.
func Has[T any](w *World, e Entity) bool {
	if !w.alloc.alive(e) {
		return false
	}
	entry, st := storeOf[T](w)
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return st.Contains(e.Index)
}

// storeOf resolves the registered storage for T, panicking when the type has
// not been registered.
func storeOf[T any](w *World) (*storeEntry, *Storage[T]) {
	t := reflect.TypeFor[T]()
	w.mu.RLock()
	slot, ok := w.storeIndex[t]
	var entry *storeEntry
	if ok {
		entry = w.stores[slot]
	}
	w.mu.RUnlock()
	if !ok {
		panic("lattice/ecs: component type " + sysid.TypeName(t) + " is not registered")
	}
	return entry, entry.store.(*Storage[T])
}

// tryStoreOf is the tolerant variant of storeOf used by optional access
// markers.
func tryStoreOf[T any](w *World) (*storeEntry, *Storage[T], bool) {
	t := reflect.TypeFor[T]()
	w.mu.RLock()
	defer w.mu.RUnlock()
	slot, ok := w.storeIndex[t]
	if !ok {
		return nil, nil, false
	}
	entry := w.stores[slot]
	return entry, entry.store.(*Storage[T]), true
}

// storeByKey resolves a storage entry through the hashed type-key map.
func (w *World) storeByKey(key uint64) (*storeEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	slot, ok := w.storeKeys.Get(int64(key))
	if !ok {
		return nil, false
	}
	return w.stores[int(slot)], true
}

// insertErased stores a boxed component value on a live entity, resolving the
// storage from the value's dynamic type. Used by deferred spawn builders and
// the by-name registry.
func (w *World) insertErased(e Entity, value any) error {
	if !w.alloc.alive(e) {
		return ErrDeadEntity
	}
	t := reflect.TypeOf(value)
	w.mu.RLock()
	slot, ok := w.storeIndex[t]
	var entry *storeEntry
	if ok {
		entry = w.stores[slot]
	}
	w.mu.RUnlock()
	if !ok {
		return errors.New("component type " + sysid.TypeName(t) + " is not registered")
	}
	entry.mu.Lock()
	added, err := entry.store.insertAny(e.Index, value)
	entry.mu.Unlock()
	if err != nil {
		return err
	}
	if added {
		w.queueObserver(entry.typ, observerAdd, e)
	}
	w.queueObserver(entry.typ, observerInsert, e)
	return nil
}

// acquireSorted takes the locks for every access in infos, which must already
// be in canonical order, and returns a function releasing them in reverse
// order. Missing non-optional components and resources panic with the type
// name; missing optional components are skipped.
func (w *World) acquireSorted(infos []accessInfo) (release func()) {
	unlockers := make([]func(), 0, len(infos))
	for _, info := range infos {
		if info.resource {
			entry := w.resourceEntry(info.typ)
			if entry == nil {
				panic("lattice/ecs: resource " + sysid.TypeName(info.typ) + " is not registered")
			}
			if info.write {
				entry.mu.Lock()
				unlockers = append(unlockers, entry.mu.Unlock)
			} else {
				entry.mu.RLock()
				unlockers = append(unlockers, entry.mu.RUnlock)
			}
			continue
		}
		entry, ok := w.storeByKey(info.key)
		if !ok {
			if info.optional {
				continue
			}
			panic("lattice/ecs: component type " + sysid.TypeName(info.typ) + " is not registered")
		}
		if info.write {
			entry.mu.Lock()
			unlockers = append(unlockers, entry.mu.Unlock)
		} else {
			entry.mu.RLock()
			unlockers = append(unlockers, entry.mu.RUnlock)
		}
	}
	return func() {
		for i := len(unlockers) - 1; i >= 0; i-- {
			unlockers[i]()
		}
	}
}

// sortAccessInfos orders infos canonically: by hashed type key, tie-broken by
// the type name and the resource flag. Every lock request sorts identically,
// which makes deadlock between systems sharing types impossible.
func sortAccessInfos(infos []accessInfo) {
	sort.Slice(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.key != b.key {
			return a.key < b.key
		}
		if an, bn := sysid.TypeName(a.typ), sysid.TypeName(b.typ); an != bn {
			return an < bn
		}
		return !a.resource && b.resource
	})
}

// ApplyCommands drains the collector and runs each command against the
// world. Failing commands are logged and skipped, never re-queued. The
// number of failed commands is returned.
func (w *World) ApplyCommands(c *CommandCollector) (failed int) {
	for _, cmd := range c.drain() {
		if err := cmd(w); err != nil {
			w.log.Warn("dropped deferred command", "err", err)
			failed++
		}
	}
	return failed
}
