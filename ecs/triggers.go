package ecs

import "reflect"

// Triggers is a double-buffered list of entities that fired the observer
// event M during the previous tick. Observer callbacks push into a collecting
// buffer; World.UpdateTriggers swaps the buffers at tick start, so systems
// always read last tick's entities through Res[Triggers[M]].
type Triggers[M any] struct {
	readable   []Entity
	collecting []Entity
}

// Entities returns the entities triggered last tick.
func (t *Triggers[M]) Entities() []Entity {
	return t.readable
}

// Len returns the number of entities triggered last tick.
func (t *Triggers[M]) Len() int {
	return len(t.readable)
}

// IsEmpty reports whether no entities were triggered last tick.
func (t *Triggers[M]) IsEmpty() bool {
	return len(t.readable) == 0
}

// push adds an entity to the collecting buffer.
func (t *Triggers[M]) push(e Entity) {
	t.collecting = append(t.collecting, e)
}

// swap makes the collecting buffer readable and clears the old readable
// buffer. Swapping with an empty collecting buffer is idempotent.
func (t *Triggers[M]) swap() {
	t.readable = t.readable[:0]
	t.readable, t.collecting = t.collecting, t.readable
}

// EnableAddTriggers opts the component type T into OnAdd observation. The
// component is registered if it was not already; an empty
// Triggers[OnAdd[T]] resource is inserted and an observer hook installed.
func EnableAddTriggers[T any](w *World) {
	enableTriggers[T, OnAdd[T]](w, observerAdd)
}

// EnableInsertTriggers opts the component type T into OnInsert observation.
func EnableInsertTriggers[T any](w *World) {
	enableTriggers[T, OnInsert[T]](w, observerInsert)
}

// EnableRemoveTriggers opts the component type T into OnRemove observation.
func EnableRemoveTriggers[T any](w *World) {
	enableTriggers[T, OnRemove[T]](w, observerRemove)
}

func enableTriggers[T any, M any](w *World, kind observerKind) {
	RegisterComponent[T](w)
	if HasResource[Triggers[M]](w) {
		return
	}
	InsertResource(w, Triggers[M]{})
	entry := mustResource[Triggers[M]](w)
	w.addObserver(reflect.TypeFor[T](), kind, func(e Entity) {
		entry.mu.Lock()
		entry.val.(*Triggers[M]).push(e)
		entry.mu.Unlock()
	})
	w.addTriggerRotor(func() {
		entry.mu.Lock()
		entry.val.(*Triggers[M]).swap()
		entry.mu.Unlock()
	})
}

// HasTriggers is a condition system that evaluates to true when the readable
// buffer of Triggers[M] is non-empty. Reactive systems gate on it through an
// edge so they only run on ticks where the event fired.
type HasTriggers[M any] struct{}

// Run implements System.
func (HasTriggers[M]) Run(ctx *SystemContext) any {
	triggers := &Res[Triggers[M]]{}
	var fired Condition
	ctx.Lock(triggers).Execute(func() {
		fired = Condition(!triggers.Get().IsEmpty())
	})
	return fired
}
