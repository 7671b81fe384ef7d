package ecs

// Events is a double-buffered queue for typed inter-system communication.
// Events sent during one tick stay readable during that tick and the next;
// after two updates they are dropped. Systems access the queue as a resource
// through Res[Events[T]] and ResMut[Events[T]].
type Events[T any] struct {
	current  []T
	previous []T
}

// Send appends an event to the current tick's buffer.
func (ev *Events[T]) Send(event T) {
	ev.current = append(ev.current, event)
}

// All returns the readable events, previous tick's first.
func (ev *Events[T]) All() []T {
	out := make([]T, 0, len(ev.previous)+len(ev.current))
	out = append(out, ev.previous...)
	return append(out, ev.current...)
}

// Iter calls f for every readable event, previous tick's first. Iteration
// stops early if f returns false.
func (ev *Events[T]) Iter(f func(T) bool) {
	for _, e := range ev.previous {
		if !f(e) {
			return
		}
	}
	for _, e := range ev.current {
		if !f(e) {
			return
		}
	}
}

// Current returns only the events sent during the current tick.
func (ev *Events[T]) Current() []T {
	return ev.current
}

// Update advances the double buffer: the previous buffer is cleared and the
// current buffer takes its place.
func (ev *Events[T]) Update() {
	ev.previous = ev.previous[:0]
	ev.previous, ev.current = ev.current, ev.previous
}

// IsEmpty reports whether both buffers are empty.
func (ev *Events[T]) IsEmpty() bool {
	return len(ev.current) == 0 && len(ev.previous) == 0
}

// Len returns the total number of readable events.
func (ev *Events[T]) Len() int {
	return len(ev.current) + len(ev.previous)
}

// Clear drops all events from both buffers.
func (ev *Events[T]) Clear() {
	ev.current = ev.current[:0]
	ev.previous = ev.previous[:0]
}

// AddEvent registers the event type T with the world by inserting an empty
// Events[T] resource. Idempotent.
func AddEvent[T any](w *World) {
	if HasResource[Events[T]](w) {
		return
	}
	InsertResource(w, Events[T]{})
}

// EventUpdateSystem advances the Events[T] double buffer. Schedule it before
// the systems that send events of type T so that last tick's events remain
// readable exactly one extra tick.
type EventUpdateSystem[T any] struct{}

// Run implements System.
func (EventUpdateSystem[T]) Run(ctx *SystemContext) any {
	events := &ResMut[Events[T]]{}
	ctx.Lock(events).Execute(func() {
		events.Get().Update()
	})
	return nil
}
