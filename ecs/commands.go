package ecs

import "sync"

// Command is a deferred mutation of the world. Commands are queued during a
// tick and applied by the runner after every system has returned. A command
// returning an error is logged and skipped, never re-queued.
type Command func(*World) error

// CommandCollector is a thread-safe FIFO bag of deferred commands. Commands
// apply in the order they were queued; across systems the order is the order
// in which the queueing calls returned.
type CommandCollector struct {
	mu   sync.Mutex
	cmds []Command
}

// NewCommandCollector creates an empty collector.
func NewCommandCollector() *CommandCollector {
	return &CommandCollector{}
}

// Queue appends a command.
func (c *CommandCollector) Queue(cmd Command) {
	c.mu.Lock()
	c.cmds = append(c.cmds, cmd)
	c.mu.Unlock()
}

// Len returns the number of queued commands.
func (c *CommandCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cmds)
}

// drain removes and returns all queued commands.
func (c *CommandCollector) drain() []Command {
	c.mu.Lock()
	cmds := c.cmds
	c.cmds = nil
	c.mu.Unlock()
	return cmds
}

// QueueInsert queues insertion of a component value on an entity. Inserting
// on an entity that is dead by the time commands apply fails the command.
func QueueInsert[T any](ctx *SystemContext, e Entity, value T) {
	ctx.commands.Queue(func(w *World) error {
		return Insert(w, e, value)
	})
}

// QueueRemove queues removal of the component of type T from an entity.
func QueueRemove[T any](ctx *SystemContext, e Entity) {
	ctx.commands.Queue(func(w *World) error {
		Remove[T](w, e)
		return nil
	})
}

// QueueDespawn queues despawning of an entity. Despawning a dead entity is a
// no-op, so the command never fails.
func (ctx *SystemContext) QueueDespawn(e Entity) {
	ctx.commands.Queue(func(w *World) error {
		w.Despawn(e)
		return nil
	})
}

// QueueSpawn queues spawning of a fresh entity. Prefer SpawnEntity when the
// handle is needed during the tick.
func (ctx *SystemContext) QueueSpawn() {
	ctx.commands.Queue(func(w *World) error {
		w.Spawn()
		return nil
	})
}
