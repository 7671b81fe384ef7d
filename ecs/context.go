package ecs

import (
	"log/slog"
	"sync"

	"github.com/df-mc/lattice/ecs/compute"
	"github.com/df-mc/lattice/internal/sysid"
)

// SystemContext binds a running system to the world, the runner's compute
// pool and the tick's command collector. A fresh context is constructed for
// every system invocation; it additionally tracks which locks the system
// currently holds so that re-entrant lock requests are caught instead of
// deadlocking.
type SystemContext struct {
	world    *World
	compute  *compute.Pool
	commands *CommandCollector
	dispatch *mainThreadDispatcher
	results  *resultsTable
	sched    *schedule
	idx      int
	log      *slog.Logger

	heldMu sync.Mutex
	held   map[uint64]accessInfo
}

func newSystemContext(w *World, pool *compute.Pool, commands *CommandCollector, dispatch *mainThreadDispatcher, results *resultsTable, sched *schedule, idx int, log *slog.Logger) *SystemContext {
	return &SystemContext{
		world:    w,
		compute:  pool,
		commands: commands,
		dispatch: dispatch,
		results:  results,
		sched:    sched,
		idx:      idx,
		log:      log,
		held:     make(map[uint64]accessInfo),
	}
}

// Compute returns the runner's compute pool for spawning cooperative tasks.
func (ctx *SystemContext) Compute() *compute.Pool {
	return ctx.compute
}

// Commands queues a deferred mutation of the world, applied by the runner
// after all systems of the tick have returned.
func (ctx *SystemContext) Commands(f func(*World)) {
	ctx.commands.Queue(func(w *World) error {
		f(w)
		return nil
	})
}

// Alive reports whether the handle refers to a live entity.
func (ctx *SystemContext) Alive(e Entity) bool {
	return ctx.world.Alive(e)
}

// Clock returns the world's current mutation clock.
func (ctx *SystemContext) Clock() uint64 {
	return ctx.world.Clock()
}

// Log returns the logger of the running system.
func (ctx *SystemContext) Log() *slog.Logger {
	return ctx.log
}

// SpawnEntity allocates an entity immediately and returns a builder that
// attaches components to it through a single deferred command.
func (ctx *SystemContext) SpawnEntity() *EntityBuilder {
	return &EntityBuilder{ctx: ctx, entity: ctx.world.Spawn()}
}

// EntityBuilder attaches components to a freshly spawned entity. The handle
// exists as soon as SpawnEntity returns; the components are inserted together
// when the tick's commands apply.
type EntityBuilder struct {
	ctx    *SystemContext
	entity Entity
	comps  []any
	built  bool
}

// With adds a component value to attach. The value's dynamic type must be a
// registered component type.
func (b *EntityBuilder) With(value any) *EntityBuilder {
	b.comps = append(b.comps, value)
	return b
}

// Build queues the component attachment and returns the entity handle.
func (b *EntityBuilder) Build() Entity {
	if b.built {
		panic("lattice/ecs: entity builder used twice")
	}
	b.built = true
	entity, comps := b.entity, b.comps
	b.ctx.commands.Queue(func(w *World) error {
		for _, comp := range comps {
			if err := w.insertErased(entity, comp); err != nil {
				return err
			}
		}
		return nil
	})
	return entity
}

// registerHeld records the locks of a request, panicking on re-entrance: a
// nested lock request would acquire outside the canonical order and could
// deadlock against other systems.
func (ctx *SystemContext) registerHeld(infos []accessInfo) {
	ctx.heldMu.Lock()
	defer ctx.heldMu.Unlock()
	if len(ctx.held) > 0 {
		name := "?"
		if len(infos) > 0 {
			name = sysid.TypeName(infos[0].typ)
		}
		panic("lattice/ecs: re-entrant lock request for " + name + " in system " + ctx.name() + "; compose all accesses into one Lock call")
	}
	for _, info := range infos {
		ctx.held[info.key] = info
	}
}

func (ctx *SystemContext) releaseHeld(infos []accessInfo) {
	ctx.heldMu.Lock()
	defer ctx.heldMu.Unlock()
	for _, info := range infos {
		delete(ctx.held, info.key)
	}
}

func (ctx *SystemContext) name() string {
	if ctx.sched == nil || ctx.idx < 0 || ctx.idx >= len(ctx.sched.names) {
		return "<detached>"
	}
	return ctx.sched.names[ctx.idx]
}
