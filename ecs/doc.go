// Package ecs implements the engine's entity-component-system runtime:
// sparse-set component storages behind per-type RwLocks, generational entity
// handles with slot recycling, typed singleton resources, dependency-ordered
// system scheduling on one or many threads, deferred structural commands and
// reactive triggers fed by component lifecycle observers.
//
// Systems borrow data through access markers composed into a single lock
// request per critical section:
//
//	pos := &ecs.Write[Position]{}
//	vel := &ecs.Read[Velocity]{}
//	ctx.Lock(pos, vel).Execute(func() {
//		vel.Each(func(e ecs.Entity, v Velocity) bool {
//			if p, ok := pos.Get(e); ok {
//				p.X += v.X
//			}
//			return true
//		})
//	})
//
// Locks are acquired in a canonical order derived from the component type,
// and the executed closure is a plain function, so no lock is ever held
// across a suspension point and cross-system deadlock is structurally
// impossible.
package ecs
