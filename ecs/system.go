package ecs

// System is a unit of per-tick work scheduled by a runner. Systems borrow
// component and resource data through ctx.Lock, queue structural mutations
// through ctx.Commands and may spawn compute tasks through ctx.Compute.
//
// The returned value is the system's result for the tick. It is stored in the
// per-tick results table and may be read, during the same tick, by systems
// that declared a dependency edge on this one. Systems without a meaningful
// result return nil.
//
// A system's identity is its Go type: each concrete type may be added to a
// container once, and dependency edges are declared between types.
type System interface {
	Run(ctx *SystemContext) any
}

// Condition is the result type of condition systems. A system whose
// predecessor is a condition that produced Condition(false) is skipped for
// the tick, together with its own reactive successors.
type Condition bool
