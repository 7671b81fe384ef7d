package ecs

import "github.com/df-mc/lattice/internal/sysid"

// LockRequest is a pending request for a set of component and resource
// accesses. Created by SystemContext.Lock; Execute runs a closure with every
// marker bound to its locked data.
type LockRequest struct {
	ctx        *SystemContext
	accs       []Access
	infos      []accessInfo
	mainThread bool
}

// Lock builds a lock request over the given access markers. Requesting the
// same type twice in one set is forbidden and panics at construction.
func (ctx *SystemContext) Lock(accs ...Access) *LockRequest {
	infos := make([]accessInfo, 0, len(accs))
	mainThread := false
	for _, acc := range accs {
		info := acc.accessInfo()
		for _, prev := range infos {
			if prev.typ == info.typ && prev.resource == info.resource {
				panic("lattice/ecs: duplicate access to " + sysid.TypeName(info.typ) + " in one lock request")
			}
		}
		infos = append(infos, info)
		mainThread = mainThread || info.mainThread
	}
	sortAccessInfos(infos)
	return &LockRequest{ctx: ctx, accs: accs, infos: infos, mainThread: mainThread}
}

// Execute acquires the requested locks in canonical order, binds the markers
// and runs f synchronously. Locks are released when f returns. The closure
// cannot suspend, so no lock is ever held across a suspension point.
//
// If any marker requires the main thread, the whole closure is transparently
// dispatched to the runner's main-thread service loop and Execute blocks
// until it has run there.
func (l *LockRequest) Execute(f func()) {
	l.ctx.registerHeld(l.infos)
	defer l.ctx.releaseHeld(l.infos)

	if l.mainThread && l.ctx.dispatch != nil {
		l.runOnMainThread(f)
		return
	}
	l.runLocal(f)
}

func (l *LockRequest) runLocal(f func()) {
	release := l.ctx.world.acquireSorted(l.infos)
	defer release()
	for _, acc := range l.accs {
		acc.bind(l.ctx.world)
	}
	defer func() {
		for _, acc := range l.accs {
			acc.unbind()
		}
	}()
	f()
}

// runOnMainThread packages the closure for the main-thread service loop and
// blocks on its completion. A panic inside the closure is carried back and
// re-raised on the calling goroutine so the service loop survives.
func (l *LockRequest) runOnMainThread(f func()) {
	done := make(chan any, 1)
	l.ctx.dispatch.submit(func() {
		var panicked any
		func() {
			defer func() {
				panicked = recover()
			}()
			l.runLocal(f)
		}()
		done <- panicked
	})
	if panicked := <-done; panicked != nil {
		panic(panicked)
	}
}
