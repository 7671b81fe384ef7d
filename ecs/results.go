package ecs

import (
	"reflect"
	"sync"

	"github.com/df-mc/lattice/internal/sysid"
)

// resultsTable holds the per-tick system results. Slots are keyed by system
// index in the compiled schedule and cleared at the start of the next run.
type resultsTable struct {
	mu   sync.RWMutex
	vals []any
	ran  []bool
}

func newResultsTable(n int) *resultsTable {
	return &resultsTable{vals: make([]any, n), ran: make([]bool, n)}
}

func (r *resultsTable) reset(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.vals) != n {
		r.vals = make([]any, n)
		r.ran = make([]bool, n)
		return
	}
	for i := range r.vals {
		r.vals[i] = nil
		r.ran[i] = false
	}
}

func (r *resultsTable) store(idx int, val any, ran bool) {
	r.mu.Lock()
	r.vals[idx] = val
	r.ran[idx] = ran
	r.mu.Unlock()
}

func (r *resultsTable) load(idx int) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vals[idx], r.ran[idx]
}

// ResultOf returns the result the system of type S produced earlier this
// tick. S must be a declared ancestor of the calling system: reading the
// result of a system that is not reachable through dependency edges panics,
// as the value would be racy and the read a programmer error.
//
// Results live only for the duration of the tick. A system that needs to
// keep one must copy it into a resource during its own body.
func ResultOf[S System](ctx *SystemContext) any {
	t := reflect.TypeFor[S]()
	idx, ok := ctx.sched.index[t]
	if !ok {
		panic("lattice/ecs: system " + sysid.TypeName(t) + " is not part of the schedule")
	}
	if _, accessible := ctx.sched.ancestors[ctx.idx][idx]; !accessible {
		panic("lattice/ecs: result of " + sysid.TypeName(t) + " is not accessible from " + ctx.sched.names[ctx.idx])
	}
	val, _ := ctx.results.load(idx)
	return val
}
