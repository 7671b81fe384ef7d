package ecs

import (
	"reflect"
	"strings"
	"sync"

	"github.com/df-mc/lattice/internal/sysid"
)

// SystemsContainer registers systems and the dependency edges between them.
// Compilation produces a topological order for the single-threaded runner and
// predecessor/successor sets for the multi-threaded one; it is performed
// lazily on the first Run after a mutation.
type SystemsContainer struct {
	mu        sync.Mutex
	systems   []System
	names     []string
	ids       []uint64
	index     map[reflect.Type]int
	succ      [][]int
	pred      [][]int
	edgeSet   map[[2]int]struct{}
	condition []bool
	compiled  *schedule
}

// NewSystemsContainer creates an empty container.
func NewSystemsContainer() *SystemsContainer {
	return &SystemsContainer{
		index:   make(map[reflect.Type]int),
		edgeSet: make(map[[2]int]struct{}),
	}
}

// Add registers a system. Each concrete system type may be added once; adding
// a second value of the same type panics.
func (c *SystemsContainer) Add(s System) {
	c.add(s, false)
}

// AddCondition registers a condition system: one whose result is a Condition.
// Downstream systems connected by an edge from a condition only run on ticks
// where the condition produced true.
func (c *SystemsContainer) AddCondition(s System) {
	c.add(s, true)
}

func (c *SystemsContainer) add(s System, cond bool) {
	t := reflect.TypeOf(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[t]; ok {
		panic("lattice/ecs: system " + sysid.TypeName(t) + " already added")
	}
	name := sysid.TypeName(t)
	c.index[t] = len(c.systems)
	c.systems = append(c.systems, s)
	c.names = append(c.names, name)
	c.ids = append(c.ids, sysid.OfName(name))
	c.succ = append(c.succ, nil)
	c.pred = append(c.pred, nil)
	c.condition = append(c.condition, cond)
	c.compiled = nil
}

// AddEdge declares that the system of type A must complete before the system
// of type B starts. Both systems must already be added; unknown systems
// panic. Cycles are detected at compile time and reported by Run.
func AddEdge[A, B System](c *SystemsContainer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.mustIndex(reflect.TypeFor[A]())
	to := c.mustIndex(reflect.TypeFor[B]())
	key := [2]int{from, to}
	if _, ok := c.edgeSet[key]; ok {
		return
	}
	c.edgeSet[key] = struct{}{}
	c.succ[from] = append(c.succ[from], to)
	c.pred[to] = append(c.pred[to], from)
	c.compiled = nil
}

// Len returns the number of registered systems.
func (c *SystemsContainer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.systems)
}

func (c *SystemsContainer) mustIndex(t reflect.Type) int {
	idx, ok := c.index[t]
	if !ok {
		panic("lattice/ecs: system " + sysid.TypeName(t) + " is not in the container")
	}
	return idx
}

// CycleError reports a dependency cycle between systems, naming the systems
// involved.
type CycleError struct {
	Systems []string
}

func (e *CycleError) Error() string {
	return "systems container has a dependency cycle involving: " + strings.Join(e.Systems, ", ")
}

// schedule is the compiled form of a container consumed by runners.
type schedule struct {
	systems   []System
	names     []string
	ids       []uint64
	index     map[reflect.Type]int
	condition []bool
	order     []int
	pred      [][]int
	succ      [][]int
	indegree  []int
	// ancestors[i] is the transitive set of systems whose results system i
	// may read.
	ancestors []map[int]struct{}
}

// compile produces (and caches) the schedule, detecting cycles.
func (c *SystemsContainer) compile() (*schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compiled != nil {
		return c.compiled, nil
	}
	n := len(c.systems)
	indegree := make([]int, n)
	for i := range c.pred {
		indegree[i] = len(c.pred[i])
	}

	// Kahn's algorithm. Ready systems are taken in registration order so the
	// single-threaded order is deterministic across runs.
	remaining := append([]int(nil), indegree...)
	order := make([]int, 0, n)
	ready := make([]int, 0, n)
	for i := range remaining {
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, s := range c.succ[i] {
			remaining[s]--
			if remaining[s] == 0 {
				ready = append(ready, s)
			}
		}
	}
	if len(order) != n {
		var involved []string
		for i, r := range remaining {
			if r > 0 {
				involved = append(involved, c.names[i])
			}
		}
		return nil, &CycleError{Systems: involved}
	}

	ancestors := make([]map[int]struct{}, n)
	for _, i := range order {
		anc := make(map[int]struct{})
		for _, p := range c.pred[i] {
			anc[p] = struct{}{}
			for pp := range ancestors[p] {
				anc[pp] = struct{}{}
			}
		}
		ancestors[i] = anc
	}

	index := make(map[reflect.Type]int, n)
	for t, i := range c.index {
		index[t] = i
	}
	c.compiled = &schedule{
		systems:   append([]System(nil), c.systems...),
		names:     append([]string(nil), c.names...),
		ids:       append([]uint64(nil), c.ids...),
		index:     index,
		condition: append([]bool(nil), c.condition...),
		order:     order,
		pred:      deepCopy(c.pred),
		succ:      deepCopy(c.succ),
		indegree:  indegree,
		ancestors: ancestors,
	}
	return c.compiled, nil
}

func deepCopy(in [][]int) [][]int {
	out := make([][]int, len(in))
	for i, s := range in {
		out[i] = append([]int(nil), s...)
	}
	return out
}

// gatedOff reports whether system i must be skipped this tick because one of
// its condition predecessors did not produce Condition(true). A skipped
// condition counts as false, so reactive chains stay off together.
func (s *schedule) gatedOff(i int, results *resultsTable) bool {
	for _, p := range s.pred[i] {
		if !s.condition[p] {
			continue
		}
		val, ran := results.load(p)
		if !ran {
			return true
		}
		cond, ok := val.(Condition)
		if !ok || !bool(cond) {
			return true
		}
	}
	return false
}
