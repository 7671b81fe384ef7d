package ecs

import (
	"errors"
	"strings"
	"testing"
)

type sysA struct{}

func (sysA) Run(*SystemContext) any { return nil }

type sysB struct{}

func (sysB) Run(*SystemContext) any { return nil }

type sysC struct{}

func (sysC) Run(*SystemContext) any { return nil }

func TestCompileOrdersByEdges(t *testing.T) {
	c := NewSystemsContainer()
	c.Add(sysC{})
	c.Add(sysB{})
	c.Add(sysA{})
	AddEdge[sysA, sysB](c)
	AddEdge[sysB, sysC](c)

	sched, err := c.compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	pos := make(map[string]int)
	for at, i := range sched.order {
		pos[sched.names[i]] = at
	}
	a, b, cc := pos[sched.names[2]], pos[sched.names[1]], pos[sched.names[0]]
	if !(a < b && b < cc) {
		t.Fatalf("expected A before B before C, got order %v", sched.order)
	}
}

func TestCompileDetectsCycle(t *testing.T) {
	c := NewSystemsContainer()
	c.Add(sysA{})
	c.Add(sysB{})
	AddEdge[sysA, sysB](c)
	AddEdge[sysB, sysA](c)

	_, err := c.compile()
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Systems) != 2 {
		t.Fatalf("expected both systems named, got %v", cycle.Systems)
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("unhelpful error message: %v", err)
	}
}

func TestAncestorsAreTransitive(t *testing.T) {
	c := NewSystemsContainer()
	c.Add(sysA{})
	c.Add(sysB{})
	c.Add(sysC{})
	AddEdge[sysA, sysB](c)
	AddEdge[sysB, sysC](c)

	sched, err := c.compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	idxA, idxC := 0, 2
	if _, ok := sched.ancestors[idxC][idxA]; !ok {
		t.Fatalf("expected A to be a transitive ancestor of C")
	}
	if _, ok := sched.ancestors[idxA][idxC]; ok {
		t.Fatalf("C must not be an ancestor of A")
	}
}

func TestDuplicateSystemPanics(t *testing.T) {
	c := NewSystemsContainer()
	c.Add(sysA{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when adding the same system type twice")
		}
	}()
	c.Add(sysA{})
}

func TestUnknownEdgePanics(t *testing.T) {
	c := NewSystemsContainer()
	c.Add(sysA{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for an edge to an unknown system")
		}
	}()
	AddEdge[sysA, sysB](c)
}

func TestCompileCachedUntilMutation(t *testing.T) {
	c := NewSystemsContainer()
	c.Add(sysA{})
	first, err := c.compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, _ := c.compile()
	if first != second {
		t.Fatalf("expected cached schedule to be reused")
	}
	c.Add(sysB{})
	third, _ := c.compile()
	if third == first {
		t.Fatalf("expected recompilation after mutation")
	}
	if len(third.systems) != 2 {
		t.Fatalf("expected 2 systems in recompiled schedule")
	}
}

func TestSystemIDsStable(t *testing.T) {
	c1 := NewSystemsContainer()
	c1.Add(sysA{})
	c2 := NewSystemsContainer()
	c2.Add(sysA{})
	s1, _ := c1.compile()
	s2, _ := c2.compile()
	if s1.ids[0] != s2.ids[0] {
		t.Fatalf("system id not stable across containers: %d != %d", s1.ids[0], s2.ids[0])
	}
}
