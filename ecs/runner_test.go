package ecs

import (
	"sync/atomic"
	"testing"
)

type moveSystem struct{}

func (moveSystem) Run(ctx *SystemContext) any {
	pos := &Write[position]{}
	vel := &Read[velocity]{}
	ctx.Lock(pos, vel).Execute(func() {
		vel.Each(func(e Entity, v velocity) bool {
			if p, ok := pos.Get(e); ok {
				p.x += v.x
			}
			return true
		})
	})
	return nil
}

type tickCounter struct {
	n *atomic.Int32
}

func (s tickCounter) Run(*SystemContext) any {
	s.n.Add(1)
	return nil
}

type counterRes struct {
	n int
}

type setCounter struct{}

func (setCounter) Run(ctx *SystemContext) any {
	c := &ResMut[counterRes]{}
	ctx.Lock(c).Execute(func() {
		c.Get().n = 1
	})
	return nil
}

type bumpCounter struct{}

func (bumpCounter) Run(ctx *SystemContext) any {
	c := &ResMut[counterRes]{}
	ctx.Lock(c).Execute(func() {
		if c.Get().n == 1 {
			c.Get().n = 2
		} else {
			c.Get().n = -1
		}
	})
	return nil
}

type spawner struct{}

func (spawner) Run(ctx *SystemContext) any {
	ctx.SpawnEntity().With(health{value: 100}).Build()
	return nil
}

func runMovementScenario(t *testing.T, runner Runner) {
	t.Helper()
	w := NewWorld()
	RegisterComponent[position](w)
	RegisterComponent[velocity](w)
	e := w.Spawn()
	Insert(w, e, position{x: 10})
	Insert(w, e, velocity{x: 5})

	c := NewSystemsContainer()
	c.Add(moveSystem{})
	if err := runner.Run(w, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	if v, ok := Get[position](w, e); !ok || v.x != 15 {
		t.Fatalf("expected position 15, got %v (ok=%v)", v, ok)
	}
}

func TestMovementSingleThread(t *testing.T) {
	runMovementScenario(t, SingleThread(RunnerConfig{}))
}

func TestMovementMultiThread(t *testing.T) {
	runMovementScenario(t, MultiThread(RunnerConfig{Workers: 4}))
}

func runEdgeOrderingScenario(t *testing.T, runner Runner) {
	t.Helper()
	w := NewWorld()
	InsertResource(w, counterRes{})

	c := NewSystemsContainer()
	c.Add(setCounter{})
	c.Add(bumpCounter{})
	AddEdge[setCounter, bumpCounter](c)
	if err := runner.Run(w, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	ViewResource(w, func(c *counterRes) {
		if c.n != 2 {
			t.Fatalf("expected counter 2, got %d", c.n)
		}
	})
}

func TestEdgeOrderingSingleThread(t *testing.T) {
	runEdgeOrderingScenario(t, SingleThread(RunnerConfig{}))
}

func TestEdgeOrderingMultiThread(t *testing.T) {
	runEdgeOrderingScenario(t, MultiThread(RunnerConfig{Workers: 4}))
}

func TestDeferredSpawn(t *testing.T) {
	w := NewWorld()
	RegisterComponent[health](w)

	c := NewSystemsContainer()
	c.Add(spawner{})
	runner := SingleThread(RunnerConfig{})
	if err := runner.Run(w, c); err != nil {
		t.Fatalf("run: %v", err)
	}

	_, st := storeOf[health](w)
	if st.Len() != 1 {
		t.Fatalf("expected one entity with health, got %d", st.Len())
	}
	st.Iter(func(index uint32, v health) bool {
		if v.value != 100 {
			t.Fatalf("expected health 100, got %d", v.value)
		}
		e, ok := w.alloc.handleAt(index)
		if !ok || !w.Alive(e) {
			t.Fatalf("spawned entity not alive")
		}
		return true
	})
}

func TestEmptyContainerRunIsNoOp(t *testing.T) {
	w := NewWorld()
	c := NewSystemsContainer()
	runner := MultiThread(RunnerConfig{})
	for i := 0; i < 3; i++ {
		if err := runner.Run(w, c); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
}

func TestSystemRunsOncePerRun(t *testing.T) {
	w := NewWorld()
	n := &atomic.Int32{}
	c := NewSystemsContainer()
	c.Add(tickCounter{n: n})
	runner := SingleThread(RunnerConfig{})
	runner.Run(w, c)
	runner.Run(w, c)
	if got := n.Load(); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}
}

func TestRunReturnsCycleError(t *testing.T) {
	w := NewWorld()
	c := NewSystemsContainer()
	c.Add(sysA{})
	c.Add(sysB{})
	AddEdge[sysA, sysB](c)
	AddEdge[sysB, sysA](c)
	runner := SingleThread(RunnerConfig{})
	if err := runner.Run(w, c); err == nil {
		t.Fatalf("expected cycle error from run")
	}
}

type fifoRes struct {
	order []int
}

type fifoSystem struct{}

func (fifoSystem) Run(ctx *SystemContext) any {
	ctx.Commands(func(w *World) {
		EditResource(w, func(r *fifoRes) { r.order = append(r.order, 1) })
	})
	ctx.Commands(func(w *World) {
		EditResource(w, func(r *fifoRes) { r.order = append(r.order, 2) })
	})
	return nil
}

func TestCommandsApplyInFIFOOrder(t *testing.T) {
	w := NewWorld()
	InsertResource(w, fifoRes{})
	c := NewSystemsContainer()
	c.Add(fifoSystem{})
	runner := SingleThread(RunnerConfig{})
	if err := runner.Run(w, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	ViewResource(w, func(r *fifoRes) {
		if len(r.order) != 2 || r.order[0] != 1 || r.order[1] != 2 {
			t.Fatalf("expected FIFO order [1 2], got %v", r.order)
		}
	})
}

type deadInserter struct{}

func (deadInserter) Run(ctx *SystemContext) any {
	e := ctx.SpawnEntity().Build()
	ctx.QueueDespawn(e)
	// Queued after the despawn, so it targets a dead entity at apply time
	// and must be dropped.
	QueueInsert(ctx, e, health{value: 1})
	return nil
}

func TestDeadEntityCommandDropped(t *testing.T) {
	w := NewWorld()
	RegisterComponent[health](w)
	c := NewSystemsContainer()
	c.Add(deadInserter{})
	runner := SingleThread(RunnerConfig{})
	if err := runner.Run(w, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	_, st := storeOf[health](w)
	if st.Len() != 0 {
		t.Fatalf("insert on dead entity must be dropped, storage has %d entries", st.Len())
	}
}

type panicky struct{}

func (panicky) Run(*SystemContext) any {
	panic("boom")
}

func TestSystemPanicReRaisedSingleThread(t *testing.T) {
	w := NewWorld()
	c := NewSystemsContainer()
	c.Add(panicky{})
	runner := SingleThread(RunnerConfig{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected system panic to propagate")
		}
	}()
	runner.Run(w, c)
}

func TestSystemPanicReRaisedMultiThread(t *testing.T) {
	w := NewWorld()
	n := &atomic.Int32{}
	c := NewSystemsContainer()
	c.Add(panicky{})
	c.Add(tickCounter{n: n})
	runner := MultiThread(RunnerConfig{Workers: 2})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected system panic to propagate")
		}
	}()
	runner.Run(w, c)
}

type winHandle struct {
	frames int
}

type mainThreadSystem struct{}

func (mainThreadSystem) Run(ctx *SystemContext) any {
	win := &MainThreadResMut[winHandle]{}
	ctx.Lock(win).Execute(func() {
		win.Get().frames++
	})
	return nil
}

func TestMainThreadDispatchMultiThread(t *testing.T) {
	w := NewWorld()
	InsertResource(w, winHandle{})
	c := NewSystemsContainer()
	c.Add(mainThreadSystem{})
	runner := MultiThread(RunnerConfig{Workers: 2})
	for i := 0; i < 3; i++ {
		if err := runner.Run(w, c); err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	ViewResource(w, func(h *winHandle) {
		if h.frames != 3 {
			t.Fatalf("expected 3 frames, got %d", h.frames)
		}
	})
}

type producerA struct{}

func (producerA) Run(*SystemContext) any {
	return "transit"
}

type passB struct{}

func (passB) Run(*SystemContext) any { return nil }

type resultSink struct {
	val any
}

type consumerC struct{}

func (consumerC) Run(ctx *SystemContext) any {
	got := ResultOf[producerA](ctx)
	sink := &ResMut[resultSink]{}
	ctx.Lock(sink).Execute(func() {
		sink.Get().val = got
	})
	return nil
}

func runResultScenario(t *testing.T, runner Runner) {
	t.Helper()
	w := NewWorld()
	InsertResource(w, resultSink{})
	c := NewSystemsContainer()
	c.Add(producerA{})
	c.Add(passB{})
	c.Add(consumerC{})
	AddEdge[producerA, passB](c)
	AddEdge[passB, consumerC](c)
	if err := runner.Run(w, c); err != nil {
		t.Fatalf("run: %v", err)
	}
	ViewResource(w, func(s *resultSink) {
		if s.val != "transit" {
			t.Fatalf("expected transitive result %q, got %v", "transit", s.val)
		}
	})
}

func TestTransitiveResultAccessSingleThread(t *testing.T) {
	runResultScenario(t, SingleThread(RunnerConfig{}))
}

func TestTransitiveResultAccessMultiThread(t *testing.T) {
	runResultScenario(t, MultiThread(RunnerConfig{Workers: 4}))
}

type illegalReader struct{}

func (illegalReader) Run(ctx *SystemContext) any {
	return ResultOf[producerA](ctx)
}

func TestResultOfNonDependencyPanics(t *testing.T) {
	w := NewWorld()
	c := NewSystemsContainer()
	c.Add(producerA{})
	c.Add(illegalReader{})
	// No edge: reading producerA's result from illegalReader is forbidden.
	runner := SingleThread(RunnerConfig{})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for inaccessible result")
		}
	}()
	runner.Run(w, c)
}
