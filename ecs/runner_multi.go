package ecs

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// MultiThreadRunner schedules independent systems onto a pool of worker
// goroutines. Systems run to completion on one worker; lock contention
// between them is real RwLock blocking. The goroutine calling Run acts as the
// main thread, servicing main-thread lock requests until the tick completes.
type MultiThreadRunner struct {
	runnerCore
	workers   int
	deadline  time.Duration
	targetTPS float64
}

// MultiThread creates a multi-threaded runner using the configuration.
func MultiThread(c RunnerConfig) *MultiThreadRunner {
	c = c.withDefaults()
	return &MultiThreadRunner{
		runnerCore: newRunnerCore(c, runnerLabelParallel),
		workers:    c.Workers,
		deadline:   c.TickDeadline,
		targetTPS:  c.TargetTPS,
	}
}

// Run implements Runner. A panic raised by a system is re-raised here once
// the other workers have finished their in-flight systems; the tick's
// commands are not applied, but the world stays consistent because all lock
// guards release normally during unwinding.
func (r *MultiThreadRunner) Run(w *World, c *SystemsContainer) error {
	sched, err := c.compile()
	if err != nil {
		return err
	}
	start := time.Now()
	n := len(sched.systems)
	r.results.reset(n)
	w.UpdateTriggers()
	commands := NewCommandCollector()
	if n == 0 {
		r.finishTick(w, commands, start, 0, 0, r.targetTPS)
		return nil
	}

	dispatch := newMainThreadDispatcher()
	st := newRunState(sched, r.results)
	if r.deadline > 0 {
		st.deadline = start.Add(r.deadline)
	}
	for _, i := range sched.order {
		if sched.indegree[i] == 0 {
			st.ready <- i
		}
	}

	workers := min(r.workers, n)
	var eg errgroup.Group
	for k := 0; k < workers; k++ {
		eg.Go(func() error {
			r.runWorker(st, w, commands, dispatch)
			return nil
		})
	}
	dispatch.service(st.done)
	_ = eg.Wait()

	if pv := st.panicValue(); pv != nil {
		panic(pv)
	}
	if unstarted := st.unstartedCount(); unstarted > 0 {
		r.log.Warn("tick deadline exceeded", "unstarted", unstarted)
	}
	ran, skipped := st.counts()
	r.finishTick(w, commands, start, ran, skipped, r.targetTPS)
	return nil
}

func (r *MultiThreadRunner) runWorker(st *runState, w *World, commands *CommandCollector, dispatch *mainThreadDispatcher) {
	for i := range st.ready {
		if st.panicValue() != nil {
			st.finish(i, nil, outcomeSkipped)
			continue
		}
		if !st.deadline.IsZero() && time.Now().After(st.deadline) {
			st.finish(i, nil, outcomeUnstarted)
			continue
		}
		ctx := newSystemContext(w, r.pool, commands, dispatch, r.results, st.sched, i, r.log.With("system", st.sched.names[i]))
		val, pv := runContained(st.sched.systems[i], ctx)
		if pv != nil {
			st.abort(pv)
			st.finish(i, nil, outcomeSkipped)
			continue
		}
		st.finish(i, val, outcomeRan)
	}
}

// runContained runs a system, catching a panic so that it can be re-raised
// on the runner goroutine after the remaining in-flight systems finish.
func runContained(sys System, ctx *SystemContext) (val any, panicked any) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = rec
		}
	}()
	val = sys.Run(ctx)
	return val, nil
}

type outcome uint8

const (
	outcomeRan outcome = iota
	outcomeSkipped
	outcomeUnstarted
)

// runState tracks the per-tick scheduling state of the multi-threaded
// runner: the in-degree copy, the ready queue and completion counting. The
// ready channel receives each system index at most once, so its buffer never
// fills.
type runState struct {
	sched    *schedule
	results  *resultsTable
	ready    chan int
	done     chan struct{}
	deadline time.Time

	mu        sync.Mutex
	remaining []int
	completed int
	ran       int
	skipped   int
	unstarted int
	aborted   any
	n         int
}

func newRunState(sched *schedule, results *resultsTable) *runState {
	n := len(sched.systems)
	return &runState{
		sched:     sched,
		results:   results,
		ready:     make(chan int, n),
		done:      make(chan struct{}),
		remaining: append([]int(nil), sched.indegree...),
		n:         n,
	}
}

// finish marks system i as completed with the given outcome, releases its
// successors and, when a released successor turns out gated off, completes
// the whole gated chain without scheduling it.
func (st *runState) finish(i int, val any, out outcome) {
	st.results.store(i, val, out == outcomeRan)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.count(out)
	stack := []int{i}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range st.sched.succ[cur] {
			st.remaining[s]--
			if st.remaining[s] != 0 {
				continue
			}
			if st.aborted != nil || st.sched.gatedOff(s, st.results) {
				st.results.store(s, nil, false)
				st.count(outcomeSkipped)
				stack = append(stack, s)
				continue
			}
			st.ready <- s
		}
	}
	if st.completed == st.n {
		close(st.ready)
		close(st.done)
	}
}

func (st *runState) count(out outcome) {
	st.completed++
	switch out {
	case outcomeRan:
		st.ran++
	case outcomeSkipped:
		st.skipped++
	case outcomeUnstarted:
		st.unstarted++
	}
}

func (st *runState) abort(pv any) {
	st.mu.Lock()
	if st.aborted == nil {
		st.aborted = pv
	}
	st.mu.Unlock()
}

func (st *runState) panicValue() any {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.aborted
}

func (st *runState) unstartedCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.unstarted
}

func (st *runState) counts() (ran, skipped int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ran, st.skipped + st.unstarted
}
