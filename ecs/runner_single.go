package ecs

import "time"

// SingleThreadRunner executes systems strictly in topological order on the
// calling goroutine. Main-thread lock requests run in place, as the calling
// goroutine is the main thread.
type SingleThreadRunner struct {
	runnerCore
	deadline  time.Duration
	targetTPS float64
}

// SingleThread creates a single-threaded runner using the configuration.
func SingleThread(c RunnerConfig) *SingleThreadRunner {
	c = c.withDefaults()
	return &SingleThreadRunner{
		runnerCore: newRunnerCore(c, runnerLabelSingle),
		deadline:   c.TickDeadline,
		targetTPS:  c.TargetTPS,
	}
}

// Run implements Runner.
func (r *SingleThreadRunner) Run(w *World, c *SystemsContainer) error {
	sched, err := c.compile()
	if err != nil {
		return err
	}
	start := time.Now()
	r.results.reset(len(sched.systems))
	w.UpdateTriggers()
	commands := NewCommandCollector()

	var deadline time.Time
	if r.deadline > 0 {
		deadline = start.Add(r.deadline)
	}
	ran, skipped := 0, 0
	for pos, i := range sched.order {
		if !deadline.IsZero() && time.Now().After(deadline) {
			r.log.Warn("tick deadline exceeded", "unstarted", len(sched.order)-pos)
			skipped += len(sched.order) - pos
			break
		}
		if sched.gatedOff(i, r.results) {
			r.results.store(i, nil, false)
			skipped++
			continue
		}
		ctx := newSystemContext(w, r.pool, commands, nil, r.results, sched, i, r.log.With("system", sched.names[i]))
		val := sched.systems[i].Run(ctx)
		r.results.store(i, val, true)
		ran++
	}

	r.finishTick(w, commands, start, ran, skipped, r.targetTPS)
	return nil
}
