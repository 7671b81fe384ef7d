package ecs

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df-mc/lattice/ecs/compute"
)

// Runner executes a compiled systems container against a world, once per
// call to Run. Two implementations exist: SingleThread runs systems in
// topological order on the calling goroutine; MultiThread schedules
// independent systems onto a worker pool while the calling goroutine services
// main-thread lock requests.
type Runner interface {
	// Run executes one tick: trigger rotation, all systems, deferred
	// commands, a compute-pool drive and the observer flush. It returns an
	// error if the container fails to compile.
	Run(w *World, c *SystemsContainer) error
	// Compute returns the runner's compute pool.
	Compute() *compute.Pool
	// GracefulShutdown drains the compute pool within the budget.
	GracefulShutdown(budget time.Duration) compute.ShutdownResult
	// TPS returns the tick rate the runner sustained recently.
	TPS() float64
}

const (
	tpsSampleSize       = 20
	tpsWarnRatio        = 0.95
	runnerLabelSingle   = "single"
	runnerLabelParallel = "multi"
)

// runnerCore carries the state shared between the two runner flavours.
type runnerCore struct {
	log     *slog.Logger
	pool    *compute.Pool
	metrics metricsSink
	results *resultsTable
	tracker tpsTracker
	label   string
}

func newRunnerCore(c RunnerConfig, label string) runnerCore {
	return runnerCore{
		log:     c.Log,
		pool:    compute.NewPool(),
		metrics: newMetricsSink(c.Metrics),
		results: newResultsTable(0),
		label:   label,
	}
}

// Compute returns the runner's compute pool.
func (r *runnerCore) Compute() *compute.Pool {
	return r.pool
}

// GracefulShutdown drains the compute pool within the budget.
func (r *runnerCore) GracefulShutdown(budget time.Duration) compute.ShutdownResult {
	res := r.pool.GracefulShutdown(budget)
	if res.TimedOut {
		r.log.Warn("compute pool drain timed out", "remaining", res.Remaining)
	}
	return res
}

// TPS returns the tick rate the runner sustained over its recent sample
// window.
func (r *runnerCore) TPS() float64 {
	return r.tracker.tps()
}

// finishTick is the per-tick epilogue shared by both runners: commands apply
// first, the compute pool is driven once, then observers flush so that this
// tick's mutations land in the trigger buffers read next tick.
func (r *runnerCore) finishTick(w *World, commands *CommandCollector, start time.Time, ran, skipped int, targetTPS float64) {
	failed := w.ApplyCommands(commands)
	r.pool.TickAll()
	w.FlushObservers()

	d := time.Since(start)
	r.metrics.observeTick(r.label, d, ran, skipped)
	r.metrics.addCommandFailures(r.label, failed)
	r.metrics.setComputePending(r.label, r.pool.PendingCount())
	r.tracker.observe(d, targetTPS, r.log)
}

// tpsTracker averages tick durations over consecutive windows of
// tpsSampleSize ticks, exposing the averaged tick rate and warning once when
// it drops below tpsWarnRatio of the configured target.
type tpsTracker struct {
	mu     sync.Mutex
	sum    time.Duration
	count  int
	warned bool
	rate   atomic.Uint64
}

func (t *tpsTracker) observe(d time.Duration, target float64, log *slog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sum += d
	t.count++
	if t.count < tpsSampleSize {
		return
	}
	avg := t.sum / time.Duration(t.count)
	t.sum, t.count = 0, 0
	if avg <= 0 {
		t.rate.Store(math.Float64bits(0))
		return
	}
	tps := 1.0 / avg.Seconds()
	t.rate.Store(math.Float64bits(tps))
	if target > 0 {
		if tps < target*tpsWarnRatio {
			if !t.warned {
				log.Warn("TPS dropped below target.", "tps", tps, "target", target)
				t.warned = true
			}
		} else if t.warned {
			t.warned = false
		}
	}
}

func (t *tpsTracker) tps() float64 {
	return math.Float64frombits(t.rate.Load())
}
