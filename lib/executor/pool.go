package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/riddopic/garcun/lib/atomics"
	"github.com/riddopic/garcun/lib/logging"
	"github.com/riddopic/garcun/lib/syncutil"
)

// pool lifecycle; transitions are one-way: running -> shuttingDown -> stopped
// (Shutdown) or running -> stopped (Kill)
type poolState int

const (
	stateRunning poolState = iota
	stateShuttingDown
	stateStopped
)

// used for default pool names
var poolSeq atomics.Int64

// ThreadPoolExecutor is a worker pool with dynamic growth between
// MinThreads and MaxThreads, idle-worker reclamation and a pluggable
// overflow policy. See the package documentation for the lifecycle.
type ThreadPoolExecutor struct {
	name       string
	minThreads int
	maxThreads int
	idleTime   time.Duration
	maxQueue   int
	fallback   FallbackPolicy
	logger     hclog.Logger

	mu          sync.Mutex
	notEmpty    *syncutil.Condition
	queue       []func()
	state       poolState
	poolSize    int // live workers
	idleCount   int // workers blocked in popTask
	stopSignals int // pending shutdown sentinels, one per worker

	stopped *syncutil.Event

	scheduled     atomics.Int64
	completed     atomics.Int64
	largestLength atomics.Int64

	mScheduled *metrics.Counter
	mCompleted *metrics.Counter
	mRejected  *metrics.Counter
	mPanics    *metrics.Counter
}

// NewThreadPoolExecutor creates a running pool from cfg. Construction fails
// with an ErrInvalidConfig-wrapped error on inconsistent sizing or an
// unknown fallback policy.
func NewThreadPoolExecutor(cfg Config) (*ThreadPoolExecutor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("pool-%d", poolSeq.Increment())
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	p := &ThreadPoolExecutor{
		name:       cfg.Name,
		minThreads: cfg.MinThreads,
		maxThreads: cfg.MaxThreads,
		idleTime:   cfg.IdleTime,
		maxQueue:   cfg.MaxQueue,
		fallback:   cfg.Fallback,
		logger:     cfg.Logger.Named("executor"),
		stopped:    syncutil.NewEvent(),

		mScheduled: metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_executor_tasks_scheduled_total{pool=%q}`, cfg.Name)),
		mCompleted: metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_executor_tasks_completed_total{pool=%q}`, cfg.Name)),
		mRejected:  metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_executor_tasks_rejected_total{pool=%q}`, cfg.Name)),
		mPanics:    metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_executor_task_panics_total{pool=%q}`, cfg.Name)),
	}
	p.notEmpty = syncutil.NewCondition(&p.mu)

	metrics.GetOrCreateGauge(fmt.Sprintf(`garcun_executor_pool_size{pool=%q}`, cfg.Name), func() float64 {
		return float64(p.Length())
	})

	return p, nil
}

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// Post submits a task for asynchronous execution. It returns true if the
// task was accepted. When the queue is saturated or the pool is no longer
// running, the configured fallback policy decides the outcome (see
// FallbackPolicy).
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (p *ThreadPoolExecutor) Post(task func()) (bool, error) {
	if task == nil {
		return false, ErrNilTask
	}

	p.mu.Lock()
	if p.state != stateRunning {
		p.mu.Unlock()
		return p.handleFallback(task)
	}

	// growth policy: always grow below the minimum; above it, grow only when
	// no idle worker is ready to take the task
	grow := p.poolSize < p.minThreads ||
		(p.poolSize < p.maxThreads && p.idleCount == 0)

	if !grow && p.idleCount == 0 && p.maxQueue > 0 && len(p.queue) >= p.maxQueue {
		p.mu.Unlock()
		return p.handleFallback(task)
	}

	p.queue = append(p.queue, task)
	p.scheduled.Increment()
	p.mScheduled.Inc()

	if grow {
		p.poolSize++
		p.largestLength.SetIfGreater(int64(p.poolSize))
		go p.worker()
	} else {
		p.notEmpty.Signal()
	}
	p.mu.Unlock()

	return true, nil
}

// handleFallback applies the overflow policy to a task the pool could not
// accept.
func (p *ThreadPoolExecutor) handleFallback(task func()) (bool, error) {
	switch p.fallback {
	case FallbackDiscard:
		p.mRejected.Inc()
		return false, nil
	case FallbackCallerRuns:
		task()
		return true, nil
	default: // FallbackAbort
		p.mRejected.Inc()
		return false, ErrRejected
	}
}

// --------------------------------------------------------------------------
// Worker loop
// --------------------------------------------------------------------------

func (p *ThreadPoolExecutor) worker() {
	for {
		task, ok := p.popTask()
		if !ok {
			return
		}
		p.runTask(task)
	}
}

// popTask blocks until work is available. It returns false when the worker
// must exit: a shutdown sentinel was consumed, the pool was killed, or the
// worker idled past IdleTime while the pool is above its minimum size. The
// exit decision and the pool-size decrement happen under one continuous hold
// of p.mu, so a concurrent Post can never observe a pool size that still
// counts a worker committed to exiting and wrongly suppress growth.
func (p *ThreadPoolExecutor) popTask() (func(), bool) {
	p.mu.Lock()

	for {
		// queued work always drains before shutdown sentinels
		if len(p.queue) > 0 {
			task := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return task, true
		}
		if p.stopSignals > 0 {
			p.stopSignals--
			p.exitLocked()
			return nil, false
		}
		if p.state == stateStopped {
			p.exitLocked()
			return nil, false
		}

		p.idleCount++
		res := p.notEmpty.WaitFor(p.idleTime)
		p.idleCount--

		if res.TimedOut() && len(p.queue) == 0 &&
			p.state == stateRunning && p.poolSize > p.minThreads {
			p.exitLocked()
			return nil, false
		}
	}
}

// runTask invokes a task, converting a panic into a log entry. A worker
// never dies from a task failure.
func (p *ThreadPoolExecutor) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.mPanics.Inc()
			p.logger.Error("task panicked", "pool", p.name, "panic", r)
		}
		p.completed.Increment()
		p.mCompleted.Inc()
	}()
	task()
}

// exitLocked releases the calling worker's slot and unlocks p.mu. Caller
// must hold p.mu. Fires the termination event when the last worker of a
// stopping pool leaves.
func (p *ThreadPoolExecutor) exitLocked() {
	p.poolSize--
	terminated := p.poolSize == 0 && p.state != stateRunning
	p.mu.Unlock()

	if terminated {
		p.stopped.Set()
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Shutdown stops accepting new work and sends one stop sentinel per live
// worker, so all queued work completes first. Idempotent.
func (p *ThreadPoolExecutor) Shutdown() {
	p.mu.Lock()
	if p.state != stateRunning {
		p.mu.Unlock()
		return
	}
	p.state = stateShuttingDown
	p.stopSignals += p.poolSize
	empty := p.poolSize == 0
	p.notEmpty.Broadcast()
	p.mu.Unlock()

	if empty {
		p.stopped.Set()
	}
}

// Kill discards all queued work and stops the pool immediately. Tasks
// already running are not interrupted.
func (p *ThreadPoolExecutor) Kill() {
	p.mu.Lock()
	if p.state == stateStopped {
		p.mu.Unlock()
		return
	}
	p.state = stateStopped
	p.queue = nil
	p.stopSignals = 0
	empty := p.poolSize == 0
	p.notEmpty.Broadcast()
	p.mu.Unlock()

	if empty {
		p.stopped.Set()
	}
}

// WaitForTermination blocks until the pool has fully stopped or timeout
// elapses, and reports whether termination completed.
func (p *ThreadPoolExecutor) WaitForTermination(timeout time.Duration) bool {
	return p.stopped.WaitFor(timeout)
}

// IsRunning reports whether the pool accepts new work.
func (p *ThreadPoolExecutor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateRunning
}

// IsShutdown reports whether the pool has fully stopped.
func (p *ThreadPoolExecutor) IsShutdown() bool {
	return p.stopped.IsSet()
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Name returns the pool's label used in logs and metrics.
func (p *ThreadPoolExecutor) Name() string { return p.name }

// Length returns the current number of live workers.
func (p *ThreadPoolExecutor) Length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poolSize
}

// QueueLength returns the number of tasks waiting in the queue.
func (p *ThreadPoolExecutor) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// MinLength returns the configured minimum pool size.
func (p *ThreadPoolExecutor) MinLength() int { return p.minThreads }

// MaxLength returns the configured maximum pool size.
func (p *ThreadPoolExecutor) MaxLength() int { return p.maxThreads }

// ScheduledTaskCount returns the number of tasks ever accepted.
func (p *ThreadPoolExecutor) ScheduledTaskCount() int64 { return p.scheduled.Get() }

// CompletedTaskCount returns the number of tasks that finished (successfully
// or by panic).
func (p *ThreadPoolExecutor) CompletedTaskCount() int64 { return p.completed.Get() }

// LargestLength returns the largest worker count the pool ever reached.
func (p *ThreadPoolExecutor) LargestLength() int64 { return p.largestLength.Get() }
