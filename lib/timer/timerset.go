// Package timer provides the TimerSet, a deadline scheduler that runs tasks
// after a requested delay.
//
// A TimerSet separates timing from execution: an internal supervisory
// goroutine tracks pending deadlines in a keyed min-heap and, when a task
// falls due, hands it to a task executor. Very short delays skip the heap
// entirely and are posted straight to the executor, since the scheduling
// overhead would exceed the delay itself.
//
// The supervisor is lazy. It is started on the first queued task, parks on a
// condition while nothing is due, and exits when the heap drains, so an idle
// TimerSet costs no goroutine.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/riddopic/garcun/lib/atomics"
	"github.com/riddopic/garcun/lib/clock"
	"github.com/riddopic/garcun/lib/executor"
	"github.com/riddopic/garcun/lib/logging"
	"github.com/riddopic/garcun/lib/pqueue"
	"github.com/riddopic/garcun/lib/syncutil"
)

const (
	// FastPathThreshold is the delay at or below which a task bypasses the
	// heap and is posted to the executor immediately.
	FastPathThreshold = 10 * time.Millisecond

	// maxParkTime bounds how long the supervisor sleeps in one stretch even
	// when the next deadline is further away.
	maxParkTime = 60 * time.Second

	// drainTimeout bounds how long teardown waits for an owned task pool to
	// finish its in-flight tasks after Shutdown.
	drainTimeout = 5 * time.Second
)

var (
	// ErrNegativeDelay is returned by Post when the requested delay is
	// negative.
	ErrNegativeDelay = errors.New("timer: delay must not be negative")

	// ErrNilTask is returned when Post is called with a nil task.
	ErrNilTask = errors.New("timer: task must not be nil")
)

// used for default set names
var setSeq atomics.Int64

// TimerSet schedules tasks for execution after a delay.
type TimerSet struct {
	name   string
	exec   executor.Executor
	clk    *clock.Clock
	logger hclog.Logger

	// non-nil only when the set built its own pool; torn down on Shutdown
	ownedExec *executor.ThreadPoolExecutor

	mu          sync.Mutex
	wakeup      *syncutil.Condition
	queue       *pqueue.Queue[func()]
	nextKey     uint64
	running     bool
	supervising bool

	stopped *syncutil.Event

	mScheduled *metrics.Counter
	mFired     *metrics.Counter
}

// Option customizes a TimerSet at construction.
type Option func(*TimerSet)

// WithName labels the set in logs and metrics.
func WithName(name string) Option {
	return func(t *TimerSet) { t.name = name }
}

// WithExecutor runs due tasks on exec instead of the default pool.
func WithExecutor(exec executor.Executor) Option {
	return func(t *TimerSet) { t.exec = exec }
}

// WithLogger sets the logger used for dispatch failures.
func WithLogger(logger hclog.Logger) Option {
	return func(t *TimerSet) { t.logger = logger }
}

// New creates a running TimerSet. Without options, tasks execute on a
// dedicated cached pool owned by the set and torn down with it.
func New(opts ...Option) (*TimerSet, error) {
	t := &TimerSet{
		clk:     clock.New(),
		queue:   pqueue.New[func()](),
		running: true,
		stopped: syncutil.NewEvent(),
	}
	t.wakeup = syncutil.NewCondition(&t.mu)
	for _, opt := range opts {
		opt(t)
	}

	if t.name == "" {
		t.name = fmt.Sprintf("timer-set-%d", setSeq.Increment())
	}
	if t.logger == nil {
		t.logger = logging.New(t.name)
	}
	if t.exec == nil {
		pool, err := executor.NewThreadPoolExecutor(executor.Config{
			Name:       t.name + "-tasks",
			MinThreads: 0,
			MaxThreads: executor.DefaultMaxPoolSize,
			IdleTime:   executor.DefaultIdleTime,
			Fallback:   executor.FallbackAbort,
			Logger:     t.logger,
		})
		if err != nil {
			return nil, err
		}
		t.exec = pool
		t.ownedExec = pool
	}

	t.mScheduled = metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_timer_tasks_scheduled_total{set=%q}`, t.name))
	t.mFired = metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_timer_tasks_fired_total{set=%q}`, t.name))
	return t, nil
}

// Post schedules task to run once delay has elapsed. It returns true if the
// task was accepted and false once the set has been shut down. A negative
// delay is rejected with ErrNegativeDelay.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (t *TimerSet) Post(delay time.Duration, task func()) (bool, error) {
	if task == nil {
		return false, ErrNilTask
	}
	if delay < 0 {
		return false, ErrNegativeDelay
	}

	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false, nil
	}

	// sub-threshold delays are indistinguishable from "now" at scheduler
	// granularity; skip the heap
	if delay <= FastPathThreshold {
		t.mu.Unlock()
		t.mScheduled.Inc()
		return t.dispatch(task)
	}

	t.nextKey++
	t.queue.Push(t.nextKey, uint64(t.clk.Deadline(delay)), task)
	t.mScheduled.Inc()
	t.ensureSupervisor()
	t.wakeup.Signal()
	t.mu.Unlock()
	return true, nil
}

// Len returns the number of tasks waiting on a deadline. Tasks already
// handed to the executor are not counted.
func (t *TimerSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Len()
}

// Running reports whether the set still accepts tasks.
func (t *TimerSet) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Shutdown stops the set: pending deadlines are discarded, the supervisor
// exits and subsequent Posts are refused. Tasks already dispatched to the
// executor are not cancelled; when the set owns its task pool, the pool is
// shut down and given drainTimeout to finish them.
func (t *TimerSet) Shutdown() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.queue.Clear()
	t.wakeup.Broadcast()
	last := !t.supervising
	t.mu.Unlock()

	// with no supervisor to notice the stop, teardown happens here
	if last {
		t.teardown()
	}
}

// Kill is an alias for Shutdown; pending work cannot be interrupted any
// harder than it can be discarded.
func (t *TimerSet) Kill() {
	t.Shutdown()
}

// WaitForTermination blocks until the supervisor has exited after a
// Shutdown, or timeout elapses, and reports whether it terminated in time.
func (t *TimerSet) WaitForTermination(timeout time.Duration) bool {
	return t.stopped.WaitFor(timeout)
}

// dispatch hands task to the executor. Policy refusals are logged, not
// propagated to the supervisor.
func (t *TimerSet) dispatch(task func()) (bool, error) {
	accepted, err := t.exec.Post(task)
	if !accepted {
		t.logger.Warn("task executor refused a due task", "error", err)
		return accepted, err
	}
	t.mFired.Inc()
	return true, nil
}

// ensureSupervisor starts the supervisory goroutine if it is not already
// up. Caller must hold t.mu.
func (t *TimerSet) ensureSupervisor() {
	if t.supervising {
		return
	}
	t.supervising = true
	go t.supervise()
}

// teardown shuts down an owned task pool, waits for it to drain, then
// marks the set terminated.
func (t *TimerSet) teardown() {
	if t.ownedExec != nil {
		t.ownedExec.Shutdown()
		if !t.ownedExec.WaitForTermination(drainTimeout) {
			t.logger.Warn("owned task pool did not drain in time", "timeout", drainTimeout)
		}
	}
	t.stopped.Set()
}

// supervise is the scheduler loop: pop and dispatch everything due, then
// park until the earliest remaining deadline (bounded by maxParkTime) or a
// wakeup signal, whichever comes first. It exits when the heap drains or
// the set stops.
func (t *TimerSet) supervise() {
	t.mu.Lock()

	for {
		if !t.running {
			t.supervising = false
			t.mu.Unlock()
			t.teardown()
			return
		}

		next, ok := t.queue.Peek()
		if !ok {
			t.supervising = false
			t.mu.Unlock()
			return
		}

		now := uint64(t.clk.Now())
		if next.Priority <= now {
			item, _ := t.queue.Pop()
			t.mu.Unlock()
			t.dispatch(item.Value)
			t.mu.Lock()
			continue
		}

		park := time.Duration(next.Priority - now)
		if park > maxParkTime {
			park = maxParkTime
		}
		t.wakeup.WaitFor(park)
	}
}
