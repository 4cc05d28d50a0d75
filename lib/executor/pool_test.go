package executor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riddopic/garcun/lib/atomics"
	"github.com/riddopic/garcun/lib/syncutil"
)

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero max threads", Config{MaxThreads: 0}},
		{"negative min threads", Config{MinThreads: -1, MaxThreads: 2}},
		{"min above max", Config{MinThreads: 3, MaxThreads: 2}},
		{"negative queue", Config{MaxThreads: 1, MaxQueue: -1}},
		{"unknown fallback", Config{MaxThreads: 1, Fallback: "explode"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewThreadPoolExecutor(tc.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestPostRunsTasks(t *testing.T) {
	pool, err := NewFixedThreadPool(2)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	latch, _ := syncutil.NewCountDownLatch(10)
	for i := 0; i < 10; i++ {
		ok, err := pool.Post(latch.CountDown)
		if !ok || err != nil {
			t.Fatalf("post %d rejected: %v", i, err)
		}
	}

	if !latch.WaitFor(2 * time.Second) {
		t.Fatal("tasks did not complete")
	}
	if pool.ScheduledTaskCount() != 10 {
		t.Errorf("expected 10 scheduled, got %d", pool.ScheduledTaskCount())
	}
}

// A FixedThreadPool(2) with 5 slow tasks must run exactly 2 concurrently.
func TestFixedPoolConcurrencyBound(t *testing.T) {
	pool, err := NewFixedThreadPool(2)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	var active, peak atomics.Int64
	latch, _ := syncutil.NewCountDownLatch(5)

	for i := 0; i < 5; i++ {
		pool.Post(func() {
			peak.SetIfGreater(active.Increment())
			time.Sleep(50 * time.Millisecond)
			active.Decrement()
			latch.CountDown()
		})
	}

	if !latch.WaitFor(5 * time.Second) {
		t.Fatal("tasks did not complete")
	}
	if peak.Get() != 2 {
		t.Errorf("expected peak concurrency of exactly 2, got %d", peak.Get())
	}
	if pool.LargestLength() != 2 {
		t.Errorf("expected largest pool length 2, got %d", pool.LargestLength())
	}
}

// Live worker count stays within [min, max] across a burst of posts.
func TestPoolBounds(t *testing.T) {
	pool, err := NewThreadPoolExecutor(Config{
		MinThreads: 1,
		MaxThreads: 4,
		IdleTime:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	latch, _ := syncutil.NewCountDownLatch(50)
	for i := 0; i < 50; i++ {
		pool.Post(func() {
			time.Sleep(time.Millisecond)
			latch.CountDown()
		})
		if n := pool.Length(); n > 4 {
			t.Fatalf("pool grew past max: %d", n)
		}
	}
	if !latch.WaitFor(5 * time.Second) {
		t.Fatal("tasks did not complete")
	}

	// idle workers above the minimum are reclaimed
	deadline := time.Now().Add(2 * time.Second)
	for pool.Length() > 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := pool.Length(); n > 1 {
		t.Errorf("expected pool to shrink toward min 1, still at %d", n)
	}
}

func saturatedPool(t *testing.T, fallback FallbackPolicy) (*ThreadPoolExecutor, *syncutil.Event) {
	t.Helper()

	pool, err := NewThreadPoolExecutor(Config{
		MinThreads: 1,
		MaxThreads: 1,
		MaxQueue:   1,
		Fallback:   fallback,
	})
	if err != nil {
		t.Fatal(err)
	}

	release := syncutil.NewEvent()
	started, _ := syncutil.NewCountDownLatch(1)

	// occupy the single worker, then fill the single queue slot
	pool.Post(func() {
		started.CountDown()
		release.Wait()
	})
	if !started.WaitFor(time.Second) {
		t.Fatal("worker never started")
	}
	pool.Post(func() { release.Wait() })

	return pool, release
}

func TestFallbackAbort(t *testing.T) {
	pool, release := saturatedPool(t, FallbackAbort)
	defer pool.Kill()
	defer release.Set()

	ok, err := pool.Post(func() {})
	if ok || !errors.Is(err, ErrRejected) {
		t.Errorf("expected rejection, got ok=%v err=%v", ok, err)
	}
}

func TestFallbackDiscard(t *testing.T) {
	pool, release := saturatedPool(t, FallbackDiscard)
	defer pool.Kill()
	defer release.Set()

	ran := atomics.NewBool(false)
	ok, err := pool.Post(func() { ran.Set(true) })
	if ok || err != nil {
		t.Errorf("expected silent drop, got ok=%v err=%v", ok, err)
	}

	release.Set()
	time.Sleep(50 * time.Millisecond)
	if ran.Get() {
		t.Error("discarded task must never run")
	}
}

func TestFallbackCallerRuns(t *testing.T) {
	pool, release := saturatedPool(t, FallbackCallerRuns)
	defer pool.Kill()
	defer release.Set()

	ran := false
	ok, err := pool.Post(func() { ran = true })
	if !ok || err != nil {
		t.Errorf("expected caller-runs acceptance, got ok=%v err=%v", ok, err)
	}
	// the task ran synchronously on this goroutine, no synchronization needed
	if !ran {
		t.Error("expected task to run on the calling goroutine")
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	pool, err := NewFixedThreadPool(1)
	if err != nil {
		t.Fatal(err)
	}

	var completed atomics.Int64
	for i := 0; i < 20; i++ {
		pool.Post(func() {
			time.Sleep(time.Millisecond)
			completed.Increment()
		})
	}

	pool.Shutdown()

	if ok, err := pool.Post(func() {}); ok || !errors.Is(err, ErrRejected) {
		t.Errorf("post after shutdown must be rejected, got ok=%v err=%v", ok, err)
	}
	if !pool.WaitForTermination(5 * time.Second) {
		t.Fatal("pool did not terminate")
	}
	if completed.Get() != 20 {
		t.Errorf("expected all 20 queued tasks to complete, got %d", completed.Get())
	}
	if !pool.IsShutdown() {
		t.Error("expected IsShutdown after termination")
	}
}

func TestKillDiscardsQueue(t *testing.T) {
	pool, err := NewFixedThreadPool(1)
	if err != nil {
		t.Fatal(err)
	}

	release := syncutil.NewEvent()
	pool.Post(func() { release.Wait() })

	var ran atomics.Int64
	for i := 0; i < 10; i++ {
		pool.Post(func() { ran.Increment() })
	}

	pool.Kill()
	release.Set()

	if !pool.WaitForTermination(2 * time.Second) {
		t.Fatal("pool did not terminate after kill")
	}
	if ran.Get() != 0 {
		t.Errorf("killed pool ran %d queued tasks", ran.Get())
	}
}

func TestWaitForTerminationTimeout(t *testing.T) {
	pool, err := NewFixedThreadPool(1)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	if pool.WaitForTermination(10 * time.Millisecond) {
		t.Error("running pool must not report termination")
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	pool, err := NewFixedThreadPool(1)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	pool.Post(func() { panic("boom") })

	latch, _ := syncutil.NewCountDownLatch(1)
	pool.Post(latch.CountDown)

	if !latch.WaitFor(2 * time.Second) {
		t.Fatal("worker died from a task panic")
	}
	if pool.CompletedTaskCount() != 2 {
		t.Errorf("expected 2 completed tasks, got %d", pool.CompletedTaskCount())
	}
}

func TestCachedPoolElasticity(t *testing.T) {
	pool, err := NewCachedThreadPool()
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	if pool.MinLength() != 0 {
		t.Errorf("cached pool min should be 0, got %d", pool.MinLength())
	}

	const tasks = 8
	allRunning, _ := syncutil.NewCountDownLatch(tasks)
	release := syncutil.NewEvent()

	var wg sync.WaitGroup
	wg.Add(tasks)
	for i := 0; i < tasks; i++ {
		pool.Post(func() {
			defer wg.Done()
			allRunning.CountDown()
			release.Wait()
		})
	}

	// every task blocks until released, so the pool must grow to one worker
	// per task
	if !allRunning.WaitFor(2 * time.Second) {
		t.Fatalf("expected %d concurrent workers, pool stalled at %d", tasks, pool.Length())
	}
	release.Set()
	wg.Wait()
}

// A worker that idle-exits must give up its pool-size slot atomically with
// the exit decision. Otherwise a racing Post can read the stale size, see a
// full pool with no idle workers, skip growth, and strand the task in the
// queue with zero workers left. Churn idle exits against a stream of posts
// and verify every accepted task still runs before shutdown completes.
func TestIdleExitDoesNotStrandPosts(t *testing.T) {
	pool, err := NewThreadPoolExecutor(Config{
		MaxThreads: 1,
		IdleTime:   time.Nanosecond,
		Fallback:   FallbackAbort,
	})
	if err != nil {
		t.Fatal(err)
	}

	var completed atomics.Int64
	const posts = 5000
	for i := 0; i < posts; i++ {
		ok, err := pool.Post(func() { completed.Increment() })
		if !ok || err != nil {
			t.Fatalf("post %d rejected: %v", i, err)
		}
	}

	pool.Shutdown()
	if !pool.WaitForTermination(10 * time.Second) {
		t.Fatalf("pool did not terminate; %d of %d tasks completed, %d still queued",
			completed.Get(), posts, pool.QueueLength())
	}
	if got := completed.Get(); got != posts {
		t.Errorf("expected all %d accepted tasks to run, got %d", posts, got)
	}
}

func TestPostNilTask(t *testing.T) {
	pool, err := NewFixedThreadPool(1)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Kill()

	if ok, err := pool.Post(nil); ok || !errors.Is(err, ErrNilTask) {
		t.Errorf("expected ErrNilTask, got ok=%v err=%v", ok, err)
	}
}
