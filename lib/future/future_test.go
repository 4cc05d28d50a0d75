package future

import (
	"errors"
	"testing"
	"time"

	"github.com/riddopic/garcun/lib/atomics"
	"github.com/riddopic/garcun/lib/executor"
)

func testPool(t *testing.T) executor.Executor {
	t.Helper()
	pool, err := executor.NewFixedThreadPool(2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		pool.Shutdown()
		pool.WaitForTermination(time.Second)
	})
	return pool
}

func TestFutureFulfills(t *testing.T) {
	f := NewFuture(func() (int, error) { return 7, nil }, WithExecutor(testPool(t)))

	if !f.Unscheduled() {
		t.Errorf("new future must be unscheduled, got %s", f.State())
	}

	got, err := f.Execute().Value(time.Second)
	if err != nil || got != 7 {
		t.Errorf("expected (7, nil), got (%d, %v)", got, err)
	}
	if !f.Fulfilled() {
		t.Errorf("expected fulfilled, got %s", f.State())
	}
}

func TestFutureRejects(t *testing.T) {
	boom := errors.New("boom")
	f := Execute(func() (int, error) { return 0, boom }, WithExecutor(testPool(t)))

	if _, err := f.Value(time.Second); err != boom {
		t.Errorf("expected task error, got %v", err)
	}
	if !f.Rejected() {
		t.Errorf("expected rejected, got %s", f.State())
	}
}

func TestFutureExecuteRunsTaskOnce(t *testing.T) {
	var runs atomics.Int64
	f := NewFuture(func() (int, error) {
		runs.Increment()
		return 0, nil
	}, WithExecutor(testPool(t)))

	for i := 0; i < 8; i++ {
		f.Execute()
	}

	f.Wait()
	if runs.Get() != 1 {
		t.Errorf("task ran %d times, expected once", runs.Get())
	}
}

func TestFutureCapturesPanic(t *testing.T) {
	f := Execute(func() (string, error) { panic("kaboom") }, WithExecutor(testPool(t)))

	_, err := f.Value(time.Second)
	if !errors.Is(err, ErrTaskPanic) {
		t.Errorf("expected ErrTaskPanic, got %v", err)
	}
}

func TestFutureRejectedPool(t *testing.T) {
	pool, err := executor.NewFixedThreadPool(1)
	if err != nil {
		t.Fatal(err)
	}
	pool.Shutdown()
	pool.WaitForTermination(time.Second)

	f := Execute(func() (int, error) { return 1, nil }, WithExecutor(pool))

	if _, err := f.Value(time.Second); !errors.Is(err, executor.ErrRejected) {
		t.Errorf("expected ErrRejected from a stopped pool, got %v", err)
	}
}
