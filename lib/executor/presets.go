package executor

import "fmt"

// NewFixedThreadPool creates a pool whose worker count is pinned to n: the
// pool neither grows beyond nor shrinks below n workers. The queue is
// unbounded and the fallback policy is abort.
func NewFixedThreadPool(n int) (*ThreadPoolExecutor, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: fixed pool size must be >= 1, got %d", ErrInvalidConfig, n)
	}
	return NewThreadPoolExecutor(Config{
		Name:       fmt.Sprintf("fixed-%d-pool-%d", n, poolSeq.Increment()),
		MinThreads: n,
		MaxThreads: n,
		IdleTime:   DefaultIdleTime,
		Fallback:   FallbackAbort,
	})
}

// NewCachedThreadPool creates a fully elastic pool: no workers are retained
// when idle and the worker count may grow effectively without bound, so
// every concurrent task gets a worker.
func NewCachedThreadPool() (*ThreadPoolExecutor, error) {
	return NewThreadPoolExecutor(Config{
		Name:       fmt.Sprintf("cached-pool-%d", poolSeq.Increment()),
		MinThreads: 0,
		MaxThreads: DefaultMaxPoolSize,
		IdleTime:   DefaultIdleTime,
		Fallback:   FallbackAbort,
	})
}
