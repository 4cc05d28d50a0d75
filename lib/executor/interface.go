package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Executor runs tasks asynchronously.
type Executor interface {
	// Post submits a task. It returns true if the task was accepted (or, for
	// the caller-runs fallback, executed synchronously). A false return with
	// a nil error means the task was silently discarded by policy; a non-nil
	// error means the submission was rejected.
	Post(task func()) (bool, error)
}

// FallbackPolicy selects the behavior applied when a pool cannot accept a
// new task.
type FallbackPolicy string

const (
	// FallbackAbort rejects the task with ErrRejected.
	FallbackAbort FallbackPolicy = "abort"
	// FallbackDiscard drops the task silently.
	FallbackDiscard FallbackPolicy = "discard"
	// FallbackCallerRuns executes the task synchronously on the calling
	// goroutine.
	FallbackCallerRuns FallbackPolicy = "caller_runs"
)

var (
	// ErrInvalidConfig is wrapped by all construction-time validation
	// failures.
	ErrInvalidConfig = errors.New("executor: invalid configuration")

	// ErrRejected is returned by Post under the abort policy when the task
	// cannot be accepted.
	ErrRejected = errors.New("executor: task rejected")

	// ErrNilTask is returned when Post is called with a nil task.
	ErrNilTask = errors.New("executor: task must not be nil")
)

const (
	// DefaultIdleTime is how long a surplus worker may sit idle before it is
	// reclaimed.
	DefaultIdleTime = 60 * time.Second

	// DefaultMaxPoolSize is the upper worker bound used by the cached pool
	// preset.
	DefaultMaxPoolSize = 1<<31 - 1 // effectively unbounded
)

// Config holds the pool parameters. The zero value is not valid; start from
// DefaultConfig.
type Config struct {
	// Name labels the pool in logs and metrics.
	Name string
	// MinThreads is the number of workers kept alive even when idle (>= 0).
	MinThreads int
	// MaxThreads is the largest number of workers (>= 1, >= MinThreads).
	MaxThreads int
	// IdleTime is how long a worker above MinThreads may idle before
	// exiting.
	IdleTime time.Duration
	// MaxQueue bounds the task queue; 0 means unbounded.
	MaxQueue int
	// Fallback is applied when the pool cannot accept a task.
	Fallback FallbackPolicy
	// Logger receives worker panic reports. Defaults to a discard logger.
	Logger hclog.Logger
}

// DefaultConfig returns a single-worker, unbounded-queue, abort-policy
// configuration.
func DefaultConfig() Config {
	return Config{
		MinThreads: 1,
		MaxThreads: 1,
		IdleTime:   DefaultIdleTime,
		Fallback:   FallbackAbort,
	}
}

// validate normalizes defaults and rejects inconsistent configurations.
func (c *Config) validate() error {
	if c.MaxThreads < 1 {
		return fmt.Errorf("%w: max threads must be >= 1, got %d", ErrInvalidConfig, c.MaxThreads)
	}
	if c.MinThreads < 0 || c.MinThreads > c.MaxThreads {
		return fmt.Errorf("%w: min threads must be in [0, %d], got %d", ErrInvalidConfig, c.MaxThreads, c.MinThreads)
	}
	if c.MaxQueue < 0 {
		return fmt.Errorf("%w: max queue must be >= 0, got %d", ErrInvalidConfig, c.MaxQueue)
	}
	switch c.Fallback {
	case FallbackAbort, FallbackDiscard, FallbackCallerRuns:
	case "":
		c.Fallback = FallbackAbort
	default:
		return fmt.Errorf("%w: unknown fallback policy %q", ErrInvalidConfig, c.Fallback)
	}
	if c.IdleTime <= 0 {
		c.IdleTime = DefaultIdleTime
	}
	return nil
}
