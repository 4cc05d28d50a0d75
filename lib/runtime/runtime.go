// Package runtime owns the process-wide mutable state of the toolkit: the
// registry of open resources and the default executors.
//
// Instead of implicit module-level globals, all of it hangs off an explicit
// Runtime value with Register/Unregister/Shutdown operations. Libraries that
// open durable resources (such as stash stores) register themselves so that
// an application-level Runtime.Shutdown can force-close anything that was
// leaked, with a warning, instead of silently losing buffered data at
// process exit. A package-level default Runtime is provided for applications
// that do not need more than one.
package runtime

import (
	"io"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/riddopic/garcun/lib/atomics"
	"github.com/riddopic/garcun/lib/executor"
	"github.com/riddopic/garcun/lib/logging"
)

// Handle identifies a registered resource within its Runtime.
type Handle uint64

type resource struct {
	name   string
	closer io.Closer
}

// Runtime is a registry of open resources plus lazily created default
// executors. The zero value is not usable; create instances with New.
type Runtime struct {
	logger    hclog.Logger
	seq       atomics.Int64
	resources *xsync.MapOf[Handle, resource]

	mu   sync.Mutex
	io   *executor.ThreadPoolExecutor
	fast *executor.ThreadPoolExecutor

	down atomics.Bool
}

// New creates an empty Runtime logging through the given logger (nil for
// the default factory logger).
func New(logger hclog.Logger) *Runtime {
	if logger == nil {
		logger = logging.New("runtime")
	}
	return &Runtime{
		logger:    logger,
		resources: xsync.NewMapOf[Handle, resource](),
	}
}

// Register adds a closeable resource to the registry and returns its handle.
// The name is used in shutdown warnings.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (r *Runtime) Register(name string, c io.Closer) Handle {
	h := Handle(r.seq.Increment())
	r.resources.Store(h, resource{name: name, closer: c})
	return h
}

// Unregister removes a resource, normally called from the resource's own
// Close. Unknown handles are ignored.
func (r *Runtime) Unregister(h Handle) {
	r.resources.Delete(h)
}

// IOExecutor returns the shared executor for blocking, IO-bound work: a
// fully elastic cached pool, created on first use.
func (r *Runtime) IOExecutor() *executor.ThreadPoolExecutor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.io == nil {
		pool, err := executor.NewThreadPoolExecutor(executor.Config{
			Name:       "runtime-io",
			MinThreads: 0,
			MaxThreads: executor.DefaultMaxPoolSize,
			IdleTime:   executor.DefaultIdleTime,
			Fallback:   FallbackForShared,
			Logger:     r.logger,
		})
		if err != nil {
			// the configuration is static and valid; this cannot happen
			panic(err)
		}
		r.io = pool
	}
	return r.io
}

// FastExecutor returns the shared executor for short, CPU-bound work: a
// fixed pool sized to the machine, created on first use.
func (r *Runtime) FastExecutor() *executor.ThreadPoolExecutor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fast == nil {
		pool, err := executor.NewThreadPoolExecutor(executor.Config{
			Name:       "runtime-fast",
			MinThreads: 1,
			MaxThreads: numCPU(),
			IdleTime:   executor.DefaultIdleTime,
			Fallback:   FallbackForShared,
			Logger:     r.logger,
		})
		if err != nil {
			panic(err)
		}
		r.fast = pool
	}
	return r.fast
}

// Shutdown force-closes every still-registered resource (warning about each
// one, since well-behaved owners close and unregister explicitly) and stops
// the default executors, waiting up to timeout for them to drain.
// Idempotent; after shutdown the Runtime should not be reused.
func (r *Runtime) Shutdown(timeout time.Duration) {
	if !r.down.MakeTrue() {
		return
	}

	r.resources.Range(func(h Handle, res resource) bool {
		r.logger.Warn("closing resource that was not closed explicitly", "resource", res.name)
		if err := res.closer.Close(); err != nil {
			r.logger.Error("failed to close resource", "resource", res.name, "error", err)
		}
		r.resources.Delete(h)
		return true
	})

	r.mu.Lock()
	pools := []*executor.ThreadPoolExecutor{r.io, r.fast}
	r.mu.Unlock()

	for _, pool := range pools {
		if pool == nil {
			continue
		}
		pool.Shutdown()
		if !pool.WaitForTermination(timeout) {
			r.logger.Warn("executor did not terminate in time", "pool", pool.Name())
			pool.Kill()
		}
	}
}

func numCPU() int {
	return goruntime.NumCPU()
}

// FallbackForShared is the overflow policy of the shared executors. Caller
// runs keeps work flowing under saturation instead of failing library
// internals that have no good way to surface a rejection.
const FallbackForShared = executor.FallbackCallerRuns

// --------------------------------------------------------------------------
// Package-level default runtime
// --------------------------------------------------------------------------

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the lazily created package-level Runtime.
func Default() *Runtime {
	defaultOnce.Do(func() {
		defaultRuntime = New(nil)
	})
	return defaultRuntime
}

// Register registers a resource with the default Runtime.
func Register(name string, c io.Closer) Handle {
	return Default().Register(name, c)
}

// Unregister removes a resource from the default Runtime.
func Unregister(h Handle) {
	Default().Unregister(h)
}

// Shutdown shuts down the default Runtime.
func Shutdown(timeout time.Duration) {
	Default().Shutdown(timeout)
}
