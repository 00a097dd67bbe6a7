package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/vk/workloop/internal/ctxlog"
	"github.com/vk/workloop/internal/group"
	"github.com/vk/workloop/internal/module"
)

// ErrAlreadyRunning is returned by Run when the loop is already driving a
// worker pool.
var ErrAlreadyRunning = errors.New("loop: already running")

// Option configures optional Loop behavior.
type Option func(*Loop)

// WithSmartWaiter toggles the "use smart CV waiter" compile-time switch
// at construction time instead: when enabled (the default),
// bounded waits inside the root's group tree subtract predicted
// overshoot via cvwait.Waiter; when disabled, they fall back to plain
// timed waits.
func WithSmartWaiter(enabled bool) Option {
	return func(l *Loop) { l.smartWaiter = enabled }
}

// Loop owns a root group and the worker pool that drives it.
type Loop struct {
	root group.Group

	mu            sync.Mutex
	cond          *sync.Cond
	running       bool
	stopRequested bool
	smartWaiter   bool
}

// New attaches root to a fresh Loop, recursively installing the loop
// back-pointer on every descendant module/subgroup (I2). Fails if root
// (or any descendant) already belongs to a loop.
func New(root group.Group, opts ...Option) (*Loop, error) {
	l := &Loop{root: root, smartWaiter: true}
	l.cond = sync.NewCond(&l.mu)
	for _, opt := range opts {
		opt(l)
	}
	if !root.InstallLoop(l) {
		return nil, group.ErrAlreadyInLoop
	}
	return l, nil
}

// Root returns the owned root group, narrowed to the surface a Module
// needs for its cooperative Idle yields.
func (l *Loop) Root() module.RunnerGroup {
	return l.root
}

// UseSmartWaiter reports whether bounded waits in this loop's group tree
// should use the predictive SmartCvWaiter.
func (l *Loop) UseSmartWaiter() bool {
	return l.smartWaiter
}

// IsRunning reports whether a Run call is currently driving the worker
// pool.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Run spawns threadCount-1 worker goroutines and runs the worker body on
// the calling goroutine too, so threadCount == 1 is legal and pool-free.
// threadCount <= 0 defaults to runtime.NumCPU(), matching the original
// library's Start(threads_count = 0) defaulting to the number of logical
// cores. It blocks until every worker has returned (i.e. until Stop takes
// effect at an iteration boundary). Fails if already running. ctx is
// used only for logging scheduling decisions through ctxlog — it is not
// threaded into individual module runs, which always use
// context.Background() (see RunningToken.Run).
func (l *Loop) Run(ctx context.Context, threadCount int) error {
	if threadCount <= 0 {
		threadCount = runtime.NumCPU()
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.stopRequested = false
	l.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	logger.Debug("loop starting", "threads", threadCount)

	var wg sync.WaitGroup
	wg.Add(threadCount - 1)
	for i := 0; i < threadCount-1; i++ {
		go func() {
			defer wg.Done()
			l.workerBody(logger)
		}()
	}
	l.workerBody(logger)
	wg.Wait()

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	l.cond.Broadcast()
	logger.Debug("loop stopped")
	return nil
}

// workerBody is the per-goroutine driver loop.
func (l *Loop) workerBody(logger *slog.Logger) {
	for {
		if l.root.IsDone() {
			l.mu.Lock()
			if l.root.IsDone() {
				if l.stopRequested {
					l.mu.Unlock()
					return
				}
				logger.Debug("loop rolling over to next iteration")
				l.root.StartNextIteration()
			}
			l.mu.Unlock()
		}
		if !l.root.RunNext(0) {
			l.root.WaitForAvailability(0, 0)
		}
	}
}

// Stop requests the worker pool to halt. It takes effect at the next
// iteration boundary, not immediately.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopRequested = true
	l.mu.Unlock()
}

// StopAndWait requests a stop and blocks until the worker pool has fully
// drained. Must not be called from within a module's on_run — doing so
// would deadlock the worker that's executing it.
func (l *Loop) StopAndWait() {
	l.Stop()
	l.mu.Lock()
	for l.running {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

// Detach clears the loop back-pointer from the root's subtree — the Go
// substitute for "destructor detaches", meant to be called once
// the loop is no longer running.
func (l *Loop) Detach() {
	l.root.UninstallLoop()
}
