package module

import (
	"context"
	"sync"
	"time"

	"github.com/vk/workloop/internal/predict"
)

// CanRunPolicy controls a Module's mutual-exclusion discipline.
type CanRunPolicy int

const (
	// Exclusive allows at most one concurrent on_run invocation.
	Exclusive CanRunPolicy = iota
	// Parallel allows unlimited concurrent on_run invocations.
	Parallel
	// ExclusiveCustom behaves like Exclusive but additionally consults a
	// user CanRun predicate under the same critical section.
	ExclusiveCustom
	// ParallelCustom behaves like Parallel but gates every acquisition on
	// a user CanRun predicate, with no availability bookkeeping at all.
	ParallelCustom
)

func (p CanRunPolicy) String() string {
	switch p {
	case Exclusive:
		return "Exclusive"
	case Parallel:
		return "Parallel"
	case ExclusiveCustom:
		return "ExclusiveCustom"
	case ParallelCustom:
		return "ParallelCustom"
	default:
		return "Unknown"
	}
}

// RunnerGroup is the subset of the group.Group protocol a Module needs to
// cooperate with the scheduler while idling. It is declared here, not
// imported from the group package, so module stays free of a dependency
// cycle — group.Group satisfies this interface structurally.
type RunnerGroup interface {
	RunNext(maxExecTime time.Duration) bool
	WaitForAvailability(budget, maxWait time.Duration) bool
}

// LoopHandle is the subset of the loop.Loop protocol a Module needs: just
// enough to reach the root group it should cooperate with while idling.
type LoopHandle interface {
	Root() RunnerGroup
}

// Module is a runnable leaf. Construct one with New; it starts detached
// (no parent, no loop) and is installed into a Group by that Group's
// constructor.
type Module struct {
	Name string

	policy          CanRunPolicy
	onRun           func(ctx context.Context) error
	canRun          func() bool
	handleException func(error)

	timing predict.Pair

	initialPrediction  float64
	predictorFastAlpha float64
	predictorSlowAlpha float64

	availMu     sync.Mutex
	availCond   *sync.Cond
	isAvailable bool

	topoMu sync.Mutex
	parent any
	loop   LoopHandle

	idling sync.Mutex // held for the lifetime of an active StartIdling background task
}

// Option configures optional behavior on a Module at construction time.
type Option func(*Module)

// WithCanRun installs the user predicate consulted by the *Custom policies.
func WithCanRun(fn func() bool) Option {
	return func(m *Module) { m.canRun = fn }
}

// WithHandleException installs the catch-all invoked when OnRun panics or
// returns an error. If omitted, errors are swallowed after RunningToken.Run
// has logged them.
func WithHandleException(fn func(error)) Option {
	return func(m *Module) { m.handleException = fn }
}

// WithInitialPrediction seeds both timing bands at the given number of
// seconds instead of zero.
func WithInitialPrediction(seconds float64) Option {
	return func(m *Module) { m.initialPrediction = seconds }
}

// WithPredictorRates overrides the biased-EMA fast/slow rates used by this
// module's timing Pair instead of predict.DefaultFast/DefaultSlow. Combine
// freely with WithInitialPrediction; option application order doesn't
// matter, since both are folded into the timing Pair once at the end of New.
func WithPredictorRates(fastAlpha, slowAlpha float64) Option {
	return func(m *Module) { m.predictorFastAlpha, m.predictorSlowAlpha = fastAlpha, slowAlpha }
}

// New builds a detached Module. onRun is mandatory and is invoked once per
// successful RunningToken.Run.
func New(name string, policy CanRunPolicy, onRun func(ctx context.Context) error, opts ...Option) *Module {
	m := &Module{
		Name:               name,
		policy:             policy,
		onRun:              onRun,
		isAvailable:        true,
		predictorFastAlpha: predict.DefaultFast,
		predictorSlowAlpha: predict.DefaultSlow,
	}
	m.availCond = sync.NewCond(&m.availMu)
	for _, opt := range opts {
		opt(m)
	}
	m.timing = predict.NewPairWithRates(m.initialPrediction, m.predictorFastAlpha, m.predictorSlowAlpha)
	return m
}

// IsAvailable is a cheap, possibly racy read of the module's availability.
// It is always true for Parallel policy and may be optimistic for the
// *Custom policies, which only resolve CanRun at token-acquisition time.
func (m *Module) IsAvailable() bool {
	switch m.policy {
	case Parallel, ParallelCustom:
		return true
	default:
		m.availMu.Lock()
		defer m.availMu.Unlock()
		return m.isAvailable
	}
}

// WaitForAvailability parks the calling goroutine until IsAvailable holds
// or maxWait elapses (0 meaning no limit). It may return spuriously.
func (m *Module) WaitForAvailability(maxWait time.Duration) {
	if m.policy == Parallel || m.policy == ParallelCustom {
		return
	}
	m.availMu.Lock()
	defer m.availMu.Unlock()
	deadline := time.Time{}
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}
	for !m.isAvailable {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return
		}
		if deadline.IsZero() {
			m.availCond.Wait()
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		waitOnce(m.availCond, remaining)
	}
}

// waitOnce blocks on cond for at most d before returning, regardless of
// predicate — callers re-check their own condition in a loop.
func waitOnce(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

// PredictHigherExecutionTime returns the conservative (higher-band)
// estimate of this module's next run duration, in seconds.
func (m *Module) PredictHigherExecutionTime() float64 {
	return m.timing.Higher.Predict()
}

// PredictLowerExecutionTime returns the optimistic (lower-band) estimate
// of this module's next run duration, in seconds.
func (m *Module) PredictLowerExecutionTime() float64 {
	return m.timing.Lower.Predict()
}

// Policy returns the module's configured mutual-exclusion policy.
func (m *Module) Policy() CanRunPolicy {
	return m.policy
}

// InstallParent sets the module's owning parent exactly once, per I1.
// Returns false (and leaves state unchanged) if a parent is already set.
func (m *Module) InstallParent(parent any) bool {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	if m.parent != nil {
		return false
	}
	m.parent = parent
	return true
}

// UninstallParent clears the module's parent, if any.
func (m *Module) UninstallParent() {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	m.parent = nil
}

// Parent returns the module's current owning parent, or nil if detached.
func (m *Module) Parent() any {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	return m.parent
}

// InstallLoop sets the module's owning loop exactly once, per I2. Returns
// false (and leaves state unchanged) if a loop is already set.
func (m *Module) InstallLoop(l LoopHandle) bool {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	if m.loop != nil {
		return false
	}
	m.loop = l
	return true
}

// UninstallLoop clears the module's owning loop, if any.
func (m *Module) UninstallLoop() {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	m.loop = nil
}

func (m *Module) loopHandle() LoopHandle {
	m.topoMu.Lock()
	defer m.topoMu.Unlock()
	return m.loop
}

// releaseExclusivity restores is_available to true and wakes any waiters,
// unconditionally — this is the scoped guard, described on
// RunningToken.Run, that runs on every exit path of a claimed run,
// including a panic.
func (m *Module) releaseExclusivity() {
	m.availMu.Lock()
	m.isAvailable = true
	m.availMu.Unlock()
	m.availCond.Broadcast()
}

// dispatchException routes err to the user handler, if any. A secondary
// panic from the handler itself is swallowed.
func (m *Module) dispatchException(err error) {
	if m.handleException == nil {
		return
	}
	defer func() { _ = recover() }()
	m.handleException(err)
}
