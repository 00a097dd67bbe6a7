package group

import (
	"context"
	"sync"
	"time"

	"github.com/vk/workloop/internal/cvwait"
	"github.com/vk/workloop/internal/predict"
)

// SequentialGroup executes its members strictly in order, one stage at a
// time: member i+1 never starts until member i is finished.
type SequentialGroup struct {
	members []Member

	mu             sync.Mutex
	cond           *sync.Cond
	index          int // -1 before the first stage starts
	runsAtIndex    int
	runningThreads int
	currentStart   time.Time
	iterationStart time.Time

	timing predict.Pair
	waiter *cvwait.Waiter

	parent     any
	loopHandle LoopHandle
}

// SequentialOption configures optional SequentialGroup behavior.
type SequentialOption func(*sequentialConfig)

type sequentialConfig struct {
	predictorFastAlpha float64
	predictorSlowAlpha float64
}

// WithSequentialPredictorRates overrides the biased-EMA fast/slow rates
// used by this group's own whole-iteration timing Pair instead of
// predict.DefaultFast/predict.DefaultSlow. It does not affect member
// modules/groups, which take their own rates independently.
func WithSequentialPredictorRates(fastAlpha, slowAlpha float64) SequentialOption {
	return func(c *sequentialConfig) { c.predictorFastAlpha, c.predictorSlowAlpha = fastAlpha, slowAlpha }
}

// NewSequentialGroup builds a detached SequentialGroup over members, in
// the given order. It installs itself as each member's parent, rolling
// back atomically if any member already has one (I1).
func NewSequentialGroup(members []Member, opts ...SequentialOption) (*SequentialGroup, error) {
	cfg := sequentialConfig{predictorFastAlpha: predict.DefaultFast, predictorSlowAlpha: predict.DefaultSlow}
	for _, opt := range opts {
		opt(&cfg)
	}
	g := &SequentialGroup{
		members: members,
		index:   -1,
		timing:  predict.NewPairWithRates(0, cfg.predictorFastAlpha, cfg.predictorSlowAlpha),
		waiter:  cvwait.New(),
	}
	g.cond = sync.NewCond(&g.mu)
	if err := installMembers(g, members); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *SequentialGroup) stageFinishedLocked(i int) bool {
	mem := g.members[i]
	if mem.IsGroup() {
		return mem.Group().IsDone()
	}
	return g.runsAtIndex > 0
}

func (g *SequentialGroup) shouldAdvanceLocked() bool {
	n := len(g.members)
	if g.runningThreads != 0 || g.index >= n-1 {
		return false
	}
	if g.index == -1 {
		return true
	}
	return g.stageFinishedLocked(g.index)
}

func (g *SequentialGroup) isDoneLocked() bool {
	n := len(g.members)
	if n == 0 {
		return true
	}
	if g.runningThreads != 0 || g.index != n-1 {
		return false
	}
	return g.stageFinishedLocked(g.index)
}

// IsDone reports whether the current iteration has completed.
func (g *SequentialGroup) IsDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isDoneLocked()
}

func (g *SequentialGroup) isRunAvailableLocked(budget time.Duration) bool {
	if g.shouldAdvanceLocked() {
		return true
	}
	if g.index < 0 || g.index >= len(g.members) {
		return false
	}
	mem := g.members[g.index]
	if !mem.IsGroup() {
		return g.runningThreads == 0 && g.runsAtIndex == 0 &&
			fitsBudget(budget, mem.Module().PredictHigherExecutionTime())
	}
	sub := mem.Group()
	if !sub.IsDone() {
		return sub.IsRunAvailable(budget)
	}
	if g.runningThreads == 0 {
		return false
	}
	effective := clampBudgetToRemaining(budget, sub.PredictLowerRemainingExecutionTime())
	return effective >= MinPendingTime
}

// IsRunAvailable reports whether a module is immediately runnable within
// budget (0 meaning unlimited).
func (g *SequentialGroup) IsRunAvailable(budget time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isRunAvailableLocked(budget)
}

// IsAvailable is IsRunAvailable(budget) || IsDone().
func (g *SequentialGroup) IsAvailable(budget time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isRunAvailableLocked(budget) || g.isDoneLocked()
}

func (g *SequentialGroup) useSmartWaiter() bool {
	return g.loopHandle != nil && g.loopHandle.UseSmartWaiter()
}

func (g *SequentialGroup) waitFor(maxWait time.Duration, predicate func() bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.useSmartWaiter() {
		return g.waiter.WaitFor(g.cond, maxWait, predicate)
	}
	return cvwait.PlainWait(g.cond, maxWait, predicate)
}

// WaitForRunAvailability blocks until IsRunAvailable(budget) holds or
// maxWait elapses.
func (g *SequentialGroup) WaitForRunAvailability(budget, maxWait time.Duration) bool {
	return g.waitFor(maxWait, func() bool { return g.isRunAvailableLocked(budget) })
}

// WaitForAvailability blocks until IsAvailable(budget) holds or maxWait
// elapses.
func (g *SequentialGroup) WaitForAvailability(budget, maxWait time.Duration) bool {
	return g.waitFor(maxWait, func() bool {
		return g.isRunAvailableLocked(budget) || g.isDoneLocked()
	})
}

// runGuarded runs fn with the group's running-threads counter already
// incremented by the caller, decrementing and notifying on every exit
// path — including a panic — the scoped-guard pattern expressed
// in Go as a deferred re-lock/decrement/broadcast.
func (g *SequentialGroup) runGuarded(fn func()) {
	defer func() {
		g.mu.Lock()
		g.runningThreads--
		g.mu.Unlock()
		g.cond.Broadcast()
	}()
	fn()
}

// RunNext fires at most one of ShouldAdvance / ShouldRunModuleAt /
// ShouldTryGroupAt.
func (g *SequentialGroup) RunNext(maxExecTime time.Duration) bool {
	g.mu.Lock()

	if g.shouldAdvanceLocked() {
		g.index++
		g.runsAtIndex = 0
		if g.index == 0 {
			g.iterationStart = time.Now()
		}
		g.mu.Unlock()
		g.cond.Broadcast()
		return true
	}

	if g.index < 0 || g.index >= len(g.members) {
		g.mu.Unlock()
		return false
	}
	mem := g.members[g.index]

	if !mem.IsGroup() {
		mod := mem.Module()
		if !(g.runningThreads == 0 && g.runsAtIndex == 0 && fitsBudget(maxExecTime, mod.PredictHigherExecutionTime())) {
			g.mu.Unlock()
			return false
		}
		tok := mod.AcquireToken()
		if !tok.MayRun() {
			g.mu.Unlock()
			tok.Release()
			return false
		}
		g.runningThreads++
		g.runsAtIndex++
		g.currentStart = time.Now()
		g.mu.Unlock()

		g.runGuarded(func() { tok.Run(context.Background()) })
		return true
	}

	sub := mem.Group()
	done := sub.IsDone()
	effective := maxExecTime
	if done {
		if g.runningThreads == 0 {
			g.mu.Unlock()
			return false
		}
		effective = clampBudgetToRemaining(maxExecTime, sub.PredictLowerRemainingExecutionTime())
		if effective < MinPendingTime {
			g.mu.Unlock()
			return false
		}
	}
	g.runningThreads++
	g.currentStart = time.Now()
	g.mu.Unlock()

	var ran bool
	g.runGuarded(func() { ran = sub.RunNext(effective) })
	return ran
}

func (g *SequentialGroup) remainingLocked(higher bool) float64 {
	if g.runningThreads == 0 || g.index < 0 || g.index >= len(g.members) {
		return 0
	}
	mem := g.members[g.index]
	if mem.IsGroup() {
		if higher {
			return mem.Group().PredictHigherRemainingExecutionTime()
		}
		return mem.Group().PredictLowerRemainingExecutionTime()
	}
	mod := mem.Module()
	predicted := mod.PredictLowerExecutionTime()
	if higher {
		predicted = mod.PredictHigherExecutionTime()
	}
	remaining := predicted - time.Since(g.currentStart).Seconds()
	if remaining < MinPendingTime.Seconds() {
		remaining = MinPendingTime.Seconds()
	}
	return remaining
}

// PredictHigherRemainingExecutionTime estimates how long the in-flight
// stage has left, conservatively. 0 if nothing is running.
func (g *SequentialGroup) PredictHigherRemainingExecutionTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(true)
}

// PredictLowerRemainingExecutionTime is the optimistic analogue of
// PredictHigherRemainingExecutionTime.
func (g *SequentialGroup) PredictLowerRemainingExecutionTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(false)
}

// PredictHigherExecutionTime returns the conservative whole-iteration
// duration estimate, trained at each StartNextIteration.
func (g *SequentialGroup) PredictHigherExecutionTime() float64 {
	return g.timing.Higher.Predict()
}

// PredictLowerExecutionTime is the optimistic analogue of
// PredictHigherExecutionTime.
func (g *SequentialGroup) PredictLowerExecutionTime() float64 {
	return g.timing.Lower.Predict()
}

// StartNextIteration resets the group and recursively resets member
// groups. Legal only when IsDone() holds (I5); violating that is a bug
// signal, not a user-facing condition, so it panics.
func (g *SequentialGroup) StartNextIteration() {
	g.mu.Lock()
	if !g.isDoneLocked() {
		g.mu.Unlock()
		panic(ErrStartBeforeDone)
	}
	start := g.iterationStart
	g.index = -1
	g.runsAtIndex = 0
	g.iterationStart = time.Time{}
	members := g.members
	g.mu.Unlock()

	if !start.IsZero() {
		g.timing.Observe(time.Since(start).Seconds())
	}
	for _, m := range members {
		if m.IsGroup() {
			m.Group().StartNextIteration()
		}
	}
	g.cond.Broadcast()
}

// InstallParent sets the group's owning parent exactly once, per I1.
func (g *SequentialGroup) InstallParent(parent any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.parent != nil {
		return false
	}
	g.parent = parent
	return true
}

// UninstallParent clears the group's parent, if any.
func (g *SequentialGroup) UninstallParent() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.parent = nil
}

// InstallLoop sets the loop handle exactly once, per I2, then recursively
// installs it into every member, rolling back atomically on conflict.
func (g *SequentialGroup) InstallLoop(l LoopHandle) bool {
	g.mu.Lock()
	if g.loopHandle != nil {
		g.mu.Unlock()
		return false
	}
	g.loopHandle = l
	members := g.members
	g.mu.Unlock()

	if err := installMembersLoop(l, members); err != nil {
		g.mu.Lock()
		g.loopHandle = nil
		g.mu.Unlock()
		return false
	}
	return true
}

// UninstallLoop clears the loop handle and recursively detaches every
// member.
func (g *SequentialGroup) UninstallLoop() {
	g.mu.Lock()
	members := g.members
	g.loopHandle = nil
	g.mu.Unlock()
	uninstallMembersLoop(members)
}
