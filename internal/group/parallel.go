package group

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/vk/workloop/internal/cvwait"
	"github.com/vk/workloop/internal/module"
	"github.com/vk/workloop/internal/predict"
)

// parallelMember pairs a Member with how many extra times it should be
// offered again (from the secondary queue) after its first run this
// iteration.
type parallelMember struct {
	member      Member
	rerunShares uint32
}

// MemberSpec describes one ParallelGroup member at construction time.
type MemberSpec struct {
	Member Member
	// RerunShares is how many copies of this member are pushed into the
	// secondary queue once it first runs (or, for a subgroup, once it
	// first reports is_done) this iteration.
	RerunShares uint32
}

// ParallelOption configures optional ParallelGroup behavior.
type ParallelOption func(*ParallelGroup)

// WithExtendIterationForAdditionalGroupRuns enables the optional
// secondary-queue extension: when a subgroup member is offered
// from the secondary queue and its whole-iteration higher prediction
// fits budget, start a fresh iteration on it immediately instead of
// waiting for the parent's own iteration boundary. Off by default.
func WithExtendIterationForAdditionalGroupRuns(enabled bool) ParallelOption {
	return func(g *ParallelGroup) { g.extendIteration = enabled }
}

// WithParallelPredictorRates overrides the biased-EMA fast/slow rates used
// by this group's own whole-iteration timing Pair instead of
// predict.DefaultFast/predict.DefaultSlow. It does not affect member
// modules/groups, which take their own rates independently.
func WithParallelPredictorRates(fastAlpha, slowAlpha float64) ParallelOption {
	return func(g *ParallelGroup) { g.timing = predict.NewPairWithRates(0, fastAlpha, slowAlpha) }
}

type runningModuleInfo struct {
	start      time.Time
	higherPred float64
	lowerPred  float64
}

// ParallelGroup executes its members concurrently through a two-phase
// main/secondary priority queue, respecting each member's rerun shares.
type ParallelGroup struct {
	members []parallelMember

	mu             sync.Mutex
	cond           *sync.Cond
	mainQueue      *list.List // list of member index (int)
	secondaryQueue *list.List
	// runningModules tracks every in-flight run per member index as its own
	// entry, since a Parallel/ParallelCustom member's secondary-queue copies
	// can be picked up and run concurrently by two different workers — a
	// single overwritable struct keyed by index alone would let the first
	// completion erase the still-running second instance's prediction.
	runningModules map[int][]*runningModuleInfo
	runningGroups  map[int]int // member index -> concurrent recursion count
	runningThreads  int
	notifyCounter   uint64
	extendIteration bool

	timing         predict.Pair
	iterationStart time.Time
	waiter         *cvwait.Waiter

	parent     any
	loopHandle LoopHandle
}

// NewParallelGroup builds a detached ParallelGroup, installing itself as
// the parent of every spec's member, rolling back atomically if any
// member already has a parent (I1).
func NewParallelGroup(specs []MemberSpec, opts ...ParallelOption) (*ParallelGroup, error) {
	members := make([]Member, len(specs))
	pms := make([]parallelMember, len(specs))
	for i, s := range specs {
		members[i] = s.Member
		pms[i] = parallelMember{member: s.Member, rerunShares: s.RerunShares}
	}

	g := &ParallelGroup{
		members:        pms,
		mainQueue:      list.New(),
		secondaryQueue: list.New(),
		runningModules: make(map[int][]*runningModuleInfo),
		runningGroups:  make(map[int]int),
		timing:         predict.NewPair(0),
		waiter:         cvwait.New(),
	}
	g.cond = sync.NewCond(&g.mu)
	for _, opt := range opts {
		opt(g)
	}
	if err := installMembers(g, members); err != nil {
		return nil, err
	}
	for i := range pms {
		g.mainQueue.PushBack(i)
	}
	return g, nil
}

// IsDone reports whether the main queue has been fully drained. Running
// threads may still be winding down.
func (g *ParallelGroup) IsDone() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mainQueue.Len() == 0
}

func fitsModuleBudget(budget time.Duration, m Member) bool {
	return fitsBudget(budget, m.Module().PredictHigherExecutionTime())
}

func (g *ParallelGroup) isRunAvailableLocked(budget time.Duration) bool {
	for e := g.mainQueue.Front(); e != nil; e = e.Next() {
		idx := e.Value.(int)
		mem := g.members[idx].member
		if mem.IsGroup() {
			sub := mem.Group()
			if sub.IsDone() || sub.IsRunAvailable(budget) {
				return true
			}
			continue
		}
		if fitsModuleBudget(budget, mem) {
			return true
		}
	}
	for e := g.secondaryQueue.Front(); e != nil; e = e.Next() {
		idx := e.Value.(int)
		mem := g.members[idx].member
		if mem.IsGroup() {
			if g.extendIteration && fitsBudget(budget, mem.Group().PredictHigherExecutionTime()) {
				return true
			}
			continue
		}
		if fitsModuleBudget(budget, mem) {
			return true
		}
	}
	return false
}

// IsRunAvailable reports whether some member is immediately runnable
// within budget (0 meaning unlimited).
func (g *ParallelGroup) IsRunAvailable(budget time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isRunAvailableLocked(budget)
}

// IsAvailable is IsRunAvailable(budget) || IsDone().
func (g *ParallelGroup) IsAvailable(budget time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isRunAvailableLocked(budget) || g.mainQueue.Len() == 0
}

func (g *ParallelGroup) useSmartWaiter() bool {
	return g.loopHandle != nil && g.loopHandle.UseSmartWaiter()
}

func (g *ParallelGroup) waitFor(maxWait time.Duration, predicate func() bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.useSmartWaiter() {
		return g.waiter.WaitFor(g.cond, maxWait, predicate)
	}
	return cvwait.PlainWait(g.cond, maxWait, predicate)
}

// WaitForRunAvailability blocks until IsRunAvailable(budget) holds or
// maxWait elapses.
func (g *ParallelGroup) WaitForRunAvailability(budget, maxWait time.Duration) bool {
	return g.waitFor(maxWait, func() bool { return g.isRunAvailableLocked(budget) })
}

// WaitForAvailability blocks until IsAvailable(budget) holds or maxWait
// elapses.
func (g *ParallelGroup) WaitForAvailability(budget, maxWait time.Duration) bool {
	return g.waitFor(maxWait, func() bool {
		return g.isRunAvailableLocked(budget) || g.mainQueue.Len() == 0
	})
}

// runModule dispatches member idx's module. Called with g.mu held; it
// removes idx from queue, mints rerun-share copies into the secondary
// queue when mintShares holds (only a main-queue dispatch mints shares),
// runs unlocked, and re-acquires g.mu before
// returning, so callers can treat it as a drop-in locked call.
func (g *ParallelGroup) runModule(idx int, queue *list.List, elem *list.Element, mintShares bool, tok *module.RunningToken) {
	mod := g.members[idx].member.Module()
	queue.Remove(elem)
	if mintShares {
		for i := uint32(0); i < g.members[idx].rerunShares; i++ {
			g.secondaryQueue.PushBack(idx)
		}
	}
	g.runningThreads++
	info := &runningModuleInfo{
		start:      time.Now(),
		higherPred: mod.PredictHigherExecutionTime(),
		lowerPred:  mod.PredictLowerExecutionTime(),
	}
	g.runningModules[idx] = append(g.runningModules[idx], info)
	g.mu.Unlock()

	tok.Run(context.Background())

	g.mu.Lock()
	g.runningThreads--
	g.removeRunningInfoLocked(idx, info)
	g.notifyCounter++
	g.mu.Unlock()
	g.cond.Broadcast()
	g.mu.Lock()
}

// removeRunningInfoLocked drops exactly the given in-flight instance for
// member idx, not just any entry at that index, so a concurrent sibling run
// of the same module keeps counting toward the remaining-time prediction
// until it, too, completes. Called with g.mu held.
func (g *ParallelGroup) removeRunningInfoLocked(idx int, info *runningModuleInfo) {
	infos := g.runningModules[idx]
	for i, candidate := range infos {
		if candidate == info {
			infos = append(infos[:i], infos[i+1:]...)
			break
		}
	}
	if len(infos) == 0 {
		delete(g.runningModules, idx)
		return
	}
	g.runningModules[idx] = infos
}

// RunNext walks the main queue, then the secondary queue, acting on the
// first member it can.
func (g *ParallelGroup) RunNext(maxExecTime time.Duration) bool {
	g.mu.Lock()

	for e := g.mainQueue.Front(); e != nil; e = e.Next() {
		idx := e.Value.(int)
		mem := g.members[idx].member

		if mem.IsGroup() {
			sub := mem.Group()
			if sub.IsDone() {
				g.mainQueue.Remove(e)
				for i := uint32(0); i < g.members[idx].rerunShares; i++ {
					g.secondaryQueue.PushBack(idx)
				}
				g.mu.Unlock()
				g.cond.Broadcast()
				return true
			}
			if !sub.IsRunAvailable(maxExecTime) {
				continue
			}
			g.runningThreads++
			g.runningGroups[idx]++
			g.mu.Unlock()

			ran := sub.RunNext(maxExecTime)

			g.mu.Lock()
			g.runningThreads--
			g.runningGroups[idx]--
			if g.runningGroups[idx] == 0 {
				delete(g.runningGroups, idx)
			}
			g.notifyCounter++
			g.mu.Unlock()
			g.cond.Broadcast()
			return ran
		}

		if !fitsModuleBudget(maxExecTime, mem) {
			continue
		}
		tok := mem.Module().AcquireToken()
		if !tok.MayRun() {
			tok.Release()
			continue
		}
		g.runModule(idx, g.mainQueue, e, true, tok)
		g.mu.Unlock()
		return true
	}

	for e := g.secondaryQueue.Front(); e != nil; e = e.Next() {
		idx := e.Value.(int)
		mem := g.members[idx].member

		if mem.IsGroup() {
			if !g.extendIteration {
				continue
			}
			sub := mem.Group()
			if !fitsBudget(maxExecTime, sub.PredictHigherExecutionTime()) {
				continue
			}
			g.secondaryQueue.Remove(e)
			g.mainQueue.PushBack(idx)
			sub.StartNextIteration()
			g.runningThreads++
			g.runningGroups[idx]++
			g.mu.Unlock()

			ran := sub.RunNext(maxExecTime)

			g.mu.Lock()
			g.runningThreads--
			g.runningGroups[idx]--
			if g.runningGroups[idx] == 0 {
				delete(g.runningGroups, idx)
			}
			g.notifyCounter++
			g.mu.Unlock()
			g.cond.Broadcast()
			return ran
		}

		if !fitsModuleBudget(maxExecTime, mem) {
			continue
		}
		tok := mem.Module().AcquireToken()
		if !tok.MayRun() {
			tok.Release()
			continue
		}
		g.runModule(idx, g.secondaryQueue, e, false, tok)
		g.mu.Unlock()
		return true
	}

	g.mu.Unlock()
	return false
}

func (g *ParallelGroup) remainingLocked(higher bool) float64 {
	if g.runningThreads == 0 {
		return 0
	}
	var worstCase float64
	for _, infos := range g.runningModules {
		for _, info := range infos {
			pred := info.lowerPred
			if higher {
				pred = info.higherPred
			}
			r := pred - time.Since(info.start).Seconds()
			if r < MinPendingTime.Seconds() {
				r = MinPendingTime.Seconds()
			}
			if r > worstCase {
				worstCase = r
			}
		}
	}
	for idx := range g.runningGroups {
		sub := g.members[idx].member.Group()
		var r float64
		if higher {
			r = sub.PredictHigherRemainingExecutionTime()
		} else {
			r = sub.PredictLowerRemainingExecutionTime()
		}
		if r > worstCase {
			worstCase = r
		}
	}
	if worstCase <= 0 {
		worstCase = MinPendingTime.Seconds()
	}
	return worstCase
}

// PredictHigherRemainingExecutionTime conservatively estimates how long
// until every currently in-flight member finishes. 0 if nothing is
// running.
func (g *ParallelGroup) PredictHigherRemainingExecutionTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(true)
}

// PredictLowerRemainingExecutionTime is the optimistic analogue of
// PredictHigherRemainingExecutionTime.
func (g *ParallelGroup) PredictLowerRemainingExecutionTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(false)
}

// PredictHigherExecutionTime returns the conservative whole-iteration
// duration estimate, trained at each StartNextIteration.
func (g *ParallelGroup) PredictHigherExecutionTime() float64 {
	return g.timing.Higher.Predict()
}

// PredictLowerExecutionTime is the optimistic analogue of
// PredictHigherExecutionTime.
func (g *ParallelGroup) PredictLowerExecutionTime() float64 {
	return g.timing.Lower.Predict()
}

// StartNextIteration resets main_queue to [0..n-1] in member order and
// empties secondary_queue, then recursively
// resets member groups. Legal only when IsDone() holds (I5).
func (g *ParallelGroup) StartNextIteration() {
	g.mu.Lock()
	if g.mainQueue.Len() != 0 {
		g.mu.Unlock()
		panic(ErrStartBeforeDone)
	}
	start := g.iterationStart
	g.mainQueue.Init()
	g.secondaryQueue.Init()
	for i := range g.members {
		g.mainQueue.PushBack(i)
	}
	g.iterationStart = time.Now()
	members := make([]Member, len(g.members))
	for i, pm := range g.members {
		members[i] = pm.member
	}
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
func (g *ParallelGroup) InstallParent(parent any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.parent != nil {
		return false
	}
	g.parent = parent
	return true
}

// UninstallParent clears the group's parent, if any.
func (g *ParallelGroup) UninstallParent() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.parent = nil
}

// InstallLoop sets the loop handle exactly once, per I2, then recursively
// installs it into every member, rolling back atomically on conflict.
func (g *ParallelGroup) InstallLoop(l LoopHandle) bool {
	g.mu.Lock()
	if g.loopHandle != nil {
		g.mu.Unlock()
		return false
	}
	g.loopHandle = l
	members := make([]Member, len(g.members))
	for i, pm := range g.members {
		members[i] = pm.member
	}
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
func (g *ParallelGroup) UninstallLoop() {
	g.mu.Lock()
	members := make([]Member, len(g.members))
	for i, pm := range g.members {
		members[i] = pm.member
	}
	g.loopHandle = nil
	g.mu.Unlock()
	uninstallMembersLoop(members)
}
