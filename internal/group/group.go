package group

import (
	"errors"
	"time"

	"github.com/vk/workloop/internal/module"
)

// MinPendingTime is the minimal positive sentinel returned by the
// predict_remaining_* family when work is in flight but has (almost)
// finished, so callers never mistake "nearly done" for "nothing running".
const MinPendingTime = time.Microsecond

// ErrMemberAlreadyOwned is returned when a member passed to a group
// constructor already has a parent — topology conflict, per I1.
var ErrMemberAlreadyOwned = errors.New("group: member already has a parent")

// ErrAlreadyInLoop is returned by InstallLoop when the group already
// belongs to a loop — topology conflict, per I2.
var ErrAlreadyInLoop = errors.New("group: already installed in a loop")

// ErrStartBeforeDone guards start_next_iteration's precondition (I5).
var ErrStartBeforeDone = errors.New("group: start_next_iteration called before is_done")

// LoopHandle is what a Group needs from its owning Loop: the root group
// surfaced to Module.Idle, and whether bounded waits should subtract
// predicted overshoot. It is a superset of module.LoopHandle so the same
// concrete *loop.Loop value can be handed to module.InstallLoop and
// group.InstallLoop alike.
type LoopHandle interface {
	Root() module.RunnerGroup
	UseSmartWaiter() bool
}

// Group is the protocol every composite node exposes to its parent group
// and to the owning Loop. SequentialGroup and ParallelGroup are
// its only implementations.
type Group interface {
	// RunNext attempts to advance the group by one module execution.
	// maxExecTime == 0 means no budget limit. Returns whether work
	// happened; a call that only moves the group's own bookkeeping on
	// (advancing to the next sequential stage, retiring a finished
	// subgroup from the parallel main queue) also returns true.
	RunNext(maxExecTime time.Duration) bool

	// IsRunAvailable reports whether a module is immediately runnable
	// under budget.
	IsRunAvailable(budget time.Duration) bool

	// IsAvailable is IsRunAvailable(budget) || IsDone().
	IsAvailable(budget time.Duration) bool

	// WaitForRunAvailability blocks until IsRunAvailable(budget) holds or
	// maxWait elapses (0 meaning no limit). Returns the final predicate
	// value; may return spuriously false before the deadline.
	WaitForRunAvailability(budget, maxWait time.Duration) bool

	// WaitForAvailability is the IsAvailable analogue of
	// WaitForRunAvailability.
	WaitForAvailability(budget, maxWait time.Duration) bool

	// IsDone reports whether the current iteration has completed.
	IsDone() bool

	// StartNextIteration resets the group (and, recursively, its member
	// groups) for a fresh iteration. Legal only when IsDone() holds (I5).
	StartNextIteration()

	// PredictHigherRemainingExecutionTime/PredictLowerRemainingExecutionTime
	// conservatively/optimistically estimate how long in-flight work will
	// take. 0 iff nothing is running; otherwise at least MinPendingTime.
	PredictHigherRemainingExecutionTime() float64
	PredictLowerRemainingExecutionTime() float64

	// PredictHigherExecutionTime/PredictLowerExecutionTime estimate a
	// whole iteration's duration, trained at iteration boundaries.
	PredictHigherExecutionTime() float64
	PredictLowerExecutionTime() float64

	// InstallParent/UninstallParent and InstallLoop/UninstallLoop are the
	// topology set-once/clear-once operations —
	// exported so a parent Group's constructor (or the Loop) can drive
	// them on a member Group exactly as it drives module.Module's
	// identically-shaped pair.
	InstallParent(parent any) bool
	UninstallParent()
	InstallLoop(l LoopHandle) bool
	UninstallLoop()
}

// Member is a tagged sum type holding either a subgroup or a module —
// the fixed-shape alternative to a polymorphic slice of interface{}
// members.
type Member struct {
	group Group
	mod   *module.Module
}

// OfGroup wraps a subgroup as a Member.
func OfGroup(g Group) Member { return Member{group: g} }

// OfModule wraps a module as a Member.
func OfModule(m *module.Module) Member { return Member{mod: m} }

// IsGroup reports whether this Member holds a subgroup rather than a
// module.
func (m Member) IsGroup() bool { return m.group != nil }

// Group returns the held subgroup, or nil if this Member holds a module.
func (m Member) Group() Group { return m.group }

// Module returns the held module, or nil if this Member holds a
// subgroup.
func (m Member) Module() *module.Module { return m.mod }

func (m Member) installParent(parent any) bool {
	if m.IsGroup() {
		return m.group.InstallParent(parent)
	}
	return m.mod.InstallParent(parent)
}

func (m Member) uninstallParent() {
	if m.IsGroup() {
		m.group.UninstallParent()
		return
	}
	m.mod.UninstallParent()
}

func (m Member) installLoop(l LoopHandle) bool {
	if m.IsGroup() {
		return m.group.InstallLoop(l)
	}
	return m.mod.InstallLoop(l)
}

func (m Member) uninstallLoop() {
	if m.IsGroup() {
		m.group.UninstallLoop()
		return
	}
	m.mod.UninstallLoop()
}

// installMembers installs parent as the owning parent of every member,
// rolling back all prior installs atomically if any one fails — the
// try/rollback shape every group constructor shares.
func installMembers(parent any, members []Member) error {
	for i, m := range members {
		if !m.installParent(parent) {
			for j := 0; j < i; j++ {
				members[j].uninstallParent()
			}
			return ErrMemberAlreadyOwned
		}
	}
	return nil
}

// installMembersLoop recursively installs a loop handle on every member,
// rolling back atomically on first failure.
func installMembersLoop(l LoopHandle, members []Member) error {
	for i, m := range members {
		if !m.installLoop(l) {
			for j := 0; j < i; j++ {
				members[j].uninstallLoop()
			}
			return ErrAlreadyInLoop
		}
	}
	return nil
}

func uninstallMembersLoop(members []Member) {
	for _, m := range members {
		m.uninstallLoop()
	}
}

// clampBudgetToRemaining implements the "effective budget is clamped to
// min(budget, remaining_lower_prediction)" rule.
// budget == 0 means unlimited; remainingSeconds is a lower-bound duration
// prediction for in-flight work.
func clampBudgetToRemaining(budget time.Duration, remainingSeconds float64) time.Duration {
	remaining := time.Duration(remainingSeconds * float64(time.Second))
	if budget <= 0 || remaining < budget {
		return remaining
	}
	return budget
}

// fitsBudget reports whether a higher-band prediction (seconds) is
// admitted by budget (0 meaning unlimited).
func fitsBudget(budget time.Duration, higherPredictionSeconds float64) bool {
	if budget <= 0 {
		return true
	}
	return time.Duration(higherPredictionSeconds*float64(time.Second)) <= budget
}
