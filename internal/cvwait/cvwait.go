// Package cvwait implements a timed condition-variable wait that learns how
// much it typically overshoots its requested deadline and compensates for
// it on the next call — the "smart" half of the scheduler's park/wake path.
//
// Go's sync.Cond has no built-in timed wait. The pattern used below — race
// a Wait() against a timer goroutine that Broadcasts to unstick it — mirrors
// how the pack's own condition-variable user solves the same gap for
// context cancellation instead of a deadline (see
// Iron-Ham-claudio/internal/bridge/semaphore.go's dynamicSemaphore.Acquire).
package cvwait

import (
	"sync"
	"time"

	"github.com/vk/workloop/internal/predict"
)

// Waiter wraps a standard timed condition-variable wait and subtracts a
// predicted "overshoot" so that worker wakeups land closer to the nominal
// deadline. It trains only on true-timeout wakeups — never on
// predicate-satisfied wakeups, which would conflate signal latency with
// scheduling overshoot.
type Waiter struct {
	errPredictor *predict.Predictor
}

// New builds a Waiter with a fresh overshoot predictor seeded at zero.
func New() *Waiter {
	return &Waiter{errPredictor: predict.New(0, predict.DefaultFast, predict.DefaultSlow)}
}

// WaitFor waits on cond (whose lock must already be held by the caller)
// until predicate returns true or duration elapses, returning predicate's
// final value. A duration <= 0 means "no limit" and waits indefinitely
// without consulting the predictor, matching the Group/Module max_wait
// convention of 0 == infinite.
func (w *Waiter) WaitFor(cond *sync.Cond, duration time.Duration, predicate func() bool) bool {
	if predicate() {
		return true
	}
	if duration <= 0 {
		for !predicate() {
			cond.Wait()
		}
		return true
	}

	e := time.Duration(w.errPredictor.Predict() * float64(time.Second))
	if e >= duration {
		// Too little time budget left once the predicted overshoot is
		// subtracted out — decline the wait entirely rather than wake up
		// already late.
		return false
	}
	clampedE := e
	if clampedE < 0 {
		clampedE = 0
	}
	budget := duration - clampedE

	start := time.Now()
	ok := timedWait(cond, budget, predicate)
	if !ok {
		// Pure timeout wakeup (predicate never became true): train on the
		// observed overshoot relative to the ORIGINAL requested duration.
		actual := time.Since(start)
		w.errPredictor.Observe((actual - duration).Seconds())
	}
	return ok
}

// PlainWait is the non-predictive fallback used when the "use smart CV
// waiter" toggle is off: a bounded timed wait with no overshoot
// compensation.
func PlainWait(cond *sync.Cond, duration time.Duration, predicate func() bool) bool {
	if duration <= 0 {
		for !predicate() {
			cond.Wait()
		}
		return true
	}
	return timedWait(cond, duration, predicate)
}

// timedWait blocks on cond.Wait() until predicate is true or duration
// elapses. cond.L must be held on entry and is held again on return,
// matching sync.Cond.Wait's own contract.
func timedWait(cond *sync.Cond, duration time.Duration, predicate func() bool) bool {
	if predicate() {
		return true
	}
	if duration <= 0 {
		return false
	}

	deadline := time.Now().Add(duration)
	timer := time.AfterFunc(duration, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()

	for !predicate() {
		if !time.Now().Before(deadline) {
			return false
		}
		cond.Wait()
	}
	return true
}
