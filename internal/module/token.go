package module

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/workloop/internal/ctxlog"
)

// RunningToken is a scoped reservation on a module, created by
// Module.AcquireToken. It is single-use: the first call to Run (or an
// explicit Release) consumes it; later calls are no-ops. The idiomatic Go
// shape for the "on drop, release unconsumed exclusivity" rule is
// an explicit Release method used with defer, since Go has no destructors:
//
//	token := m.AcquireToken()
//	defer token.Release()
//	if !token.MayRun() {
//	    return false
//	}
//	token.Run(ctx)
type RunningToken struct {
	mu       sync.Mutex
	module   *Module
	mayRun   bool
	claimed  bool // true if this token flipped is_available to false
	consumed bool // guards idempotent Run/Release
}

// AcquireToken attempts to claim permission to run the module once. The
// resulting may_run verdict is resolved here, under the module's critical
// section.
func (m *Module) AcquireToken() *RunningToken {
	switch m.policy {
	case Exclusive:
		m.availMu.Lock()
		ok := m.isAvailable
		if ok {
			m.isAvailable = false
		}
		m.availMu.Unlock()
		return &RunningToken{module: m, mayRun: ok, claimed: ok}

	case Parallel:
		return &RunningToken{module: m, mayRun: true}

	case ExclusiveCustom:
		m.availMu.Lock()
		ok := m.isAvailable && (m.canRun == nil || m.canRun())
		if ok {
			m.isAvailable = false
		}
		m.availMu.Unlock()
		return &RunningToken{module: m, mayRun: ok, claimed: ok}

	case ParallelCustom:
		ok := m.canRun == nil || m.canRun()
		return &RunningToken{module: m, mayRun: ok}

	default:
		return &RunningToken{module: m, mayRun: false}
	}
}

// MayRun reports whether this token is still authorized to run. It starts
// at the value resolved by AcquireToken and flips to false once Run or
// Release has consumed the token.
func (t *RunningToken) MayRun() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mayRun
}

// Run executes the module's on_run exactly once, if MayRun holds. It
// brackets the call with a steady-clock sample, trains both timing bands
// with the measured duration, and — on every exit path, including a
// panic — restores is_available and wakes waiters if this token had
// claimed exclusivity. Any error or panic from on_run is logged at Error
// level through ctx's logger, funneled to the module's HandleException
// hook, and otherwise swallowed.
func (t *RunningToken) Run(ctx context.Context) {
	t.mu.Lock()
	if !t.mayRun || t.consumed {
		t.mu.Unlock()
		return
	}
	t.mayRun = false
	t.consumed = true
	claimed := t.claimed
	t.mu.Unlock()

	if claimed {
		defer t.module.releaseExclusivity()
	}

	start := time.Now()
	err := t.invoke(ctx)
	elapsed := time.Since(start).Seconds()
	t.module.timing.Observe(elapsed)

	if err != nil {
		ctxlog.FromContext(ctx).Error("module run failed", "module", t.module.Name, "error", err)
		t.module.dispatchException(err)
	}
}

// invoke calls on_run, converting a panic into an error so Run's timing
// and exclusivity bookkeeping always complete.
func (t *RunningToken) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module %s: panic in on_run: %v", t.module.Name, r)
		}
	}()
	return t.module.onRun(ctx)
}

// Release drops the token without running it. If the token had claimed
// exclusivity that Run never consumed, the claim is released and waiters
// are notified; otherwise this is a no-op. Safe to call multiple times
// (R2) and safe to call after Run (also a no-op, since Run already
// consumed the token).
func (t *RunningToken) Release() {
	t.mu.Lock()
	if t.consumed {
		t.mu.Unlock()
		return
	}
	t.consumed = true
	t.mayRun = false
	claimed := t.claimed
	t.mu.Unlock()

	if claimed {
		t.module.releaseExclusivity()
	}
}
