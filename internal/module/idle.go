package module

import (
	"sync"
	"time"
)

// Idle spends minWait of wall-clock budget making the calling goroutine
// useful to the loop instead of blocking it outright: it alternates
// between asking the root group to run a module (RunNext) and parking on
// the root's availability (WaitForAvailability), each bounded by whatever
// budget remains, until minWait has elapsed. If the module isn't attached
// to a Loop yet, it degrades to a plain sleep.
func (m *Module) Idle(minWait time.Duration) {
	deadline := time.Now().Add(minWait)
	root := m.rootGroup()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if root == nil {
			time.Sleep(remaining)
			return
		}
		if root.RunNext(remaining) {
			continue
		}
		root.WaitForAvailability(remaining, remaining)
	}
}

func (m *Module) rootGroup() RunnerGroup {
	handle := m.loopHandle()
	if handle == nil {
		return nil
	}
	return handle.Root()
}

// IdlingToken is a scoped handle on the background cooperative-yield task
// started by Module.StartIdling. Its Stop method signals the background
// goroutine and blocks until it has joined — the idiomatic Go substitute
// for "on drop, signal stop and join", since Go has no destructors.
type IdlingToken struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Stop signals the background idler to exit and waits for it to do so.
// Safe to call more than once.
func (t *IdlingToken) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// StartIdling spawns a background goroutine that repeatedly calls Idle in
// small slices (bounded by maxWaitAfterStop, so Stop is never blocked for
// longer than that) until either Stop is called or totalMaxWait elapses
// (0 meaning no overall limit). It is single-shot: calling StartIdling
// again while a previous token from this module hasn't been Stopped
// panics: a module runs at most one background idler at a time.
func (m *Module) StartIdling(maxWaitAfterStop, totalMaxWait time.Duration) *IdlingToken {
	if !m.idling.TryLock() {
		panic("module: StartIdling called while a previous IdlingToken is still active")
	}

	token := &IdlingToken{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	var deadline time.Time
	if totalMaxWait > 0 {
		deadline = time.Now().Add(totalMaxWait)
	}

	go func() {
		defer close(token.done)
		defer m.idling.Unlock()
		for {
			select {
			case <-token.stop:
				return
			default:
			}
			slice := maxWaitAfterStop
			if !deadline.IsZero() {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					return
				}
				if remaining < slice {
					slice = remaining
				}
			}
			m.Idle(slice)
		}
	}()

	return token
}
