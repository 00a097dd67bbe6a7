package group

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/workloop/internal/module"
)

func parallelCountingModule(name string, counter *atomic.Int32) *module.Module {
	return module.New(name, module.Parallel, func(ctx context.Context) error {
		counter.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})
}

func runGroupWithWorkers(t *testing.T, g Group, workers int) {
	t.Helper()
	var wg sync.WaitGroup
	deadline := time.Now().Add(2 * time.Second)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !g.IsDone() {
				if time.Now().After(deadline) {
					return
				}
				if !g.RunNext(0) {
					g.WaitForAvailability(0, 10*time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
	require.True(t, g.IsDone(), "group never completed within the test deadline")
}

func TestParallelGroup_RunsEveryMemberExactlyOnce(t *testing.T) {
	var counter atomic.Int32
	specs := make([]MemberSpec, 5)
	for i := range specs {
		specs[i] = MemberSpec{Member: OfModule(parallelCountingModule("w", &counter))}
	}
	g, err := NewParallelGroup(specs)
	require.NoError(t, err)

	runGroupWithWorkers(t, g, 4)
	assert.Equal(t, int32(5), counter.Load())
}

// P4-adjacent: k independent Parallel modules complete with multiple
// workers faster than a single worker would need serially, demonstrating
// actual concurrent dispatch rather than accidental serialization.
func TestParallelGroup_MultipleWorkersRunConcurrently(t *testing.T) {
	const k = 8
	var inFlight atomic.Int32
	var maxSeen atomic.Int32
	specs := make([]MemberSpec, k)
	for i := range specs {
		specs[i] = MemberSpec{Member: OfModule(module.New("w", module.Parallel, func(ctx context.Context) error {
			n := inFlight.Add(1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}))}
	}
	g, err := NewParallelGroup(specs)
	require.NoError(t, err)

	runGroupWithWorkers(t, g, 4)
	assert.Greater(t, maxSeen.Load(), int32(1), "workers never overlapped")
}

// IsDone depends solely on main_queue: it can go true
// while rerun-share copies are still sitting in secondary_queue. Drive
// RunNext directly (rather than stopping at IsDone) to exercise them.
func TestParallelGroup_RerunSharesAreOfferedFromSecondaryQueue(t *testing.T) {
	var counter atomic.Int32
	m := parallelCountingModule("w", &counter)
	g, err := NewParallelGroup([]MemberSpec{{Member: OfModule(m), RerunShares: 2}})
	require.NoError(t, err)

	require.True(t, g.RunNext(0), "first run, from main_queue")
	assert.True(t, g.IsDone())

	require.True(t, g.RunNext(0), "first rerun share, from secondary_queue")
	require.True(t, g.RunNext(0), "second rerun share")
	assert.False(t, g.RunNext(0), "secondary_queue exhausted")

	assert.Equal(t, int32(3), counter.Load())
}

func TestParallelGroup_StartNextIteration_ResetsQueues(t *testing.T) {
	var counter atomic.Int32
	m := parallelCountingModule("w", &counter)
	g, err := NewParallelGroup([]MemberSpec{{Member: OfModule(m)}})
	require.NoError(t, err)

	runGroupWithWorkers(t, g, 1)
	assert.Equal(t, int32(1), counter.Load())

	g.StartNextIteration()
	assert.False(t, g.IsDone())

	runGroupWithWorkers(t, g, 1)
	assert.Equal(t, int32(2), counter.Load())
}

func TestParallelGroup_StartNextIteration_PanicsBeforeDone(t *testing.T) {
	m := parallelCountingModule("w", &atomic.Int32{})
	g, err := NewParallelGroup([]MemberSpec{{Member: OfModule(m)}})
	require.NoError(t, err)

	assert.Panics(t, func() { g.StartNextIteration() })
}

// S3-style budgeted dispatch: a fast and a slow module in the same
// group; a tight budget only ever picks the fast one.
func TestParallelGroup_BudgetedDispatchPicksOnlyFastMember(t *testing.T) {
	var fastCount, slowCount atomic.Int32
	fast := module.New("fast", module.Parallel, func(ctx context.Context) error {
		fastCount.Add(1)
		return nil
	}, module.WithInitialPrediction(0.001))
	slow := module.New("slow", module.Parallel, func(ctx context.Context) error {
		slowCount.Add(1)
		return nil
	}, module.WithInitialPrediction(0.05))

	g, err := NewParallelGroup([]MemberSpec{
		{Member: OfModule(fast)},
		{Member: OfModule(slow)},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		g.RunNext(5 * time.Millisecond)
	}
	assert.Equal(t, int32(1), fastCount.Load())
	assert.Equal(t, int32(0), slowCount.Load())

	assert.True(t, g.RunNext(0))
	assert.Equal(t, int32(1), slowCount.Load())
}

// A Parallel member with a rerun share can be dispatched a second time,
// concurrently with its own still-running first instance, once the queue
// mints the secondary-queue copy. PredictHigherRemainingExecutionTime must
// keep counting the first instance until it actually completes, not just
// until *a* instance of the same member index completes.
func TestParallelGroup_RemainingTime_TracksConcurrentInstancesOfSameMemberIndependently(t *testing.T) {
	release1 := make(chan struct{})
	release2 := make(chan struct{})
	started := make(chan struct{}, 2)

	var calls atomic.Int32
	m := module.New("w", module.Parallel, func(ctx context.Context) error {
		n := calls.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-release1
		} else {
			<-release2
		}
		return nil
	}, module.WithInitialPrediction(1))

	g, err := NewParallelGroup([]MemberSpec{{Member: OfModule(m), RerunShares: 1}})
	require.NoError(t, err)

	done1 := make(chan struct{})
	go func() {
		require.True(t, g.RunNext(0), "first dispatch, from main_queue")
		close(done1)
	}()
	<-started // first instance is now blocked inside on_run

	// The rerun share was minted into secondary_queue as soon as the first
	// instance was dispatched (module.Parallel always MayRun), so a second
	// worker can pick it up concurrently, before the first instance returns.
	done2 := make(chan struct{})
	go func() {
		require.True(t, g.RunNext(0), "second dispatch, from secondary_queue, concurrent with the first")
		close(done2)
	}()
	<-started // second instance is now blocked inside on_run too

	require.Greater(t, g.PredictHigherRemainingExecutionTime(), 0.0, "both instances in flight")

	close(release1)
	<-done1
	// The first instance just completed; the second is still running. A
	// map keyed only by member index (overwritten/erased on any completion)
	// would now wrongly report 0 here.
	require.Greater(t, g.PredictHigherRemainingExecutionTime(), 0.0,
		"a sibling run of the same member is still in flight")

	close(release2)
	<-done2
	assert.Equal(t, 0.0, g.PredictHigherRemainingExecutionTime(), "nothing left running")
}

func TestParallelGroup_RejectsAlreadyOwnedMember(t *testing.T) {
	m := parallelCountingModule("w", &atomic.Int32{})
	g1, err := NewParallelGroup([]MemberSpec{{Member: OfModule(m)}})
	require.NoError(t, err)

	_, err = NewParallelGroup([]MemberSpec{{Member: OfModule(m)}})
	assert.ErrorIs(t, err, ErrMemberAlreadyOwned)
	assert.Equal(t, g1, m.Parent())
}
