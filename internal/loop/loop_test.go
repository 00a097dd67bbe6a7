package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/workloop/internal/group"
	"github.com/vk/workloop/internal/module"
)

// S1-style: a sequential A,B,C triple driven by a loop that stops itself
// after a fixed number of iterations via a Stopper module.
func TestLoop_SequentialStopsAfterFixedIterations(t *testing.T) {
	var a, b, c atomic.Int32
	var order []int32
	ma := module.New("A", module.Exclusive, func(ctx context.Context) error { a.Add(1); order = append(order, 1); return nil })
	mb := module.New("B", module.Exclusive, func(ctx context.Context) error { b.Add(1); order = append(order, 2); return nil })
	mc := module.New("C", module.Exclusive, func(ctx context.Context) error { c.Add(1); order = append(order, 3); return nil })

	var iterations atomic.Int32
	var l *Loop
	stopper := module.New("Stopper", module.Exclusive, func(ctx context.Context) error {
		if iterations.Add(1) >= 10 {
			l.Stop()
		}
		return nil
	})

	root, err := group.NewSequentialGroup([]group.Member{
		group.OfModule(ma), group.OfModule(mb), group.OfModule(mc), group.OfModule(stopper),
	})
	require.NoError(t, err)

	l, err = New(root)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), 4) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop never stopped")
	}

	assert.Equal(t, int32(10), a.Load())
	assert.Equal(t, int32(10), b.Load())
	assert.Equal(t, int32(10), c.Load())
	assert.False(t, l.IsRunning())
}

func TestLoop_Run_FailsWhenAlreadyRunning(t *testing.T) {
	stopper := module.New("Stopper", module.Exclusive, func(ctx context.Context) error { return nil })
	root, err := group.NewSequentialGroup([]group.Member{group.OfModule(stopper)})
	require.NoError(t, err)

	l, err := New(root)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.StopAndWait()
	}()

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), 2) }()

	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, l.Run(context.Background(), 1), ErrAlreadyRunning)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop never stopped")
	}
}

func TestLoop_New_FailsWhenRootAlreadyInALoop(t *testing.T) {
	m := module.New("m", module.Parallel, func(ctx context.Context) error { return nil })
	root, err := group.NewSequentialGroup([]group.Member{group.OfModule(m)})
	require.NoError(t, err)

	_, err = New(root)
	require.NoError(t, err)

	_, err = New(root)
	assert.ErrorIs(t, err, group.ErrAlreadyInLoop)
}

// S6-style: Idle cooperation lets a worker thread stay useful while a
// module conceptually blocks, instead of sleeping the thread outright.
func TestLoop_IdleModuleCooperatesWithWorker(t *testing.T) {
	var workerRuns atomic.Int32
	worker := module.New("worker", module.Parallel, func(ctx context.Context) error {
		workerRuns.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})

	var idler *module.Module
	idler = module.New("idler", module.Exclusive, func(ctx context.Context) error {
		idler.Idle(30 * time.Millisecond)
		return nil
	})

	root, err := group.NewParallelGroup([]group.MemberSpec{
		{Member: group.OfModule(worker), RerunShares: 1000},
		{Member: group.OfModule(idler)},
	})
	require.NoError(t, err)

	l, err := New(root)
	require.NoError(t, err)

	go func() {
		time.Sleep(40 * time.Millisecond)
		l.StopAndWait()
	}()
	require.NoError(t, l.Run(context.Background(), 2))

	assert.Greater(t, workerRuns.Load(), int32(0))
}
