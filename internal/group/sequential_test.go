package group

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/workloop/internal/module"
)

func countingModule(name string, counter *atomic.Int32, order *[]string, mu *sync.Mutex) *module.Module {
	return module.New(name, module.Exclusive, func(ctx context.Context) error {
		counter.Add(1)
		if order != nil {
			mu.Lock()
			*order = append(*order, name)
			mu.Unlock()
		}
		return nil
	})
}

// runToCompletion drives a Group with a single worker until IsDone.
func runToCompletion(t *testing.T, g Group) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !g.IsDone() {
		if time.Now().After(deadline) {
			t.Fatal("group never completed")
		}
		if !g.RunNext(0) {
			g.WaitForAvailability(0, 10*time.Millisecond)
		}
	}
}

func TestSequentialGroup_RunsMembersInOrder(t *testing.T) {
	var counter atomic.Int32
	var mu sync.Mutex
	var order []string

	a := countingModule("A", &counter, &order, &mu)
	b := countingModule("B", &counter, &order, &mu)
	c := countingModule("C", &counter, &order, &mu)

	g, err := NewSequentialGroup([]Member{OfModule(a), OfModule(b), OfModule(c)})
	require.NoError(t, err)

	runToCompletion(t, g)

	assert.Equal(t, int32(3), counter.Load())
	if diff := cmp.Diff([]string{"A", "B", "C"}, order); diff != "" {
		t.Errorf("run order mismatch (-want +got):\n%s", diff)
	}
}

// P8 / R1: after StartNextIteration, a group with members is not done,
// and repeating the run produces the same count again.
func TestSequentialGroup_StartNextIteration_Repeats(t *testing.T) {
	var counter atomic.Int32
	a := countingModule("A", &counter, nil, nil)
	b := countingModule("B", &counter, nil, nil)

	g, err := NewSequentialGroup([]Member{OfModule(a), OfModule(b)})
	require.NoError(t, err)

	runToCompletion(t, g)
	assert.Equal(t, int32(2), counter.Load())

	g.StartNextIteration()
	assert.False(t, g.IsDone())

	runToCompletion(t, g)
	assert.Equal(t, int32(4), counter.Load())
}

func TestSequentialGroup_StartNextIteration_PanicsBeforeDone(t *testing.T) {
	a := countingModule("A", &atomic.Int32{}, nil, nil)
	g, err := NewSequentialGroup([]Member{OfModule(a)})
	require.NoError(t, err)

	assert.Panics(t, func() { g.StartNextIteration() })
}

// S4-style: constructing a second group with an already-owned member
// fails, and the first group's topology is unaffected.
func TestSequentialGroup_RejectsAlreadyOwnedMember(t *testing.T) {
	m := countingModule("A", &atomic.Int32{}, nil, nil)
	g1, err := NewSequentialGroup([]Member{OfModule(m)})
	require.NoError(t, err)

	_, err = NewSequentialGroup([]Member{OfModule(m)})
	assert.ErrorIs(t, err, ErrMemberAlreadyOwned)

	assert.Equal(t, g1, m.Parent())
}

func TestSequentialGroup_EmptyGroupIsImmediatelyDone(t *testing.T) {
	g, err := NewSequentialGroup(nil)
	require.NoError(t, err)
	assert.True(t, g.IsDone())
}

func TestSequentialGroup_NestedSubgroupRunsToCompletion(t *testing.T) {
	var counter atomic.Int32
	a := countingModule("A", &counter, nil, nil)
	b := countingModule("B", &counter, nil, nil)
	c := countingModule("C", &counter, nil, nil)

	inner, err := NewSequentialGroup([]Member{OfModule(a), OfModule(b)})
	require.NoError(t, err)

	outer, err := NewSequentialGroup([]Member{OfGroup(inner), OfModule(c)})
	require.NoError(t, err)

	runToCompletion(t, outer)
	assert.Equal(t, int32(3), counter.Load())
	assert.True(t, inner.IsDone())
}

// Budget denial: a module whose higher prediction exceeds the budget is
// never dispatched.
func TestSequentialGroup_BudgetDenial(t *testing.T) {
	slow := module.New("slow", module.Exclusive, func(ctx context.Context) error {
		return nil
	}, module.WithInitialPrediction(0.05))

	g, err := NewSequentialGroup([]Member{OfModule(slow)})
	require.NoError(t, err)

	// The first call only advances to stage 0; it dispatches nothing.
	require.True(t, g.RunNext(time.Millisecond), "advance to the first stage")
	assert.False(t, g.RunNext(time.Millisecond))
	assert.False(t, g.IsDone())

	assert.True(t, g.RunNext(0))
}
