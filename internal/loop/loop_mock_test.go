package loop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vk/workloop/internal/group/groupmock"
)

// TestLoop_WorkerBody_DrivesMockGroupDeterministically exercises
// workerBody's iteration-rollover/dispatch/stop decision sequence against
// a mocked Group, pinning down exact call counts instead of inferring
// them from a real SequentialGroup/module timing, the way a pure
// interaction test should.
func TestLoop_WorkerBody_DrivesMockGroupDeterministically(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := groupmock.NewMockGroup(ctrl)

	root.EXPECT().InstallLoop(gomock.Any()).Return(true)

	l, err := New(root)
	require.NoError(t, err)

	root.EXPECT().IsDone().Return(true).Times(4)
	root.EXPECT().StartNextIteration().Times(1)
	root.EXPECT().RunNext(time.Duration(0)).DoAndReturn(func(time.Duration) bool {
		l.Stop()
		return true
	}).Times(1)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), 1) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop never stopped")
	}
}
