package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()

	task := NewTask("1", "felix", "write a login endpoint", nil)
	assert.Equal(t, TaskPending, task.Status)
	assert.False(t, task.Status.IsTerminal())

	require.NoError(t, task.MarkRunning())
	assert.False(t, task.StartTime.IsZero())

	require.NoError(t, task.MarkComplete("done"))
	assert.Equal(t, TaskComplete, task.Status)
	assert.Equal(t, "done", task.Result)
	assert.Empty(t, task.Err)
	assert.True(t, task.Status.IsTerminal())
	assert.GreaterOrEqual(t, task.Duration().Nanoseconds(), int64(0))
}

func TestTaskNoResurrection(t *testing.T) {
	t.Parallel()

	complete := NewTask("1", "felix", "x", nil)
	require.NoError(t, complete.MarkRunning())
	require.NoError(t, complete.MarkComplete("ok"))

	err := complete.MarkRunning()
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrBadTransition))
	assert.Equal(t, TaskComplete, complete.Status)

	failed := NewTask("2", "sol", "y", nil)
	require.NoError(t, failed.MarkRunning())
	require.NoError(t, failed.MarkError("boom"))

	assert.Error(t, failed.MarkComplete("late"))
	assert.Equal(t, TaskError, failed.Status)
	assert.Equal(t, "boom", failed.Err)
	assert.Empty(t, failed.Result)
}

func TestTaskErrorAndResultExclusive(t *testing.T) {
	t.Parallel()

	task := NewTask("1", "felix", "x", nil)
	require.NoError(t, task.MarkRunning())
	require.NoError(t, task.MarkError("network unreachable"))
	assert.Equal(t, "network unreachable", task.Err)
	assert.Empty(t, task.Result)
}

func TestTaskBlockedFromPendingOnly(t *testing.T) {
	t.Parallel()

	task := NewTask("1", "felix", "x", []string{"99"})
	require.NoError(t, task.MarkBlocked(BlockDepsMissing))
	assert.Equal(t, TaskBlocked, task.Status)
	assert.Equal(t, BlockDepsMissing, task.BlockReason)

	running := NewTask("2", "sol", "y", nil)
	require.NoError(t, running.MarkRunning())
	assert.Error(t, running.MarkBlocked(BlockRoundCap))
}

func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	task := NewTask("1", "felix", "x", []string{"0"})
	snap := task.Snapshot()
	snap.Dependencies[0] = "mutated"
	assert.Equal(t, "0", task.Dependencies[0])
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	err := NewError(ErrTaskTimeout, "task timed out after 30s").
		WithRetryable(true).
		WithAgent("felix")
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrTaskTimeout, GetErrorCode(err))
	assert.Contains(t, err.Error(), "TASK_TIMEOUT")
}
