package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentweave/agentweave/internal/core/domain"
	cerrors "github.com/agentweave/agentweave/internal/core/errors"
)

func TestTaskManager_CreateAndGet(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	task := m.CreateTask("greet", map[string]any{"name": "ada"}, nil, nil)
	assert.Equal(t, domain.TaskStatePending, task.State)

	got, err := m.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestTaskManager_GetTask_NotFound(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	_, err := m.GetTask("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrTaskNotFound))
}

func TestTaskManager_UpdateTask(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	task := m.CreateTask("greet", nil, nil, nil)
	updated, err := m.UpdateTask(task.ID, domain.TaskStateCompleted, map[string]any{"ok": true}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, updated.State)

	_, err = m.UpdateTask(task.ID, domain.TaskStateRunning, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrIllegalTransition))
}

func TestTaskManager_CancelTask(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	task := m.CreateTask("greet", nil, nil, nil)
	cancelled, err := m.CancelTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCancelled, cancelled.State)

	// Cancelling an already-terminal task is a no-op, not an error.
	again, err := m.CancelTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCancelled, again.State)
}

func TestTaskManager_DeleteTask(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	task := m.CreateTask("greet", nil, nil, nil)
	assert.True(t, m.DeleteTask(task.ID))
	assert.False(t, m.DeleteTask(task.ID))

	_, err := m.GetTask(task.ID)
	require.Error(t, err)
}

func TestTaskManager_ListTasks(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	a := m.CreateTask("greet", nil, nil, nil)
	b := m.CreateTask("sum", nil, nil, nil)
	_, err := m.UpdateTask(a.ID, domain.TaskStateCompleted, nil, "")
	require.NoError(t, err)

	all := m.ListTasks("", "")
	assert.Len(t, all, 2)

	completed := m.ListTasks(domain.TaskStateCompleted, "")
	assert.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)

	byType := m.ListTasks("", "sum")
	assert.Len(t, byType, 1)
	assert.Equal(t, b.ID, byType[0].ID)
}

func TestTaskManager_AwaitCompletion(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	task := m.CreateTask("greet", nil, nil, nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = m.UpdateTask(task.ID, domain.TaskStateCompleted, map[string]any{"done": true}, "")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done, err := m.AwaitCompletion(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStateCompleted, done.State)
}

func TestTaskManager_AwaitCompletion_ContextCancelled(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()

	task := m.CreateTask("greet", nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.AwaitCompletion(ctx, task.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTaskManager_Reap(t *testing.T) {
	m := NewTaskManager(0)
	defer m.Close()
	m.retention = time.Millisecond

	task := m.CreateTask("greet", nil, nil, nil)
	_, err := m.UpdateTask(task.ID, domain.TaskStateCompleted, nil, "")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.reap())

	_, err = m.GetTask(task.ID)
	require.Error(t, err)
}

func TestNewTaskManager_ReaperRunsAndStops(t *testing.T) {
	m := NewTaskManager(time.Hour)
	require.NotNil(t, m.cancel)
	require.NoError(t, m.Close())
}
