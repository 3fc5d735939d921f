package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentweave/agentweave/internal/core/domain"
	cerrors "github.com/agentweave/agentweave/internal/core/errors"
)

// defaultReapInterval is how often the reaper sweeps for terminal tasks older
// than their retention window (spec.md §4.7 "Manager" reaper).
const defaultReapInterval = 1 * time.Minute

// TaskManager is the task table behind spec.md §4.7's Manager: create, get,
// update and reap operations over a table of domain.Task, plus
// AwaitCompletion for callers that block on a task reaching a terminal
// state. Grounded in original_source/agentweave/comms/a2a/task.py's
// TaskManager, adapted from its asyncio.Event-per-task design to Go's
// per-task done channel (domain.Task.Done), since that channel already gives
// every waiter a race-free signal without an extra synchronization primitive
// per task.
type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task

	retention time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTaskManager creates a TaskManager and starts its reaper goroutine,
// which deletes terminal tasks older than retention every defaultReapInterval.
// A zero retention disables the reaper (tasks are kept forever).
func NewTaskManager(retention time.Duration) *TaskManager {
	m := &TaskManager{
		tasks:     make(map[string]*domain.Task),
		retention: retention,
		logger:    slog.Default(),
	}

	if retention > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.wg.Add(1)
		go m.reapLoop(ctx)
	}

	return m
}

// CreateTask creates and stores a new task of the given type.
func (m *TaskManager) CreateTask(taskType string, payload map[string]any, messages []domain.Message, metadata map[string]any) *domain.Task {
	task := domain.NewTask(taskType, payload, messages, metadata)

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	return task
}

// GetTask retrieves a task by ID.
func (m *TaskManager) GetTask(taskID string) (*domain.Task, error) {
	m.mu.RLock()
	task, ok := m.tasks[taskID]
	m.mu.RUnlock()
	if !ok {
		return nil, cerrors.ErrTaskNotFound.WithMessage("task " + taskID + " does not exist")
	}
	return task, nil
}

// UpdateTask transitions a task to newState, recording result/err whenever
// they are non-empty. Pass nil/"" for a state-only transition.
func (m *TaskManager) UpdateTask(taskID string, newState domain.TaskState, result map[string]any, errMsg string) (*domain.Task, error) {
	task, err := m.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := task.UpdateState(newState, result, errMsg); err != nil {
		return nil, err
	}
	return task, nil
}

// CancelTask transitions a task to cancelled, unless it is already terminal
// (spec.md §4.7's task.cancel: cancelling a finished task is a no-op, not an error).
func (m *TaskManager) CancelTask(taskID string) (*domain.Task, error) {
	task, err := m.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsTerminal() {
		if err := task.MarkCancelled(); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// DeleteTask removes a task from the table.
func (m *TaskManager) DeleteTask(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return false
	}
	delete(m.tasks, taskID)
	return true
}

// ListTasks returns a snapshot of every task, optionally filtered by state
// and/or task type (empty string/"" means no filter on that dimension).
func (m *TaskManager) ListTasks(state domain.TaskState, taskType string) []domain.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		snap := task.Snapshot()
		if state != "" && snap.State != state {
			continue
		}
		if taskType != "" && snap.Type != taskType {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// AwaitCompletion blocks until the task reaches a terminal state or ctx is
// done, whichever comes first.
func (m *TaskManager) AwaitCompletion(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := m.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	select {
	case <-task.Done():
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reapLoop periodically deletes terminal tasks older than retention.
func (m *TaskManager) reapLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(defaultReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.reap(); n > 0 {
				m.logger.Debug("reaped terminal tasks", "count", n)
			}
		}
	}
}

// reap deletes every terminal task whose last update is older than retention,
// returning how many it removed.
func (m *TaskManager) reap() int {
	cutoff := time.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, task := range m.tasks {
		snap := task.Snapshot()
		if snap.State.IsTerminal() && snap.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

// Close stops the reaper goroutine. Safe to call even if the reaper was
// never started (retention <= 0).
func (m *TaskManager) Close() error {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
	return nil
}
