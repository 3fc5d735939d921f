package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/agentweave/agentweave/internal/core/errors"
)

// TaskState is the lifecycle state of a Task (spec.md §4.7 "Task Lifecycle").
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCancelled TaskState = "cancelled"
)

// IsTerminal reports whether s is one from which no further transition is legal.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	default:
		return false
	}
}

// MessagePart is one piece of a Message's content.
type MessagePart struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Message is a single entry in a Task's conversation history.
type Message struct {
	Role      string        `json:"role"`
	Parts     []MessagePart `json:"parts"`
	Timestamp time.Time     `json:"timestamp"`
}

// Artifact is a named output a Task produces in addition to its final result.
type Artifact struct {
	Type     string         `json:"type"`
	Data     any            `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Task is a unit of asynchronous work dispatched to a capability handler
// (spec.md §3 "Task"). State transitions are serialized by mu; the completion
// channel is closed exactly once, when the task reaches a terminal state, so
// any number of waiters can observe completion without a wakeup race.
type Task struct {
	mu sync.Mutex

	ID        string
	Type      string
	State     TaskState
	Payload   map[string]any
	Messages  []Message
	Result    map[string]any
	Error     string
	Artifacts []Artifact
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	done     chan struct{}
	doneOnce sync.Once
}

// NewTask creates a Task in the pending state with a fresh random ID.
func NewTask(taskType string, payload map[string]any, messages []Message, metadata map[string]any) *Task {
	now := time.Now()
	return &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		State:     TaskStatePending,
		Payload:   payload,
		Messages:  messages,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// UpdateState transitions the task to newState, recording result/err whenever
// they are non-empty. Returns ErrIllegalTransition if the task is
// already terminal (terminal states are a one-way door).
func (t *Task) UpdateState(newState TaskState, result map[string]any, err string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State.IsTerminal() {
		return cerrors.ErrIllegalTransition.WithMessage("task " + t.ID + " is already in a terminal state")
	}

	t.State = newState
	t.UpdatedAt = time.Now()
	if result != nil {
		t.Result = result
	}
	if err != "" {
		t.Error = err
	}

	if newState.IsTerminal() {
		t.doneOnce.Do(func() { close(t.done) })
	}
	return nil
}

// AddMessage appends a message to the task's history.
func (t *Task) AddMessage(role string, parts []MessagePart) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, Message{Role: role, Parts: parts, Timestamp: time.Now()})
	t.UpdatedAt = time.Now()
}

// AddArtifact appends an artifact produced by the task.
func (t *Task) AddArtifact(artifactType string, data any, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Artifacts = append(t.Artifacts, Artifact{Type: artifactType, Data: data, Metadata: metadata})
	t.UpdatedAt = time.Now()
}

// MarkRunning transitions the task into the running state.
func (t *Task) MarkRunning() error { return t.UpdateState(TaskStateRunning, nil, "") }

// MarkCompleted transitions the task into the completed state with the given result.
func (t *Task) MarkCompleted(result map[string]any) error {
	return t.UpdateState(TaskStateCompleted, result, "")
}

// MarkFailed transitions the task into the failed state with the given error message.
func (t *Task) MarkFailed(errMsg string) error {
	return t.UpdateState(TaskStateFailed, nil, errMsg)
}

// MarkCancelled transitions the task into the cancelled state.
func (t *Task) MarkCancelled() error {
	return t.UpdateState(TaskStateCancelled, nil, "")
}

// Snapshot returns a point-in-time copy of the task's current state,
// safe to read concurrently with further mutation.
func (t *Task) Snapshot() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	cp.Artifacts = append([]Artifact(nil), t.Artifacts...)
	return cp
}

// Done returns a channel that is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// IsTerminal reports whether the task is currently in a terminal state.
func (t *Task) IsTerminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State.IsTerminal()
}

