// Package taskstore implements the TaskStore the core depends on purely
// through an interface. Grounded on internal/tasks/store.go's interface
// shape, internal/tasks/types.go's status-enum idiom, and
// internal/cron/execution_store.go's insertion-ordered in-memory pattern.
package taskstore

import (
	"context"
	"time"

	"github.com/deskagent/deskagent/internal/deskerr"
)

// Status is the lifecycle state of a task, per spec §3.
type Status string

const (
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusNeedsHelp   Status = "needs_help"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
	StatusCancelled   Status = "cancelled"
)

// legalTransitions is the host-enforced state machine from spec §3.
var legalTransitions = map[Status][]Status{
	StatusPending:     {StatusRunning},
	StatusRunning:     {StatusPaused, StatusCompleted, StatusFailed, StatusNeedsHelp, StatusInterrupted, StatusCancelled},
	StatusPaused:      {StatusRunning},
	StatusInterrupted: {StatusRunning, StatusCancelled},
}

// CanTransition reports whether from->to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Task is one unit of work tracked by the store.
type Task struct {
	ID          string
	Text        string
	TargetHwnds []int64
	Status      Status
	Result      string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Checkpoint is a serialized mid-task snapshot, per spec §4.7.2's
// save_checkpoint payload.
type Checkpoint struct {
	TaskID     string
	Iteration  int
	Messages   []byte // JSON-encoded []coretypes.Message
	Blackboard map[string]any
	AppAgents  []int64
	SavedAt    time.Time
}

// TaskStore is the persistence interface the core depends on.
type TaskStore interface {
	CreateTask(ctx context.Context, id, text string, targetHwnds []int64) error
	GetTask(ctx context.Context, id string) (*Task, error)
	Transition(ctx context.Context, id string, to Status, result, errMsg string) error
	SaveCheckpoint(ctx context.Context, taskID string, iteration int, cp Checkpoint) error
	LatestCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error)
	PruneCheckpoints(ctx context.Context, olderThan time.Duration) (int, error)
}

// TransitionErr wraps an illegal transition with the ids involved, matching
// deskerr.NewInvalidStateTransitionError's fields.
func transitionErr(from, to Status) error {
	return deskerr.NewInvalidStateTransitionError(string(from), string(to))
}

func notFoundErr(id string) error {
	return deskerr.NewTaskNotFoundError(id)
}
