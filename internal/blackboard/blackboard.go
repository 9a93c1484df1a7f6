// Package blackboard implements the per-task shared, mutex-protected state
// described in SPEC_FULL.md §4.4: subtasks, their results, the inter-agent
// message log, and an append-only trajectory. A Blackboard lives for the
// duration of exactly one process_task call and is owned exclusively by the
// HostAgent that created it.
//
// The insertion-ordered map plus mutex and clone-on-read idiom is adapted
// from internal/cron's MemoryExecutionStore (the teacher's in-memory job
// execution history store).
package blackboard

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// Blackboard is the shared state one HostAgent task owns.
type Blackboard struct {
	mu sync.Mutex

	taskID string

	subtasks map[string]*coretypes.SubTask
	order    []string

	results map[string]any

	messages []coretypes.AgentMessage

	context map[string]any

	trajectory []coretypes.TrajectoryEntry

	requestStatus coretypes.RequestStatus
	requestError  string
}

// New creates an empty Blackboard for the given task.
func New(taskID string) *Blackboard {
	return &Blackboard{
		taskID:        taskID,
		subtasks:      make(map[string]*coretypes.SubTask),
		results:       make(map[string]any),
		context:       make(map[string]any),
		requestStatus: coretypes.RequestPending,
	}
}

// TaskID returns the owning task's id.
func (b *Blackboard) TaskID() string {
	return b.taskID
}

// AddSubTask inserts st. Returns false without mutating state if st.ID is
// already present.
func (b *Blackboard) AddSubTask(st coretypes.SubTask) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subtasks[st.ID]; exists {
		return false
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	if st.Status == "" {
		st.Status = coretypes.RequestPending
	}
	clone := st
	b.subtasks[st.ID] = &clone
	b.order = append(b.order, st.ID)
	return true
}

// AddSubTasks inserts each subtask, skipping duplicates.
func (b *Blackboard) AddSubTasks(sts []coretypes.SubTask) {
	for _, st := range sts {
		b.AddSubTask(st)
	}
}

// UpdateSubTaskStatus mutates a subtask in place. Terminal statuses stamp
// CompletedAt. Returns false if id is unknown.
func (b *Blackboard) UpdateSubTaskStatus(id string, status coretypes.RequestStatus, result, errMsg string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.subtasks[id]
	if !ok {
		return false
	}
	st.Status = status
	if result != "" {
		st.Result = result
	}
	if errMsg != "" {
		st.Error = errMsg
	}
	if status.IsTerminal() && st.CompletedAt == nil {
		now := time.Now()
		st.CompletedAt = &now
	}
	return true
}

// GetNextSubTask returns the first PENDING subtask, in insertion order,
// whose dependencies are all COMPLETED. Returns nil if none is ready.
func (b *Blackboard) GetNextSubTask() *coretypes.SubTask {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.order {
		st := b.subtasks[id]
		if st.Status != coretypes.RequestPending {
			continue
		}
		if b.dependenciesSatisfiedLocked(st) {
			clone := *st
			return &clone
		}
	}
	return nil
}

func (b *Blackboard) dependenciesSatisfiedLocked(st *coretypes.SubTask) bool {
	for _, depID := range st.Dependencies {
		dep, ok := b.subtasks[depID]
		if !ok || dep.Status != coretypes.RequestCompleted {
			return false
		}
	}
	return true
}

// GetPendingSubTasks returns every PENDING subtask in insertion order.
func (b *Blackboard) GetPendingSubTasks() []coretypes.SubTask {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []coretypes.SubTask
	for _, id := range b.order {
		st := b.subtasks[id]
		if st.Status == coretypes.RequestPending {
			out = append(out, *st)
		}
	}
	return out
}

// AllCompleted reports whether the subtask set is non-empty and every
// subtask has reached a terminal status of COMPLETED or FAILED.
func (b *Blackboard) AllCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subtasks) == 0 {
		return false
	}
	for _, st := range b.subtasks {
		if st.Status != coretypes.RequestCompleted && st.Status != coretypes.RequestFailed {
			return false
		}
	}
	return true
}

// HasFailures reports whether any subtask is FAILED.
func (b *Blackboard) HasFailures() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, st := range b.subtasks {
		if st.Status == coretypes.RequestFailed {
			return true
		}
	}
	return false
}

// SetResult stores value under key.
func (b *Blackboard) SetResult(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[key] = value
}

// GetResult returns the value stored under key, if any.
func (b *Blackboard) GetResult(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.results[key]
	return v, ok
}

// GetAllResults returns a copy of the full results map.
func (b *Blackboard) GetAllResults() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}
	return out
}

// SendMessage appends msg to the inter-agent message log, stamping Timestamp
// if unset.
func (b *Blackboard) SendMessage(msg coretypes.AgentMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.messages = append(b.messages, msg)
}

// GetMessagesFor returns every message addressed to agent, in send order.
func (b *Blackboard) GetMessagesFor(agent string) []coretypes.AgentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []coretypes.AgentMessage
	for _, m := range b.messages {
		if m.To == agent {
			out = append(out, m)
		}
	}
	return out
}

// AddTrajectory appends an audit-only trajectory entry. Entries are never
// mutated once written.
func (b *Blackboard) AddTrajectory(action, agent string, details map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trajectory = append(b.trajectory, coretypes.TrajectoryEntry{
		Action:    action,
		Agent:     agent,
		Details:   details,
		Timestamp: time.Now(),
	})
}

// Trajectory returns a copy of the full trajectory log.
func (b *Blackboard) Trajectory() []coretypes.TrajectoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]coretypes.TrajectoryEntry, len(b.trajectory))
	copy(out, b.trajectory)
	return out
}

// RequestStatus returns the blackboard's overall request status.
func (b *Blackboard) RequestStatus() coretypes.RequestStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requestStatus
}

// SetRequestStatus sets the overall request status and, for non-nil err,
// the request error string.
func (b *Blackboard) SetRequestStatus(status coretypes.RequestStatus, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requestStatus = status
	if errMsg != "" {
		b.requestError = errMsg
	}
}

// RequestError returns the last recorded request-level error message.
func (b *Blackboard) RequestError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requestError
}

// SetContext stores an arbitrary key in the blackboard's free-form context map.
func (b *Blackboard) SetContext(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.context[key] = value
}

// GetContext reads a key from the free-form context map.
func (b *Blackboard) GetContext(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.context[key]
	return v, ok
}

// snapshot is the wire shape produced by ToDict / consumed by FromDict.
type snapshot struct {
	TaskID        string                      `json:"task_id"`
	Subtasks      map[string]coretypes.SubTask `json:"subtasks"`
	Order         []string                    `json:"order"`
	Results       map[string]any              `json:"results"`
	Messages      []coretypes.AgentMessage    `json:"messages"`
	Context       map[string]any              `json:"context"`
	Trajectory    []coretypes.TrajectoryEntry `json:"trajectory"`
	RequestStatus coretypes.RequestStatus     `json:"request_status"`
	RequestError  string                      `json:"request_error,omitempty"`
}

// ToDict serializes every field of the blackboard for checkpointing.
func (b *Blackboard) ToDict() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	subtasks := make(map[string]coretypes.SubTask, len(b.subtasks))
	for id, st := range b.subtasks {
		subtasks[id] = *st
	}
	order := make([]string, len(b.order))
	copy(order, b.order)
	results := make(map[string]any, len(b.results))
	for k, v := range b.results {
		results[k] = v
	}
	messages := make([]coretypes.AgentMessage, len(b.messages))
	copy(messages, b.messages)
	ctx := make(map[string]any, len(b.context))
	for k, v := range b.context {
		ctx[k] = v
	}
	trajectory := make([]coretypes.TrajectoryEntry, len(b.trajectory))
	copy(trajectory, b.trajectory)

	return map[string]any{
		"task_id":        b.taskID,
		"subtasks":       subtasks,
		"order":          order,
		"results":        results,
		"messages":       messages,
		"context":        ctx,
		"trajectory":     trajectory,
		"request_status": b.requestStatus,
		"request_error":  b.requestError,
	}
}

// FromDict rebuilds a Blackboard from the map produced by ToDict. The shape
// must carry concretely-typed values (as ToDict produces), not re-decoded
// JSON maps — callers resuming from a JSON-encoded checkpoint should decode
// into a snapshot via FromSnapshotJSON instead.
func FromDict(d map[string]any) (*Blackboard, error) {
	taskID, _ := d["task_id"].(string)
	b := New(taskID)

	if subtasks, ok := d["subtasks"].(map[string]coretypes.SubTask); ok {
		for id, st := range subtasks {
			stCopy := st
			b.subtasks[id] = &stCopy
		}
	}
	if order, ok := d["order"].([]string); ok {
		b.order = append([]string(nil), order...)
	}
	if results, ok := d["results"].(map[string]any); ok {
		for k, v := range results {
			b.results[k] = v
		}
	}
	if messages, ok := d["messages"].([]coretypes.AgentMessage); ok {
		b.messages = append([]coretypes.AgentMessage(nil), messages...)
	}
	if ctx, ok := d["context"].(map[string]any); ok {
		for k, v := range ctx {
			b.context[k] = v
		}
	}
	if trajectory, ok := d["trajectory"].([]coretypes.TrajectoryEntry); ok {
		b.trajectory = append([]coretypes.TrajectoryEntry(nil), trajectory...)
	}
	if status, ok := d["request_status"].(coretypes.RequestStatus); ok {
		b.requestStatus = status
	}
	if errMsg, ok := d["request_error"].(string); ok {
		b.requestError = errMsg
	}

	if taskID == "" {
		return nil, fmt.Errorf("blackboard: from_dict missing task_id")
	}
	return b, nil
}

// FromSnapshotJSON rebuilds a Blackboard from a checkpoint's Blackboard
// field after it has round-tripped through JSON (as every TaskStore backend
// does when persisting a Checkpoint): the map's nested values arrive as
// generic map[string]interface{}/[]interface{} rather than the concrete
// types ToDict produced, so this re-marshals the whole map and decodes it
// into the typed snapshot instead of asserting field-by-field.
func FromSnapshotJSON(d map[string]any) (*Blackboard, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("blackboard: from_snapshot_json marshal: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("blackboard: from_snapshot_json unmarshal: %w", err)
	}
	if snap.TaskID == "" {
		return nil, fmt.Errorf("blackboard: from_snapshot_json missing task_id")
	}

	b := New(snap.TaskID)
	for id, st := range snap.Subtasks {
		stCopy := st
		b.subtasks[id] = &stCopy
	}
	b.order = append([]string(nil), snap.Order...)
	for k, v := range snap.Results {
		b.results[k] = v
	}
	b.messages = append([]coretypes.AgentMessage(nil), snap.Messages...)
	for k, v := range snap.Context {
		b.context[k] = v
	}
	b.trajectory = append([]coretypes.TrajectoryEntry(nil), snap.Trajectory...)
	if snap.RequestStatus != "" {
		b.requestStatus = snap.RequestStatus
	}
	b.requestError = snap.RequestError
	return b, nil
}
