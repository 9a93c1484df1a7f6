package taskstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-protected, insertion-ordered in-memory TaskStore
// for tests and single-process runs, grounded on
// internal/cron/execution_store.go's MemoryExecutionStore clone-on-read
// idiom.
type MemoryStore struct {
	mu          sync.Mutex
	tasks       map[string]*Task
	order       []string
	checkpoints map[string][]Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:       map[string]*Task{},
		checkpoints: map[string][]Checkpoint{},
	}
}

func (m *MemoryStore) CreateTask(ctx context.Context, id, text string, targetHwnds []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.tasks[id] = &Task{
		ID:          id,
		Text:        text,
		TargetHwnds: append([]int64(nil), targetHwnds...),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.order = append(m.order, id)
	return nil
}

func (m *MemoryStore) GetTask(ctx context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, notFoundErr(id)
	}
	return cloneTask(t), nil
}

func (m *MemoryStore) Transition(ctx context.Context, id string, to Status, result, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return notFoundErr(id)
	}
	if !CanTransition(t.Status, to) {
		return transitionErr(t.Status, to)
	}
	t.Status = to
	t.Result = result
	t.Error = errMsg
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SaveCheckpoint(ctx context.Context, taskID string, iteration int, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return notFoundErr(taskID)
	}
	cp.TaskID = taskID
	cp.Iteration = iteration
	cp.SavedAt = time.Now()
	m.checkpoints[taskID] = append(m.checkpoints[taskID], cp)
	return nil
}

func (m *MemoryStore) LatestCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cps := m.checkpoints[taskID]
	if len(cps) == 0 {
		return nil, nil
	}
	latest := cps[len(cps)-1]
	return &latest, nil
}

// PruneCheckpoints drops every checkpoint older than olderThan across all
// tasks, keeping each task's single most recent checkpoint regardless of
// age so Resume always has something to load.
func (m *MemoryStore) PruneCheckpoints(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	pruned := 0
	for taskID, cps := range m.checkpoints {
		if len(cps) <= 1 {
			continue
		}
		lastIdx := len(cps) - 1
		kept := make([]Checkpoint, 0, len(cps))
		for i, cp := range cps {
			if i != lastIdx && cp.SavedAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, cp)
		}
		m.checkpoints[taskID] = kept
	}
	return pruned, nil
}

// ListTasks returns every task in creation order, cloned for safe reading.
func (m *MemoryStore) ListTasks(ctx context.Context) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneTask(m.tasks[id]))
	}
	return out
}

func cloneTask(t *Task) *Task {
	clone := *t
	clone.TargetHwnds = append([]int64(nil), t.TargetHwnds...)
	return &clone
}
