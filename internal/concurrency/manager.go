// Package concurrency implements the ConcurrencyManager: the process-wide
// arbiter of task-slot admission, per-window exclusive locks, and the LLM API
// rate gate. A single instance is shared by every HostAgent in the process.
//
// The API gate's semaphore-plus-minimum-interval shape is adapted from the
// teacher's internal/ratelimit token bucket (mutex-guarded, refill-on-read)
// and internal/agent/executor.go's buffered-channel concurrency semaphore.
package concurrency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/deskagent/deskagent/internal/deskerr"
)

// Config is the subset of AgentConfig the ConcurrencyManager needs.
type Config struct {
	MaxConcurrentTasks int
	WindowLockTimeout  time.Duration
	MaxAPIConcurrency  int
	MinAPIIntervalMs   int64
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 3,
		WindowLockTimeout:  300 * time.Second,
		MaxAPIConcurrency:  5,
		MinAPIIntervalMs:   0,
	}
}

type taskSlot struct {
	taskID      string
	acquiredAt  time.Time
	targetHwnds map[int64]struct{}
}

type windowOwner struct {
	taskID     string
	acquiredAt time.Time
}

// Manager is the three-resource ConcurrencyManager described in SPEC_FULL.md §4.1.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	tasks     map[string]*taskSlot
	windows   map[int64]*windowOwner
	windowMu  map[int64]*sync.Mutex

	apiSem       chan struct{}
	apiGateMu    sync.Mutex
	lastAPICall  time.Time
}

// New constructs a Manager. logger may be nil, in which case slog.Default() is used.
func New(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAPIConcurrency <= 0 {
		cfg.MaxAPIConcurrency = 1
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger,
		tasks:   make(map[string]*taskSlot),
		windows: make(map[int64]*windowOwner),
		windowMu: make(map[int64]*sync.Mutex),
		apiSem:  make(chan struct{}, cfg.MaxAPIConcurrency),
	}
}

// AcquireTaskSlot is a non-blocking admission check. Returns false without
// blocking if max_concurrent_tasks slots are already held.
func (m *Manager) AcquireTaskSlot(taskID string, targetHwnds []int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tasks) >= m.cfg.MaxConcurrentTasks {
		return false, deskerr.NewTooManyTasksError(len(m.tasks), m.cfg.MaxConcurrentTasks)
	}
	set := make(map[int64]struct{}, len(targetHwnds))
	for _, h := range targetHwnds {
		set[h] = struct{}{}
	}
	m.tasks[taskID] = &taskSlot{taskID: taskID, acquiredAt: time.Now(), targetHwnds: set}
	return true, nil
}

// ReleaseTaskSlot is idempotent.
func (m *Manager) ReleaseTaskSlot(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
}

// ActiveTaskCount reports the number of held task slots.
func (m *Manager) ActiveTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manager) lockFor(hwnd int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.windowMu[hwnd]
	if !ok {
		l = &sync.Mutex{}
		m.windowMu[hwnd] = l
	}
	return l
}

// AcquireWindow attempts to take the exclusive lock for hwnd within timeout.
// On success it records ownership; on timeout it logs the current owner and
// returns false.
func (m *Manager) AcquireWindow(hwnd int64, taskID string, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		timeout = m.cfg.WindowLockTimeout
	}
	lock := m.lockFor(hwnd)

	acquired := make(chan struct{})
	go func() {
		lock.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		m.mu.Lock()
		m.windows[hwnd] = &windowOwner{taskID: taskID, acquiredAt: time.Now()}
		m.mu.Unlock()
		return true, nil
	case <-time.After(timeout):
		m.mu.Lock()
		owner := ""
		if o, ok := m.windows[hwnd]; ok {
			owner = o.taskID
		}
		m.mu.Unlock()
		m.logger.Warn("window lock acquisition timed out", "hwnd", hwnd, "requester", taskID, "owner", owner)
		return false, nil
	}
}

// ReleaseWindow releases the lock and clears ownership for hwnd.
func (m *Manager) ReleaseWindow(hwnd int64) {
	m.mu.Lock()
	_, owned := m.windows[hwnd]
	delete(m.windows, hwnd)
	lock := m.windowMu[hwnd]
	m.mu.Unlock()

	if owned && lock != nil {
		lock.Unlock()
	}
}

// GetWindowOwner returns the task ID currently holding hwnd's lock, or "" if unlocked.
func (m *Manager) GetWindowOwner(hwnd int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.windows[hwnd]; ok {
		return o.taskID
	}
	return ""
}

// AcquireWindows atomically acquires every hwnd in hwnds for taskID. On
// failure every lock already taken during this call is released before
// returning false.
func (m *Manager) AcquireWindows(hwnds []int64, taskID string) (bool, error) {
	acquired := make([]int64, 0, len(hwnds))
	for _, h := range hwnds {
		ok, err := m.AcquireWindow(h, taskID, m.cfg.WindowLockTimeout)
		if err != nil {
			for _, a := range acquired {
				m.ReleaseWindow(a)
			}
			return false, err
		}
		if !ok {
			for _, a := range acquired {
				m.ReleaseWindow(a)
			}
			return false, deskerr.NewWindowLockedError(h, m.GetWindowOwner(h))
		}
		acquired = append(acquired, h)
	}
	return true, nil
}

// ReleaseWindows releases every hwnd in hwnds, best-effort.
func (m *Manager) ReleaseWindows(hwnds []int64) {
	for _, h := range hwnds {
		m.ReleaseWindow(h)
	}
}

// CleanupStaleLocks force-releases window locks held longer than maxAge,
// logging a warning for each.
func (m *Manager) CleanupStaleLocks(maxAge time.Duration) int {
	m.mu.Lock()
	var stale []int64
	now := time.Now()
	for hwnd, owner := range m.windows {
		if now.Sub(owner.acquiredAt) > maxAge {
			stale = append(stale, hwnd)
		}
	}
	m.mu.Unlock()

	for _, hwnd := range stale {
		m.logger.Warn("force-releasing stale window lock", "hwnd", hwnd, "max_age", maxAge)
		m.ReleaseWindow(hwnd)
	}
	return len(stale)
}

// APISlot is a released-once scoped permit returned by AcquireAPISlot.
type APISlot struct {
	release func()
	done    bool
}

// Release returns the permit. Safe to call multiple times.
func (s *APISlot) Release() {
	if s.done {
		return
	}
	s.done = true
	s.release()
}

// AcquireAPISlot blocks (respecting ctx) until a concurrency permit is free
// and the minimum inter-call gap has elapsed since the last slot was
// acquired, then returns a scoped APISlot. Callers must Release it, typically
// via defer, even on error paths.
func (m *Manager) AcquireAPISlot(ctx context.Context) (*APISlot, error) {
	select {
	case m.apiSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if m.cfg.MinAPIIntervalMs > 0 {
		m.apiGateMu.Lock()
		gap := time.Duration(m.cfg.MinAPIIntervalMs) * time.Millisecond
		wait := gap - time.Since(m.lastAPICall)
		if wait > 0 {
			m.apiGateMu.Unlock()
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				<-m.apiSem
				return nil, ctx.Err()
			}
			m.apiGateMu.Lock()
		}
		m.lastAPICall = time.Now()
		m.apiGateMu.Unlock()
	}

	return &APISlot{release: func() { <-m.apiSem }}, nil
}
