package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deskagent/deskagent/internal/deskerr"
)

func TestAcquireTaskSlot_RespectsMax(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 2, MaxAPIConcurrency: 1}, nil)

	if ok, err := m.AcquireTaskSlot("t1", nil); !ok || err != nil {
		t.Fatalf("t1 should acquire: ok=%v err=%v", ok, err)
	}
	if ok, err := m.AcquireTaskSlot("t2", nil); !ok || err != nil {
		t.Fatalf("t2 should acquire: ok=%v err=%v", ok, err)
	}

	ok, err := m.AcquireTaskSlot("t3", nil)
	if ok {
		t.Fatal("t3 should be denied once max_concurrent_tasks is reached")
	}
	ae, matched := deskerr.AsAgentError(err)
	if !matched || ae.Kind != deskerr.KindTooManyTasks {
		t.Fatalf("expected TooManyTasksError, got %v", err)
	}

	m.ReleaseTaskSlot("t1")
	if ok, err := m.AcquireTaskSlot("t3", nil); !ok || err != nil {
		t.Fatalf("t3 should acquire after release: ok=%v err=%v", ok, err)
	}
	if n := m.ActiveTaskCount(); n != 2 {
		t.Errorf("active task count = %d, want 2", n)
	}
}

func TestReleaseTaskSlot_Idempotent(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 1, MaxAPIConcurrency: 1}, nil)
	m.ReleaseTaskSlot("nonexistent")
	m.ReleaseTaskSlot("nonexistent")
}

func TestAcquireWindow_ExcludesConcurrentHolder(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, WindowLockTimeout: 50 * time.Millisecond, MaxAPIConcurrency: 1}, nil)

	ok, err := m.AcquireWindow(42, "taskA", 0)
	if !ok || err != nil {
		t.Fatalf("taskA should acquire window 42: ok=%v err=%v", ok, err)
	}

	ok, err = m.AcquireWindow(42, "taskB", 20*time.Millisecond)
	if ok || err != nil {
		t.Fatalf("taskB should fail to acquire locked window: ok=%v err=%v", ok, err)
	}

	if owner := m.GetWindowOwner(42); owner != "taskA" {
		t.Errorf("owner = %q, want taskA", owner)
	}

	m.ReleaseWindow(42)
	ok, err = m.AcquireWindow(42, "taskB", 0)
	if !ok || err != nil {
		t.Fatalf("taskB should acquire window 42 after release: ok=%v err=%v", ok, err)
	}
}

func TestAcquireWindows_RollsBackOnPartialFailure(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, WindowLockTimeout: 20 * time.Millisecond, MaxAPIConcurrency: 1}, nil)

	if ok, _ := m.AcquireWindow(2, "other", 0); !ok {
		t.Fatal("setup: other should lock window 2")
	}

	ok, err := m.AcquireWindows([]int64{1, 2, 3}, "taskA")
	if ok {
		t.Fatal("AcquireWindows should fail when window 2 is held by another task")
	}
	ae, matched := deskerr.AsAgentError(err)
	if !matched || ae.Kind != deskerr.KindWindowLocked {
		t.Fatalf("expected WindowLockedError, got %v", err)
	}

	if owner := m.GetWindowOwner(1); owner != "" {
		t.Errorf("window 1 should have been rolled back, owner = %q", owner)
	}
	if owner := m.GetWindowOwner(3); owner != "" {
		t.Errorf("window 3 should never have been acquired, owner = %q", owner)
	}
	if owner := m.GetWindowOwner(2); owner != "other" {
		t.Errorf("window 2 owner should remain other, got %q", owner)
	}
}

func TestAcquireWindows_AllOrNothingSuccess(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, MaxAPIConcurrency: 1}, nil)

	ok, err := m.AcquireWindows([]int64{10, 11, 12}, "taskA")
	if !ok || err != nil {
		t.Fatalf("should acquire all three windows: ok=%v err=%v", ok, err)
	}
	for _, h := range []int64{10, 11, 12} {
		if owner := m.GetWindowOwner(h); owner != "taskA" {
			t.Errorf("window %d owner = %q, want taskA", h, owner)
		}
	}

	m.ReleaseWindows([]int64{10, 11, 12})
	for _, h := range []int64{10, 11, 12} {
		if owner := m.GetWindowOwner(h); owner != "" {
			t.Errorf("window %d should be released, owner = %q", h, owner)
		}
	}
}

func TestCleanupStaleLocks_ForceReleasesOldLocks(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, MaxAPIConcurrency: 1}, nil)

	if ok, _ := m.AcquireWindow(7, "taskA", 0); !ok {
		t.Fatal("setup: should acquire window 7")
	}
	m.mu.Lock()
	m.windows[7].acquiredAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	n := m.CleanupStaleLocks(time.Minute)
	if n != 1 {
		t.Errorf("CleanupStaleLocks released %d locks, want 1", n)
	}
	if owner := m.GetWindowOwner(7); owner != "" {
		t.Errorf("window 7 should be unlocked after cleanup, owner = %q", owner)
	}
}

func TestAcquireAPISlot_BoundsConcurrency(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, MaxAPIConcurrency: 2}, nil)
	ctx := context.Background()

	s1, err := m.AcquireAPISlot(ctx)
	if err != nil {
		t.Fatalf("s1: %v", err)
	}
	s2, err := m.AcquireAPISlot(ctx)
	if err != nil {
		t.Fatalf("s2: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		s3, err := m.AcquireAPISlot(ctx)
		if err != nil {
			return
		}
		s3.Release()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third slot should not be available while two permits are held")
	case <-time.After(30 * time.Millisecond):
	}

	s1.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third slot should become available once a permit is released")
	}
	s2.Release()
}

func TestAcquireAPISlot_EnforcesMinimumInterval(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, MaxAPIConcurrency: 5, MinAPIIntervalMs: 50}, nil)
	ctx := context.Background()

	s1, err := m.AcquireAPISlot(ctx)
	if err != nil {
		t.Fatalf("s1: %v", err)
	}
	s1.Release()

	start := time.Now()
	s2, err := m.AcquireAPISlot(ctx)
	if err != nil {
		t.Fatalf("s2: %v", err)
	}
	elapsed := time.Since(start)
	s2.Release()

	if elapsed < 40*time.Millisecond {
		t.Errorf("second acquisition returned after %v, want >= min interval", elapsed)
	}
}

func TestAcquireAPISlot_ContextCancellation(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, MaxAPIConcurrency: 1}, nil)
	ctx := context.Background()

	s1, err := m.AcquireAPISlot(ctx)
	if err != nil {
		t.Fatalf("s1: %v", err)
	}
	defer s1.Release()

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = m.AcquireAPISlot(cctx)
	if err == nil {
		t.Fatal("expected context deadline error while slot is held")
	}
}

func TestAPISlot_ReleaseIsSafeToCallTwice(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 5, MaxAPIConcurrency: 1}, nil)
	s, err := m.AcquireAPISlot(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	s.Release()
	s.Release()

	s2, err := m.AcquireAPISlot(context.Background())
	if err != nil {
		t.Fatalf("slot should be available after release: %v", err)
	}
	s2.Release()
}

func TestConcurrentTaskSlotAcquisition_NoRace(t *testing.T) {
	m := New(Config{MaxConcurrentTasks: 50, MaxAPIConcurrency: 1}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			m.AcquireTaskSlot(id, nil)
		}(i)
	}
	wg.Wait()
}
