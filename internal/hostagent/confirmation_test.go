package hostagent

import (
	"context"
	"testing"
	"time"
)

func TestConfirmationStore_DecideUnblocksAwait(t *testing.T) {
	s := NewConfirmationStore()
	s.Open("a1", "task-1", "delete_file", map[string]any{"path": "/tmp/x"})

	go func() {
		time.Sleep(5 * time.Millisecond)
		if !s.Decide("a1", ConfirmDecision{Allowed: true, DecidedBy: "operator"}) {
			t.Error("Decide should succeed on a pending action")
		}
	}()

	decision, err := s.Await(context.Background(), "a1", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed || decision.DecidedBy != "operator" {
		t.Fatalf("got %+v", decision)
	}
}

func TestConfirmationStore_AwaitTimesOut(t *testing.T) {
	s := NewConfirmationStore()
	s.Open("a2", "task-1", "system_command", nil)

	_, err := s.Await(context.Background(), "a2", 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if len(s.Pending("task-1")) != 0 {
		t.Fatal("timed-out confirmation should be cleared from the pending set")
	}
}

func TestConfirmationStore_AwaitRespectsContextCancellation(t *testing.T) {
	s := NewConfirmationStore()
	s.Open("a3", "task-1", "send_email", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := s.Await(ctx, "a3", time.Minute)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestConfirmationStore_DecideOnUnknownActionFails(t *testing.T) {
	s := NewConfirmationStore()
	if s.Decide("does-not-exist", ConfirmDecision{Allowed: true}) {
		t.Fatal("Decide on an unknown action_id should return false")
	}
}

func TestConfirmationStore_DecideIsOneShot(t *testing.T) {
	s := NewConfirmationStore()
	s.Open("a4", "task-1", "delete_file", nil)

	if !s.Decide("a4", ConfirmDecision{Allowed: false}) {
		t.Fatal("first Decide should succeed")
	}
	if s.Decide("a4", ConfirmDecision{Allowed: true}) {
		t.Fatal("second Decide on the same action_id should fail, the channel is full and unread")
	}
}

func TestConfirmationStore_PendingFiltersByTask(t *testing.T) {
	s := NewConfirmationStore()
	s.Open("a5", "task-1", "delete_file", nil)
	s.Open("a6", "task-2", "delete_file", nil)

	if got := s.Pending("task-1"); len(got) != 1 || got[0] != "a5" {
		t.Fatalf("got %v", got)
	}
	if got := s.Pending(""); len(got) != 2 {
		t.Fatalf("empty taskID should return every pending id, got %v", got)
	}
}
