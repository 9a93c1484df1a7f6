package hostagent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/events"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(_ context.Context, e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) find(name events.Name) (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.Name == name {
			return e, true
		}
	}
	return events.Event{}, false
}

func (s *recordingSink) count(name events.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func TestDispatchTool_PanicIsRecoveredAsFailure(t *testing.T) {
	sink := &recordingSink{}
	cfg := testConfig()
	h := New(Deps{Config: cfg, EventBus: events.New(sink)})

	h.toolsMu.Lock()
	h.tools["boom"] = toolEntry{
		def: coretypes.ToolDefinition{Name: "boom"},
		call: func(context.Context, map[string]any) coretypes.ToolResult {
			panic("kaboom")
		},
	}
	h.toolsMu.Unlock()

	result := h.dispatchTool(context.Background(), coretypes.ToolCall{ID: "t1", Name: "boom"})
	if !result.IsError || !strings.Contains(result.Error, "panic") {
		t.Fatalf("expected a recovered panic failure, got %+v", result)
	}
	if sink.count(events.ToolError) != 1 {
		t.Fatalf("expected exactly one TOOL_ERROR event, got %d", sink.count(events.ToolError))
	}
}

func TestDispatchTool_SensitiveToolDeniedFailsTheCall(t *testing.T) {
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.SensitiveTools = []string{setTaskStatusTool}
	h := New(Deps{Config: cfg, EventBus: events.New(sink)})

	done := make(chan coretypes.ToolResult, 1)
	go func() {
		done <- h.dispatchTool(context.Background(), coretypes.ToolCall{
			ID:   "t1",
			Name: setTaskStatusTool,
			Arguments: map[string]any{
				"status":      "completed",
				"description": "done",
			},
		})
	}()

	actionID := waitForConfirmRequired(t, sink)
	if !h.confirmations.Decide(actionID, ConfirmDecision{Allowed: false, DecidedBy: "operator"}) {
		t.Fatal("Decide should succeed on the just-opened confirmation")
	}

	result := <-done
	if !result.IsError || result.Error != "User denied the operation" {
		t.Fatalf("expected a denial failure, got %+v", result)
	}
	if sink.count(events.UserConfirmRequired) != 1 {
		t.Fatalf("expected exactly one USER_CONFIRM_REQUIRED event, got %d", sink.count(events.UserConfirmRequired))
	}
}

func TestDispatchTool_SensitiveToolApprovedProceeds(t *testing.T) {
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.SensitiveTools = []string{setTaskStatusTool}
	h := New(Deps{Config: cfg, EventBus: events.New(sink)})

	done := make(chan coretypes.ToolResult, 1)
	go func() {
		done <- h.dispatchTool(context.Background(), coretypes.ToolCall{
			ID:   "t1",
			Name: setTaskStatusTool,
			Arguments: map[string]any{
				"status":      "completed",
				"description": "done",
			},
		})
	}()

	actionID := waitForConfirmRequired(t, sink)
	if !h.confirmations.Decide(actionID, ConfirmDecision{Allowed: true}) {
		t.Fatal("Decide should succeed on the just-opened confirmation")
	}

	result := <-done
	if result.IsError {
		t.Fatalf("expected the approved call to succeed, got %+v", result)
	}
}

func waitForConfirmRequired(t *testing.T, sink *recordingSink) string {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if e, ok := sink.find(events.UserConfirmRequired); ok {
			actionID, _ := e.Data["action_id"].(string)
			if actionID == "" {
				t.Fatal("USER_CONFIRM_REQUIRED event missing action_id")
			}
			return actionID
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for USER_CONFIRM_REQUIRED")
		case <-time.After(time.Millisecond):
		}
	}
}
