package appagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/deskerr"
)

type fakeProbe struct{ exists bool }

func (f fakeProbe) Exists(hwnd int64) bool { return f.exists }

type fakeExecutor struct {
	output string
	err    error
}

func (f fakeExecutor) ExecuteTask(ctx context.Context, task string, state WindowState) (string, error) {
	return f.output, f.err
}

func (f fakeExecutor) GetWindowState(ctx context.Context, hwnd int64) (WindowState, error) {
	return WindowState{Title: "test window"}, nil
}

func TestExecute_FailsWhenNotActive(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{}, Config{}, nil)
	a.IsActive = false
	res, err := a.Execute(context.Background(), "do a thing")
	if !res.IsError {
		t.Fatal("expected failure when agent is not active")
	}
	if err != nil {
		t.Fatalf("expected no propagated error, got %v", err)
	}
}

func TestExecute_MarksInactiveOnWindowLost(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: false}, fakeExecutor{}, Config{}, nil)
	res, err := a.Execute(context.Background(), "do a thing")
	if !res.IsError {
		t.Fatal("expected failure when window is lost")
	}
	if a.IsActive {
		t.Error("agent should be marked inactive after window lost")
	}
	var agentErr *deskerr.AgentError
	if !errors.As(err, &agentErr) || agentErr.Kind != deskerr.KindWindowLost {
		t.Fatalf("expected a WindowLostError to be propagated, got %v", err)
	}
}

func TestExecute_SuccessReturnsOutput(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{output: "done"}, Config{}, nil)
	res, err := a.Execute(context.Background(), "do a thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Output != "done" {
		t.Errorf("expected output 'done', got %q", res.Output)
	}
	if res.Hwnd == nil || *res.Hwnd != 1 {
		t.Error("result should be bound to the agent's hwnd")
	}
}

func TestExecute_ExecuteTaskErrorSetsErrorState(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{err: errors.New("boom")}, Config{}, nil)
	res, err := a.Execute(context.Background(), "do a thing")
	if !res.IsError {
		t.Fatal("expected failure")
	}
	if err != nil {
		t.Fatalf("expected no propagated error for a non-window-lost failure, got %v", err)
	}
	if a.State() != StateError {
		t.Errorf("expected state error, got %s", a.State())
	}
}

func TestCallTool_UnknownToolFails(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{}, Config{}, nil)
	res := a.CallTool(context.Background(), "does_not_exist", nil)
	if !res.IsError {
		t.Fatal("expected failure for unknown tool")
	}
}

func TestCallTool_TimesOut(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{}, Config{ToolTimeout: 5 * time.Millisecond}, nil)
	a.RegisterTool(toolDef("slow"), func(ctx context.Context, args map[string]any) (string, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return "too slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	res := a.CallTool(context.Background(), "slow", nil)
	if !res.IsError {
		t.Fatal("expected timeout failure")
	}
}

func TestCallTool_RecoversFromPanic(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{}, Config{}, nil)
	a.RegisterTool(toolDef("panics"), func(ctx context.Context, args map[string]any) (string, error) {
		panic("kaboom")
	})
	res := a.CallTool(context.Background(), "panics", nil)
	if !res.IsError {
		t.Fatal("expected failure after recovered panic")
	}
}

func TestCallTool_ScalesCoordinateArgs(t *testing.T) {
	a := New(1, TypeDesktop, fakeProbe{exists: true}, fakeExecutor{}, Config{CoordinateScale: 2.0}, nil)
	var seenX, seenY float64
	a.RegisterTool(toolDef("click"), func(ctx context.Context, args map[string]any) (string, error) {
		seenX, _ = args["x"].(float64)
		seenY, _ = args["y"].(float64)
		return "ok", nil
	})
	res := a.CallTool(context.Background(), "click", map[string]any{"x": 10.0, "y": 20.0})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if seenX != 20.0 || seenY != 40.0 {
		t.Errorf("expected scaled coordinates (20, 40), got (%v, %v)", seenX, seenY)
	}
}

func toolDef(name string) coretypes.ToolDefinition {
	return coretypes.ToolDefinition{Name: name}
}
