package termination

import (
	"errors"
	"testing"

	"github.com/deskagent/deskagent/internal/coretypes"
)

func defaultConfig() Config {
	return Config{
		MaxConsecutiveFailures: 3,
		MaxTotalFailures:       10,
		MaxIterations:          50,
		TaskTimeoutS:           1800,
		MaxContextTokens:       180000,
	}
}

func TestCheck_SetTaskStatusTakesHighestPriority(t *testing.T) {
	c := New(defaultConfig())
	c.Cancel() // would otherwise win, but set_task_status outranks it

	res := c.Check(1, nil, true, "completed", true, 0, 0, nil)
	if res.Reason != ReasonCompleted || res.Reason.Type() != TypeSuccess {
		t.Fatalf("got %+v", res)
	}

	c2 := New(defaultConfig())
	res2 := c2.Check(1, nil, true, "needs_help", true, 0, 0, nil)
	if res2.Reason != ReasonNeedsHelp || res2.Reason.Type() != TypeFail {
		t.Fatalf("got %+v", res2)
	}
}

func TestCheck_CancelAndPauseBeforeErrors(t *testing.T) {
	c := New(defaultConfig())
	c.Cancel()
	res := c.Check(1, nil, false, "", true, 0, 0, errors.New("should not matter"))
	if res.Reason != ReasonUserCancelled {
		t.Fatalf("cancel should take priority over critical_error, got %+v", res)
	}

	c2 := New(defaultConfig())
	c2.Pause()
	res2 := c2.Check(1, nil, false, "", true, 0, 0, nil)
	if res2.Reason != ReasonUserPaused {
		t.Fatalf("got %+v", res2)
	}
}

func TestCheck_CriticalErrorBeforeWindowLost(t *testing.T) {
	c := New(defaultConfig())
	res := c.Check(1, nil, false, "", false, 0, 0, errors.New("boom"))
	if res.Reason != ReasonCriticalError {
		t.Fatalf("critical_error should outrank window_lost, got %+v", res)
	}
}

func TestCheck_WindowLost(t *testing.T) {
	c := New(defaultConfig())
	res := c.Check(1, nil, false, "", false, 0, 0, nil)
	if res.Reason != ReasonWindowLost || res.Reason.Type() != TypeError {
		t.Fatalf("got %+v", res)
	}
}

func TestCheck_ConsecutiveFailuresTripsLimit(t *testing.T) {
	c := New(Config{MaxConsecutiveFailures: 2, MaxTotalFailures: 100, MaxIterations: 100})
	errResults := []coretypes.ToolResult{{IsError: true}}

	res := c.Check(1, errResults, false, "", true, 0, 0, nil)
	if res.Reason != ReasonContinueRunning {
		t.Fatalf("first failure should not yet trip the limit, got %+v", res)
	}

	res = c.Check(2, errResults, false, "", true, 0, 0, nil)
	if res.Reason != ReasonConsecutiveFailures {
		t.Fatalf("second consecutive failure should trip the limit, got %+v", res)
	}
}

func TestCheck_SuccessResetsConsecutiveFailures(t *testing.T) {
	c := New(Config{MaxConsecutiveFailures: 2, MaxTotalFailures: 100, MaxIterations: 100})
	errResults := []coretypes.ToolResult{{IsError: true}}
	okResults := []coretypes.ToolResult{{IsError: false}}

	c.Check(1, errResults, false, "", true, 0, 0, nil)
	c.Check(2, okResults, false, "", true, 0, 0, nil)
	if c.ConsecutiveFailures() != 0 {
		t.Fatalf("consecutive failures should reset on success, got %d", c.ConsecutiveFailures())
	}

	res := c.Check(3, errResults, false, "", true, 0, 0, nil)
	if res.Reason != ReasonContinueRunning {
		t.Fatalf("single failure after reset should not trip the limit, got %+v", res)
	}
}

func TestCheck_TotalFailuresAccumulateAcrossResets(t *testing.T) {
	c := New(Config{MaxConsecutiveFailures: 100, MaxTotalFailures: 3, MaxIterations: 100})
	errResults := []coretypes.ToolResult{{IsError: true}}
	okResults := []coretypes.ToolResult{{IsError: false}}

	c.Check(1, errResults, false, "", true, 0, 0, nil)
	c.Check(2, okResults, false, "", true, 0, 0, nil)
	c.Check(3, errResults, false, "", true, 0, 0, nil)
	res := c.Check(4, errResults, false, "", true, 0, 0, nil)

	if res.Reason != ReasonConsecutiveFailures {
		t.Fatalf("total failure limit should trip even with resets between, got %+v", res)
	}
}

func TestCheck_MaxIterations(t *testing.T) {
	c := New(Config{MaxIterations: 5})
	res := c.Check(5, nil, false, "", true, 0, 0, nil)
	if res.Reason != ReasonMaxIterations {
		t.Fatalf("got %+v", res)
	}
}

func TestCheck_Timeout(t *testing.T) {
	c := New(Config{TaskTimeoutS: 100})
	res := c.Check(1, nil, false, "", true, 150, 0, nil)
	if res.Reason != ReasonTimeout {
		t.Fatalf("got %+v", res)
	}
}

func TestCheck_TokenLimit(t *testing.T) {
	c := New(Config{MaxContextTokens: 1000})
	res := c.Check(1, nil, false, "", true, 0, 2000, nil)
	if res.Reason != ReasonTokenLimit {
		t.Fatalf("got %+v", res)
	}
}

func TestCheck_ContinueRunning(t *testing.T) {
	c := New(defaultConfig())
	res := c.Check(1, nil, false, "", true, 10, 100, nil)
	if res.Reason != ReasonContinueRunning || res.ShouldStop() {
		t.Fatalf("got %+v", res)
	}
}

func TestReset_ClearsCountersAndFlags(t *testing.T) {
	c := New(Config{MaxConsecutiveFailures: 1})
	c.Cancel()
	c.Check(1, []coretypes.ToolResult{{IsError: true}}, false, "", true, 0, 0, nil)

	c.Reset()
	res := c.Check(1, nil, false, "", true, 0, 0, nil)
	if res.Reason != ReasonContinueRunning {
		t.Fatalf("after reset, checker should run cleanly, got %+v", res)
	}
	if c.ConsecutiveFailures() != 0 {
		t.Fatalf("reset should zero consecutive failures, got %d", c.ConsecutiveFailures())
	}
}

func TestResume_ClearsPauseFlag(t *testing.T) {
	c := New(defaultConfig())
	c.Pause()
	c.Resume()
	res := c.Check(1, nil, false, "", true, 0, 0, nil)
	if res.Reason == ReasonUserPaused {
		t.Fatal("resume should clear the pause flag")
	}
}

func TestDetectSetTaskStatus(t *testing.T) {
	calls := []coretypes.ToolCall{
		{Name: "navigate", Arguments: map[string]any{"url": "x"}},
		{Name: "set_task_status", Arguments: map[string]any{"status": "completed", "description": "done"}},
	}
	status, desc, ok := DetectSetTaskStatus(calls)
	if !ok || status != "completed" || desc != "done" {
		t.Fatalf("got status=%q desc=%q ok=%v", status, desc, ok)
	}

	_, _, ok = DetectSetTaskStatus([]coretypes.ToolCall{{Name: "navigate"}})
	if ok {
		t.Fatal("should not detect set_task_status when absent")
	}
}
