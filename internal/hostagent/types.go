package hostagent

import (
	"context"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// State is the HostAgent's externally observable lifecycle state, per
// SPEC_FULL.md §4.7.
type State string

const (
	StateIdle           State = "idle"
	StatePlanning       State = "planning"
	StateExecuting      State = "executing"
	StateWaitingConfirm State = "waiting_confirm"
	StateError          State = "error"
	StateCompleted      State = "completed"
)

// WindowProbe is the subset of the OS window-automation surface the host
// consults directly: liveness and the two autodetection signals AgentFactory
// needs. Satisfied by whatever concrete driver cmd/deskagentd wires in.
type WindowProbe interface {
	Exists(hwnd int64) bool
	WindowClass(hwnd int64) string
	WindowTitle(hwnd int64) string
}

// toolHistoryRecord is one entry in the per-task _tool_history described in
// §4.7.2: a coarse success/error marker per tool call, kept for the
// SuccessVerifier's summarized prompt and for logging.
type toolHistoryRecord struct {
	Name      string
	Arguments map[string]any
	Error     bool
}

// IterationResult is what a single iteration (§4.7.3) produces.
type IterationResult struct {
	Iteration      int
	ToolCalls      []coretypes.ToolCall
	ToolResults    []coretypes.ToolResult
	LLMResponse    *coretypes.LLMResponse
	Thinking       string
	DurationMs     int64
	ShouldContinue bool
	Err            error
}

// ProcessResult is the return value of ProcessTask.
type ProcessResult struct {
	TaskID     string
	Status     string
	Iterations int
	DurationS  float64
	Blackboard map[string]any
}

// toolEntry pairs one tool's advertised schema with its dispatch callable,
// the unified "name -> callable / [ToolDefinition]" registry from §4.7.
type toolEntry struct {
	def  coretypes.ToolDefinition
	call func(ctx context.Context, args map[string]any) coretypes.ToolResult
}
