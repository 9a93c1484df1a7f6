package hostagent

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/events"
	"github.com/deskagent/deskagent/internal/security"
)

const confirmationTimeout = 5 * time.Minute

// dispatchTool is the per-call tool dispatch contract from §4.7.4.
func (h *HostAgent) dispatchTool(ctx context.Context, tc coretypes.ToolCall) (result coretypes.ToolResult) {
	start := time.Now()
	ctx, span := h.deps.Tracer.TraceToolExecution(ctx, tc.Name)
	defer func() {
		if result.IsError {
			h.deps.Tracer.RecordError(span, fmt.Errorf("%s", result.Error))
		}
		span.End()
	}()
	h.publish(ctx, events.ToolStart, map[string]any{"tool_name": tc.Name, "args": tc.Arguments})

	entry, ok := h.lookupTool(tc.Name)
	if !ok {
		result = coretypes.Failure(fmt.Sprintf("Tool '%s' not found", tc.Name), tc.Hwnd, elapsedMs(start))
		h.publish(ctx, events.ToolError, map[string]any{"tool_name": tc.Name, "error": result.Error, "duration_ms": result.DurationMs})
		return result
	}

	validator := security.NewToolCallValidator(h.toolDefinitions())
	if validation := validator.Validate(tc, nil); !validation.Valid() {
		result = coretypes.Failure(validation.Error(), tc.Hwnd, elapsedMs(start))
		h.publish(ctx, events.ToolError, map[string]any{"tool_name": tc.Name, "error": result.Error, "duration_ms": result.DurationMs})
		return result
	}

	if h.deps.Config != nil && h.deps.Config.IsSensitiveTool(tc.Name) {
		var handled bool
		result, handled = h.runConfirmationGate(ctx, tc, start)
		if handled {
			return result
		}
	}

	result = h.invokeTool(ctx, entry, tc.Arguments, tc.Hwnd, start)

	if result.IsError {
		h.publish(ctx, events.ToolError, map[string]any{"tool_name": tc.Name, "error": result.Error, "duration_ms": result.DurationMs})
	} else {
		h.publish(ctx, events.ToolEnd, map[string]any{"tool_name": tc.Name, "result": result.Output, "duration_ms": result.DurationMs})
	}

	if h.deps.Metrics != nil {
		status := "success"
		if result.IsError {
			status = "error"
		}
		h.deps.Metrics.RecordToolExecution(tc.Name, status, time.Since(start).Seconds())
	}

	return result
}

// runConfirmationGate blocks until the sensitive tool call is decided.
// handled is true when the gate itself produced the final ToolResult
// (i.e. the operation was denied or the wait failed); false means the
// caller should proceed to invoke the tool.
func (h *HostAgent) runConfirmationGate(ctx context.Context, tc coretypes.ToolCall, start time.Time) (coretypes.ToolResult, bool) {
	actionID := uuid.NewString()
	h.confirmations.Open(actionID, h.currentTaskSnapshot(), tc.Name, tc.Arguments)
	h.publish(ctx, events.UserConfirmRequired, map[string]any{
		"action_id": actionID, "tool_name": tc.Name, "tool_args": tc.Arguments, "risk_level": "high",
	})

	prevState := h.State()
	h.setState(StateWaitingConfirm)
	decision, err := h.confirmations.Await(ctx, actionID, confirmationTimeout)
	h.setState(prevState)

	if err != nil || !decision.Allowed {
		result := coretypes.Failure("User denied the operation", tc.Hwnd, elapsedMs(start))
		h.publish(ctx, events.ToolError, map[string]any{"tool_name": tc.Name, "error": result.Error, "duration_ms": result.DurationMs})
		return result, true
	}
	return coretypes.ToolResult{}, false
}

// invokeTool calls the tool's callable behind a recover boundary, mirroring
// the teacher's executeWithTimeout panic guard: any exception is converted
// to a ToolResult.failure and never propagated to the iteration loop.
func (h *HostAgent) invokeTool(ctx context.Context, entry toolEntry, args map[string]any, hwnd *int64, start time.Time) (result coretypes.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = coretypes.Failure(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()), hwnd, elapsedMs(start))
		}
	}()
	return entry.call(ctx, args)
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func (h *HostAgent) currentTaskSnapshot() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentTaskID
}

func (h *HostAgent) publish(ctx context.Context, name events.Name, data map[string]any) {
	if h.deps.EventBus == nil {
		return
	}
	h.deps.EventBus.Publish(ctx, name, h.currentTaskSnapshot(), data)
}
