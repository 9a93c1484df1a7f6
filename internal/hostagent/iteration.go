package hostagent

import (
	"context"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/events"
	"github.com/deskagent/deskagent/internal/taskstore"
)

const systemPrompt = `You are the supervisor of a desktop automation agent. You have tools to ` +
	`dispatch work to application-specific workers and to signal task completion via ` +
	`set_task_status. Use the fewest steps that accomplish the task reliably.`

// runIteration is single_iteration from §4.7.3: one LLM turn plus the
// sequential dispatch of whatever tool calls it requested.
func (h *HostAgent) runIteration(ctx context.Context) IterationResult {
	start := time.Now()
	result := IterationResult{Iteration: h.iterationCount}

	task, err := h.deps.TaskStore.GetTask(ctx, h.currentTaskID)
	if err != nil {
		result.Err = err
		result.ShouldContinue = h.handleError(ctx, err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}
	if task.Status != taskstore.StatusRunning {
		result.ShouldContinue = false
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	apiSlot, err := h.deps.Concurrency.AcquireAPISlot(ctx)
	if err != nil {
		result.Err = err
		result.ShouldContinue = h.handleError(ctx, err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	providerName := h.deps.LLMClient.Name()
	model := h.deps.Config.LLM.Providers[providerName].DefaultModel
	llmCtx, llmSpan := h.deps.Tracer.TraceLLMRequest(ctx, providerName, model)

	callStart := time.Now()
	response, err := h.deps.LLMClient.Call(llmCtx, systemPrompt, h.messages, h.toolDefinitions())
	apiSlot.Release()

	if err != nil {
		h.deps.Tracer.RecordError(llmSpan, err)
	}
	llmSpan.End()

	if h.deps.Metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		h.deps.Metrics.RecordLLMRequest(providerName, model, status, time.Since(callStart).Seconds(), response.InputTokens, response.OutputTokens)
	}
	if err != nil {
		result.Err = err
		result.ShouldContinue = h.handleError(ctx, err)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}
	result.LLMResponse = &response

	assistantMsg := coretypes.Message{Role: coretypes.RoleAssistant, Content: response.Content, ToolCalls: response.ToolCalls}
	h.messages = append(h.messages, assistantMsg)

	if response.Content != "" {
		result.Thinking = response.Content
		h.publish(ctx, events.AgentThinking, map[string]any{"content": response.Content})
	}

	setTaskStatusCalled := false
	result.ToolCalls = response.ToolCalls

	for _, tc := range response.ToolCalls {
		toolResult := h.dispatchTool(ctx, tc)
		result.ToolResults = append(result.ToolResults, toolResult)
		content := toolResult.Output
		if toolResult.IsError {
			content = toolResult.Error
		}
		h.messages = append(h.messages, coretypes.Message{
			Role:       coretypes.RoleTool,
			Content:    content,
			ToolCallID: tc.ID,
			Name:       tc.Name,
			IsError:    toolResult.IsError,
		})
		if tc.Name == setTaskStatusTool {
			setTaskStatusCalled = true
		}
		h.sleepScreenshotDelay(ctx)
	}

	result.ShouldContinue = !setTaskStatusCalled && response.NeedsToolExecution()
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (h *HostAgent) sleepScreenshotDelay(ctx context.Context) {
	if h.deps.Config == nil {
		return
	}
	delay := h.deps.Config.ScreenshotDelay()
	if delay <= 0 {
		return
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
