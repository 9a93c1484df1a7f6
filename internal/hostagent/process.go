package hostagent

import (
	"context"
	"fmt"
	"time"

	"github.com/deskagent/deskagent/internal/blackboard"
	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/deskerr"
	"github.com/deskagent/deskagent/internal/events"
	"github.com/deskagent/deskagent/internal/taskstore"
	"github.com/deskagent/deskagent/internal/termination"
)

// ProcessTask is the process_task(task_id, task_text, target_hwnds) contract
// from §4.7.1: it runs task_id from a cold start through to a terminal
// TaskStatus, releasing every acquired resource on the way out regardless of
// outcome.
func (h *HostAgent) ProcessTask(ctx context.Context, taskID, taskText string, targetHwnds []int64) (result ProcessResult, err error) {
	h.mu.Lock()
	if h.isProcessing {
		h.mu.Unlock()
		return ProcessResult{}, fmt.Errorf("hostagent: already processing task %q", h.currentTaskID)
	}
	h.mu.Unlock()

	if h.deps.Security != nil {
		if pattern := h.deps.Security.DetectPromptInjection(taskText); pattern != "" {
			return ProcessResult{}, deskerr.NewPromptInjectionError(pattern)
		}
	}

	acquired, acqErr := h.deps.Concurrency.AcquireTaskSlot(taskID, targetHwnds)
	if acqErr != nil {
		return ProcessResult{}, acqErr
	}
	if !acquired {
		return ProcessResult{}, fmt.Errorf("hostagent: no task slot available for %q", taskID)
	}

	windowsOK, lockErr := h.deps.Concurrency.AcquireWindows(targetHwnds, taskID)
	if lockErr != nil || !windowsOK {
		h.deps.Concurrency.ReleaseTaskSlot(taskID)
		if lockErr != nil {
			return ProcessResult{}, lockErr
		}
		return ProcessResult{}, fmt.Errorf("hostagent: could not acquire all target windows for %q", taskID)
	}

	h.beginTask(taskID, taskText, targetHwnds)

	ctx, span := h.deps.Tracer.TraceTaskProcessing(ctx, taskID, string(taskstore.StatusPending))

	defer func() {
		if r := recover(); r != nil {
			h.deps.Logger.Error(ctx, "panic inside process_task", "task_id", taskID, "recover", r)
			_, _ = h.failTask(ctx, fmt.Sprintf("internal error: %v", r))
			err = fmt.Errorf("hostagent: panic processing %q: %v", taskID, r)
		}
		if err != nil {
			h.deps.Tracer.RecordError(span, err)
		}
		span.End()
		h.deps.Concurrency.ReleaseWindows(targetHwnds)
		h.deps.Concurrency.ReleaseTaskSlot(taskID)
		h.endTask()
	}()

	if createErr := h.deps.TaskStore.CreateTask(ctx, taskID, taskText, targetHwnds); createErr != nil {
		return ProcessResult{}, createErr
	}
	if transErr := h.deps.TaskStore.Transition(ctx, taskID, taskstore.StatusRunning, "", ""); transErr != nil {
		return ProcessResult{}, transErr
	}

	h.publish(ctx, events.TaskStarted, map[string]any{"task_text": taskText, "target_hwnds": targetHwnds})
	h.messages = append(h.messages, coretypes.UserMessage(taskText))

	result, runErr := h.runLoop(ctx)
	if runErr != nil {
		h.deps.Logger.Error(ctx, "task loop ended with error", "task_id", taskID, "error", runErr)
		failResult, failErr := h.failTask(ctx, runErr.Error())
		if failErr != nil {
			return ProcessResult{}, failErr
		}
		return failResult, runErr
	}
	return result, nil
}

func (h *HostAgent) beginTask(taskID, taskText string, targetHwnds []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isProcessing = true
	h.currentTaskID = taskID
	h.taskText = taskText
	h.targetHwnds = targetHwnds
	h.iterationCount = 0
	h.retryCount = 0
	h.startTime = time.Now()
	h.messages = nil
	h.toolHistory = nil
	h.finalScreenshot = ""
	h.state = StateExecuting

	termCfg := h.deps.Config.ToTerminationConfig()
	h.termChecker = termination.New(termination.Config{
		MaxConsecutiveFailures: termCfg.MaxConsecutiveFailures,
		MaxTotalFailures:       termCfg.MaxTotalFailures,
		MaxIterations:          termCfg.MaxIterations,
		TaskTimeoutS:           float64(termCfg.TaskTimeoutS),
		MaxContextTokens:       termCfg.MaxContextTokens,
	})
	h.board = blackboard.New(taskID)

	if h.deps.Metrics != nil {
		h.deps.Metrics.TaskStarted()
	}
}

func (h *HostAgent) endTask() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isProcessing = false
	h.currentTaskID = ""
	h.taskText = ""
	h.targetHwnds = nil
}

// runLoop repeats single iterations while is_processing holds, per §4.7.2.
func (h *HostAgent) runLoop(ctx context.Context) (ProcessResult, error) {
	var lastResult termination.Result

	for h.IsProcessing() {
		iterResult := h.runIteration(ctx)

		h.toolHistory = append(h.toolHistory, toolHistoryRecord{
			Name:  firstToolName(iterResult.ToolCalls),
			Error: anyError(iterResult.ToolResults),
		})
		if img := lastScreenshot(iterResult.ToolResults); img != "" {
			h.finalScreenshot = img
		}

		status, description, setCalled := termination.DetectSetTaskStatus(iterResult.ToolCalls)
		windowsExist := h.allWindowsExist()

		var criticalErr error
		if iterResult.Err != nil && !iterResult.ShouldContinue {
			criticalErr = iterResult.Err
		}

		elapsed := termination.ElapsedSeconds(h.startTime)
		check := h.termChecker.Check(h.iterationCount, iterResult.ToolResults, setCalled, status, windowsExist, elapsed, 0, criticalErr)

		if h.deps.Metrics != nil {
			h.deps.Metrics.RecordIteration(float64(iterResult.DurationMs) / 1000)
		}

		stop := check.ShouldStop()
		if stop {
			lastResult = check
			h.pendingDescription = description
		}

		if h.deps.Config.CheckpointInterval > 0 && h.iterationCount > 0 && h.iterationCount%h.deps.Config.CheckpointInterval == 0 {
			h.saveCheckpoint(ctx)
		}

		// Counts the turn just completed, including a terminating one: the
		// set_task_status turn in a run is still a turn the agent took.
		h.iterationCount++

		if stop {
			break
		}
	}

	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordTermination(string(lastResult.Reason))
	}
	return h.handleTermination(ctx, lastResult)
}

func firstToolName(calls []coretypes.ToolCall) string {
	if len(calls) == 0 {
		return ""
	}
	return calls[0].Name
}

func anyError(results []coretypes.ToolResult) bool {
	for _, r := range results {
		if r.IsError {
			return true
		}
	}
	return false
}

func lastScreenshot(results []coretypes.ToolResult) string {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Base64Image != "" {
			return results[i].Base64Image
		}
	}
	return ""
}

func (h *HostAgent) allWindowsExist() bool {
	if h.deps.WindowProbe == nil {
		return true
	}
	for _, hwnd := range h.targetHwnds {
		if !h.deps.WindowProbe.Exists(hwnd) {
			return false
		}
	}
	return true
}

func (h *HostAgent) saveCheckpoint(ctx context.Context) {
	appAgentHwnds := make([]int64, 0, len(h.appAgents))
	h.toolsMu.RLock()
	for hwnd := range h.appAgents {
		appAgentHwnds = append(appAgentHwnds, hwnd)
	}
	h.toolsMu.RUnlock()

	encoded, err := encodeMessages(h.messages)
	if err != nil {
		h.deps.Logger.Warn(ctx, "checkpoint encode failed", "task_id", h.currentTaskID, "error", err)
		return
	}

	cp := taskstore.Checkpoint{
		TaskID:     h.currentTaskID,
		Iteration:  h.iterationCount,
		Messages:   encoded,
		Blackboard: h.board.ToDict(),
		AppAgents:  appAgentHwnds,
		SavedAt:    time.Now(),
	}
	if err := h.deps.TaskStore.SaveCheckpoint(ctx, h.currentTaskID, h.iterationCount, cp); err != nil {
		h.deps.Logger.Warn(ctx, "checkpoint save failed", "task_id", h.currentTaskID, "error", err)
		return
	}
	h.publish(ctx, events.CheckpointSaved, map[string]any{"iteration": h.iterationCount})
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordCheckpoint()
	}
}

// handleTermination dispatches on the TerminationType per §4.7.2.
func (h *HostAgent) handleTermination(ctx context.Context, result termination.Result) (ProcessResult, error) {
	description := h.pendingDescription

	switch result.Reason.Type() {
	case termination.TypeSuccess:
		if h.deps.Config.VerifySuccess && h.finalScreenshot != "" && h.deps.Verifier != nil {
			if !h.deps.Verifier.Verify(ctx, h.taskText, h.verifierHistory(), h.finalScreenshot) {
				return h.failTask(ctx, "Task verification failed")
			}
		}
		return h.completeTask(ctx, description)

	case termination.TypeFail:
		if result.Reason == termination.ReasonNeedsHelp {
			return h.requestHelp(ctx, description)
		}
		return h.failTask(ctx, result.Details)

	case termination.TypeError:
		return h.emergencyStop(ctx, result.Details)

	case termination.TypeCancelled:
		if result.Reason == termination.ReasonUserPaused {
			return h.markPaused(ctx)
		}
		return h.markCancelled(ctx, string(result.Reason))

	default:
		return h.failTask(ctx, "unknown termination outcome")
	}
}

func (h *HostAgent) verifierHistory() []termination.ToolHistoryEntry {
	out := make([]termination.ToolHistoryEntry, 0, len(h.toolHistory))
	for _, r := range h.toolHistory {
		out = append(out, termination.ToolHistoryEntry{Name: r.Name, IsError: r.Error})
	}
	return out
}

func (h *HostAgent) completeTask(ctx context.Context, description string) (ProcessResult, error) {
	if err := h.deps.TaskStore.Transition(ctx, h.currentTaskID, taskstore.StatusCompleted, description, ""); err != nil {
		return ProcessResult{}, err
	}
	h.publish(ctx, events.TaskCompleted, map[string]any{"description": description})
	h.setState(StateCompleted)
	return h.result(string(taskstore.StatusCompleted)), nil
}

func (h *HostAgent) failTask(ctx context.Context, reason string) (ProcessResult, error) {
	if err := h.deps.TaskStore.Transition(ctx, h.currentTaskID, taskstore.StatusFailed, "", reason); err != nil {
		return ProcessResult{}, err
	}
	h.publish(ctx, events.TaskFailed, map[string]any{"type": "fail_task", "reason": reason})
	h.setState(StateError)
	return h.result(string(taskstore.StatusFailed)), nil
}

func (h *HostAgent) requestHelp(ctx context.Context, description string) (ProcessResult, error) {
	if err := h.deps.TaskStore.Transition(ctx, h.currentTaskID, taskstore.StatusNeedsHelp, description, ""); err != nil {
		return ProcessResult{}, err
	}
	h.publish(ctx, events.TaskFailed, map[string]any{"type": "needs_help", "description": description})
	h.setState(StateWaitingConfirm)
	h.mu.Lock()
	h.isProcessing = false
	h.mu.Unlock()
	return h.result(string(taskstore.StatusNeedsHelp)), nil
}

func (h *HostAgent) emergencyStop(ctx context.Context, reason string) (ProcessResult, error) {
	h.saveCheckpoint(ctx)
	if err := h.deps.TaskStore.Transition(ctx, h.currentTaskID, taskstore.StatusInterrupted, "", reason); err != nil {
		return ProcessResult{}, err
	}
	h.publish(ctx, events.TaskFailed, map[string]any{"type": "emergency_stop", "reason": reason})
	h.setState(StateError)
	return h.result(string(taskstore.StatusInterrupted)), nil
}

func (h *HostAgent) markCancelled(ctx context.Context, reason string) (ProcessResult, error) {
	if err := h.deps.TaskStore.Transition(ctx, h.currentTaskID, taskstore.StatusCancelled, "", reason); err != nil {
		return ProcessResult{}, err
	}
	h.setState(StateIdle)
	h.mu.Lock()
	h.isProcessing = false
	h.mu.Unlock()
	return h.result(string(taskstore.StatusCancelled)), nil
}

func (h *HostAgent) markPaused(ctx context.Context) (ProcessResult, error) {
	h.saveCheckpoint(ctx)
	if err := h.deps.TaskStore.Transition(ctx, h.currentTaskID, taskstore.StatusPaused, "", ""); err != nil {
		return ProcessResult{}, err
	}
	h.setState(StateIdle)
	h.mu.Lock()
	h.isProcessing = false
	h.mu.Unlock()
	return h.result(string(taskstore.StatusPaused)), nil
}

func (h *HostAgent) result(status string) ProcessResult {
	durationS := termination.ElapsedSeconds(h.startTime)
	if h.deps.Metrics != nil {
		h.deps.Metrics.TaskFinished(status, durationS)
	}
	return ProcessResult{
		TaskID:     h.currentTaskID,
		Status:     status,
		Iterations: h.iterationCount,
		DurationS:  durationS,
		Blackboard: h.board.ToDict(),
	}
}

// Resume reloads the most recent checkpoint for taskID, rebuilds the
// blackboard and message history, and re-enters the loop with state
// transitioned PAUSED -> RUNNING, per the Decision recorded in
// SPEC_FULL.md §9.
func (h *HostAgent) Resume(ctx context.Context, taskID string) (ProcessResult, error) {
	task, err := h.deps.TaskStore.GetTask(ctx, taskID)
	if err != nil {
		return ProcessResult{}, err
	}
	if task.Status != taskstore.StatusPaused && task.Status != taskstore.StatusInterrupted {
		return ProcessResult{}, fmt.Errorf("hostagent: cannot resume task %q from status %q", taskID, task.Status)
	}

	cp, err := h.deps.TaskStore.LatestCheckpoint(ctx, taskID)
	if err != nil {
		return ProcessResult{}, err
	}
	if cp == nil {
		return ProcessResult{}, deskerr.NewCheckpointError(taskID, fmt.Errorf("no checkpoint to resume from"))
	}

	msgs, err := decodeMessages(cp.Messages)
	if err != nil {
		return ProcessResult{}, err
	}
	board, err := blackboard.FromSnapshotJSON(cp.Blackboard)
	if err != nil {
		return ProcessResult{}, err
	}

	acquired, acqErr := h.deps.Concurrency.AcquireTaskSlot(taskID, task.TargetHwnds)
	if acqErr != nil {
		return ProcessResult{}, acqErr
	}
	if !acquired {
		return ProcessResult{}, fmt.Errorf("hostagent: no task slot available to resume %q", taskID)
	}
	if ok, lockErr := h.deps.Concurrency.AcquireWindows(task.TargetHwnds, taskID); lockErr != nil || !ok {
		h.deps.Concurrency.ReleaseTaskSlot(taskID)
		if lockErr != nil {
			return ProcessResult{}, lockErr
		}
		return ProcessResult{}, fmt.Errorf("hostagent: could not reacquire windows to resume %q", taskID)
	}

	for _, hwnd := range cp.AppAgents {
		if h.deps.WindowProbe != nil && !h.deps.WindowProbe.Exists(hwnd) {
			continue
		}
		if _, ok := h.AppAgent(hwnd); !ok && h.deps.AgentFactory != nil {
			info := agentWindowInfo(h.deps.WindowProbe, hwnd)
			if agent, buildErr := h.deps.AgentFactory.Create(hwnd, "", info); buildErr == nil {
				h.RegisterAppAgent(agent)
			}
		}
	}

	h.mu.Lock()
	h.isProcessing = true
	h.currentTaskID = taskID
	h.taskText = task.Text
	h.targetHwnds = task.TargetHwnds
	h.iterationCount = cp.Iteration
	h.retryCount = 0
	h.startTime = time.Now()
	h.messages = msgs
	h.toolHistory = nil
	h.finalScreenshot = ""
	h.state = StateExecuting
	termCfg := h.deps.Config.ToTerminationConfig()
	h.termChecker = termination.New(termination.Config{
		MaxConsecutiveFailures: termCfg.MaxConsecutiveFailures,
		MaxTotalFailures:       termCfg.MaxTotalFailures,
		MaxIterations:          termCfg.MaxIterations,
		TaskTimeoutS:           float64(termCfg.TaskTimeoutS),
		MaxContextTokens:       termCfg.MaxContextTokens,
	})
	h.board = board
	h.mu.Unlock()

	defer func() {
		h.deps.Concurrency.ReleaseWindows(task.TargetHwnds)
		h.deps.Concurrency.ReleaseTaskSlot(taskID)
		h.endTask()
	}()

	if err := h.deps.TaskStore.Transition(ctx, taskID, taskstore.StatusRunning, "", ""); err != nil {
		return ProcessResult{}, err
	}

	return h.runLoop(ctx)
}
