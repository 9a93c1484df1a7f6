// Package deskerr defines the error taxonomy used across the orchestration
// core and the declarative recovery-strategy lookup the host consults when an
// iteration fails outside tool dispatch.
package deskerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an AgentError for retry and severity decisions.
type Kind string

const (
	KindClaudeAPI            Kind = "claude_api"
	KindRateLimit            Kind = "rate_limit"
	KindTokenLimit           Kind = "token_limit"
	KindLLMResponse          Kind = "llm_response"
	KindToolExecution        Kind = "tool_execution"
	KindToolNotFound         Kind = "tool_not_found"
	KindToolValidation       Kind = "tool_validation"
	KindToolTimeout          Kind = "tool_timeout"
	KindWindowLost           Kind = "window_lost"
	KindWindowNotFocusable   Kind = "window_not_focusable"
	KindWindowLocked         Kind = "window_locked"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindTaskNotFound         Kind = "task_not_found"
	KindCheckpoint           Kind = "checkpoint"
	KindTooManyTasks         Kind = "too_many_tasks"
	KindResourceLock         Kind = "resource_lock"
	KindUnauthorizedAction   Kind = "unauthorized_action"
	KindSensitiveOpDenied    Kind = "sensitive_operation_denied"
	KindPromptInjection      Kind = "prompt_injection"
	KindCritical             Kind = "critical"
	KindFatal                Kind = "fatal"
)

// Severity is the umbrella bucket used for logging level and notify decisions.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
	SeverityFatal    Severity = "fatal"
)

// Category groups kinds for propagation-policy purposes.
type Category string

const (
	CategoryLLM         Category = "llm"
	CategoryTool        Category = "tool"
	CategoryWindow      Category = "window"
	CategoryState       Category = "state"
	CategoryConcurrency Category = "concurrency"
	CategorySecurity    Category = "security"
	CategorySeverity    Category = "severity"
)

// AgentError is the single error type the core raises and classifies.
type AgentError struct {
	Kind        Kind
	Category    Category
	Severity    Severity
	Recoverable bool
	Message     string
	Cause       error

	// Extra per-kind context, kept loosely typed to mirror the spec's
	// per-error-kind fields (status code, retry_after, tool name, ...).
	Fields map[string]any
}

func (e *AgentError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *AgentError) Unwrap() error { return e.Cause }

// ShouldRetry mirrors the spec: recoverable AND severity != fatal.
func (e *AgentError) ShouldRetry() bool {
	return e.Recoverable && e.Severity != SeverityFatal
}

func (e *AgentError) ToDict() map[string]any {
	m := map[string]any{
		"kind":        string(e.Kind),
		"category":    string(e.Category),
		"severity":    string(e.Severity),
		"recoverable": e.Recoverable,
		"message":     e.Error(),
	}
	for k, v := range e.Fields {
		m[k] = v
	}
	return m
}

func newErr(kind Kind, category Category, severity Severity, recoverable bool, msg string, cause error) *AgentError {
	return &AgentError{Kind: kind, Category: category, Severity: severity, Recoverable: recoverable, Message: msg, Cause: cause}
}

// Constructors, one per taxonomy entry in SPEC_FULL.md §7.

func NewClaudeAPIError(statusCode int, retryAfterSec int, cause error) *AgentError {
	e := newErr(KindClaudeAPI, CategoryLLM, SeverityError, true, "", cause)
	e.Fields = map[string]any{"status_code": statusCode, "retry_after": retryAfterSec}
	return e
}

func NewRateLimitError(retryAfterSec int, cause error) *AgentError {
	e := newErr(KindRateLimit, CategoryLLM, SeverityWarning, true, "rate limited", cause)
	e.Fields = map[string]any{"retry_after": retryAfterSec}
	return e
}

func NewTokenLimitError(currentTokens, maxTokens int) *AgentError {
	e := newErr(KindTokenLimit, CategoryLLM, SeverityWarning, true, "token limit exceeded", nil)
	e.Fields = map[string]any{"current_tokens": currentTokens, "max_tokens": maxTokens}
	return e
}

func NewLLMResponseError(cause error) *AgentError {
	return newErr(KindLLMResponse, CategoryLLM, SeverityWarning, true, "failed to parse LLM response", cause)
}

func NewToolExecutionError(toolName string, args map[string]any, cause error) *AgentError {
	e := newErr(KindToolExecution, CategoryTool, SeverityError, true, "", cause)
	e.Fields = map[string]any{"tool_name": toolName, "args": args}
	return e
}

func NewToolNotFoundError(toolName string) *AgentError {
	e := newErr(KindToolNotFound, CategoryTool, SeverityWarning, false, fmt.Sprintf("tool %q not found", toolName), nil)
	e.Fields = map[string]any{"tool_name": toolName}
	return e
}

func NewToolValidationError(toolName, field, detail string) *AgentError {
	e := newErr(KindToolValidation, CategoryTool, SeverityWarning, false, detail, nil)
	e.Fields = map[string]any{"tool_name": toolName, "field": field}
	return e
}

func NewToolTimeoutError(toolName string, timeoutMs int64) *AgentError {
	e := newErr(KindToolTimeout, CategoryTool, SeverityError, true, "tool execution timed out", nil)
	e.Fields = map[string]any{"tool_name": toolName, "timeout_ms": timeoutMs}
	return e
}

func NewWindowLostError(hwnd int64) *AgentError {
	e := newErr(KindWindowLost, CategoryWindow, SeverityCritical, false, "window no longer exists", nil)
	e.Fields = map[string]any{"hwnd": hwnd}
	return e
}

func NewWindowNotFocusableError(hwnd int64) *AgentError {
	e := newErr(KindWindowNotFocusable, CategoryWindow, SeverityError, true, "window could not be focused", nil)
	e.Fields = map[string]any{"hwnd": hwnd}
	return e
}

func NewWindowLockedError(hwnd int64, owner string) *AgentError {
	e := newErr(KindWindowLocked, CategoryWindow, SeverityWarning, true, "window is locked by another task", nil)
	e.Fields = map[string]any{"hwnd": hwnd, "owner": owner}
	return e
}

func NewInvalidStateTransitionError(from, to string) *AgentError {
	e := newErr(KindInvalidStateTransition, CategoryState, SeverityError, false, fmt.Sprintf("illegal transition %s -> %s", from, to), nil)
	e.Fields = map[string]any{"from": from, "to": to}
	return e
}

func NewTaskNotFoundError(taskID string) *AgentError {
	e := newErr(KindTaskNotFound, CategoryState, SeverityError, false, fmt.Sprintf("task %q not found", taskID), nil)
	e.Fields = map[string]any{"task_id": taskID}
	return e
}

func NewCheckpointError(taskID string, cause error) *AgentError {
	e := newErr(KindCheckpoint, CategoryState, SeverityWarning, true, "checkpoint failed", cause)
	e.Fields = map[string]any{"task_id": taskID}
	return e
}

func NewTooManyTasksError(currentCount, maxCount int) *AgentError {
	e := newErr(KindTooManyTasks, CategoryConcurrency, SeverityWarning, true, "too many concurrent tasks", nil)
	e.Fields = map[string]any{"current_count": currentCount, "max_count": maxCount}
	return e
}

func NewResourceLockError(resource string, cause error) *AgentError {
	e := newErr(KindResourceLock, CategoryConcurrency, SeverityError, true, "resource lock failed", cause)
	e.Fields = map[string]any{"resource": resource}
	return e
}

func NewUnauthorizedActionError(action string) *AgentError {
	e := newErr(KindUnauthorizedAction, CategorySecurity, SeverityFatal, false, fmt.Sprintf("unauthorized action: %s", action), nil)
	e.Fields = map[string]any{"action": action}
	return e
}

func NewSensitiveOperationDeniedError(toolName string) *AgentError {
	e := newErr(KindSensitiveOpDenied, CategorySecurity, SeverityFatal, false, "user denied the operation", nil)
	e.Fields = map[string]any{"tool_name": toolName}
	return e
}

func NewPromptInjectionError(pattern string) *AgentError {
	e := newErr(KindPromptInjection, CategorySecurity, SeverityFatal, false, "prompt injection detected", nil)
	e.Fields = map[string]any{"pattern": pattern}
	return e
}

// IsSecurity reports whether err is any of the Security-category kinds,
// which per the propagation policy always notify and never retry.
func IsSecurity(err error) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Category == CategorySecurity
	}
	return false
}

// AsAgentError extracts an *AgentError from an error chain.
func AsAgentError(err error) (*AgentError, bool) {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
