// Package coretypes defines the value types shared across the orchestration
// core: tool calls and results, chat messages, tool schemas, and the subtask
// and inter-agent message shapes owned by the blackboard.
package coretypes

import "time"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is one LLM-issued tool invocation. ID is opaque and assigned by the
// LLM provider; the host must echo it on the corresponding tool-result message.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]any         `json:"arguments"`
	Hwnd      *int64                 `json:"hwnd,omitempty"`
}

// ToolResult is an immutable value carrying exactly one of Output or Error.
type ToolResult struct {
	Output      string  `json:"output,omitempty"`
	Error       string  `json:"error,omitempty"`
	IsError     bool    `json:"is_error"`
	Base64Image string  `json:"base64_image,omitempty"`
	Hwnd        *int64  `json:"hwnd,omitempty"`
	DurationMs  int64   `json:"duration_ms"`
}

// Success builds a successful ToolResult bound to hwnd (nil for host-level tools).
func Success(output string, hwnd *int64, durationMs int64) ToolResult {
	return ToolResult{Output: output, Hwnd: hwnd, DurationMs: durationMs}
}

// Failure builds a failing ToolResult. IsError is always true when Error is set.
func Failure(errMsg string, hwnd *int64, durationMs int64) ToolResult {
	return ToolResult{Error: errMsg, IsError: true, Hwnd: hwnd, DurationMs: durationMs}
}

// Message is one entry in the conversation sent to the LLM.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// UserMessage builds a user-role Message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ParamType enumerates the JSON-schema-ish scalar/container types a
// ToolParameter may declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// ToolParameter describes one parameter of a ToolDefinition.
type ToolParameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	Enum        []string  `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// ToolDefinition is the schema the host advertises to the LLM for one tool.
type ToolDefinition struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Parameters   []ToolParameter `json:"parameters"`
	SupportsHwnd bool            `json:"supports_hwnd"`
	IsSensitive  bool            `json:"is_sensitive"`
	Category     string          `json:"category,omitempty"`
}

// ClaudeSchema renders the definition in the Claude-style {name, description,
// input_schema} shape used when talking to the LLM.
func (d ToolDefinition) ClaudeSchema() map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range d.Parameters {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"input_schema": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// RequestStatus is the lifecycle state of a SubTask.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
	RequestNeedsHelp  RequestStatus = "needs_help"
)

// IsTerminal reports whether a SubTask in this status will never transition again.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestCompleted, RequestFailed, RequestNeedsHelp:
		return true
	default:
		return false
	}
}

// SubTask is a host-decomposed unit of work, possibly depending on others.
type SubTask struct {
	ID            string        `json:"id"`
	Description   string        `json:"description"`
	TargetHwnd    *int64        `json:"target_hwnd,omitempty"`
	AppType       string        `json:"app_type,omitempty"`
	Status        RequestStatus `json:"status"`
	Result        string        `json:"result,omitempty"`
	Error         string        `json:"error,omitempty"`
	AssignedAgent string        `json:"assigned_agent,omitempty"`
	Dependencies  []string      `json:"dependencies,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// AgentMessageType classifies an inter-agent AgentMessage.
type AgentMessageType string

const (
	AgentMsgInfo     AgentMessageType = "info"
	AgentMsgRequest  AgentMessageType = "request"
	AgentMsgResponse AgentMessageType = "response"
	AgentMsgError    AgentMessageType = "error"
)

// AgentMessage is an entry in the blackboard's inter-agent message log.
type AgentMessage struct {
	From      string           `json:"from"`
	To        string           `json:"to"`
	Content   string           `json:"content"`
	Type      AgentMessageType `json:"message_type"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// TrajectoryEntry is one audit-only record of an action taken during a task.
type TrajectoryEntry struct {
	Action    string         `json:"action"`
	Agent     string         `json:"agent"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StopReason enumerates why an LLM turn ended.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// LLMResponse is what an LLMClient.Call returns for one turn.
type LLMResponse struct {
	Content      string
	StopReason   StopReason
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// NeedsToolExecution reports whether the host must dispatch tool calls before
// continuing the conversation.
func (r LLMResponse) NeedsToolExecution() bool {
	return r.StopReason == StopToolUse && len(r.ToolCalls) > 0
}
