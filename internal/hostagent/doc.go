// Package hostagent implements the HostAgent supervisor described in
// SPEC_FULL.md §4.7: the single coroutine-style iteration loop that drives
// an LLM conversation, dispatches tool calls (including the
// supervisor-as-tools `app_agent_<hwnd>` wrappers around registered
// AppAgents), gates sensitive tools behind an explicit user confirmation,
// and terminates a task via the TerminationChecker/SuccessVerifier pair.
//
// The iteration state machine (stream a turn, execute its tool calls,
// continue or stop) is grounded on internal/agent/loop.go's AgenticLoop; the
// action-id confirmation gate is grounded on internal/agent/approval.go's
// ApprovalChecker, collapsed from its policy-list shape to the spec's flat
// sensitive_tools membership test since AgentConfig carries no allow/deny
// lists.
package hostagent
