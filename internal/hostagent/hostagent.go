package hostagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deskagent/deskagent/internal/agentfactory"
	"github.com/deskagent/deskagent/internal/appagent"
	"github.com/deskagent/deskagent/internal/blackboard"
	"github.com/deskagent/deskagent/internal/concurrency"
	"github.com/deskagent/deskagent/internal/config"
	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/deskerr"
	"github.com/deskagent/deskagent/internal/events"
	"github.com/deskagent/deskagent/internal/observability"
	"github.com/deskagent/deskagent/internal/provider"
	"github.com/deskagent/deskagent/internal/security"
	"github.com/deskagent/deskagent/internal/taskstore"
	"github.com/deskagent/deskagent/internal/termination"
)

const setTaskStatusTool = "set_task_status"

// Deps are the HostAgent's owned and constructor-resolved collaborators.
type Deps struct {
	EventBus     events.EventBus
	TaskStore    taskstore.TaskStore
	Concurrency  *concurrency.Manager
	AgentFactory *agentfactory.Factory
	LLMClient    provider.LLMClient
	Verifier     *termination.Verifier
	WindowProbe  WindowProbe
	Security     *security.Validator
	Config       *config.AgentConfig
	Metrics      *observability.Metrics
	Logger       *observability.Logger
	Tracer       *observability.Tracer
}

// HostAgent is the per-process supervisor from SPEC_FULL.md §4.7. A single
// instance drives at most one task at a time; multiple HostAgents may run
// concurrently in the same process, sharing one Deps.Concurrency.
type HostAgent struct {
	deps Deps

	mu             sync.Mutex
	state          State
	isProcessing   bool
	currentTaskID  string
	taskText       string
	iterationCount int
	retryCount     int
	startTime      time.Time
	messages       []coretypes.Message
	toolHistory    []toolHistoryRecord
	targetHwnds    []int64
	finalScreenshot string
	pendingDescription string

	termChecker *termination.Checker
	board       *blackboard.Blackboard

	toolsMu   sync.RWMutex
	tools     map[string]toolEntry
	appAgents map[int64]*appagent.AppAgent

	confirmations *ConfirmationStore
}

// New constructs a HostAgent with only the built-in set_task_status tool
// registered; AppAgents are added via RegisterAppAgent as windows are
// discovered.
func New(deps Deps) *HostAgent {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.LogConfig{})
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer, _ = observability.NewTracer(observability.TraceConfig{ServiceName: "deskagentd"})
	}

	h := &HostAgent{
		deps:          deps,
		state:         StateIdle,
		tools:         make(map[string]toolEntry),
		appAgents:     make(map[int64]*appagent.AppAgent),
		confirmations: NewConfirmationStore(),
	}
	h.registerBuiltinTools()
	return h
}

func (h *HostAgent) registerBuiltinTools() {
	h.toolsMu.Lock()
	defer h.toolsMu.Unlock()
	h.tools[setTaskStatusTool] = toolEntry{
		def: coretypes.ToolDefinition{
			Name:        setTaskStatusTool,
			Description: "Signal that the task has reached a terminal outcome: completed, or needs_help if user intervention is required.",
			Parameters: []coretypes.ToolParameter{
				{Name: "status", Type: coretypes.ParamString, Required: true, Enum: []string{"completed", "needs_help"}},
				{Name: "description", Type: coretypes.ParamString, Required: true},
			},
		},
		call: func(_ context.Context, args map[string]any) coretypes.ToolResult {
			status, _ := args["status"].(string)
			description, _ := args["description"].(string)
			return coretypes.Success(fmt.Sprintf("task status set to %s: %s", status, description), nil, 0)
		},
	}
}

// appAgentToolName is the name under which hwnd's worker is exposed as a tool.
func appAgentToolName(hwnd int64) string {
	return fmt.Sprintf("app_agent_%d", hwnd)
}

// RegisterAppAgent adds agent's wrapper tool and records it in the live
// AppAgent table. Both maps mutate in lockstep, per §4.7.
func (h *HostAgent) RegisterAppAgent(agent *appagent.AppAgent) {
	name := appAgentToolName(agent.Hwnd)

	h.toolsMu.Lock()
	defer h.toolsMu.Unlock()
	h.appAgents[agent.Hwnd] = agent
	h.tools[name] = toolEntry{
		def: coretypes.ToolDefinition{
			Name:        name,
			Description: fmt.Sprintf("Dispatch a free-form task to the %s app-agent for window %d.", agent.AppType, agent.Hwnd),
			Parameters: []coretypes.ToolParameter{
				{Name: "task", Type: coretypes.ParamString, Required: true},
			},
			SupportsHwnd: true,
		},
		call: func(ctx context.Context, args map[string]any) coretypes.ToolResult {
			task, _ := args["task"].(string)
			result, err := agent.Execute(ctx, task)
			var agentErr *deskerr.AgentError
			if errors.As(err, &agentErr) && agentErr.Kind == deskerr.KindWindowLost {
				h.UnregisterAppAgent(agent.Hwnd)
			}
			return result
		},
	}
}

// UnregisterAppAgent removes hwnd's wrapper tool and live-agent entry,
// called by the host when a window is lost.
func (h *HostAgent) UnregisterAppAgent(hwnd int64) {
	h.toolsMu.Lock()
	defer h.toolsMu.Unlock()
	delete(h.appAgents, hwnd)
	delete(h.tools, appAgentToolName(hwnd))
	if h.deps.AgentFactory != nil {
		h.deps.AgentFactory.RemoveCached(hwnd)
	}
}

// AppAgent returns the live worker registered for hwnd, if any.
func (h *HostAgent) AppAgent(hwnd int64) (*appagent.AppAgent, bool) {
	h.toolsMu.RLock()
	defer h.toolsMu.RUnlock()
	a, ok := h.appAgents[hwnd]
	return a, ok
}

// State reports the host's current lifecycle state.
func (h *HostAgent) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *HostAgent) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// IsProcessing reports whether a task is currently in flight.
func (h *HostAgent) IsProcessing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isProcessing
}

// Cancel requests that the in-flight task stop at the next iteration
// boundary. A no-op when no task is running.
func (h *HostAgent) Cancel() {
	h.mu.Lock()
	checker := h.termChecker
	h.mu.Unlock()
	if checker != nil {
		checker.Cancel()
	}
}

// Pause requests that the in-flight task checkpoint and stop at the next
// iteration boundary, per the pause Decision recorded in SPEC_FULL.md §9: it
// does not cancel an in-flight LLM call, so it only takes effect once the
// current iteration returns.
func (h *HostAgent) Pause() {
	h.mu.Lock()
	checker := h.termChecker
	h.mu.Unlock()
	if checker != nil {
		checker.Pause()
	}
}

// Confirmations exposes the pending-confirmation store so an external
// surface (CLI, HTTP handler) can resolve USER_CONFIRM_REQUIRED prompts.
func (h *HostAgent) Confirmations() *ConfirmationStore {
	return h.confirmations
}

func (h *HostAgent) toolDefinitions() []coretypes.ToolDefinition {
	h.toolsMu.RLock()
	defer h.toolsMu.RUnlock()
	defs := make([]coretypes.ToolDefinition, 0, len(h.tools))
	for _, t := range h.tools {
		defs = append(defs, t.def)
	}
	return defs
}

func (h *HostAgent) lookupTool(name string) (toolEntry, bool) {
	h.toolsMu.RLock()
	defer h.toolsMu.RUnlock()
	t, ok := h.tools[name]
	return t, ok
}
