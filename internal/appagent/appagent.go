// Package appagent implements the worker side of the supervisor-as-tools
// pattern: an AppAgent owns exactly one OS window and exposes a typed tool
// set the HostAgent calls into as if it were a single "app_agent_<hwnd>"
// tool. Dispatch, timeout handling, and the Claude-style tool schema follow
// internal/agent/tool_exec.go's ExecuteConcurrently/executeWithTimeout and
// internal/tools/computeruse/tool.go's schema shape.
package appagent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
	"github.com/deskagent/deskagent/internal/deskerr"
)

// State is the lifecycle state of an AppAgent instance.
type State string

const (
	StateIdle      State = "idle"
	StateExecuting State = "executing"
	StateWaiting   State = "waiting"
	StateError     State = "error"
)

// AppType classifies what kind of application a window belongs to.
type AppType string

const (
	TypeBrowser  AppType = "browser"
	TypeDesktop  AppType = "desktop"
	TypeIDE      AppType = "ide"
	TypeOffice   AppType = "office"
	TypeTerminal AppType = "terminal"
	TypeCustom   AppType = "custom"
)

const defaultToolTimeout = 30 * time.Second

// WindowProbe checks whether a window handle still refers to a live window.
type WindowProbe interface {
	Exists(hwnd int64) bool
}

// WindowState is the subclass-supplied snapshot execute() hands to
// execute_task before running it.
type WindowState struct {
	Title string
	Class string
	Bounds WindowBounds
}

// WindowBounds is the on-screen rectangle of a window, used for coordinate
// scaling and tool-argument bounds checking.
type WindowBounds struct {
	X, Y, Width, Height int
}

// Config is the subset of AgentConfig an AppAgent consults directly.
type Config struct {
	CoordinateScale   float64
	ScreenshotDelayMs int
	ToolTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.CoordinateScale == 0 {
		c.CoordinateScale = 1.0
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = defaultToolTimeout
	}
	return c
}

// ToolFunc is one primitive an AppAgent subclass exposes. args have already
// had their coordinate fields scaled by Config.CoordinateScale.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// TaskExecutor is the subclass hook execute() calls after fetching window
// state; the default base implementation returns a descriptive stub.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, task string, state WindowState) (string, error)
	GetWindowState(ctx context.Context, hwnd int64) (WindowState, error)
}

// AppAgent is a worker bound to one window, exposing a tool table the host
// dispatches into through execute() (micro-planned task) or call_tool()
// (direct primitive invocation).
type AppAgent struct {
	Hwnd     int64
	AppType  AppType
	IsActive bool

	probe  WindowProbe
	cfg    Config
	exec   TaskExecutor
	state  State
	logger *slog.Logger

	tools map[string]ToolFunc
	defs  []coretypes.ToolDefinition
}

// New builds an AppAgent for hwnd with the given tool table and task executor.
func New(hwnd int64, appType AppType, probe WindowProbe, exec TaskExecutor, cfg Config, logger *slog.Logger) *AppAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppAgent{
		Hwnd:     hwnd,
		AppType:  appType,
		IsActive: true,
		probe:    probe,
		exec:     exec,
		cfg:      cfg.withDefaults(),
		state:    StateIdle,
		logger:   logger,
		tools:    map[string]ToolFunc{},
	}
}

// RegisterTool adds a primitive to the tool table and its schema entry.
func (a *AppAgent) RegisterTool(def coretypes.ToolDefinition, fn ToolFunc) {
	a.tools[def.Name] = fn
	a.defs = append(a.defs, def)
}

// State reports the agent's current lifecycle state.
func (a *AppAgent) State() State { return a.state }

// GetToolDefinitions emits the Claude-style schema for every registered tool.
func (a *AppAgent) GetToolDefinitions() []coretypes.ToolDefinition {
	return a.defs
}

// Execute is the single method the host invokes as if calling a tool: probe
// the window, fetch state, run the micro-plan hook, and wrap the outcome in
// a ToolResult bound to this agent's hwnd. The returned error is non-nil only
// for WindowLostError, per §7: every other failure is folded into the
// ToolResult so the LLM sees it on the next turn, but a lost window is
// unrecoverable and the caller must evict this agent from its cache.
func (a *AppAgent) Execute(ctx context.Context, task string) (coretypes.ToolResult, error) {
	start := time.Now()
	hwnd := a.Hwnd

	if !a.IsActive {
		return coretypes.Failure("app agent is not active", &hwnd, time.Since(start).Milliseconds()), nil
	}

	if a.probe != nil && !a.probe.Exists(a.Hwnd) {
		a.IsActive = false
		a.state = StateError
		lostErr := deskerr.NewWindowLostError(a.Hwnd)
		return coretypes.Failure(lostErr.Error(), &hwnd, time.Since(start).Milliseconds()), lostErr
	}

	a.state = StateExecuting
	winState, err := a.exec.GetWindowState(ctx, a.Hwnd)
	if err != nil {
		a.state = StateError
		return coretypes.Failure(err.Error(), &hwnd, time.Since(start).Milliseconds()), nil
	}

	output, err := a.exec.ExecuteTask(ctx, task, winState)
	if err != nil {
		a.state = StateError
		return coretypes.Failure(err.Error(), &hwnd, time.Since(start).Milliseconds()), nil
	}

	if a.cfg.ScreenshotDelayMs > 0 {
		select {
		case <-time.After(time.Duration(a.cfg.ScreenshotDelayMs) * time.Millisecond):
		case <-ctx.Done():
		}
	}

	a.state = StateIdle
	return coretypes.Success(output, &hwnd, time.Since(start).Milliseconds()), nil
}

// CallTool dispatches directly to a registered primitive with a hard
// deadline, scaling any coordinate arguments first.
func (a *AppAgent) CallTool(ctx context.Context, name string, args map[string]any) coretypes.ToolResult {
	hwnd := a.Hwnd
	start := time.Now()

	fn, ok := a.tools[name]
	if !ok {
		err := deskerr.NewToolNotFoundError(name)
		return coretypes.Failure(err.Error(), &hwnd, time.Since(start).Milliseconds())
	}

	scaled := a.scaleCoordinates(args)

	toolCtx, cancel := context.WithTimeout(ctx, a.cfg.ToolTimeout)
	defer cancel()

	type execOutcome struct {
		output string
		err    error
	}
	resultCh := make(chan execOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				resultCh <- execOutcome{err: fmt.Errorf("panic: %v\n%s", r, stack)}
			}
		}()
		out, err := fn(toolCtx, scaled)
		select {
		case resultCh <- execOutcome{output: out, err: err}:
		default:
		}
	}()

	select {
	case outcome := <-resultCh:
		if outcome.err != nil {
			err := deskerr.NewToolExecutionError(name, args, outcome.err)
			return coretypes.Failure(err.Error(), &hwnd, time.Since(start).Milliseconds())
		}
		return coretypes.Success(outcome.output, &hwnd, time.Since(start).Milliseconds())
	case <-toolCtx.Done():
		err := deskerr.NewToolTimeoutError(name, a.cfg.ToolTimeout.Milliseconds())
		return coretypes.Failure(err.Error(), &hwnd, time.Since(start).Milliseconds())
	}
}

var coordinateArgNames = map[string]bool{
	"x": true, "y": true, "start_x": true, "start_y": true, "end_x": true, "end_y": true,
}

func (a *AppAgent) scaleCoordinates(args map[string]any) map[string]any {
	if a.cfg.CoordinateScale == 1.0 || len(args) == 0 {
		return args
	}
	scaled := make(map[string]any, len(args))
	for k, v := range args {
		if coordinateArgNames[k] {
			if f, ok := asFloat(v); ok {
				scaled[k] = f * a.cfg.CoordinateScale
				continue
			}
		}
		scaled[k] = v
	}
	return scaled
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// defaultTaskExecutor is the base hook used by subclasses that don't need
// local micro-planning: execute_task returns a descriptive stub.
type defaultTaskExecutor struct{}

func (defaultTaskExecutor) ExecuteTask(_ context.Context, task string, state WindowState) (string, error) {
	return fmt.Sprintf("stub execution of %q against window %q", task, state.Title), nil
}

func (defaultTaskExecutor) GetWindowState(_ context.Context, hwnd int64) (WindowState, error) {
	return WindowState{}, nil
}
