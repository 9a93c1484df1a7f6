// Package termination implements the TerminationChecker: a pure decision
// function that inspects one iteration's observations and returns whether
// (and why) the host should stop running a task, plus the SuccessVerifier
// that optionally cross-checks a claimed success against a screenshot.
package termination

import (
	"sync/atomic"
	"time"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// Reason enumerates every terminal (and non-terminal) outcome check() can return.
type Reason string

const (
	ReasonCompleted           Reason = "completed"
	ReasonNeedsHelp           Reason = "needs_help"
	ReasonUserCancelled       Reason = "user_cancelled"
	ReasonUserPaused          Reason = "user_paused"
	ReasonCriticalError       Reason = "critical_error"
	ReasonWindowLost          Reason = "window_lost"
	ReasonConsecutiveFailures Reason = "consecutive_failures"
	ReasonMaxIterations       Reason = "max_iterations"
	ReasonTimeout             Reason = "timeout"
	ReasonTokenLimit          Reason = "token_limit"
	ReasonContinueRunning     Reason = "continue_running"
)

// Type partitions Reason into the four branches the host dispatches on.
type Type string

const (
	TypeSuccess   Type = "success"
	TypeCancelled Type = "cancelled"
	TypeError     Type = "error"
	TypeFail      Type = "fail"
	TypeContinue  Type = "continue"
)

func (r Reason) Type() Type {
	switch r {
	case ReasonCompleted:
		return TypeSuccess
	case ReasonUserCancelled, ReasonUserPaused:
		return TypeCancelled
	case ReasonCriticalError, ReasonWindowLost:
		return TypeError
	case ReasonContinueRunning:
		return TypeContinue
	default:
		return TypeFail
	}
}

// Result is what check() returns.
type Result struct {
	Reason  Reason
	Details string
}

func (r Result) ShouldStop() bool {
	return r.Reason != ReasonContinueRunning
}

// Config is the subset of AgentConfig the checker needs.
type Config struct {
	MaxConsecutiveFailures int
	MaxTotalFailures       int
	MaxIterations          int
	TaskTimeoutS           float64
	MaxContextTokens       int
}

// Checker is the stateful wrapper around the pure decision function: it
// tracks failure counters across iterations within one task, and is
// recreated fresh for every process_task call. consecutiveFailures,
// totalFailures, and lastSuccessIter are only ever touched from the task's
// own iteration goroutine inside Check. userCancelled/userPaused are set
// from whatever goroutine handles an external cancel/pause request (a CLI
// command, an HTTP handler) while Check runs concurrently on the task's
// goroutine, so they're plain atomics rather than fields guarded by the
// same (absent) lock as the counters.
type Checker struct {
	cfg Config

	consecutiveFailures int
	totalFailures       int
	lastSuccessIter     int

	userCancelled atomic.Bool
	userPaused    atomic.Bool
}

func New(cfg Config) *Checker {
	return &Checker{cfg: cfg}
}

// Cancel records a user cancellation request; the next Check() call will
// return CANCELLED/USER_CANCELLED.
func (c *Checker) Cancel() { c.userCancelled.Store(true) }

// Pause records a user pause request; the next Check() call will return
// CANCELLED/USER_PAUSED.
func (c *Checker) Pause() { c.userPaused.Store(true) }

// Resume clears a pending pause flag so the next Check() continues running.
func (c *Checker) Resume() { c.userPaused.Store(false) }

// Reset zeroes every counter and clears the cancel/pause flags, as done when
// a HostAgent begins a fresh task.
func (c *Checker) Reset() {
	c.consecutiveFailures = 0
	c.totalFailures = 0
	c.lastSuccessIter = 0
	c.userCancelled.Store(false)
	c.userPaused.Store(false)
}

// Check is the pure-per-call decision function described in SPEC_FULL.md
// §4.2. It mutates the checker's failure counters as a side effect of
// inspecting toolResults, matching the spec's "update failure counters"
// step, but every branch taken is otherwise a function of its arguments.
func (c *Checker) Check(
	iteration int,
	toolResults []coretypes.ToolResult,
	setTaskStatusCalled bool,
	setTaskStatusValue string,
	windowExists bool,
	elapsedTimeS float64,
	currentTokens int,
	criticalErr error,
) Result {
	if setTaskStatusCalled {
		switch setTaskStatusValue {
		case "completed":
			return Result{Reason: ReasonCompleted}
		case "needs_help":
			return Result{Reason: ReasonNeedsHelp}
		}
	}

	if c.userCancelled.Load() {
		return Result{Reason: ReasonUserCancelled}
	}
	if c.userPaused.Load() {
		return Result{Reason: ReasonUserPaused}
	}

	if criticalErr != nil {
		return Result{Reason: ReasonCriticalError, Details: criticalErr.Error()}
	}

	if !windowExists {
		return Result{Reason: ReasonWindowLost}
	}

	anyError := false
	for _, tr := range toolResults {
		if tr.IsError {
			anyError = true
			break
		}
	}
	if anyError {
		c.consecutiveFailures++
		c.totalFailures++
	} else {
		c.consecutiveFailures = 0
		c.lastSuccessIter = iteration
	}

	if c.cfg.MaxConsecutiveFailures > 0 && c.consecutiveFailures >= c.cfg.MaxConsecutiveFailures {
		return Result{Reason: ReasonConsecutiveFailures, Details: "consecutive failure limit reached"}
	}
	if c.cfg.MaxTotalFailures > 0 && c.totalFailures >= c.cfg.MaxTotalFailures {
		return Result{Reason: ReasonConsecutiveFailures, Details: "total failure limit reached"}
	}

	if c.cfg.MaxIterations > 0 && iteration >= c.cfg.MaxIterations {
		return Result{Reason: ReasonMaxIterations}
	}

	if c.cfg.TaskTimeoutS > 0 && elapsedTimeS > c.cfg.TaskTimeoutS {
		return Result{Reason: ReasonTimeout}
	}

	if c.cfg.MaxContextTokens > 0 && currentTokens > c.cfg.MaxContextTokens {
		return Result{Reason: ReasonTokenLimit}
	}

	return Result{Reason: ReasonContinueRunning}
}

// ConsecutiveFailures exposes the current streak for logging/metrics.
func (c *Checker) ConsecutiveFailures() int { return c.consecutiveFailures }

// TotalFailures exposes the lifetime failure count for logging/metrics.
func (c *Checker) TotalFailures() int { return c.totalFailures }

// DetectSetTaskStatus scans tool calls for the first set_task_status
// invocation, returning its status/description or ok=false if none is present.
func DetectSetTaskStatus(calls []coretypes.ToolCall) (status, description string, ok bool) {
	for _, tc := range calls {
		if tc.Name != "set_task_status" {
			continue
		}
		if s, ok := tc.Arguments["status"].(string); ok {
			status = s
		}
		if d, ok := tc.Arguments["description"].(string); ok {
			description = d
		}
		return status, description, true
	}
	return "", "", false
}

// elapsedSince is a small helper HostAgent callers use to compute
// elapsedTimeS for Check without duplicating time math at every call site.
func ElapsedSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}
