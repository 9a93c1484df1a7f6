package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting host-agent metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Task throughput and terminal outcomes
//   - Per-iteration latency of the agentic loop
//   - LLM request performance, token usage, and cost
//   - Tool execution latency and error rates per tool
//   - AppAgent dispatch counts per window class
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.TaskStarted()
//	defer metrics.IterationDuration().Observe(time.Since(start).Seconds())
type Metrics struct {
	// TaskCounter tracks tasks by terminal status.
	// Labels: status (completed|failed|interrupted|cancelled)
	TaskCounter *prometheus.CounterVec

	// TaskDuration measures end-to-end task wall-clock time in seconds.
	TaskDuration prometheus.Histogram

	// ActiveTasks is a gauge tracking currently running tasks.
	ActiveTasks prometheus.Gauge

	// IterationDuration measures a single agentic-loop iteration's latency.
	IterationDuration prometheus.Histogram

	// IterationCounter counts iterations per task.
	IterationCounter prometheus.Counter

	// TerminationReasonCounter counts terminal outcomes by reason.
	// Labels: reason (success|max_iterations|timeout|token_limit|
	// consecutive_failures|user_cancelled)
	TerminationReasonCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai|bedrock), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider, model, and status.
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// AppAgentDispatchCounter counts app-agent tool dispatches by app type.
	// Labels: app_type (browser|desktop|ide|office|terminal|custom)
	AppAgentDispatchCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by category and severity.
	// Labels: category, severity (warning|error|critical|fatal)
	ErrorCounter *prometheus.CounterVec

	// ConfirmationCounter counts sensitive-tool confirmation outcomes.
	// Labels: decision (approved|denied|timed_out)
	ConfirmationCounter *prometheus.CounterVec

	// CheckpointCounter counts checkpoints saved.
	CheckpointCounter prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		TaskCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_tasks_total",
				Help: "Total number of tasks by terminal status",
			},
			[]string{"status"},
		),

		TaskDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskagent_task_duration_seconds",
				Help:    "End-to-end task duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),

		ActiveTasks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskagent_active_tasks",
				Help: "Current number of running tasks",
			},
		),

		IterationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskagent_iteration_duration_seconds",
				Help:    "Duration of a single agentic-loop iteration",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		IterationCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "deskagent_iterations_total",
				Help: "Total number of agentic-loop iterations executed",
			},
		),

		TerminationReasonCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_termination_reason_total",
				Help: "Total number of task terminations by reason",
			},
			[]string{"reason"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskagent_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskagent_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		AppAgentDispatchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_app_agent_dispatch_total",
				Help: "Total number of app-agent tool dispatches by app type",
			},
			[]string{"app_type"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_errors_total",
				Help: "Total number of errors by category and severity",
			},
			[]string{"category", "severity"},
		),

		ConfirmationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_confirmations_total",
				Help: "Total number of sensitive-tool confirmation outcomes",
			},
			[]string{"decision"},
		),

		CheckpointCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "deskagent_checkpoints_total",
				Help: "Total number of checkpoints saved",
			},
		),
	}
}

// TaskStarted increments the active tasks gauge.
func (m *Metrics) TaskStarted() {
	m.ActiveTasks.Inc()
}

// TaskFinished decrements the active tasks gauge and records the terminal
// status and duration.
func (m *Metrics) TaskFinished(status string, durationSeconds float64) {
	m.ActiveTasks.Dec()
	m.TaskCounter.WithLabelValues(status).Inc()
	m.TaskDuration.Observe(durationSeconds)
}

// RecordIteration records a completed agentic-loop iteration.
func (m *Metrics) RecordIteration(durationSeconds float64) {
	m.IterationCounter.Inc()
	m.IterationDuration.Observe(durationSeconds)
}

// RecordTermination records a terminal outcome reason.
func (m *Metrics) RecordTermination(reason string) {
	m.TerminationReasonCounter.WithLabelValues(reason).Inc()
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordAppAgentDispatch records a tool dispatch routed to an app agent.
func (m *Metrics) RecordAppAgentDispatch(appType string) {
	m.AppAgentDispatchCounter.WithLabelValues(appType).Inc()
}

// RecordError increments the error counter for a given category and severity.
func (m *Metrics) RecordError(category, severity string) {
	m.ErrorCounter.WithLabelValues(category, severity).Inc()
}

// RecordConfirmation records a sensitive-tool confirmation outcome.
func (m *Metrics) RecordConfirmation(decision string) {
	m.ConfirmationCounter.WithLabelValues(decision).Inc()
}

// RecordCheckpoint records a checkpoint save.
func (m *Metrics) RecordCheckpoint() {
	m.CheckpointCounter.Inc()
}
