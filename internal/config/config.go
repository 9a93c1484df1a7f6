package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the full configuration surface for the host agent, per
// the configuration surface the core reads its tunables from.
type AgentConfig struct {
	DBPath string `yaml:"db_path"`

	MaxIterations     int           `yaml:"max_iterations"`
	IterationTimeoutS int           `yaml:"iteration_timeout_s"`
	ScreenshotDelayMs int           `yaml:"screenshot_delay_ms"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoffBase  float64       `yaml:"retry_backoff_base"`
	CoordinateScale   float64       `yaml:"coordinate_scale"`

	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`
	MaxAPIConcurrency  int `yaml:"max_api_concurrency"`
	MinAPIIntervalMs   int `yaml:"min_api_interval_ms"`

	CheckpointInterval        int     `yaml:"checkpoint_interval"`
	MaxContextTokens          int     `yaml:"max_context_tokens"`
	ContextCompressThreshold  float64 `yaml:"context_compress_threshold"`
	TaskTimeoutS              int     `yaml:"task_timeout_s"`
	MaxConsecutiveFailures    int     `yaml:"max_consecutive_failures"`
	MaxTotalFailures          int     `yaml:"max_total_failures"`

	VerifySuccess              bool    `yaml:"verify_success"`
	VerificationModel          string  `yaml:"verification_model"`
	MinVerificationConfidence  float64 `yaml:"min_verification_confidence"`

	SensitiveTools []string `yaml:"sensitive_tools"`

	LLM     LLMConfig     `yaml:"llm"`
	Log     LoggingConfig `yaml:"logging"`
	Gateway GatewayConfig `yaml:"gateway"`
	Browser BrowserConfig `yaml:"browser"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures the OpenTelemetry distributed tracer. Leaving
// Endpoint empty keeps tracing active with a no-op exporter (spans are
// created but never shipped), matching observability.NewTracer's behavior.
type TracingConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Endpoint     string            `yaml:"endpoint"`
	Environment  string            `yaml:"environment"`
	SamplingRate float64           `yaml:"sampling_rate"`
	Insecure     bool              `yaml:"insecure"`
	Attributes   map[string]string `yaml:"attributes"`
}

// BrowserConfig selects and configures the BrowserAppAgent's automation
// backend: chromedp drives a local/remote Chrome DevTools Protocol target,
// playwright drives a Playwright-managed browser.
type BrowserConfig struct {
	Backend        string `yaml:"backend"` // "chromedp" (default) or "playwright"
	Headless       bool   `yaml:"headless"`
	RemoteURL      string `yaml:"remote_url"` // optional CDP/Playwright server endpoint
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// LLMConfig selects and configures the LLM provider the host agent dispatches
// completions to.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	Region       string `yaml:"region"` // bedrock only
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatewayConfig configures the optional websocket event transport.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// ToTerminationConfig projects the subset of AgentConfig the termination
// checker needs.
type TerminationConfig struct {
	MaxIterations          int
	TaskTimeoutS           int
	MaxContextTokens       int
	MaxConsecutiveFailures int
	MaxTotalFailures       int
}

func (c *AgentConfig) ToTerminationConfig() TerminationConfig {
	return TerminationConfig{
		MaxIterations:          c.MaxIterations,
		TaskTimeoutS:           c.TaskTimeoutS,
		MaxContextTokens:       c.MaxContextTokens,
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		MaxTotalFailures:       c.MaxTotalFailures,
	}
}

// ToConcurrencyConfig projects the subset of AgentConfig the concurrency
// gates (task slots, API gate) need.
type ConcurrencyConfig struct {
	MaxConcurrentTasks int
	MaxAPIConcurrency  int
	MinAPIIntervalMs   int
}

func (c *AgentConfig) ToConcurrencyConfig() ConcurrencyConfig {
	return ConcurrencyConfig{
		MaxConcurrentTasks: c.MaxConcurrentTasks,
		MaxAPIConcurrency:  c.MaxAPIConcurrency,
		MinAPIIntervalMs:   c.MinAPIIntervalMs,
	}
}

// IsSensitiveTool reports whether name requires user confirmation before
// dispatch.
func (c *AgentConfig) IsSensitiveTool(name string) bool {
	for _, t := range c.SensitiveTools {
		if t == name {
			return true
		}
	}
	return false
}

// Load reads and parses the configuration file, applying environment
// overrides and defaults, then validates the result.
func Load(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg AgentConfig
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AgentConfig) {
	if cfg.DBPath == "" {
		cfg.DBPath = "deskagent.db"
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 50
	}
	if cfg.IterationTimeoutS == 0 {
		cfg.IterationTimeoutS = 120
	}
	if cfg.ScreenshotDelayMs == 0 {
		cfg.ScreenshotDelayMs = 750
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoffBase == 0 {
		cfg.RetryBackoffBase = 2.0
	}
	if cfg.CoordinateScale == 0 {
		cfg.CoordinateScale = 1.0
	}
	if cfg.MaxConcurrentTasks == 0 {
		cfg.MaxConcurrentTasks = 3
	}
	if cfg.MaxAPIConcurrency == 0 {
		cfg.MaxAPIConcurrency = 5
	}
	if cfg.MinAPIIntervalMs == 0 {
		cfg.MinAPIIntervalMs = 100
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = 180000
	}
	if cfg.ContextCompressThreshold == 0 {
		cfg.ContextCompressThreshold = 0.75
	}
	if cfg.TaskTimeoutS == 0 {
		cfg.TaskTimeoutS = 1800
	}
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.MaxTotalFailures == 0 {
		cfg.MaxTotalFailures = 10
	}
	if cfg.VerificationModel == "" {
		cfg.VerificationModel = "claude-3-5-haiku-20241022"
	}
	if cfg.MinVerificationConfidence == 0 {
		cfg.MinVerificationConfidence = 0.7
	}
	if len(cfg.SensitiveTools) == 0 {
		cfg.SensitiveTools = []string{"delete_file", "system_command", "send_email", "make_payment", "modify_settings"}
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8787
	}
	if cfg.Browser.Backend == "" {
		cfg.Browser.Backend = "chromedp"
	}
	if cfg.Browser.ViewportWidth == 0 {
		cfg.Browser.ViewportWidth = 1280
	}
	if cfg.Browser.ViewportHeight == 0 {
		cfg.Browser.ViewportHeight = 800
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = "development"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
}

func applyEnvOverrides(cfg *AgentConfig) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_DB_PATH")); value != "" {
		cfg.DBPath = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_LOG_LEVEL")); value != "" {
		cfg.Log.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_MAX_ITERATIONS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.MaxIterations = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DESKAGENT_GATEWAY_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		setProviderAPIKey(cfg, "anthropic", value)
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		setProviderAPIKey(cfg, "openai", value)
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		cfg.Tracing.Endpoint = value
	}
}

func setProviderAPIKey(cfg *AgentConfig, provider, key string) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	entry := cfg.LLM.Providers[provider]
	entry.APIKey = key
	cfg.LLM.Providers[provider] = entry
}

// ConfigValidationError aggregates every validation issue found, matching
// the teacher's "show every problem at once" behavior.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *AgentConfig) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.MaxIterations <= 0 {
		issues = append(issues, "max_iterations must be > 0")
	}
	if cfg.ScreenshotDelayMs < 0 {
		issues = append(issues, "screenshot_delay_ms must be >= 0")
	}
	if cfg.MaxRetries < 0 {
		issues = append(issues, "max_retries must be >= 0")
	}
	if cfg.RetryBackoffBase <= 0 {
		issues = append(issues, "retry_backoff_base must be > 0")
	}
	if cfg.CoordinateScale <= 0 {
		issues = append(issues, "coordinate_scale must be > 0")
	}
	if cfg.MaxConcurrentTasks <= 0 {
		issues = append(issues, "max_concurrent_tasks must be > 0")
	}
	if cfg.MaxAPIConcurrency <= 0 {
		issues = append(issues, "max_api_concurrency must be > 0")
	}
	if cfg.CheckpointInterval <= 0 {
		issues = append(issues, "checkpoint_interval must be > 0")
	}
	if cfg.MaxContextTokens <= 0 {
		issues = append(issues, "max_context_tokens must be > 0")
	}
	if cfg.ContextCompressThreshold <= 0 || cfg.ContextCompressThreshold > 1 {
		issues = append(issues, "context_compress_threshold must be in (0, 1]")
	}
	if cfg.TaskTimeoutS <= 0 {
		issues = append(issues, "task_timeout_s must be > 0")
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		issues = append(issues, "max_consecutive_failures must be > 0")
	}
	if cfg.MaxTotalFailures < cfg.MaxConsecutiveFailures {
		issues = append(issues, "max_total_failures must be >= max_consecutive_failures")
	}
	if cfg.MinVerificationConfidence < 0 || cfg.MinVerificationConfidence > 1 {
		issues = append(issues, "min_verification_confidence must be in [0, 1]")
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be in [0, 1]")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	switch provider {
	case "anthropic", "openai", "bedrock":
	default:
		issues = append(issues, fmt.Sprintf("llm.default_provider must be anthropic, openai, or bedrock, got %q", cfg.LLM.DefaultProvider))
	}

	if format := strings.ToLower(strings.TrimSpace(cfg.Log.Format)); format != "" {
		switch format {
		case "json", "text":
		default:
			issues = append(issues, "logging.format must be \"json\" or \"text\"")
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Browser.Backend)) {
	case "chromedp", "playwright":
	default:
		issues = append(issues, fmt.Sprintf("browser.backend must be chromedp or playwright, got %q", cfg.Browser.Backend))
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// IterationTimeout returns IterationTimeoutS as a time.Duration.
func (c *AgentConfig) IterationTimeout() time.Duration {
	return time.Duration(c.IterationTimeoutS) * time.Second
}

// TaskTimeout returns TaskTimeoutS as a time.Duration.
func (c *AgentConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutS) * time.Second
}

// ScreenshotDelay returns ScreenshotDelayMs as a time.Duration.
func (c *AgentConfig) ScreenshotDelay() time.Duration {
	return time.Duration(c.ScreenshotDelayMs) * time.Millisecond
}
