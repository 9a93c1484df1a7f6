// Package provider implements the LLMClient abstraction HostAgent and
// SuccessVerifier call through, plus concrete adapters for Anthropic, OpenAI,
// and Bedrock. Unlike the teacher's streaming agent.LLMProvider (built for an
// interactive chat surface), a HostAgent issues exactly one blocking call per
// iteration and needs the complete tool_calls list before it can act, so
// these adapters are request/response rather than channel-of-chunks.
//
// Retry-with-exponential-backoff and provider-error classification are
// adapted from internal/agent/providers/anthropic.go; tool-schema conversion
// follows internal/agent/toolconv/anthropic.go's pattern.
package provider

import (
	"context"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// LLMClient is the narrow interface HostAgent and SuccessVerifier depend on.
type LLMClient interface {
	// Call sends one turn of the conversation and returns the model's reply,
	// which may carry tool calls the host must dispatch before continuing.
	Call(ctx context.Context, system string, messages []coretypes.Message, tools []coretypes.ToolDefinition) (coretypes.LLMResponse, error)

	// CallWithImage is a single-shot call with one attached base64 PNG and no
	// tool use, used by the SuccessVerifier.
	CallWithImage(ctx context.Context, prompt string, imagePNGBase64 string) (string, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// Config is the common subset of settings every adapter accepts.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	MaxRetries   int
	RetryBaseSec float64
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseSec <= 0 {
		c.RetryBaseSec = 1
	}
	return c
}
