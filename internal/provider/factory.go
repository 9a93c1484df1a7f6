package provider

import (
	"context"
	"fmt"
)

// New builds the LLMClient named by provider ("anthropic", "openai", or
// "bedrock"), mirroring the teacher's registry-by-name provider selection.
func New(ctx context.Context, name string, cfg Config, bedrockCfg BedrockConfig) (LLMClient, error) {
	switch name {
	case "anthropic", "":
		return NewAnthropicClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "bedrock":
		return NewBedrockClient(ctx, cfg, bedrockCfg)
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
}
