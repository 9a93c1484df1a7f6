package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// AnthropicClient adapts the anthropic-sdk-go Messages API to LLMClient.
type AnthropicClient struct {
	client anthropic.Client
	cfg    Config
}

func NewAnthropicClient(cfg Config) *AnthropicClient {
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...), cfg: cfg}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Call(ctx context.Context, system string, messages []coretypes.Message, tools []coretypes.ToolDefinition) (coretypes.LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages:  toAnthropicMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		toolParams, err := toAnthropicTools(tools)
		if err != nil {
			return coretypes.LLMResponse{}, err
		}
		params.Tools = toolParams
	}

	var msg *anthropic.Message
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBaseSec, func() error {
		var callErr error
		msg, callErr = c.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return coretypes.LLMResponse{}, fmt.Errorf("anthropic: %w", err)
	}

	return fromAnthropicMessage(msg), nil
}

func (c *AnthropicClient) CallWithImage(ctx context.Context, prompt string, imagePNGBase64 string) (string, error) {
	content := []anthropic.ContentBlockParamUnion{
		anthropic.NewImageBlockBase64("image/png", imagePNGBase64),
		anthropic.NewTextBlock(prompt),
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(content...)},
	}

	var msg *anthropic.Message
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBaseSec, func() error {
		var callErr error
		msg, callErr = c.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func toAnthropicMessages(messages []coretypes.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case coretypes.RoleSystem:
			continue
		case coretypes.RoleTool:
			block := anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError)
			result = append(result, anthropic.NewUserMessage(block))
		case coretypes.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return result
}

func toAnthropicTools(tools []coretypes.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.ClaudeSchema()["input_schema"])
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", t.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

func fromAnthropicMessage(msg *anthropic.Message) coretypes.LLMResponse {
	resp := coretypes.LLMResponse{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	switch msg.StopReason {
	case "tool_use":
		resp.StopReason = coretypes.StopToolUse
	case "max_tokens":
		resp.StopReason = coretypes.StopMaxTokens
	case "stop_sequence":
		resp.StopReason = coretypes.StopStopSequence
	default:
		resp.StopReason = coretypes.StopEndTurn
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			tu := block.AsToolUse()
			var args map[string]any
			if raw, err := tu.Input.MarshalJSON(); err == nil {
				_ = json.Unmarshal(raw, &args)
			}
			resp.ToolCalls = append(resp.ToolCalls, coretypes.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}

	return resp
}
