package provider

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// OpenAIClient adapts go-openai's non-streaming chat completion call to
// LLMClient, following the message and tool conversion shape of
// internal/agent/providers/openai.go's convertToOpenAIMessages /
// convertToOpenAITools but without the streaming plumbing.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg = cfg.withDefaults()
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	var client *openai.Client
	if cfg.BaseURL != "" {
		oaiCfg := openai.DefaultConfig(cfg.APIKey)
		oaiCfg.BaseURL = cfg.BaseURL
		client = openai.NewClientWithConfig(oaiCfg)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}
	return &OpenAIClient{client: client, cfg: cfg}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Call(ctx context.Context, system string, messages []coretypes.Message, tools []coretypes.ToolDefinition) (coretypes.LLMResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  toOpenAIMessages(messages, system),
		MaxTokens: c.cfg.MaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBaseSec, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return coretypes.LLMResponse{}, fmt.Errorf("openai: %w", err)
	}

	return fromOpenAIResponse(resp), nil
}

func (c *OpenAIClient) CallWithImage(ctx context.Context, prompt string, imagePNGBase64 string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + imagePNGBase64,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBaseSec, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []coretypes.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range messages {
		switch m.Role {
		case coretypes.RoleSystem:
			continue
		case coretypes.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case coretypes.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			result = append(result, oaiMsg)
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return result
}

func toOpenAITools(tools []coretypes.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		schema := t.ClaudeSchema()["input_schema"]
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) coretypes.LLMResponse {
	out := coretypes.LLMResponse{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		out.StopReason = coretypes.StopEndTurn
		return out
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content

	if choice.FinishReason == openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) > 0 {
		out.StopReason = coretypes.StopToolUse
		for _, tc := range choice.Message.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			out.ToolCalls = append(out.ToolCalls, coretypes.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
		return out
	}

	switch choice.FinishReason {
	case openai.FinishReasonLength:
		out.StopReason = coretypes.StopMaxTokens
	case openai.FinishReasonStop:
		out.StopReason = coretypes.StopEndTurn
	default:
		out.StopReason = coretypes.StopEndTurn
	}
	return out
}
