package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/deskagent/deskagent/internal/coretypes"
)

// BedrockClient adapts the bedrockruntime Converse API (not ConverseStream --
// HostAgent needs the whole reply at once) to LLMClient, following the
// message/tool shape of internal/agent/providers/bedrock.go's convertMessages.
type BedrockClient struct {
	client *bedrockruntime.Client
	cfg    Config
}

// BedrockConfig carries the AWS-specific settings the common Config doesn't.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func NewBedrockClient(ctx context.Context, cfg Config, bedrockCfg BedrockConfig) (*BedrockClient, error) {
	cfg = cfg.withDefaults()
	if bedrockCfg.Region == "" {
		bedrockCfg.Region = "us-east-1"
	}
	if cfg.Model == "" {
		cfg.Model = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if bedrockCfg.AccessKeyID != "" && bedrockCfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(bedrockCfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				bedrockCfg.AccessKeyID, bedrockCfg.SecretAccessKey, bedrockCfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(bedrockCfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockClient{client: bedrockruntime.NewFromConfig(awsCfg), cfg: cfg}, nil
}

func (c *BedrockClient) Name() string { return "bedrock" }

func (c *BedrockClient) Call(ctx context.Context, system string, messages []coretypes.Message, tools []coretypes.ToolDefinition) (coretypes.LLMResponse, error) {
	req := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.cfg.Model),
		Messages: toBedrockMessages(messages),
	}
	if system != "" {
		req.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}
	if c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		if maxTokens > math.MaxInt32 {
			maxTokens = math.MaxInt32
		}
		req.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
	}
	if len(tools) > 0 {
		req.ToolConfig = toBedrockToolConfig(tools)
	}

	var out *bedrockruntime.ConverseOutput
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBaseSec, func() error {
		var callErr error
		out, callErr = c.client.Converse(ctx, req)
		return callErr
	})
	if err != nil {
		return coretypes.LLMResponse{}, fmt.Errorf("bedrock: %w", err)
	}

	return fromBedrockOutput(out), nil
}

func (c *BedrockClient) CallWithImage(ctx context.Context, prompt string, imagePNGBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(imagePNGBase64)
	if err != nil {
		return "", fmt.Errorf("bedrock: decode image: %w", err)
	}

	req := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.cfg.Model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberImage{Value: types.ImageBlock{
						Format: types.ImageFormatPng,
						Source: &types.ImageSourceMemberBytes{Value: raw},
					}},
					&types.ContentBlockMemberText{Value: prompt},
				},
			},
		},
	}

	var out *bedrockruntime.ConverseOutput
	err = withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBaseSec, func() error {
		var callErr error
		out, callErr = c.client.Converse(ctx, req)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: %w", err)
	}

	resp := fromBedrockOutput(out)
	return resp.Content, nil
}

func toBedrockMessages(messages []coretypes.Message) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		var content []types.ContentBlock

		switch m.Role {
		case coretypes.RoleSystem:
			continue
		case coretypes.RoleTool:
			status := types.ToolResultStatusSuccess
			if m.IsError {
				status = types.ToolResultStatusError
			}
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(m.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
					Status:    status,
				},
			})
		case coretypes.RoleAssistant:
			if m.Content != "" {
				content = append(content, &types.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				content = append(content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     document.NewLazyDocument(map[string]any(tc.Arguments)),
					},
				})
			}
		default:
			if m.Content != "" {
				content = append(content, &types.ContentBlockMemberText{Value: m.Content})
			}
		}

		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if m.Role == coretypes.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result
}

func toBedrockToolConfig(tools []coretypes.ToolDefinition) *types.ToolConfiguration {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		schema := t.ClaudeSchema()["input_schema"]
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput) coretypes.LLMResponse {
	resp := coretypes.LLMResponse{}
	if out.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}

	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		resp.StopReason = coretypes.StopEndTurn
		return resp
	}

	for _, block := range msgOutput.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Content += v.Value
		case *types.ContentBlockMemberToolUse:
			var args map[string]any
			if raw, err := v.Value.Input.MarshalSmithyDocument(); err == nil {
				_ = json.Unmarshal(raw, &args)
			}
			resp.ToolCalls = append(resp.ToolCalls, coretypes.ToolCall{
				ID:        aws.ToString(v.Value.ToolUseId),
				Name:      aws.ToString(v.Value.Name),
				Arguments: args,
			})
		}
	}

	if out.StopReason == types.StopReasonToolUse {
		resp.StopReason = coretypes.StopToolUse
	} else if out.StopReason == types.StopReasonMaxTokens {
		resp.StopReason = coretypes.StopMaxTokens
	} else {
		resp.StopReason = coretypes.StopEndTurn
	}

	return resp
}
