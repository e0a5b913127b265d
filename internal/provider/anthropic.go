package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Anthropic is a Provider backed by the Anthropic Messages API, either
// directly or through AWS Bedrock.
type Anthropic struct {
	inner   anthropic.Client
	bedrock bool
	tracker *TokenTracker
}

// AnthropicConfig contains configuration for creating an Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key for the direct API path.
	APIKey string
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is not set")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &Anthropic{
		inner:   anthropic.NewClient(opts...),
		bedrock: cfg.UseBedrock,
		tracker: NewTokenTracker(),
	}, nil
}

// Name implements Provider.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// Tracker returns the token tracker for this provider.
func (a *Anthropic) Tracker() *TokenTracker {
	return a.tracker
}

// Complete implements Provider.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := anthropic.Model(req.Model)
	if a.bedrock {
		model = translateModelForBedrock(model)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: int64(req.MaxTokens),
		Messages:  toSDKMessages(req.Messages),
		Tools:     toSDKTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := a.inner.Messages.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(err)
	}

	a.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	completion := &Completion{
		StopReason: fromSDKStopReason(resp.StopReason),
		TokensIn:   resp.Usage.InputTokens,
		TokensOut:  resp.Usage.OutputTokens,
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			completion.Blocks = append(completion.Blocks, Block{
				Type: BlockText,
				Text: variant.Text,
			})
		case anthropic.ToolUseBlock:
			completion.Blocks = append(completion.Blocks, Block{
				Type:      BlockToolUse,
				ToolID:    variant.ID,
				ToolName:  variant.Name,
				ToolInput: variant.Input,
			})
		default:
			log.Printf("[provider] ignoring unsupported content block type %T", variant)
		}
	}
	return completion, nil
}

// wrapError classifies an SDK error into a retryable or permanent
// provider error.
func (a *Anthropic) wrapError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		transient := apierr.StatusCode == 408 ||
			apierr.StatusCode == 429 ||
			apierr.StatusCode >= 500
		return &Error{Provider: a.Name(), Transient: transient, Err: err}
	}
	// No HTTP status means the request never completed (network,
	// timeout); treat as transient.
	return &Error{Provider: a.Name(), Transient: true, Err: err}
}

func toSDKMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		for _, b := range msg.Blocks {
			switch b.Type {
			case BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolID, b.ToolInput, b.ToolName))
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolID, b.Text, b.IsError))
			}
		}
		switch msg.Role {
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toSDKTools(tools []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema,
					Required:   t.Required,
				},
			},
		})
	}
	return out
}

func fromSDKStopReason(reason anthropic.StopReason) StopReason {
	switch reason {
	case anthropic.StopReasonToolUse:
		return StopToolUse
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	default:
		return StopEndTurn
	}
}

// translateModelForBedrock converts standard Anthropic model names to
// Bedrock cross-region inference profile format: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic.") {
		return model
	}
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:  "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219: "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:  "us.anthropic.claude-opus-4-1-20250805-v1:0",
	}
	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}
