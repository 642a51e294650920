package ai

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
)

// ClaudeProvider implements the Provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(opts Options, logger *zap.Logger) (*ClaudeProvider, error) {
	key, err := apiKey("CUAGENT_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}

	client := anthropic.NewClient(option.WithAPIKey(key))

	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &ClaudeProvider{
		client:    &client,
		model:     model,
		maxTokens: opts.MaxTokens,
		logger:    logger.Named("ai.claude"),
	}, nil
}

func (p *ClaudeProvider) Name() string { return "claude" }

func (p *ClaudeProvider) NewConversation(task string) Conversation {
	return &claudeConversation{provider: p, task: task}
}

type claudeConversation struct {
	provider *ClaudeProvider
	task     string
	messages []anthropic.MessageParam
	pending  []string // tool_use IDs that still need a tool_result
}

func (c *claudeConversation) Decide(ctx context.Context, obs browser.EnvState, vocab []executor.Tool) ([]executor.Action, error) {
	p := c.provider

	var blocks []anthropic.ContentBlockParamUnion
	for _, id := range c.pending {
		blocks = append(blocks, anthropic.NewToolResultBlock(id, toolResultText, false))
	}
	if len(c.messages) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(taskText(c.task)))
	}
	blocks = append(blocks,
		anthropic.NewTextBlock(observationText(obs)),
		anthropic.NewImageBlockBase64("image/png", obs.Base64()),
	)
	c.messages = append(c.messages, anthropic.NewUserMessage(blocks...))
	c.pending = nil

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: c.messages,
		Tools:    claudeTools(vocab),
	})
	if err != nil {
		return nil, &DecisionError{Provider: p.Name(), Err: err}
	}

	var (
		actions []executor.Action
		reply   []anthropic.ContentBlockParamUnion
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				reply = append(reply, anthropic.NewTextBlock(block.Text))
				p.logger.Debug("Model says", zap.String("text", block.Text))
			}
		case "tool_use":
			a, err := executor.Decode(block.Name, block.Input)
			if err != nil {
				return nil, &DecisionError{Provider: p.Name(), Err: err}
			}
			actions = append(actions, a)
			c.pending = append(c.pending, block.ID)
			reply = append(reply, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    block.ID,
					Name:  block.Name,
					Input: block.Input,
				},
			})
		}
	}
	if len(reply) > 0 {
		c.messages = append(c.messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleAssistant,
			Content: reply,
		})
	}

	p.logger.Info("Decision received",
		zap.Int("actions", len(actions)),
		zap.String("stop_reason", string(resp.StopReason)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens))
	return actions, nil
}

func claudeTools(vocab []executor.Tool) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(vocab))
	for _, t := range vocab {
		tool := anthropic.ToolParam{
			Name:        string(t.Name),
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Properties(),
				Required:   t.Required,
			},
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}
