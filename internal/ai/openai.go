package ai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
)

// OpenAIProvider implements the Provider interface using OpenAI
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(opts Options, logger *zap.Logger) (*OpenAIProvider, error) {
	key, err := apiKey("CUAGENT_OPENAI_KEY", "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = openai.GPT4o
	}

	return &OpenAIProvider{
		client:    openai.NewClient(key),
		model:     model,
		maxTokens: opts.MaxTokens,
		logger:    logger.Named("ai.openai"),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) NewConversation(task string) Conversation {
	return &openaiConversation{
		provider: p,
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: taskText(task)},
		},
	}
}

type openaiConversation struct {
	provider *OpenAIProvider
	messages []openai.ChatCompletionMessage
	pending  []string // tool call IDs awaiting a tool message
}

func (c *openaiConversation) Decide(ctx context.Context, obs browser.EnvState, vocab []executor.Tool) ([]executor.Action, error) {
	p := c.provider

	for _, id := range c.pending {
		c.messages = append(c.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    toolResultText,
			ToolCallID: id,
		})
	}
	c.pending = nil
	c.messages = append(c.messages, observationMessage(obs))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  c.messages,
		Tools:     openaiTools(vocab),
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, &DecisionError{Provider: p.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &DecisionError{Provider: p.Name(), Err: ErrEmptyResponse}
	}

	msg := resp.Choices[0].Message
	c.messages = append(c.messages, msg)

	actions, err := openaiActions(msg.ToolCalls)
	if err != nil {
		return nil, &DecisionError{Provider: p.Name(), Err: err}
	}
	for _, call := range msg.ToolCalls {
		c.pending = append(c.pending, call.ID)
	}

	p.logger.Info("Decision received",
		zap.Int("actions", len(actions)),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return actions, nil
}

func observationMessage(obs browser.EnvState) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: observationText(obs)},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/png;base64," + obs.Base64(),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	}
}

func openaiTools(vocab []executor.Tool) []openai.Tool {
	tools := make([]openai.Tool, 0, len(vocab))
	for _, t := range vocab {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(t.Name),
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return tools
}

func openaiActions(calls []openai.ToolCall) ([]executor.Action, error) {
	actions := make([]executor.Action, 0, len(calls))
	for _, call := range calls {
		if call.Type != "" && call.Type != openai.ToolTypeFunction {
			return nil, fmt.Errorf("unexpected tool call type %q", call.Type)
		}
		a, err := executor.Decode(call.Function.Name, json.RawMessage(call.Function.Arguments))
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}
