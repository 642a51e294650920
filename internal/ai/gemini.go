package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
)

// GeminiProvider implements the Provider interface using Google Gemini
type GeminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, opts Options, logger *zap.Logger) (*GeminiProvider, error) {
	key, err := apiKey("CUAGENT_GEMINI_KEY", "GOOGLE_GENERATIVE_AI_API_KEY", "GEMINI_API_KEY")
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiProvider{
		client:    client,
		model:     model,
		maxTokens: opts.MaxTokens,
		logger:    logger.Named("ai.gemini"),
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) NewConversation(task string) Conversation {
	return &geminiConversation{provider: p, task: task}
}

type geminiConversation struct {
	provider *GeminiProvider
	task     string
	contents []*genai.Content
	pending  []string // function names awaiting a response part
}

func (c *geminiConversation) Decide(ctx context.Context, obs browser.EnvState, vocab []executor.Tool) ([]executor.Action, error) {
	p := c.provider

	var parts []*genai.Part
	for _, name := range c.pending {
		parts = append(parts, genai.NewPartFromFunctionResponse(name, map[string]any{"output": toolResultText}))
	}
	if len(c.contents) == 0 {
		parts = append(parts, genai.NewPartFromText(taskText(c.task)))
	}
	parts = append(parts,
		genai.NewPartFromText(observationText(obs)),
		genai.NewPartFromBytes(obs.Screenshot, "image/png"),
	)
	c.contents = append(c.contents, genai.NewContentFromParts(parts, genai.RoleUser))
	c.pending = nil

	resp, err := p.client.Models.GenerateContent(ctx, p.model, c.contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: geminiDeclarations(vocab)}},
		MaxOutputTokens:   int32(p.maxTokens),
	})
	if err != nil {
		return nil, &DecisionError{Provider: p.Name(), Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &DecisionError{Provider: p.Name(), Err: ErrEmptyResponse}
	}
	c.contents = append(c.contents, resp.Candidates[0].Content)

	calls := resp.FunctionCalls()
	actions := make([]executor.Action, 0, len(calls))
	for _, call := range calls {
		a, err := executor.DecodeMap(call.Name, call.Args)
		if err != nil {
			return nil, &DecisionError{Provider: p.Name(), Err: err}
		}
		actions = append(actions, a)
		c.pending = append(c.pending, call.Name)
	}

	fields := []zap.Field{
		zap.Int("actions", len(actions)),
		zap.String("finish_reason", string(resp.Candidates[0].FinishReason)),
	}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", u.PromptTokenCount),
			zap.Int32("completion_tokens", u.CandidatesTokenCount))
	}
	p.logger.Info("Decision received", fields...)
	return actions, nil
}

func geminiDeclarations(vocab []executor.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(vocab))
	for _, t := range vocab {
		decl := &genai.FunctionDeclaration{
			Name:        string(t.Name),
			Description: t.Description,
		}
		// Gemini rejects object schemas without properties.
		if len(t.Properties()) > 0 {
			decl.Parameters = geminiSchema(t.Parameters)
		}
		decls = append(decls, decl)
	}
	return decls
}

// geminiSchema converts a JSON-schema map into genai's schema type
func geminiSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch m["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if e, ok := m["enum"].([]string); ok {
		s.Enum = e
	}
	if r, ok := m["required"].([]string); ok {
		s.Required = r
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = geminiSchema(sub)
			}
		}
	}
	return s
}
