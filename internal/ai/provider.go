package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
)

// ErrEmptyResponse is returned when the service answers with no usable candidate
var ErrEmptyResponse = errors.New("empty response")

// DecisionError is a failed decision request. It is fatal to the job that made it.
type DecisionError struct {
	Provider string
	Err      error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s decision request failed: %v", e.Provider, e.Err)
}

func (e *DecisionError) Unwrap() error { return e.Err }

// Provider creates conversations with a vision-capable model
type Provider interface {
	Name() string
	NewConversation(task string) Conversation
}

// Conversation carries the running context of one task.
// Decide appends the observation as a user turn and returns the chosen actions in
// the order the model gave them. An empty result means the model considers the task done.
type Conversation interface {
	Decide(ctx context.Context, obs browser.EnvState, vocab []executor.Tool) ([]executor.Action, error)
}

// Options configures a provider
type Options struct {
	Model     string
	MaxTokens int
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(ctx context.Context, name string, opts Options, logger *zap.Logger) (Provider, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	switch name {
	case "gemini", "google", "":
		return NewGeminiProvider(ctx, opts, logger)
	case "claude", "anthropic":
		return NewClaudeProvider(opts, logger)
	case "openai", "gpt":
		return NewOpenAIProvider(opts, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: gemini, claude, openai)", name)
	}
}

// apiKey reads the cuagent-specific variable first, then the vendor default
func apiKey(vars ...string) (string, error) {
	for _, v := range vars {
		if key := os.Getenv(v); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf("%s environment variable required", strings.Join(vars, " or "))
}
