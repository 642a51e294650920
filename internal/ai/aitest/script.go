// Package aitest provides a scripted ai.Provider for loop and registry tests.
package aitest

import (
	"context"
	"sync"

	"github.com/v0xg/cuagent/internal/ai"
	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
)

// Turn is one scripted answer: either actions or an error
type Turn struct {
	Actions []executor.Action
	Err     error
}

// Script answers decisions from a fixed list of turns. Once the list is exhausted
// it keeps repeating Fallback, or ends the task when Fallback is nil.
type Script struct {
	Turns    []Turn
	Fallback *Turn
	// Block, when set, is waited on before every answer.
	Block <-chan struct{}

	mu           sync.Mutex
	tasks        []string
	observations []browser.EnvState
}

// Name implements ai.Provider
func (s *Script) Name() string { return "script" }

// NewConversation implements ai.Provider; every conversation restarts the script
func (s *Script) NewConversation(task string) ai.Conversation {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return &conversation{script: s}
}

// Observations returns every observation handed to Decide, across conversations
func (s *Script) Observations() []browser.EnvState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]browser.EnvState(nil), s.observations...)
}

// Tasks returns the task of every conversation started
func (s *Script) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tasks...)
}

type conversation struct {
	script *Script
	turn   int
}

func (c *conversation) Decide(ctx context.Context, obs browser.EnvState, vocab []executor.Tool) ([]executor.Action, error) {
	s := c.script
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return nil, &ai.DecisionError{Provider: s.Name(), Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	s.observations = append(s.observations, obs)
	s.mu.Unlock()

	var t Turn
	switch {
	case c.turn < len(s.Turns):
		t = s.Turns[c.turn]
	case s.Fallback != nil:
		t = *s.Fallback
	}
	c.turn++

	if t.Err != nil {
		return nil, &ai.DecisionError{Provider: s.Name(), Err: t.Err}
	}
	return t.Actions, nil
}

var _ ai.Provider = (*Script)(nil)
