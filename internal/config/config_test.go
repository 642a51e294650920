package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "rod", cfg.Browser.Backend)
	assert.Equal(t, 1280, cfg.Browser.Width)
	assert.Equal(t, 720, cfg.Browser.Height)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.Settle)
	assert.Equal(t, "https://www.google.com", cfg.Browser.StartURL)
	assert.Equal(t, ModeShared, cfg.Browser.Mode)
	assert.Equal(t, 10, cfg.Agent.MaxCycles)
	assert.Equal(t, 2*time.Second, cfg.Agent.WaitDuration)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 60*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Record.Output)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cuagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  backend: playwright
  headless: false
  mode: per_job
  max_browsers: 4
agent:
  max_cycles: 3
ai:
  provider: claude
  request_timeout: 15s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "playwright", cfg.Browser.Backend)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, ModePerJob, cfg.Browser.Mode)
	assert.Equal(t, 4, cfg.Browser.MaxBrowsers)
	assert.Equal(t, 3, cfg.Agent.MaxCycles)
	assert.Equal(t, "claude", cfg.AI.Provider)
	assert.Equal(t, 15*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 1280, cfg.Browser.Width, "unset keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CUAGENT_AI_PROVIDER", "openai")
	t.Setenv("CUAGENT_AGENT_MAX_CYCLES", "5")
	t.Setenv("CUAGENT_BROWSER_START_URL", "https://example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 5, cfg.Agent.MaxCycles)
	assert.Equal(t, "https://example.com", cfg.Browser.StartURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"backend", func(c *Config) { c.Browser.Backend = "selenium" }, "browser.backend"},
		{"viewport", func(c *Config) { c.Browser.Width = 0 }, "browser.width"},
		{"mode", func(c *Config) { c.Browser.Mode = "pooled" }, "browser.mode"},
		{"max browsers", func(c *Config) { c.Browser.Mode = ModePerJob; c.Browser.MaxBrowsers = 0 }, "browser.max_browsers"},
		{"cycles", func(c *Config) { c.Agent.MaxCycles = 0 }, "agent.max_cycles"},
		{"tokens", func(c *Config) { c.AI.MaxTokens = -1 }, "ai.max_tokens"},
		{"fps", func(c *Config) { c.Record.Output = "demo.gif"; c.Record.FPS = 0 }, "record.fps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
